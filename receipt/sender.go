package receipt

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/robinvdvleuten/contribute/config"
)

// Sender delivers a rendered receipt.
type Sender interface {
	Send(ctx context.Context, r *Receipt) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, r *Receipt) error

// Send calls f.
func (f SenderFunc) Send(ctx context.Context, r *Receipt) error { return f(ctx, r) }

// LogSender writes receipts to a logger instead of delivering them.
type LogSender struct {
	Logger *zap.Logger
}

// Send logs the receipt.
func (s LogSender) Send(ctx context.Context, r *Receipt) error {
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("receipt",
		zap.Stringer("contribution_id", r.ContributionID),
		zap.String("subject", r.Subject()),
		zap.String("from", r.From),
		zap.String("total", r.Total.StringFixed(2)),
		zap.String("currency", r.Currency))
	return nil
}

// Multi sends a receipt with every sender. All senders are tried; their
// errors are joined.
type Multi []Sender

// Send sends r with every sender.
func (m Multi) Send(ctx context.Context, r *Receipt) error {
	var errs []error
	for _, s := range m {
		if err := s.Send(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewSender returns the sender configured by settings: receipts are always
// logged and also archived to S3 when a bucket is set.
func NewSender(ctx context.Context, settings config.ReceiptSettings, logger *zap.Logger) (Sender, error) {
	senders := Multi{LogSender{Logger: logger}}
	if settings.Bucket != "" {
		archiver, err := NewS3ArchiverFromSettings(ctx, settings, logger)
		if err != nil {
			return nil, err
		}
		senders = append(senders, archiver)
	}
	return senders, nil
}
