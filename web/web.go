// Package web provides the HTTP API of the contribution engine.
//
// The server exposes the Contribution and Payment API actions as JSON
// endpoints, a payment processor notification endpoint and a Server-Sent
// Events stream announcing saved contributions. Every action returns the
// entity or an {error_message, error_code} object.
//
// SECURITY WARNING: This server has no authentication and should only be
// bound to localhost (127.0.0.1) or run behind an authenticating proxy.
package web

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/robinvdvleuten/contribute/config"
	"github.com/robinvdvleuten/contribute/contribution"
	"github.com/robinvdvleuten/contribute/order"
	"github.com/robinvdvleuten/contribute/telemetry"
)

type Server struct {
	Port      int
	Host      string
	Version   string
	CommitSHA string

	engine   *contribution.Engine
	orders   *order.Orchestrator
	settings *config.Holder
	logger   *zap.Logger

	// SSE clients for broadcasting contribution events
	sseClients map[chan string]struct{}
	sseMu      sync.Mutex
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithSettings sets the holder the settings of each request are read from.
func WithSettings(holder *config.Holder) Option {
	return func(s *Server) { s.settings = holder }
}

// WithVersion sets the version reported by the health endpoint.
func WithVersion(version, commitSHA string) Option {
	return func(s *Server) {
		s.Version = version
		s.CommitSHA = commitSHA
	}
}

// New returns a server for engine and orders. When hooks is not nil, saved
// and deleted contributions are broadcast to SSE clients.
func New(engine *contribution.Engine, orders *order.Orchestrator, hooks *contribution.Hooks, opts ...Option) *Server {
	s := &Server{
		Port:       8080,
		Host:       "127.0.0.1",
		engine:     engine,
		orders:     orders,
		logger:     zap.NewNop(),
		sseClients: make(map[chan string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.settings == nil {
		s.settings = config.NewHolder(config.Default())
	}
	if hooks != nil {
		hooks.Register(func(ctx context.Context, ev contribution.Event) {
			if ev.Phase == contribution.PhasePost {
				s.broadcast(fmt.Sprintf("%s %s", ev.Action, ev.ContributionID))
			}
		})
	}
	return s
}

// Start serves the API until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	collector := telemetry.FromContext(ctx)
	timer := collector.Start(fmt.Sprintf("web.start %s:%d", s.Host, s.Port))

	setupTimer := timer.Child("web.setup_router")
	mux := s.setupRouter()
	setupTimer.End()
	timer.End()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.Host, s.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// Reloaded tells SSE clients that the settings changed.
func (s *Server) Reloaded() {
	s.broadcast("reload")
}

func (s *Server) setupRouter() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/Contribution/create", s.action("Contribution.create", s.handleCreate))
	mux.HandleFunc("POST /api/Contribution/completetransaction", s.action("Contribution.completetransaction", s.handleCompleteTransaction))
	mux.HandleFunc("POST /api/Contribution/repeattransaction", s.action("Contribution.repeattransaction", s.handleRepeatTransaction))
	mux.HandleFunc("POST /api/Contribution/sendconfirmation", s.action("Contribution.sendconfirmation", s.handleSendConfirmation))
	mux.HandleFunc("POST /api/Contribution/delete", s.action("Contribution.delete", s.handleDelete))
	mux.HandleFunc("GET /api/Contribution/get", s.action("Contribution.get", s.handleGet))
	mux.HandleFunc("GET /api/Contribution/balances", s.action("Contribution.balances", s.handleGetBalances))
	mux.HandleFunc("POST /api/Payment/create", s.action("Payment.create", s.handlePaymentCreate))
	mux.HandleFunc("GET /api/FinancialAccount/get", s.action("FinancialAccount.get", s.handleGetAccounts))
	mux.HandleFunc("POST /api/processor/notify", s.action("processor.notify", s.handleNotify))
	mux.HandleFunc("GET /api/events", s.handleSSE)
	mux.HandleFunc("GET /api/health", s.handleHealth)

	return mux
}

// action wraps an API handler: the current settings and a timing collector
// are put on the request context and the request is logged with its
// duration.
func (s *Server) action(name string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		collector := telemetry.NewTimingCollector()
		ctx := telemetry.WithCollector(r.Context(), collector)
		ctx = s.settings.Load().WithContext(ctx)

		timer := collector.Start(name)
		ctx = telemetry.WithRootTimer(ctx, timer)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r.WithContext(ctx))
		timer.End()

		s.logger.Info("api",
			zap.String("action", name),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)))
		for _, span := range collector.Spans() {
			s.logger.Debug("span", zap.String("name", span.Name), zap.Duration("duration", span.Duration))
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.Version,
		"commit":  s.CommitSHA,
	})
}

// handleSSE handles Server-Sent Events connections for real-time updates.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Get flusher for streaming
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	// Create client channel
	clientChan := make(chan string, 10)

	// Register client
	s.sseMu.Lock()
	s.sseClients[clientChan] = struct{}{}
	s.sseMu.Unlock()

	// Cleanup on disconnect
	defer func() {
		s.sseMu.Lock()
		delete(s.sseClients, clientChan)
		s.sseMu.Unlock()
	}()

	// Send initial connection event
	_, _ = fmt.Fprintf(w, "data: connected\n\n")
	flusher.Flush()

	// Stream events to client
	for {
		select {
		case <-r.Context().Done():
			return
		case event := <-clientChan:
			_, _ = fmt.Fprintf(w, "data: %s\n\n", event)
			flusher.Flush()
		}
	}
}

// broadcast sends an event to all connected SSE clients.
func (s *Server) broadcast(event string) {
	s.sseMu.Lock()
	defer s.sseMu.Unlock()

	for clientChan := range s.sseClients {
		select {
		case clientChan <- event:
		default:
			// Client buffer full, skip
		}
	}
}
