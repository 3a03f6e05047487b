package receipt

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/shopspring/decimal"

	"github.com/robinvdvleuten/contribute/model"
)

func sample() *Receipt {
	hundred := decimal.NewFromInt(100)
	return &Receipt{
		ContributionID: 7,
		InvoiceNumber:  "INV_7",
		FinancialType:  "Donation",
		Status:         model.StatusCompleted,
		Currency:       "USD",
		From:           "donations@example.org",
		Lines: []Line{
			{Label: "Donation", Qty: decimal.NewFromInt(1), UnitPrice: hundred, Total: hundred},
		},
		Total: hundred,
		Paid:  hundred,
	}
}

func TestMarkdown(t *testing.T) {
	md := sample().Markdown()

	for _, want := range []string{
		"# Receipt INV_7\n",
		"From: donations@example.org\n",
		"- **Status:** Completed\n",
		"| Item     | Qty | Unit price |   Total |\n",
		"| -------- | --: | ---------: | ------: |\n",
		"| Donation |   1 |    $100.00 | $100.00 |\n",
		"**Total: $100.00**",
	} {
		assert.True(t, strings.Contains(md, want), "missing %q in\n%s", want, md)
	}
	assert.False(t, strings.Contains(md, "Balance due"))
}

func TestMarkdownBalanceAndTax(t *testing.T) {
	r := sample()
	r.Tax = decimal.NewFromInt(10)
	r.TaxTerm = "VAT"
	r.Paid = decimal.NewFromInt(40)
	r.Balance = decimal.NewFromInt(60)
	r.IsTest = true

	md := r.Markdown()
	assert.True(t, strings.HasPrefix(md, "# [TEST] Receipt INV_7\n"))
	assert.True(t, strings.Contains(md, "VAT: $10.00"))
	assert.True(t, strings.Contains(md, "Balance due: $60.00"))
}

type fakeS3 struct {
	inputs []*s3.PutObjectInput
	bodies []string
	err    error
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, _ := io.ReadAll(params.Body)
	f.inputs = append(f.inputs, params)
	f.bodies = append(f.bodies, string(body))
	return &s3.PutObjectOutput{}, nil
}

func TestS3Archiver(t *testing.T) {
	client := &fakeS3{}
	a := NewS3Archiver(client, "receipts-bucket", "receipts/", nil)
	a.newKey = func() string { return "k1" }

	assert.NoError(t, a.Send(context.Background(), sample()))
	assert.Equal(t, 1, len(client.inputs))
	assert.Equal(t, "receipts-bucket", *client.inputs[0].Bucket)
	assert.Equal(t, "receipts/INV_7-k1.md", *client.inputs[0].Key)
	assert.Equal(t, "text/markdown; charset=utf-8", *client.inputs[0].ContentType)
	assert.Equal(t, sample().Markdown(), client.bodies[0])
}

func TestS3ArchiverError(t *testing.T) {
	a := NewS3Archiver(&fakeS3{err: errors.New("denied")}, "b", "", nil)
	err := a.Send(context.Background(), sample())
	assert.EqualError(t, err, "failed to archive receipt INV_7: denied")
}

func TestMulti(t *testing.T) {
	var calls []string
	ok := SenderFunc(func(ctx context.Context, r *Receipt) error {
		calls = append(calls, "ok")
		return nil
	})
	broken := SenderFunc(func(ctx context.Context, r *Receipt) error {
		calls = append(calls, "broken")
		return errors.New("smtp down")
	})

	err := Multi{broken, LogSender{}, ok}.Send(context.Background(), sample())
	assert.EqualError(t, err, "smtp down")
	assert.Equal(t, []string{"broken", "ok"}, calls)
	assert.NoError(t, Multi{ok}.Send(context.Background(), sample()))
}
