package fbr

import (
	"context"
	"strings"

	"github.com/ginjaninja78/fbr-invoicer/internal/types"
)

// Submitter is satisfied by *Client.
type Submitter interface {
	Do(ctx context.Context, mode Mode, token string, inv types.Invoice) Response
}

// Submission is the outcome of sending one normalized row.
type Submission struct {
	RowNumber     int            `json:"row_number"`
	BuyerName     string         `json:"buyer_name"`
	Invoice       types.Invoice  `json:"invoice_data"`
	StatusCode    int            `json:"status_code"`
	Response      map[string]any `json:"response"`
	Success       bool           `json:"success"`
	InvoiceNumber string         `json:"invoice_number,omitempty"`
}

// BulkResult holds every submission in input order.
type BulkResult struct {
	Mode         Mode
	Submissions  []Submission
	SuccessCount int
	FailureCount int
}

// SubmitAll sends every result, one after another, in input order. A
// failed row does not stop the loop. Once ctx is done the remaining rows
// are recorded as failed with the context error and nothing more is sent.
func SubmitAll(ctx context.Context, s Submitter, mode Mode, token string, results []types.RowResult) (*BulkResult, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrNoToken
	}

	out := &BulkResult{Mode: mode, Submissions: make([]Submission, 0, len(results))}
	for _, r := range results {
		sub := Submission{
			RowNumber: r.RowNumber,
			BuyerName: r.BuyerName,
			Invoice:   r.Invoice,
		}

		if err := ctx.Err(); err != nil {
			sub.Response = map[string]any{"error": err.Error()}
		} else {
			resp := s.Do(ctx, mode, token, r.Invoice)
			sub.StatusCode = resp.StatusCode
			sub.Response = resp.Body
			sub.Success = resp.Success()
			if sub.Success && mode == ModePost {
				sub.InvoiceNumber = InvoiceNumber(resp.Body)
			}
		}

		if sub.Success {
			out.SuccessCount++
		} else {
			out.FailureCount++
		}
		out.Submissions = append(out.Submissions, sub)
	}
	return out, ctx.Err()
}

// Succeeded returns the successful submissions.
func (b *BulkResult) Succeeded() []Submission {
	var out []Submission
	for _, s := range b.Submissions {
		if s.Success {
			out = append(out, s)
		}
	}
	return out
}
