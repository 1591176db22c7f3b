// Package fbr talks to the FBR digital invoicing gateway.
//
// Both endpoints take the same invoice document and a per-seller bearer
// token. A call succeeds only when the gateway answers HTTP 200; transport
// failures are folded into the Response instead of being returned, so bulk
// loops can record them next to real gateway answers. Calls are never
// retried.
package fbr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ginjaninja78/fbr-invoicer/internal/config"
	"github.com/ginjaninja78/fbr-invoicer/internal/logger"
	"github.com/ginjaninja78/fbr-invoicer/internal/types"
)

// ErrNoToken is returned when a seller has no bearer token configured.
var ErrNoToken = errors.New("seller has no FBR bearer token")

// Mode selects the endpoint.
type Mode string

const (
	ModeValidate Mode = "validate"
	ModePost     Mode = "post"
)

// Response is the gateway's answer to one call.
type Response struct {
	StatusCode int            `json:"status_code"`
	Body       map[string]any `json:"body"`
	Raw        []byte         `json:"-"`
}

// Success reports whether the gateway accepted the call.
func (r Response) Success() bool {
	return r.StatusCode == http.StatusOK
}

// Client calls the validate and post endpoints.
type Client struct {
	validateURL string
	postURL     string
	httpClient  *http.Client
	log         zerolog.Logger
}

// NewClient builds a client from cfg. Empty URLs fall back to the sandbox
// endpoints and a zero timeout to 30 seconds.
func NewClient(cfg config.FBRConfig) *Client {
	c := &Client{
		validateURL: cfg.ValidateURL,
		postURL:     cfg.PostURL,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		log:         logger.WithComponent("fbr"),
	}
	if c.validateURL == "" {
		c.validateURL = config.DefaultValidateURL
	}
	if c.postURL == "" {
		c.postURL = config.DefaultPostURL
	}
	if c.httpClient.Timeout <= 0 {
		c.httpClient.Timeout = 30 * time.Second
	}
	return c
}

// Validate asks the gateway to check inv without recording it.
func (c *Client) Validate(ctx context.Context, token string, inv types.Invoice) Response {
	return c.call(ctx, c.validateURL, token, inv)
}

// Post records inv with the gateway.
func (c *Client) Post(ctx context.Context, token string, inv types.Invoice) Response {
	return c.call(ctx, c.postURL, token, inv)
}

// Do dispatches on mode.
func (c *Client) Do(ctx context.Context, mode Mode, token string, inv types.Invoice) Response {
	if mode == ModePost {
		return c.Post(ctx, token, inv)
	}
	return c.Validate(ctx, token, inv)
}

func (c *Client) call(ctx context.Context, url, token string, inv types.Invoice) Response {
	requestID := uuid.NewString()
	log := c.log.With().Str("request_id", requestID).Str("ref", inv.InvoiceRefNo).Logger()

	payload, err := json.Marshal(inv)
	if err != nil {
		return failure(fmt.Errorf("failed to encode invoice: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return failure(err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("url", url).Msg("FBR request failed")
		return failure(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return failure(fmt.Errorf("failed to read response: %w", err))
	}

	out := Response{StatusCode: resp.StatusCode, Raw: raw}
	if err := json.Unmarshal(raw, &out.Body); err != nil || out.Body == nil {
		out.Body = map[string]any{"raw": string(raw)}
	}

	log.Debug().
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Str("url", url).
		Msg("FBR call completed")
	return out
}

func failure(err error) Response {
	return Response{Body: map[string]any{"error": err.Error()}}
}

// InvoiceNumber extracts the FBR invoice number from a response body:
// "invoiceNumber", else "data.invoiceNumber", else "N/A".
func InvoiceNumber(body map[string]any) string {
	if n, ok := stringValue(body["invoiceNumber"]); ok {
		return n
	}
	if data, ok := body["data"].(map[string]any); ok {
		if n, ok := stringValue(data["invoiceNumber"]); ok {
			return n
		}
	}
	return "N/A"
}

func stringValue(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, s != ""
	case float64:
		return fmt.Sprintf("%.0f", s), true
	}
	return "", false
}
