package fbr

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ginjaninja78/fbr-invoicer/internal/config"
	"github.com/ginjaninja78/fbr-invoicer/internal/types"
)

func testInvoice(ref string) types.Invoice {
	return types.Invoice{
		InvoiceType:       types.InvoiceTypeSale,
		InvoiceRefNo:      ref,
		BuyerBusinessName: "Acme",
		Items:             []types.Item{{HSCode: "0101.2100", ValueSalesExcludingST: 100, TotalValues: 100}},
	}
}

func newGateway(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.FBRConfig{
		ValidateURL: srv.URL + "/validate",
		PostURL:     srv.URL + "/post",
		Timeout:     5 * time.Second,
	})
}

func TestClient_Validate(t *testing.T) {
	var gotPath, gotAuth, gotRef string
	c := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		var inv types.Invoice
		if err := json.NewDecoder(r.Body).Decode(&inv); err == nil {
			gotRef = inv.InvoiceRefNo
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"validationResponse":{"status":"Valid"}}`))
	})

	resp := c.Validate(context.Background(), "tok", testInvoice("INV-1"))

	if !resp.Success() || resp.StatusCode != http.StatusOK {
		t.Fatalf("expected success, got %+v", resp)
	}
	if gotPath != "/validate" || gotAuth != "Bearer tok" || gotRef != "INV-1" {
		t.Fatalf("unexpected request: path=%q auth=%q ref=%q", gotPath, gotAuth, gotRef)
	}
	if _, ok := resp.Body["validationResponse"]; !ok {
		t.Fatalf("expected decoded body, got %v", resp.Body)
	}
}

func TestClient_Non200IsFailure(t *testing.T) {
	c := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("not json"))
	})

	resp := c.Post(context.Background(), "tok", testInvoice("INV-1"))
	if resp.Success() || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 failure, got %+v", resp)
	}
	if resp.Body["raw"] != "not json" {
		t.Fatalf("expected raw body fallback, got %v", resp.Body)
	}
}

func TestClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(config.FBRConfig{ValidateURL: url, PostURL: url, Timeout: time.Second})
	resp := c.Validate(context.Background(), "tok", testInvoice("INV-1"))

	if resp.StatusCode != 0 || resp.Success() {
		t.Fatalf("expected status 0, got %d", resp.StatusCode)
	}
	if _, ok := resp.Body["error"]; !ok {
		t.Fatalf("expected error body, got %v", resp.Body)
	}
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(config.FBRConfig{})
	if c.validateURL != config.DefaultValidateURL || c.postURL != config.DefaultPostURL {
		t.Fatalf("expected default URLs, got %q %q", c.validateURL, c.postURL)
	}
	if c.httpClient.Timeout != 30*time.Second {
		t.Fatalf("expected 30s timeout, got %s", c.httpClient.Timeout)
	}
}

func TestInvoiceNumber(t *testing.T) {
	cases := []struct {
		body map[string]any
		want string
	}{
		{map[string]any{"invoiceNumber": "ABC123"}, "ABC123"},
		{map[string]any{"data": map[string]any{"invoiceNumber": "XYZ"}}, "XYZ"},
		{map[string]any{"invoiceNumber": "", "data": map[string]any{"invoiceNumber": "XYZ"}}, "XYZ"},
		{map[string]any{"status": "ok"}, "N/A"},
		{nil, "N/A"},
	}
	for _, c := range cases {
		if got := InvoiceNumber(c.body); got != c.want {
			t.Errorf("InvoiceNumber(%v) = %q, want %q", c.body, got, c.want)
		}
	}
}

func TestSubmitAll_PostMixed(t *testing.T) {
	var calls int32
	c := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n == 2 {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"bad hs code"}`))
			return
		}
		w.Write([]byte(`{"invoiceNumber":"FBR-` + string(rune('0'+n)) + `"}`))
	})

	results := []types.RowResult{
		{RowNumber: 1, BuyerName: "A", Invoice: testInvoice("R1")},
		{RowNumber: 2, BuyerName: "B", Invoice: testInvoice("R2")},
		{RowNumber: 3, BuyerName: "C", Invoice: testInvoice("R3")},
	}
	bulk, err := SubmitAll(context.Background(), c, ModePost, "tok", results)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bulk.SuccessCount != 2 || bulk.FailureCount != 1 {
		t.Fatalf("expected 2/1, got %d/%d", bulk.SuccessCount, bulk.FailureCount)
	}
	if bulk.Submissions[1].StatusCode != http.StatusBadRequest || bulk.Submissions[1].Success {
		t.Errorf("expected row 2 to fail, got %+v", bulk.Submissions[1])
	}
	if bulk.Submissions[0].InvoiceNumber != "FBR-1" || bulk.Submissions[2].InvoiceNumber != "FBR-3" {
		t.Errorf("unexpected invoice numbers %q %q", bulk.Submissions[0].InvoiceNumber, bulk.Submissions[2].InvoiceNumber)
	}
	if got := len(bulk.Succeeded()); got != 2 {
		t.Errorf("expected 2 succeeded, got %d", got)
	}
}

type stubSubmitter struct {
	calls  int
	cancel context.CancelFunc
}

func (s *stubSubmitter) Do(ctx context.Context, mode Mode, token string, inv types.Invoice) Response {
	s.calls++
	if s.calls == 1 {
		s.cancel()
	}
	return Response{StatusCode: http.StatusOK, Body: map[string]any{}}
}

func TestSubmitAll_CancelStopsBetweenRows(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	stub := &stubSubmitter{cancel: cancel}

	results := []types.RowResult{
		{RowNumber: 1, Invoice: testInvoice("R1")},
		{RowNumber: 2, Invoice: testInvoice("R2")},
		{RowNumber: 3, Invoice: testInvoice("R3")},
	}
	bulk, err := SubmitAll(ctx, stub, ModeValidate, "tok", results)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if stub.calls != 1 {
		t.Fatalf("expected one call before cancellation, got %d", stub.calls)
	}
	if bulk.SuccessCount != 1 || bulk.FailureCount != 2 || len(bulk.Submissions) != 3 {
		t.Fatalf("unexpected bulk result %+v", bulk)
	}
}

func TestSubmitAll_NoToken(t *testing.T) {
	if _, err := SubmitAll(context.Background(), &stubSubmitter{}, ModePost, " ", nil); !errors.Is(err, ErrNoToken) {
		t.Fatalf("expected ErrNoToken, got %v", err)
	}
}
