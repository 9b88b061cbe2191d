package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"qms/ticket-queue/internal/ledger"
	"qms/ticket-queue/internal/models"
	"qms/ticket-queue/internal/queue"
)

type fakeService struct {
	listFn    func(ctx context.Context) ([]models.Ticket, error)
	issueFn   func(ctx context.Context) (models.Ticket, error)
	advanceFn func(ctx context.Context, currentID, outcome string) (string, error)
}

func (f fakeService) List(ctx context.Context) ([]models.Ticket, error) {
	if f.listFn == nil {
		return nil, nil
	}
	return f.listFn(ctx)
}

func (f fakeService) Issue(ctx context.Context) (models.Ticket, error) {
	if f.issueFn == nil {
		return models.Ticket{}, nil
	}
	return f.issueFn(ctx)
}

func (f fakeService) Advance(ctx context.Context, currentID, outcome string) (string, error) {
	if f.advanceFn == nil {
		return currentID, nil
	}
	return f.advanceFn(ctx, currentID, outcome)
}

func postQueue(t *testing.T, h *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/queue", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	h.Routes().ServeHTTP(resp, req)
	return resp
}

func decodeError(t *testing.T, resp *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var payload errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return payload
}

func TestListQueueSuccess(t *testing.T) {
	st := fakeService{
		listFn: func(ctx context.Context) ([]models.Ticket, error) {
			return []models.Ticket{
				{Queue: "A001", Timestamp: "2026-10-17T09:00:00+09:00", Status: models.StatusAttend, Row: 2},
				{Queue: "A002", Timestamp: "2026-10-17T09:01:00+09:00", Status: models.StatusEmpty, Row: 3},
			}, nil
		},
	}
	h := NewHandler(st, Options{})

	req := httptest.NewRequest(http.MethodGet, "/queue", nil)
	resp := httptest.NewRecorder()
	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	body := resp.Body.String()
	if strings.Contains(body, "Row") || strings.Contains(body, "\"row\"") {
		t.Fatalf("row position leaked to client: %s", body)
	}
	var payload listResponse
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload.Queues) != 2 || payload.Queues[0].Queue != "A001" || payload.Queues[0].Status != models.StatusAttend {
		t.Fatalf("unexpected queues: %+v", payload.Queues)
	}
}

func TestListQueueEmptyIsArray(t *testing.T) {
	h := NewHandler(fakeService{}, Options{})

	req := httptest.NewRequest(http.MethodGet, "/queue", nil)
	resp := httptest.NewRecorder()
	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	if got := strings.TrimSpace(resp.Body.String()); got != `{"queues":[]}` {
		t.Fatalf("unexpected body: %s", got)
	}
}

func TestIssueTicket(t *testing.T) {
	st := fakeService{
		issueFn: func(ctx context.Context) (models.Ticket, error) {
			return models.Ticket{Queue: "A004", Status: models.StatusEmpty}, nil
		},
	}
	h := NewHandler(st, Options{})

	resp := postQueue(t, h, `{"action":"New"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	var payload issueResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.NewQueue != "A004" {
		t.Fatalf("expected A004, got %q", payload.NewQueue)
	}
}

func TestAdvanceActions(t *testing.T) {
	cases := []struct {
		action  string
		outcome string
	}{
		{action: "Attend", outcome: models.StatusAttend},
		{action: "Absent", outcome: models.StatusAbsent},
	}
	for _, tc := range cases {
		t.Run(tc.action, func(t *testing.T) {
			var gotID, gotOutcome string
			st := fakeService{
				advanceFn: func(ctx context.Context, currentID, outcome string) (string, error) {
					gotID, gotOutcome = currentID, outcome
					return "A003", nil
				},
			}
			h := NewHandler(st, Options{})

			resp := postQueue(t, h, fmt.Sprintf(`{"action":%q,"currentQueue":" A002 "}`, tc.action))
			if resp.Code != http.StatusOK {
				t.Fatalf("expected status 200, got %d", resp.Code)
			}
			if gotID != "A002" || gotOutcome != tc.outcome {
				t.Fatalf("unexpected advance call id=%q outcome=%q", gotID, gotOutcome)
			}
			var payload advanceResponse
			if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if payload.CurrentQueue != "A003" {
				t.Fatalf("expected A003, got %q", payload.CurrentQueue)
			}
		})
	}
}

func TestAdvanceMissingCurrentQueue(t *testing.T) {
	called := false
	st := fakeService{
		advanceFn: func(ctx context.Context, currentID, outcome string) (string, error) {
			called = true
			return currentID, nil
		},
	}
	h := NewHandler(st, Options{})

	resp := postQueue(t, h, `{"action":"Attend"}`)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
	if called {
		t.Fatalf("advance should not be called without currentQueue")
	}
	if payload := decodeError(t, resp); payload.Error.Code != "invalid_request" {
		t.Fatalf("unexpected error code %q", payload.Error.Code)
	}
}

func TestUnknownAction(t *testing.T) {
	h := NewHandler(fakeService{}, Options{})

	resp := postQueue(t, h, `{"action":"Skip","currentQueue":"A001"}`)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
	if payload := decodeError(t, resp); payload.Error.Code != "invalid_action" {
		t.Fatalf("unexpected error code %q", payload.Error.Code)
	}
}

func TestMalformedJSON(t *testing.T) {
	h := NewHandler(fakeService{}, Options{})

	for _, body := range []string{`{"action":`, `{"action":"New","extra":1}`} {
		resp := postQueue(t, h, body)
		if resp.Code != http.StatusBadRequest {
			t.Fatalf("body %s: expected status 400, got %d", body, resp.Code)
		}
		if payload := decodeError(t, resp); payload.Error.Code != "invalid_json" {
			t.Fatalf("body %s: unexpected error code %q", body, payload.Error.Code)
		}
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := NewHandler(fakeService{}, Options{})

	req := httptest.NewRequest(http.MethodDelete, "/queue", nil)
	resp := httptest.NewRecorder()
	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status 405, got %d", resp.Code)
	}
}

func TestStoreUnavailableIsInternalError(t *testing.T) {
	st := fakeService{
		issueFn: func(ctx context.Context) (models.Ticket, error) {
			return models.Ticket{}, ledger.Unavailable("append", errors.New("quota exceeded"))
		},
	}
	h := NewHandler(st, Options{})

	req := httptest.NewRequest(http.MethodPost, "/queue", bytes.NewBufferString(`{"action":"New"}`))
	req.Header.Set(RequestIDHeader, "req-42")
	resp := httptest.NewRecorder()
	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", resp.Code)
	}
	payload := decodeError(t, resp)
	if payload.RequestID != "req-42" || payload.Error.Code != "store_unavailable" {
		t.Fatalf("unexpected error response: %+v", payload)
	}
	if !strings.Contains(payload.Error.Message, "quota exceeded") {
		t.Fatalf("expected underlying message, got %q", payload.Error.Message)
	}
}

func TestRequestIDGenerated(t *testing.T) {
	h := NewHandler(fakeService{}, Options{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp := httptest.NewRecorder()
	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	if resp.Header().Get(RequestIDHeader) == "" {
		t.Fatalf("expected generated request id")
	}
}

func TestCORSPreflight(t *testing.T) {
	h := NewHandler(fakeService{}, Options{AllowedOrigins: []string{"https://display.example"}})

	req := httptest.NewRequest(http.MethodOptions, "/queue", nil)
	req.Header.Set("Origin", "https://display.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp := httptest.NewRecorder()
	h.Routes().ServeHTTP(resp, req)

	if got := resp.Header().Get("Access-Control-Allow-Origin"); got != "https://display.example" {
		t.Fatalf("unexpected allow origin %q", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := NewHandler(fakeService{}, Options{})
	handler := LoggingMiddleware(nil, h.Routes())

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/queue", nil))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "qms_http_requests_total") {
		t.Fatalf("expected request counter in exposition")
	}
}

func TestMapError(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{queue.ErrInvalidAction, http.StatusBadRequest, "invalid_action"},
		{queue.ErrInvalidOutcome, http.StatusBadRequest, "invalid_outcome"},
		{ledger.Unavailable("read", errors.New("boom")), http.StatusInternalServerError, "store_unavailable"},
		{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		status, code, _ := mapError(tc.err)
		if status != tc.status || code != tc.code {
			t.Fatalf("mapError(%v) = %d %s, want %d %s", tc.err, status, code, tc.status, tc.code)
		}
	}
}
