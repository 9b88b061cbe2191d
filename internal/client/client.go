// Package client talks to the queue HTTP surface on behalf of display and
// staff screens.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/juju/errors"

	"qms/ticket-queue/internal/models"
)

// Seed selects how a display picks its serving pointer on load.
type Seed string

const (
	// SeedLast points at the last listed ticket.
	SeedLast Seed = "last"
	// SeedNext points at the first ticket without a status.
	SeedNext Seed = "next"
)

func ParseSeed(raw string) (Seed, error) {
	switch Seed(strings.ToLower(strings.TrimSpace(raw))) {
	case SeedLast, "":
		return SeedLast, nil
	case SeedNext:
		return SeedNext, nil
	default:
		return "", errors.NotValidf("seed %q", raw)
	}
}

// APIError is a non-2xx response from the service.
type APIError struct {
	Status    int
	Code      string
	Message   string
	RequestID string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("queue api: status %d", e.Status)
	}
	return fmt.Sprintf("queue api: %s: %s (status %d, request %s)", e.Code, e.Message, e.Status, e.RequestID)
}

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

func (c *Client) List(ctx context.Context) ([]models.Ticket, error) {
	var resp struct {
		Queues []models.Ticket `json:"queues"`
	}
	if err := c.do(ctx, http.MethodGet, nil, &resp); err != nil {
		return nil, errors.Annotate(err, "list tickets")
	}
	return resp.Queues, nil
}

func (c *Client) Issue(ctx context.Context) (string, error) {
	var resp struct {
		NewQueue string `json:"newQueue"`
	}
	if err := c.do(ctx, http.MethodPost, map[string]string{"action": "New"}, &resp); err != nil {
		return "", errors.Annotate(err, "issue ticket")
	}
	return resp.NewQueue, nil
}

func (c *Client) Attend(ctx context.Context, currentID string) (string, error) {
	return c.advance(ctx, "Attend", currentID)
}

func (c *Client) Absent(ctx context.Context, currentID string) (string, error) {
	return c.advance(ctx, "Absent", currentID)
}

func (c *Client) advance(ctx context.Context, action, currentID string) (string, error) {
	var resp struct {
		CurrentQueue string `json:"currentQueue"`
	}
	body := map[string]string{"action": action, "currentQueue": currentID}
	if err := c.do(ctx, http.MethodPost, body, &resp); err != nil {
		return "", errors.Annotatef(err, "%s %s", strings.ToLower(action), currentID)
	}
	return resp.CurrentQueue, nil
}

// Current lists the tickets and picks the serving pointer according to
// seed. The pointer is empty when nothing is listed.
func (c *Client) Current(ctx context.Context, seed Seed) (string, []models.Ticket, error) {
	tickets, err := c.List(ctx)
	if err != nil {
		return "", nil, err
	}
	return Pointer(tickets, seed), tickets, nil
}

// Pointer picks the serving pointer from a listing. SeedNext falls back to
// the last ticket once every ticket is resolved.
func Pointer(tickets []models.Ticket, seed Seed) string {
	if len(tickets) == 0 {
		return ""
	}
	if seed == SeedNext {
		for _, t := range tickets {
			if !t.Resolved() {
				return t.Queue
			}
		}
	}
	return tickets[len(tickets)-1].Queue
}

// Upcoming returns up to n ticket ids listed after current.
func Upcoming(tickets []models.Ticket, current string, n int) []string {
	start := 0
	for i, t := range tickets {
		if t.Queue == current {
			start = i + 1
			break
		}
	}
	var out []string
	for i := start; i < len(tickets) && len(out) < n; i++ {
		out = append(out, tickets[i].Queue)
	}
	return out
}

func (c *Client) do(ctx context.Context, method string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errors.Trace(err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/queue", reader)
	if err != nil {
		return errors.Trace(err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Trace(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode}
		var payload struct {
			RequestID string `json:"request_id"`
			Error     struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&payload); err == nil {
			apiErr.Code = payload.Error.Code
			apiErr.Message = payload.Error.Message
			apiErr.RequestID = payload.RequestID
		}
		return apiErr
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Annotate(err, "decode response")
	}
	return nil
}
