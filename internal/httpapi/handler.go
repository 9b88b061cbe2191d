package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"qms/ticket-queue/internal/models"
	"qms/ticket-queue/internal/queue"
)

// QueueService is the part of queue.Service the HTTP surface drives.
type QueueService interface {
	List(ctx context.Context) ([]models.Ticket, error)
	Issue(ctx context.Context) (models.Ticket, error)
	Advance(ctx context.Context, currentID, outcome string) (string, error)
}

type Handler struct {
	service        QueueService
	allowedOrigins []string
	logger         log.FieldLogger
}

type queueActionRequest struct {
	Action       string `json:"action"`
	CurrentQueue string `json:"currentQueue"`
}

type listResponse struct {
	Queues []models.Ticket `json:"queues"`
}

type issueResponse struct {
	NewQueue string `json:"newQueue"`
}

type advanceResponse struct {
	CurrentQueue string `json:"currentQueue"`
}

type errorResponse struct {
	RequestID string        `json:"request_id"`
	Error     responseError `json:"error"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Options struct {
	AllowedOrigins []string
	Logger         log.FieldLogger
}

func NewHandler(service QueueService, options Options) *Handler {
	h := &Handler{
		service:        service,
		allowedOrigins: options.AllowedOrigins,
		logger:         options.Logger,
	}
	if len(h.allowedOrigins) == 0 {
		h.allowedOrigins = []string{"*"}
	}
	if h.logger == nil {
		h.logger = log.StandardLogger()
	}
	return h
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: h.allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader},
		MaxAge:         300,
	}))

	r.MethodNotAllowed(h.handleMethodNotAllowed)
	r.Get("/healthz", h.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/queue", h.handleList)
	r.Post("/queue", h.handleAction)
	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, RequestIDFromContext(r.Context()), http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.service.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if tickets == nil {
		tickets = []models.Ticket{}
	}
	writeJSON(w, http.StatusOK, listResponse{Queues: tickets})
}

func (h *Handler) handleAction(w http.ResponseWriter, r *http.Request) {
	requestID := RequestIDFromContext(r.Context())

	var req queueActionRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, requestID, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	action, err := queue.ParseAction(req.Action)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if action == queue.ActionNew {
		ticket, err := h.service.Issue(r.Context())
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, issueResponse{NewQueue: ticket.Queue})
		return
	}

	current := strings.TrimSpace(req.CurrentQueue)
	if current == "" {
		writeError(w, requestID, http.StatusBadRequest, "invalid_request", "currentQueue is required")
		return
	}
	outcome, _ := action.Outcome()
	next, err := h.service.Advance(r.Context(), current, outcome)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, advanceResponse{CurrentQueue: next})
}

// fail logs err with the request context and writes the mapped error body.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	requestID := RequestIDFromContext(r.Context())
	status, code, msg := mapError(err)
	entry := h.logger.WithError(err).WithFields(log.Fields{
		"request_id": requestID,
		"method":     r.Method,
		"path":       r.URL.Path,
	})
	if status >= http.StatusInternalServerError {
		entry.Error("queue request failed")
	} else {
		entry.Info("queue request rejected")
	}
	writeError(w, requestID, status, code, msg)
}

func mapError(err error) (int, string, string) {
	switch {
	case errors.Is(err, queue.ErrInvalidAction):
		return http.StatusBadRequest, "invalid_action", "action must be New, Attend or Absent"
	case errors.Is(err, queue.ErrInvalidOutcome):
		return http.StatusBadRequest, "invalid_outcome", "outcome must be attend or absent"
	case errors.Is(err, queue.ErrStoreUnavailable):
		return http.StatusInternalServerError, "store_unavailable", err.Error()
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}

func writeError(w http.ResponseWriter, requestID string, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		RequestID: requestID,
		Error: responseError{
			Code:    code,
			Message: message,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
