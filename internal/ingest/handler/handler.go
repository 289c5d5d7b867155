// Package handler exposes webhook ingestion over HTTP.
package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"mailscout/internal/ingest"
	"mailscout/internal/platform/middleware"
	"mailscout/pkg/platform/httputil"
)

// BatchIDHeader carries the ID assigned to each delivery.
const BatchIDHeader = "X-Batch-ID"

// Service ingests decoded records.
type Service interface {
	Ingest(ctx context.Context, records []ingest.Record) (ingest.Summary, error)
}

// Handler serves the webhook endpoints.
type Handler struct {
	service      Service
	logger       *slog.Logger
	maxBodyBytes int64
	validator    middleware.TokenValidator
}

// New creates a webhook Handler. A nil validator leaves the endpoints open.
func New(service Service, logger *slog.Logger, maxBodyBytes int64, validator middleware.TokenValidator) *Handler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = 5 << 20
	}
	return &Handler{
		service:      service,
		logger:       logger,
		maxBodyBytes: maxBodyBytes,
		validator:    validator,
	}
}

// Register mounts POST /webhook and its SignalHire alias.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		if h.validator != nil {
			r.Use(middleware.RequireBearer(h.validator, h.logger))
		}
		r.Post("/webhook", h.handleWebhook)
		r.Post("/signalhire/webhook", h.handleWebhook)
	})
}

func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := chimw.GetReqID(ctx)
	batchID := uuid.NewString()
	ctx = ingest.WithBatchID(ctx, batchID)
	w.Header().Set(BatchIDHeader, batchID)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WriteError(w, httputil.NewError(httputil.CodeTooLarge, "request body too large"))
			return
		}
		httputil.WriteError(w, httputil.Wrap(err, httputil.CodeBadRequest, "unable to read request body"))
		return
	}

	records, err := decodeRecords(body)
	if err != nil {
		h.logger.WarnContext(ctx, "invalid webhook payload",
			"request_id", requestID,
			"batch_id", batchID,
			"error", err,
		)
		httputil.WriteError(w, httputil.Wrap(err, httputil.CodeBadRequest, "invalid JSON payload"))
		return
	}

	sum, err := h.service.Ingest(ctx, records)
	if err != nil {
		h.logger.ErrorContext(ctx, "webhook batch not fully stored",
			"request_id", requestID,
			"batch_id", batchID,
			"error", err,
		)
		httputil.WriteError(w, httputil.Wrap(err, httputil.CodeInternal, "failed to store records"))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, sum)
}
