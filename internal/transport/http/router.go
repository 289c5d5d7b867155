// Package httptransport assembles the public HTTP surface: health, webhook
// ingestion, result and batch download, status and metrics.
package httptransport

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"mailscout/internal/platform/metrics"
	"mailscout/internal/resultstore"
	"mailscout/pkg/platform/httputil"
)

// ResultStore is the read side of the result file.
type ResultStore interface {
	WriteTo(w io.Writer) (int64, error)
	Stats() resultstore.Stats
	Batches() []resultstore.Batch
	Batch(id string) (resultstore.Batch, []resultstore.Item, bool)
}

// Registrar mounts its own routes.
type Registrar interface {
	Register(r chi.Router)
}

// Deps collects what the router serves. Webhook and Gatherer may be nil.
type Deps struct {
	Webhook  Registrar
	Store    ResultStore
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
}

type statusResponse struct {
	Status     string     `json:"status"`
	Records    int        `json:"records"`
	Successful int        `json:"successful"`
	Failed     int        `json:"failed"`
	UpdatedAt  *time.Time `json:"updated_at"`
}

type batchSummary struct {
	BatchID    string    `json:"batch_id"`
	Records    int       `json:"records"`
	ReceivedAt time.Time `json:"received_at"`
}

type batchesResponse struct {
	TotalBatches int            `json:"total_batches"`
	Batches      []batchSummary `json:"batches"`
}

// NewRouter wires every endpoint behind request IDs, panic recovery and
// per-route metrics.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(d.Metrics.Middleware)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	if d.Webhook != nil {
		d.Webhook.Register(r)
	}

	r.Get("/results.csv", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="results.csv"`)
		if _, err := d.Store.WriteTo(w); err != nil {
			// Headers are gone by now; the client sees a truncated body.
			d.Logger.ErrorContext(r.Context(), "results download failed",
				"request_id", chimw.GetReqID(r.Context()),
				"error", err,
			)
		}
	})

	r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
		st := d.Store.Stats()
		resp := statusResponse{
			Status:     "running",
			Records:    st.Records,
			Successful: st.Successful,
			Failed:     st.Failed,
		}
		if !st.UpdatedAt.IsZero() {
			t := st.UpdatedAt.UTC()
			resp.UpdatedAt = &t
		}
		httputil.WriteJSON(w, http.StatusOK, resp)
	})

	r.Get("/batches", func(w http.ResponseWriter, _ *http.Request) {
		batches := d.Store.Batches()
		resp := batchesResponse{TotalBatches: len(batches), Batches: make([]batchSummary, 0, len(batches))}
		for _, b := range batches {
			resp.Batches = append(resp.Batches, batchSummary{
				BatchID:    b.ID,
				Records:    len(b.Items),
				ReceivedAt: b.ReceivedAt.UTC(),
			})
		}
		httputil.WriteJSON(w, http.StatusOK, resp)
	})

	r.Get("/batch/{id}", func(w http.ResponseWriter, r *http.Request) {
		b, items, ok := d.Store.Batch(chi.URLParam(r, "id"))
		if !ok {
			httputil.WriteError(w, httputil.NewError(httputil.CodeNotFound, "unknown batch"))
			return
		}
		var buf bytes.Buffer
		if err := resultstore.WriteCSV(&buf, items); err != nil {
			httputil.WriteError(w, httputil.Wrap(err, httputil.CodeInternal, "encode batch"))
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="batch-`+b.ID+`.csv"`)
		_, _ = w.Write(buf.Bytes())
	})

	if d.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(d.Gatherer))
	}

	return r
}
