// Package api serves the read-only status API: health, pipeline status,
// the datamart catalog and the run ledger.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/domain"
	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/pipeline"
)

// Pipeline is the part of pipeline.Service the API reads from.
type Pipeline interface {
	Status(ctx context.Context) (*pipeline.Status, error)
	Catalog(ctx context.Context) ([]domain.CatalogEntry, error)
}

// Handler serves the status endpoints.
type Handler struct {
	pipeline Pipeline
	runs     domain.RunRepository
	logger   *slog.Logger
}

// NewHandler creates a Handler. runs may be nil when no ledger is configured.
func NewHandler(p Pipeline, runs domain.RunRepository, logger *slog.Logger) *Handler {
	return &Handler{pipeline: p, runs: runs, logger: logger}
}

// Error is the JSON body of every non-2xx response.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Page is a paginated list.
type Page[T any] struct {
	Data          []T    `json:"data"`
	Total         int64  `json:"total"`
	NextPageToken string `json:"next_page_token,omitempty"`
}

// RunDetail is a run with its file outcomes.
type RunDetail struct {
	domain.Run
	Files []domain.RunFile `json:"files"`
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Status reports directories, extractors, pending files and the current phase.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	st, err := h.pipeline.Status(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Catalog returns the datamart catalog entries.
func (h *Handler) Catalog(w http.ResponseWriter, r *http.Request) {
	entries, err := h.pipeline.Catalog(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Page[domain.CatalogEntry]{Data: entries, Total: int64(len(entries))})
}

// ListRuns returns recorded runs, newest first. Query parameters: status,
// max_results, page_token.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		h.writeError(w, r, domain.ErrNotFound("run ledger is not configured"))
		return
	}
	filter, err := runFilterFromQuery(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	runs, total, err := h.runs.ListRuns(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Page[domain.Run]{
		Data:          runs,
		Total:         total,
		NextPageToken: domain.NextPageToken(filter.Page.Offset(), filter.Page.Limit(), total),
	})
}

// GetRun returns one run and its files.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		h.writeError(w, r, domain.ErrNotFound("run ledger is not configured"))
		return
	}
	id := chi.URLParam(r, "runID")
	run, err := h.runs.GetRun(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	files, err := h.runs.ListFiles(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RunDetail{Run: *run, Files: files})
}

func runFilterFromQuery(r *http.Request) (domain.RunFilter, error) {
	q := r.URL.Query()
	var filter domain.RunFilter
	if s := q.Get("status"); s != "" {
		status := domain.RunStatus(s)
		switch status {
		case domain.RunRunning, domain.RunSucceeded, domain.RunFailed:
		default:
			return filter, domain.ErrValidation("invalid status %q", s)
		}
		filter.Status = &status
	}
	if s := q.Get("max_results"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return filter, domain.ErrValidation("max_results must be a positive integer")
		}
		filter.Page.MaxResults = n
	}
	filter.Page.PageToken = q.Get("page_token")
	return filter, filter.Page.Validate()
}

// httpStatusFromError maps domain errors to HTTP status codes.
func httpStatusFromError(err error) int {
	var (
		notFound   *domain.NotFoundError
		validation *domain.ValidationError
	)
	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.Is(err, pipeline.ErrBusy):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := httpStatusFromError(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		msg = http.StatusText(code)
	}
	writeJSON(w, code, Error{Code: code, Message: msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
