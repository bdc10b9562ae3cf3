package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"motif/internal/httpkit"
	"motif/internal/ir"
	"motif/internal/pkg/errors"
	"motif/internal/scheduler"
)

type CreateJobRequest struct {
	OwnerID      string `json:"owner_id"`
	OutputFormat string `json:"output_format,omitempty"`
	Quality      string `json:"quality,omitempty"`
	Definition   *ir.IR `json:"definition"`
}

func (h *Handler) PostJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateJobRequest
	if err := httpkit.DecodeJSON(r, &req); err != nil {
		httpkit.WriteErr(w, 400, "VALIDATION_ERROR", "invalid json body", nil)
		return
	}
	req.OwnerID = strings.TrimSpace(req.OwnerID)
	if req.OwnerID == "" {
		httpkit.WriteErr(w, 400, "VALIDATION_ERROR", "owner_id is required", map[string]any{"field": "owner_id"})
		return
	}
	if req.Definition == nil {
		httpkit.WriteErr(w, 400, "VALIDATION_ERROR", "definition is required", map[string]any{"field": "definition"})
		return
	}

	job, err := h.sched.Submit(ctx, scheduler.SubmitRequest{
		OwnerID:      req.OwnerID,
		Definition:   req.Definition,
		OutputFormat: req.OutputFormat,
		Quality:      req.Quality,
	})
	if err != nil {
		h.writeJobErr(w, r, err)
		return
	}

	httpkit.WriteJSON(w, 201, map[string]any{"job": job})
}

func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")

	job, err := h.sched.Get(r.Context(), jobID)
	if err != nil {
		h.writeJobErr(w, r, err)
		return
	}
	httpkit.WriteJSON(w, 200, map[string]any{"job": job})
}

func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	owner := strings.TrimSpace(r.URL.Query().Get("owner"))
	if owner == "" {
		httpkit.WriteErr(w, 400, "VALIDATION_ERROR", "owner query parameter is required", map[string]any{"field": "owner"})
		return
	}

	jobs, err := h.sched.ListByOwner(r.Context(), owner)
	if err != nil {
		h.writeJobErr(w, r, err)
		return
	}

	// job listings omit the full definition; GetJob returns it
	type item struct {
		*scheduler.Job
		Definition any `json:"definition,omitempty"`
	}
	out := make([]item, len(jobs))
	for i, j := range jobs {
		out[i] = item{Job: j}
	}
	httpkit.WriteJSON(w, 200, map[string]any{"jobs": out})
}

func (h *Handler) CancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")

	job, err := h.sched.Cancel(r.Context(), jobID)
	if err != nil {
		h.writeJobErr(w, r, err)
		return
	}
	httpkit.WriteJSON(w, 200, map[string]any{"job": job})
}

// writeJobErr maps coded scheduler errors onto the wire format.
func (h *Handler) writeJobErr(w http.ResponseWriter, r *http.Request, err error) {
	code := errors.GetCode(err)
	status := errors.GetHTTPStatus(err)

	var details map[string]any
	if fields := errors.GetFields(err); len(fields) > 0 {
		details = fields
	}

	if status >= 500 {
		h.log.LogError(r.Context(), "request failed", err)
	}
	httpkit.WriteErr(w, status, string(code), userMessage(err), details)
}

func userMessage(err error) string {
	var coded *errors.Error
	if errors.As(err, &coded) {
		return coded.Message
	}
	return "internal error"
}
