package handlers

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"motif/internal/httpkit"
	"motif/internal/scheduler"
)

// StreamVideo serves the final artifact of a completed job.
func (h *Handler) StreamVideo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobID := chi.URLParam(r, "jobId")

	job, err := h.sched.Get(ctx, jobID)
	if err != nil {
		h.writeJobErr(w, r, err)
		return
	}
	if job.Status != scheduler.StatusCompleted || job.VideoURI == "" {
		httpkit.WriteErr(w, 409, "JOB_NOT_READY", "job has no artifact", map[string]any{
			"job_id": jobID,
			"status": string(job.Status),
		})
		return
	}

	rc, ct, size, err := h.sp.GetObject(ctx, job.VideoURI)
	if err != nil {
		httpkit.WriteErr(w, 404, "ARTIFACT_MISSING", "artifact file missing", map[string]any{"object_key": job.VideoURI})
		return
	}
	defer rc.Close()

	if ct == "" {
		ct = "video/mp4"
	}
	w.Header().Set("Content-Type", ct)
	if size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	}
	_, _ = io.Copy(w, rc)
}

// GetVideoURL returns a time-limited URL for the artifact. Providers that
// cannot sign URLs fall back to the API's own streaming endpoint.
func (h *Handler) GetVideoURL(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobID := chi.URLParam(r, "jobId")

	job, err := h.sched.Get(ctx, jobID)
	if err != nil {
		h.writeJobErr(w, r, err)
		return
	}
	if job.Status != scheduler.StatusCompleted || job.VideoURI == "" {
		httpkit.WriteErr(w, 409, "JOB_NOT_READY", "job has no artifact", map[string]any{
			"job_id": jobID,
			"status": string(job.Status),
		})
		return
	}

	if signed, err := h.sp.GetSignedURL(ctx, job.VideoURI, 30*time.Minute); err == nil {
		httpkit.WriteJSON(w, 200, map[string]any{
			"job_id":     jobID,
			"url":        signed.URL,
			"expires_at": signed.ExpiresAt,
		})
		return
	}

	httpkit.WriteJSON(w, 200, map[string]any{
		"job_id":     jobID,
		"url":        "/jobs/" + jobID + "/video",
		"expires_at": time.Now().UTC().Add(30 * time.Minute),
	})
}
