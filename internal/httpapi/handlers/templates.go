package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"motif/internal/httpkit"
	"motif/internal/ir"
	"motif/internal/models"
	"motif/internal/repositories"
	"motif/internal/scheduler"
)

type CreateTemplateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Definition  *ir.IR `json:"definition"`
}

type RenderTemplateRequest struct {
	OwnerID      string `json:"owner_id"`
	OutputFormat string `json:"output_format,omitempty"`
	Quality      string `json:"quality,omitempty"`
}

func (h *Handler) PostTemplate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateTemplateRequest
	if err := httpkit.DecodeJSON(r, &req); err != nil {
		httpkit.WriteErr(w, 400, "VALIDATION_ERROR", "invalid json body", nil)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		httpkit.WriteErr(w, 400, "VALIDATION_ERROR", "name is required", map[string]any{"field": "name"})
		return
	}
	if req.Definition == nil {
		httpkit.WriteErr(w, 400, "VALIDATION_ERROR", "definition is required", map[string]any{"field": "definition"})
		return
	}
	if violations := ir.Validate(req.Definition); len(violations) > 0 {
		httpkit.WriteErr(w, 400, "VALIDATION_ERROR", "definition failed validation", map[string]any{"violations": violations})
		return
	}

	t := &models.Template{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
		Definition:  req.Definition,
	}
	if err := h.templates.Create(ctx, t); err != nil {
		if err == repositories.ErrTemplateNameExists {
			httpkit.WriteErr(w, 409, "TEMPLATE_EXISTS", "template name already exists", map[string]any{"name": req.Name})
			return
		}
		h.log.LogError(ctx, "template create failed", err)
		httpkit.WriteErr(w, 500, "INTERNAL_ERROR", "db insert failed", nil)
		return
	}

	httpkit.WriteJSON(w, 201, map[string]any{"template": t})
}

func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.templates.List(r.Context())
	if err != nil {
		h.log.LogError(r.Context(), "template list failed", err)
		httpkit.WriteErr(w, 500, "INTERNAL_ERROR", "db query failed", nil)
		return
	}
	if templates == nil {
		templates = []models.Template{}
	}
	httpkit.WriteJSON(w, 200, map[string]any{"templates": templates})
}

func (h *Handler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	templateID := chi.URLParam(r, "templateId")

	t, err := h.templates.Get(r.Context(), templateID)
	if err != nil {
		httpkit.WriteErr(w, 404, "TEMPLATE_NOT_FOUND", "template not found", map[string]any{"template_id": templateID})
		return
	}
	httpkit.WriteJSON(w, 200, map[string]any{"template": t})
}

func (h *Handler) PatchTemplate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	templateID := chi.URLParam(r, "templateId")

	var req struct {
		Definition *ir.IR `json:"definition"`
	}
	if err := httpkit.DecodeJSON(r, &req); err != nil || req.Definition == nil {
		httpkit.WriteErr(w, 400, "VALIDATION_ERROR", "definition is required", map[string]any{"field": "definition"})
		return
	}
	if violations := ir.Validate(req.Definition); len(violations) > 0 {
		httpkit.WriteErr(w, 400, "VALIDATION_ERROR", "definition failed validation", map[string]any{"violations": violations})
		return
	}

	if err := h.templates.UpdateDefinition(ctx, templateID, req.Definition); err != nil {
		if err == repositories.ErrTemplateNotFound {
			httpkit.WriteErr(w, 404, "TEMPLATE_NOT_FOUND", "template not found", map[string]any{"template_id": templateID})
			return
		}
		h.log.LogError(ctx, "template update failed", err)
		httpkit.WriteErr(w, 500, "INTERNAL_ERROR", "db update failed", nil)
		return
	}

	t, err := h.templates.Get(ctx, templateID)
	if err != nil {
		httpkit.WriteErr(w, 404, "TEMPLATE_NOT_FOUND", "template not found", map[string]any{"template_id": templateID})
		return
	}
	httpkit.WriteJSON(w, 200, map[string]any{"template": t})
}

func (h *Handler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	templateID := chi.URLParam(r, "templateId")

	if err := h.templates.Delete(r.Context(), templateID); err != nil {
		if err == repositories.ErrTemplateNotFound {
			httpkit.WriteErr(w, 404, "TEMPLATE_NOT_FOUND", "template not found", map[string]any{"template_id": templateID})
			return
		}
		h.log.LogError(r.Context(), "template delete failed", err)
		httpkit.WriteErr(w, 500, "INTERNAL_ERROR", "db update failed", nil)
		return
	}
	httpkit.WriteJSON(w, 200, map[string]any{"deleted": true})
}

// RenderTemplate submits a job from a stored template definition.
func (h *Handler) RenderTemplate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	templateID := chi.URLParam(r, "templateId")

	var req RenderTemplateRequest
	if err := httpkit.DecodeJSON(r, &req); err != nil {
		httpkit.WriteErr(w, 400, "VALIDATION_ERROR", "invalid json body", nil)
		return
	}
	req.OwnerID = strings.TrimSpace(req.OwnerID)
	if req.OwnerID == "" {
		httpkit.WriteErr(w, 400, "VALIDATION_ERROR", "owner_id is required", map[string]any{"field": "owner_id"})
		return
	}

	t, err := h.templates.Get(ctx, templateID)
	if err != nil {
		httpkit.WriteErr(w, 404, "TEMPLATE_NOT_FOUND", "template not found", map[string]any{"template_id": templateID})
		return
	}

	job, err := h.sched.Submit(ctx, scheduler.SubmitRequest{
		OwnerID:      req.OwnerID,
		Definition:   t.Definition,
		OutputFormat: req.OutputFormat,
		Quality:      req.Quality,
	})
	if err != nil {
		h.writeJobErr(w, r, err)
		return
	}
	httpkit.WriteJSON(w, 201, map[string]any{"job": job})
}
