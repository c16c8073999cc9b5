package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/mailplane/internal/delivery"
	"github.com/dropDatabas3/mailplane/internal/domain/repository"
	"github.com/dropDatabas3/mailplane/internal/http/dto"
	httperrors "github.com/dropDatabas3/mailplane/internal/http/errors"
	mw "github.com/dropDatabas3/mailplane/internal/http/middlewares"
	"github.com/dropDatabas3/mailplane/internal/observability/logger"
	"github.com/dropDatabas3/mailplane/internal/syncer"
)

// TemplatesController maneja lectura, edición, preview y test-send.
type TemplatesController struct {
	templates repository.TemplateRepository
	delivery  *delivery.Service
	rollback  *syncer.RollbackCoordinator
}

// NewTemplatesController crea el controller de templates.
func NewTemplatesController(templates repository.TemplateRepository, d *delivery.Service, rb *syncer.RollbackCoordinator) *TemplatesController {
	return &TemplatesController{templates: templates, delivery: d, rollback: rb}
}

// Get maneja GET /v1/templates/{slug}.
func (c *TemplatesController) Get(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	t, err := c.templates.GetBySlug(r.Context(), slug)
	if err != nil {
		if repository.IsNotFound(err) {
			httperrors.WriteError(w, httperrors.ErrTemplateNotFound)
			return
		}
		httperrors.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.TemplateFromEntity(t))
}

// Preview maneja POST /v1/templates/{slug}/preview.
// Renderiza en modo browser_preview: nunca bloquea ni envía.
func (c *TemplatesController) Preview(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	var req dto.PreviewRequest
	if appErr := decodeJSON(r, &req); appErr != nil {
		httperrors.WriteError(w, appErr)
		return
	}

	res, err := c.delivery.Preview(r.Context(), slug, req.Variables)
	if err != nil {
		if repository.IsNotFound(err) {
			httperrors.WriteError(w, httperrors.ErrTemplateNotFound)
			return
		}
		httperrors.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// TestSend maneja POST /v1/templates/{slug}/test-send.
func (c *TemplatesController) TestSend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("TemplatesController.TestSend"))
	slug := chi.URLParam(r, "slug")

	var req dto.TestSendRequest
	if appErr := decodeJSON(r, &req); appErr != nil {
		httperrors.WriteError(w, appErr)
		return
	}
	if strings.TrimSpace(req.To) == "" {
		httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("field 'to' is required"))
		return
	}

	res, err := c.delivery.TestSend(ctx, slug, req.To, req.Variables)
	if err != nil {
		if repository.IsNotFound(err) {
			httperrors.WriteError(w, httperrors.ErrTemplateNotFound)
			return
		}
		log.Error("test send error", logger.Slug(slug), logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError.WithDetail("SMTP send failed"))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Update maneja PUT /v1/admin/templates/{slug}.
// Para slugs sincronizables el update local y el sync al provider son
// atómicos hacia afuera: si el sync falla, el contenido local se
// revierte al snapshot. El resto de los templates se edita directo.
func (c *TemplatesController) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("TemplatesController.Update"))
	slug := chi.URLParam(r, "slug")

	var req dto.UpdateTemplateRequest
	if appErr := decodeJSON(r, &req); appErr != nil {
		httperrors.WriteError(w, appErr)
		return
	}
	if strings.TrimSpace(req.Subject) == "" || strings.TrimSpace(req.HTMLBody) == "" {
		httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("subject and html_body are required"))
		return
	}
	content := repository.UpdateTemplateContent{
		Subject:  req.Subject,
		HTMLBody: req.HTMLBody,
		TextBody: req.TextBody,
	}

	if !syncer.IsSupportedSlug(slug) {
		c.updateLocal(w, r, slug, content)
		return
	}

	key := r.Header.Get("Idempotency-Key")
	if key == "" {
		httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("Idempotency-Key header is required"))
		return
	}
	actor := mw.GetActorID(ctx)
	if actor == "" {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return
	}

	res, err := c.rollback.UpdateAndSync(ctx, slug, content, syncer.Request{
		ActorID:        actor,
		IdempotencyKey: key,
		Slugs:          []string{slug},
		DryRun:         req.DryRun,
		RequestID:      mw.GetRequestID(ctx),
	})
	if err != nil {
		if repository.IsNotFound(err) {
			httperrors.WriteError(w, httperrors.ErrTemplateNotFound)
			return
		}
		if errors.Is(err, syncer.ErrRevertFailed) {
			log.Error("revert failed, local content diverged", logger.Slug(slug), logger.Err(err))
			writeJSON(w, http.StatusInternalServerError, res)
			return
		}
		httperrors.WriteError(w, err)
		return
	}

	// El próximo send no puede ver contenido viejo.
	c.delivery.Invalidate(slug)

	if res.Applied {
		writeJSON(w, http.StatusOK, res)
		return
	}
	// Sync rechazado y revert limpio: el status del sync manda.
	writeJSON(w, res.SyncStatus, res)
}

// updateLocal aplica la edición sin coordinación externa.
func (c *TemplatesController) updateLocal(w http.ResponseWriter, r *http.Request, slug string, content repository.UpdateTemplateContent) {
	ctx := r.Context()
	if err := c.templates.UpdateContent(ctx, slug, content); err != nil {
		if repository.IsNotFound(err) {
			httperrors.WriteError(w, httperrors.ErrTemplateNotFound)
			return
		}
		httperrors.WriteError(w, err)
		return
	}
	c.delivery.Invalidate(slug)

	t, err := c.templates.GetBySlug(ctx, slug)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.TemplateFromEntity(t))
}
