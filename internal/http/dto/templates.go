// Package dto contiene los request/response JSON del API.
package dto

import (
	"time"

	"github.com/dropDatabas3/mailplane/internal/domain/repository"
)

// SyncRequest es el body de POST /v1/admin/templates/sync.
// La idempotency key viaja en el header Idempotency-Key.
type SyncRequest struct {
	// Slugs vacío significa el set completo soportado.
	Slugs  []string `json:"slugs,omitempty"`
	DryRun bool     `json:"dry_run,omitempty"`
}

// UpdateTemplateRequest es el body de PUT /v1/admin/templates/{slug}.
// Para slugs sincronizables el update dispara un sync y se revierte si
// falla; el resto se edita local.
type UpdateTemplateRequest struct {
	Subject  string `json:"subject"`
	HTMLBody string `json:"html_body"`
	TextBody string `json:"text_body,omitempty"`
	DryRun   bool   `json:"dry_run,omitempty"`
}

// PreviewRequest es el body de POST /v1/templates/{slug}/preview.
type PreviewRequest struct {
	Variables map[string]string `json:"variables,omitempty"`
}

// TestSendRequest es el body de POST /v1/templates/{slug}/test-send.
type TestSendRequest struct {
	To        string            `json:"to"`
	Variables map[string]string `json:"variables,omitempty"`
}

// TemplateResponse es la proyección pública de un template.
type TemplateResponse struct {
	Slug                  string    `json:"slug"`
	Subject               string    `json:"subject"`
	HTMLBody              string    `json:"html_body"`
	TextBody              string    `json:"text_body,omitempty"`
	IsAuthCritical        bool      `json:"is_auth_critical"`
	UnresolvedPolicy      string    `json:"unresolved_policy"`
	AllowlistFallbackKeys []string  `json:"allowlist_fallback_keys,omitempty"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// TemplateFromEntity arma la respuesta pública desde la entidad.
func TemplateFromEntity(t *repository.EmailTemplate) TemplateResponse {
	return TemplateResponse{
		Slug:                  t.Slug,
		Subject:               t.Subject,
		HTMLBody:              t.HTMLBody,
		TextBody:              t.TextBody,
		IsAuthCritical:        t.IsAuthCritical,
		UnresolvedPolicy:      string(t.UnresolvedPolicy),
		AllowlistFallbackKeys: t.AllowlistFallbackKeys,
		UpdatedAt:             t.UpdatedAt,
	}
}
