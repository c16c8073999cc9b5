package repository

import (
	"context"
	"time"

	tmpl "github.com/dropDatabas3/mailplane/internal/template"
)

// EmailTemplate es la entidad persistida de un template transaccional.
// El renderer consume una vista inmutable (ToRenderable).
type EmailTemplate struct {
	ID                    string
	Slug                  string
	Subject               string
	HTMLBody              string
	TextBody              string
	IsAuthCritical        bool
	UnresolvedPolicy      tmpl.UnresolvedPolicy
	AllowlistFallbackKeys []string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// ToRenderable proyecta la entidad al value type que consume el renderer.
func (t *EmailTemplate) ToRenderable() tmpl.Template {
	return tmpl.Template{
		Slug:                  t.Slug,
		Subject:               t.Subject,
		HTMLBody:              t.HTMLBody,
		TextBody:              t.TextBody,
		IsAuthCritical:        t.IsAuthCritical,
		UnresolvedPolicy:      t.UnresolvedPolicy,
		AllowlistFallbackKeys: t.AllowlistFallbackKeys,
	}
}

// UpdateTemplateContent es el contenido editable de un template.
// Se usa tanto para el update normal como para el revert del rollback.
type UpdateTemplateContent struct {
	Subject  string
	HTMLBody string
	TextBody string
}

// TemplateRepository define operaciones sobre templates de email.
type TemplateRepository interface {
	// GetBySlug retorna ErrNotFound si el slug no existe.
	GetBySlug(ctx context.Context, slug string) (*EmailTemplate, error)

	// ListBySlugs retorna los templates existentes para los slugs dados.
	// Slugs inexistentes simplemente no aparecen en el resultado.
	ListBySlugs(ctx context.Context, slugs []string) ([]*EmailTemplate, error)

	// UpdateContent sobreescribe subject/html/text de un template.
	UpdateContent(ctx context.Context, slug string, content UpdateTemplateContent) error
}

// VariablePolicyRepository expone las políticas de render persistidas.
type VariablePolicyRepository interface {
	// ListPolicies retorna el mapa clave canónica -> política de render.
	ListPolicies(ctx context.Context) (map[string]tmpl.RenderPolicy, error)
}
