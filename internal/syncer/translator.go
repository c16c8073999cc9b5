package syncer

import (
	"fmt"
	"sort"

	"github.com/dropDatabas3/mailplane/internal/domain/repository"
	tmpl "github.com/dropDatabas3/mailplane/internal/template"
)

// slugTarget describe cómo aterriza un slug en la config de auth del
// provider: nombre de campo del subject, del body y tokens obligatorios.
type slugTarget struct {
	SubjectField   string
	ContentField   string
	RequiredTokens []string
}

// supportedSlugs es la tabla fija de templates sincronizables. Cualquier
// slug fuera de esta tabla es un error de validación, no de traducción.
var supportedSlugs = map[string]slugTarget{
	"confirm_signup": {
		SubjectField:   "mailer_subjects_confirmation",
		ContentField:   "mailer_templates_confirmation_content",
		RequiredTokens: []string{"CONFIRMATION_URL"},
	},
	"invite_user": {
		SubjectField:   "mailer_subjects_invite",
		ContentField:   "mailer_templates_invite_content",
		RequiredTokens: []string{"CONFIRMATION_URL"},
	},
	"magic_link": {
		SubjectField:   "mailer_subjects_magic_link",
		ContentField:   "mailer_templates_magic_link_content",
		RequiredTokens: []string{"CONFIRMATION_URL"},
	},
	"reset_password": {
		SubjectField:   "mailer_subjects_recovery",
		ContentField:   "mailer_templates_recovery_content",
		RequiredTokens: []string{"CONFIRMATION_URL"},
	},
	"email_change": {
		SubjectField:   "mailer_subjects_email_change",
		ContentField:   "mailer_templates_email_change_content",
		RequiredTokens: []string{"CONFIRMATION_URL"},
	},
}

// providerTokens mapea token canónico -> sintaxis de placeholder del
// provider. Un token canónico sin entrada acá es un unsupported token.
var providerTokens = map[string]string{
	"CONFIRMATION_URL": "{{ .ConfirmationURL }}",
	"SITE_URL":         "{{ .SiteURL }}",
	"EMAIL":            "{{ .Email }}",
	"NEW_EMAIL":        "{{ .NewEmail }}",
	"TOKEN":            "{{ .Token }}",
	"TOKEN_HASH":       "{{ .TokenHash }}",
	"REDIRECT_TO":      "{{ .RedirectTo }}",
}

// DefaultSlugs es el set por defecto cuando el request omite slugs.
func DefaultSlugs() []string {
	out := make([]string, 0, len(supportedSlugs))
	for s := range supportedSlugs {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// IsSupportedSlug valida pertenencia a la tabla fija.
func IsSupportedSlug(slug string) bool {
	_, ok := supportedSlugs[slug]
	return ok
}

// TranslateError es un error de traducción atribuible a un slug. Aborta
// el batch completo: nunca hay traducción parcial.
type TranslateError struct {
	Slug   string
	Reason string
}

func (e *TranslateError) Error() string {
	return fmt.Sprintf("slug %s: %s", e.Slug, e.Reason)
}

// SlugSummary es el resumen por slug que va al audit trail.
type SlugSummary struct {
	Slug           string   `json:"slug"`
	SubjectField   string   `json:"subject_field"`
	ContentField   string   `json:"content_field"`
	UsedTokens     []string `json:"used_tokens"`
	RequiredTokens []string `json:"required_tokens"`
}

// Translation es el patch plano listo para el management API más los
// resúmenes por slug.
type Translation struct {
	Patch     map[string]string
	Summaries []SlugSummary
}

// Translate re-escanea subject/body de cada slug pedido, convierte los
// placeholders internos a la sintaxis del provider y valida soporte y
// tokens requeridos. Falla el batch entero ante el primer problema.
func Translate(slugs []string, templates map[string]*repository.EmailTemplate) (*Translation, error) {
	out := &Translation{Patch: map[string]string{}}

	for _, slug := range slugs {
		target, ok := supportedSlugs[slug]
		if !ok {
			return nil, &TranslateError{Slug: slug, Reason: "slug not supported"}
		}
		t, ok := templates[slug]
		if !ok || t == nil {
			return nil, &TranslateError{Slug: slug, Reason: "template not found"}
		}
		if t.Subject == "" {
			return nil, &TranslateError{Slug: slug, Reason: "template subject is empty"}
		}
		if t.HTMLBody == "" {
			return nil, &TranslateError{Slug: slug, Reason: "template body is empty"}
		}

		used := tmpl.ExtractTokens(t.Subject, t.HTMLBody)
		for _, tok := range used {
			if _, ok := providerTokens[tok]; !ok {
				return nil, &TranslateError{Slug: slug, Reason: "unsupported token " + tok}
			}
		}
		usedSet := map[string]struct{}{}
		for _, tok := range used {
			usedSet[tok] = struct{}{}
		}
		for _, req := range target.RequiredTokens {
			if _, ok := usedSet[req]; !ok {
				return nil, &TranslateError{Slug: slug, Reason: "missing required token " + req}
			}
		}

		out.Patch[target.SubjectField] = tmpl.MapTokens(t.Subject, providerTokens)
		out.Patch[target.ContentField] = tmpl.MapTokens(t.HTMLBody, providerTokens)
		out.Summaries = append(out.Summaries, SlugSummary{
			Slug:           slug,
			SubjectField:   target.SubjectField,
			ContentField:   target.ContentField,
			UsedTokens:     used,
			RequiredTokens: target.RequiredTokens,
		})
	}
	return out, nil
}
