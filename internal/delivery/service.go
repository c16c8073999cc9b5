// Package delivery es el servicio de envío: busca el template, lo
// renderiza según el modo y lo entrega por SMTP. Es la única capa que
// combina renderer, repositorio y mailer.
package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/mailplane/internal/cache"
	"github.com/dropDatabas3/mailplane/internal/domain/repository"
	"github.com/dropDatabas3/mailplane/internal/mailer"
	"github.com/dropDatabas3/mailplane/internal/metrics"
	"github.com/dropDatabas3/mailplane/internal/observability/logger"
	tmpl "github.com/dropDatabas3/mailplane/internal/template"
)

// ErrBlocked indica que un render en modo send quedó bloqueado por
// tokens sin resolver. El email NO se envió.
var ErrBlocked = errors.New("delivery: render blocked by unresolved tokens")

const defaultCacheTTL = 30 * time.Second

// Service orquesta render + envío.
type Service struct {
	Templates repository.TemplateRepository
	Policies  repository.VariablePolicyRepository
	Sender    mailer.Sender
	Cache     cache.Cache
	CacheTTL  time.Duration
	// Fallbacks son valores de degradación configurados, por clave canónica.
	Fallbacks map[string]string
}

// Preview renderiza en modo browser_preview. Nunca envía ni bloquea.
func (s *Service) Preview(ctx context.Context, slug string, vars map[string]string) (tmpl.Result, error) {
	return s.render(ctx, slug, tmpl.ModePreview, vars)
}

// TestSend renderiza en modo test y envía el resultado a un destinatario
// interno. Los tokens sin resolver quedan visibles como literales.
func (s *Service) TestSend(ctx context.Context, slug, to string, vars map[string]string) (tmpl.Result, error) {
	res, err := s.render(ctx, slug, tmpl.ModeTest, vars)
	if err != nil {
		return res, err
	}
	if err := s.Sender.Send(to, res.Subject, res.HTML, res.Text); err != nil {
		return res, fmt.Errorf("delivery: test send: %w", err)
	}
	metrics.EmailsSent.WithLabelValues(slug).Inc()
	return res, nil
}

// Send renderiza en modo send y entrega el email. Si el render queda
// bloqueado retorna ErrBlocked sin tocar el SMTP.
func (s *Service) Send(ctx context.Context, slug, to string, vars map[string]string) (tmpl.Result, error) {
	res, err := s.render(ctx, slug, tmpl.ModeSend, vars)
	if err != nil {
		return res, err
	}
	if res.Blocked {
		metrics.RendersBlocked.Inc()
		logger.From(ctx).Warn("send blocked",
			logger.Slug(slug),
			logger.Any("unresolved", res.Unresolved),
		)
		return res, ErrBlocked
	}
	if res.Degradation.Active {
		metrics.RendersDegraded.Inc()
		logger.From(ctx).Warn("degraded send",
			logger.Slug(slug),
			logger.Detail(res.Degradation.Reason),
		)
	}
	if err := s.Sender.Send(to, res.Subject, res.HTML, res.Text); err != nil {
		return res, fmt.Errorf("delivery: send: %w", err)
	}
	metrics.EmailsSent.WithLabelValues(slug).Inc()
	return res, nil
}

// render busca template y políticas y ejecuta el renderer puro.
func (s *Service) render(ctx context.Context, slug string, mode tmpl.Mode, vars map[string]string) (tmpl.Result, error) {
	t, err := s.getTemplate(ctx, slug)
	if err != nil {
		return tmpl.Result{}, err
	}
	policies, err := s.Policies.ListPolicies(ctx)
	if err != nil {
		return tmpl.Result{}, fmt.Errorf("delivery: list policies: %w", err)
	}
	return tmpl.Render(t.ToRenderable(), mode, vars, policies, s.Fallbacks), nil
}

func (s *Service) getTemplate(ctx context.Context, slug string) (*repository.EmailTemplate, error) {
	key := "tpl:" + slug
	if s.Cache != nil {
		if b, ok := s.Cache.Get(key); ok {
			var t repository.EmailTemplate
			if err := json.Unmarshal(b, &t); err == nil {
				return &t, nil
			}
			s.Cache.Delete(key)
		}
	}
	t, err := s.Templates.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if s.Cache != nil {
		if b, err := json.Marshal(t); err == nil {
			ttl := s.CacheTTL
			if ttl <= 0 {
				ttl = defaultCacheTTL
			}
			s.Cache.Set(key, b, ttl)
		}
	}
	return t, nil
}

// Invalidate saca un template del cache. Lo llama el workflow de update
// para que el próximo send vea el contenido nuevo.
func (s *Service) Invalidate(slug string) {
	if s.Cache != nil {
		s.Cache.Delete("tpl:" + slug)
	}
}
