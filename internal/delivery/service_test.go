package delivery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/mailplane/internal/cache"
	"github.com/dropDatabas3/mailplane/internal/domain/repository"
	"github.com/dropDatabas3/mailplane/internal/store/memory"
	tmpl "github.com/dropDatabas3/mailplane/internal/template"
)

type fakeSender struct {
	sent []sentMail
	err  error
}

type sentMail struct {
	to, subject, html, text string
}

func (f *fakeSender) Send(to, subject, html, text string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMail{to, subject, html, text})
	return nil
}

func newService(t *testing.T) (*Service, *memory.Store, *fakeSender) {
	t.Helper()
	st := memory.New()
	st.Templates.Put(&repository.EmailTemplate{
		Slug:     "confirm_signup",
		Subject:  "Confirm your account, {{name}}",
		HTMLBody: `<p>Hi {{name}},</p><a href="{{CONFIRMATION_URL}}">Confirm</a>`,
	})
	st.Templates.Put(&repository.EmailTemplate{
		Slug:                  "magic_link",
		Subject:               "Your login link",
		HTMLBody:              `<a href="{{CONFIRMATION_URL}}">Sign in</a> or visit {{SITE_URL}}`,
		IsAuthCritical:        true,
		UnresolvedPolicy:      tmpl.UnresolvedAllowlistFallback,
		AllowlistFallbackKeys: []string{"SITE_URL"},
	})
	sender := &fakeSender{}
	svc := &Service{
		Templates: st.Templates,
		Policies:  st.Policies,
		Sender:    sender,
		Cache:     cache.NewMemory(time.Minute),
	}
	return svc, st, sender
}

func vars() map[string]string {
	return map[string]string{
		"name":             "Ada",
		"CONFIRMATION_URL": "https://app.example.com/confirm?t=abc",
	}
}

func TestSend_DeliversRenderedEmail(t *testing.T) {
	svc, _, sender := newService(t)

	res, err := svc.Send(context.Background(), "confirm_signup", "ada@example.com", vars())
	require.NoError(t, err)
	require.False(t, res.Blocked)
	require.Len(t, sender.sent, 1)

	m := sender.sent[0]
	require.Equal(t, "ada@example.com", m.to)
	require.Equal(t, "Confirm your account, Ada", m.subject)
	require.Contains(t, m.html, `href="https://app.example.com/confirm?t=abc"`)
	require.NotEmpty(t, m.text, "text channel is derived from html when absent")
}

func TestSend_BlockedDoesNotTouchSMTP(t *testing.T) {
	svc, _, sender := newService(t)

	res, err := svc.Send(context.Background(), "confirm_signup", "ada@example.com",
		map[string]string{"name": "Ada"})
	require.ErrorIs(t, err, ErrBlocked)
	require.True(t, res.Blocked)
	require.Contains(t, res.Unresolved, "CONFIRMATION_URL")
	require.Empty(t, sender.sent)
}

func TestTestSend_NeverBlocks(t *testing.T) {
	svc, _, sender := newService(t)

	res, err := svc.TestSend(context.Background(), "confirm_signup", "qa@example.com", nil)
	require.NoError(t, err)
	require.False(t, res.Blocked)
	require.NotEmpty(t, res.Warnings)
	require.Len(t, sender.sent, 1)
	require.Contains(t, sender.sent[0].html, "{{CONFIRMATION_URL}}")
}

func TestPreview_DoesNotSend(t *testing.T) {
	svc, _, sender := newService(t)

	res, err := svc.Preview(context.Background(), "confirm_signup", vars())
	require.NoError(t, err)
	require.Contains(t, res.HTML, "Ada")
	require.Empty(t, sender.sent)
}

func TestSend_UnknownSlug(t *testing.T) {
	svc, _, _ := newService(t)

	_, err := svc.Send(context.Background(), "nope", "x@example.com", vars())
	require.True(t, repository.IsNotFound(err))
}

func TestSend_SMTPFailureSurfaces(t *testing.T) {
	svc, _, sender := newService(t)
	sender.err = errors.New("connection refused")

	_, err := svc.Send(context.Background(), "confirm_signup", "ada@example.com", vars())
	require.ErrorContains(t, err, "connection refused")
}

func TestCache_UpdateVisibleAfterInvalidate(t *testing.T) {
	svc, st, sender := newService(t)
	ctx := context.Background()

	_, err := svc.Send(ctx, "confirm_signup", "a@example.com", vars())
	require.NoError(t, err)

	require.NoError(t, st.Templates.UpdateContent(ctx, "confirm_signup", repository.UpdateTemplateContent{
		Subject:  "Fresh subject",
		HTMLBody: `<a href="{{CONFIRMATION_URL}}">go</a>`,
	}))

	// Sin invalidar sigue sirviendo la copia cacheada.
	_, err = svc.Send(ctx, "confirm_signup", "b@example.com", vars())
	require.NoError(t, err)
	require.Equal(t, "Confirm your account, Ada", sender.sent[1].subject)

	svc.Invalidate("confirm_signup")
	_, err = svc.Send(ctx, "confirm_signup", "c@example.com", vars())
	require.NoError(t, err)
	require.Equal(t, "Fresh subject", sender.sent[2].subject)
}

func TestSend_AuthCriticalFallbackDegrades(t *testing.T) {
	svc, _, sender := newService(t)

	res, err := svc.Send(context.Background(), "magic_link", "ada@example.com",
		map[string]string{"CONFIRMATION_URL": "https://app.example.com/magic"})
	require.NoError(t, err)
	require.False(t, res.Blocked)
	require.True(t, res.Degradation.Active)
	require.Len(t, sender.sent, 1)
	require.Contains(t, sender.sent[0].html, `visit #`)
}
