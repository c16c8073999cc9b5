package syncer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/mailplane/internal/domain/repository"
)

func TestTranslate_BuildsProviderPatch(t *testing.T) {
	templates := map[string]*repository.EmailTemplate{
		"confirm_signup": {
			Slug:     "confirm_signup",
			Subject:  "Confirm at {{SITE_URL}}",
			HTMLBody: `<a href="{{ .ConfirmationURL }}">x</a>`,
		},
		"reset_password": {
			Slug:     "reset_password",
			Subject:  "Reset for {{EMAIL}}",
			HTMLBody: `<a href="{{confirmation_url}}">reset</a>`,
		},
	}

	tr, err := Translate([]string{"confirm_signup", "reset_password"}, templates)
	require.NoError(t, err)

	require.Equal(t, "Confirm at {{ .SiteURL }}", tr.Patch["mailer_subjects_confirmation"])
	require.Equal(t, `<a href="{{ .ConfirmationURL }}">x</a>`, tr.Patch["mailer_templates_confirmation_content"])
	require.Equal(t, "Reset for {{ .Email }}", tr.Patch["mailer_subjects_recovery"])
	require.Equal(t, `<a href="{{ .ConfirmationURL }}">reset</a>`, tr.Patch["mailer_templates_recovery_content"])

	require.Len(t, tr.Summaries, 2)
	require.Equal(t, "confirm_signup", tr.Summaries[0].Slug)
	require.Contains(t, tr.Summaries[0].UsedTokens, "CONFIRMATION_URL")
	require.Contains(t, tr.Summaries[0].UsedTokens, "SITE_URL")
}

func TestTranslate_EmptySubjectFails(t *testing.T) {
	templates := map[string]*repository.EmailTemplate{
		"magic_link": {Slug: "magic_link", HTMLBody: `{{CONFIRMATION_URL}}`},
	}
	_, err := Translate([]string{"magic_link"}, templates)
	require.ErrorContains(t, err, "subject is empty")
}

func TestTranslate_NoPartialBatch(t *testing.T) {
	templates := map[string]*repository.EmailTemplate{
		"confirm_signup": {
			Slug:     "confirm_signup",
			Subject:  "ok",
			HTMLBody: `{{CONFIRMATION_URL}}`,
		},
		// magic_link falta a propósito
	}
	tr, err := Translate([]string{"confirm_signup", "magic_link"}, templates)
	require.Error(t, err)
	require.Nil(t, tr, "failed batch must not leak a partial translation")
}

func TestDefaultSlugs_SortedAndSupported(t *testing.T) {
	slugs := DefaultSlugs()
	require.NotEmpty(t, slugs)
	for i, s := range slugs {
		require.True(t, IsSupportedSlug(s))
		if i > 0 {
			require.Less(t, slugs[i-1], s)
		}
	}
}
