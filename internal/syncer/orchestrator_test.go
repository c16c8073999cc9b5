package syncer

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/mailplane/internal/audit"
	"github.com/dropDatabas3/mailplane/internal/domain/repository"
	"github.com/dropDatabas3/mailplane/internal/mgmt"
	"github.com/dropDatabas3/mailplane/internal/rate"
	"github.com/dropDatabas3/mailplane/internal/store/memory"
)

// fakeMgmt cuenta llamadas y permite inyectar fallas.
type fakeMgmt struct {
	mu    sync.Mutex
	calls int32
	err   error
}

func (f *fakeMgmt) PatchAuthConfig(_ context.Context, _ map[string]string) (int, error) {
	atomic.AddInt32(&f.calls, 1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	return http.StatusOK, nil
}

func (f *fakeMgmt) callCount() int { return int(atomic.LoadInt32(&f.calls)) }

type fixture struct {
	store *memory.Store
	mgmt  *fakeMgmt
	orch  *Orchestrator
}

func newFixture(t *testing.T, maxAttempts int) *fixture {
	t.Helper()
	st := memory.New()
	st.Templates.Put(&repository.EmailTemplate{
		Slug:     "confirm_signup",
		Subject:  "Confirm your account at {{SITE_URL}}",
		HTMLBody: `<p>Hola,</p><a href="{{CONFIRMATION_URL}}">Confirm</a>`,
	})
	st.Templates.Put(&repository.EmailTemplate{
		Slug:     "magic_link",
		Subject:  "Your magic link",
		HTMLBody: `<a href="{{CONFIRMATION_URL}}">Sign in</a>`,
	})

	m := &fakeMgmt{}
	return &fixture{
		store: st,
		mgmt:  m,
		orch: &Orchestrator{
			Templates:   st.Templates,
			Idempotency: st.Idempotency,
			Window: &rate.EventWindow{
				Events:      st.Events,
				Integration: Integration,
				Action:      Action,
				Max:         maxAttempts,
				Window:      10 * time.Minute,
			},
			Mgmt:  m,
			Audit: &audit.Logger{Repo: st.Audit},
		},
	}
}

func req(key string, slugs []string, dryRun bool) Request {
	return Request{
		ActorID:        "actor-1",
		IdempotencyKey: key,
		Slugs:          slugs,
		DryRun:         dryRun,
		RequestID:      "req-" + key,
	}
}

func TestSync_DryRunSkipsExternalCall(t *testing.T) {
	f := newFixture(t, 10)

	status, out := f.orch.Sync(context.Background(), req("dryrun-key-1", []string{"confirm_signup"}, true))

	require.Equal(t, http.StatusOK, status)
	require.True(t, out.Success)
	require.True(t, out.DryRun)
	require.NotEmpty(t, out.PatchPreview)
	require.NotEmpty(t, out.PatchChecksum)
	require.Zero(t, out.ManagementStatus)
	require.Equal(t, 0, f.mgmt.callCount(), "dry run must not call the management API")

	// El patch preview trae la sintaxis del provider, no la interna.
	require.Contains(t, out.PatchPreview["mailer_templates_confirmation_content"], "{{ .ConfirmationURL }}")
}

func TestSync_RealCallReportsManagementStatus(t *testing.T) {
	f := newFixture(t, 10)

	status, out := f.orch.Sync(context.Background(), req("real-key-01", []string{"confirm_signup"}, false))

	require.Equal(t, http.StatusOK, status)
	require.True(t, out.Success)
	require.Equal(t, http.StatusOK, out.ManagementStatus)
	require.Empty(t, out.PatchPreview)
	require.Equal(t, []string{"confirm_signup"}, out.SyncedSlugs)
	require.Equal(t, 1, f.mgmt.callCount())
}

func TestSync_ReplayIsByteIdenticalAsideFromFlag(t *testing.T) {
	f := newFixture(t, 10)
	r := req("replay-key-1", []string{"confirm_signup"}, false)

	status1, out1 := f.orch.Sync(context.Background(), r)
	status2, out2 := f.orch.Sync(context.Background(), r)

	require.Equal(t, http.StatusOK, status1)
	require.Equal(t, status1, status2)
	require.False(t, out1.IdempotentReplay)
	require.True(t, out2.IdempotentReplay)
	require.Equal(t, 1, f.mgmt.callCount(), "replay must not re-execute the external call")

	// Igualdad byte a byte una vez normalizado el flag de replay.
	out2.IdempotentReplay = false
	b1, _ := json.Marshal(out1)
	b2, _ := json.Marshal(out2)
	require.Equal(t, string(b1), string(b2))
}

func TestSync_ConcurrentSameKey_OneExternalCall(t *testing.T) {
	f := newFixture(t, 100)
	r := req("concurrent-key", []string{"confirm_signup"}, false)

	const n = 16
	statuses := make([]int, n)
	outcomes := make([]SyncOutcome, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			statuses[i], outcomes[i] = f.orch.Sync(context.Background(), r)
		}(i)
	}
	wg.Wait()

	require.Equal(t, 1, f.mgmt.callCount(), "exactly one request may execute")

	winners := 0
	for i := 0; i < n; i++ {
		switch {
		case statuses[i] == http.StatusOK && !outcomes[i].IdempotentReplay:
			winners++
		case statuses[i] == http.StatusOK && outcomes[i].IdempotentReplay:
			// replay de un terminal ya finalizado
		case statuses[i] == http.StatusConflict:
			require.Equal(t, "idempotency_in_progress", outcomes[i].Error.Code)
		default:
			t.Fatalf("unexpected status %d outcome %+v", statuses[i], outcomes[i])
		}
	}
	require.Equal(t, 1, winners)
}

func TestSync_SameKeyDifferentIntentIsConflict(t *testing.T) {
	f := newFixture(t, 10)

	status1, _ := f.orch.Sync(context.Background(), req("conflict-key", []string{"confirm_signup"}, false))
	require.Equal(t, http.StatusOK, status1)
	calls := f.mgmt.callCount()

	status2, out2 := f.orch.Sync(context.Background(), req("conflict-key", []string{"magic_link"}, false))
	require.Equal(t, http.StatusConflict, status2)
	require.Equal(t, "idempotency_conflict", out2.Error.Code)
	require.Equal(t, calls, f.mgmt.callCount(), "conflict must not trigger an external call")
}

func TestSync_RateLimitCeiling(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()

	for i, key := range []string{"rate-key-001", "rate-key-002", "rate-key-003"} {
		status, _ := f.orch.Sync(ctx, req(key, []string{"confirm_signup"}, true))
		require.Equalf(t, http.StatusOK, status, "attempt %d within ceiling must pass", i+1)
	}

	status, out := f.orch.Sync(ctx, req("rate-key-004", []string{"confirm_signup"}, true))
	require.Equal(t, http.StatusTooManyRequests, status)
	require.Equal(t, "rate_limited", out.Error.Code)
}

func TestSync_DryRunConsumesRateBudget(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	status, _ := f.orch.Sync(ctx, req("budget-key-1", []string{"confirm_signup"}, true))
	require.Equal(t, http.StatusOK, status)

	status, out := f.orch.Sync(ctx, req("budget-key-2", []string{"confirm_signup"}, false))
	require.Equal(t, http.StatusTooManyRequests, status)
	require.Equal(t, "rate_limited", out.Error.Code)
}

func TestSync_ReplayDoesNotConsumeRateBudget(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	r := req("replay-budget", []string{"confirm_signup"}, false)

	status, _ := f.orch.Sync(ctx, r)
	require.Equal(t, http.StatusOK, status)

	// Replays ilimitados: no deberían agotar el presupuesto.
	for i := 0; i < 5; i++ {
		status, out := f.orch.Sync(ctx, r)
		require.Equal(t, http.StatusOK, status)
		require.True(t, out.IdempotentReplay)
	}

	status, _ = f.orch.Sync(ctx, req("replay-budget-2", []string{"confirm_signup"}, false))
	require.Equal(t, http.StatusOK, status, "one real attempt of budget left")
}

func TestSync_UnknownSlugRejectedBeforeAnySideEffect(t *testing.T) {
	f := newFixture(t, 10)

	status, out := f.orch.Sync(context.Background(), req("unknown-slug-key", []string{"not_a_slug"}, false))

	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "unknown_slug", out.Error.Code)
	require.Equal(t, 0, f.mgmt.callCount())

	// Ni claim ni evento de rate: el rechazo fue pre-claim.
	_, err := f.store.Idempotency.Get(context.Background(), "actor-1", "unknown-slug-key")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSync_BadIdempotencyKeyFormat(t *testing.T) {
	f := newFixture(t, 10)

	for _, bad := range []string{"", "short", "has space in it", "ünïcode-key-12345"} {
		status, out := f.orch.Sync(context.Background(), req(bad, []string{"confirm_signup"}, false))
		require.Equalf(t, http.StatusBadRequest, status, "key %q", bad)
		require.Equal(t, "invalid_idempotency_key", out.Error.Code)
	}
}

func TestSync_TranslationFailureFinalizedAndReplayable(t *testing.T) {
	f := newFixture(t, 10)
	f.store.Templates.Put(&repository.EmailTemplate{
		Slug:     "confirm_signup",
		Subject:  "Confirm",
		HTMLBody: `<a href="{{CONFIRMATION_URL}}">ok</a> {{TOTALLY_CUSTOM}}`,
	})
	r := req("translate-fail", []string{"confirm_signup"}, false)

	status, out := f.orch.Sync(context.Background(), r)
	require.Equal(t, http.StatusUnprocessableEntity, status)
	require.Equal(t, "translation_failed", out.Error.Code)
	require.Equal(t, "unsupported token TOTALLY_CUSTOM", out.Error.Details["reason"])
	require.Equal(t, 0, f.mgmt.callCount())

	// La falla quedó finalizada: el retry con la misma key replayea el 422.
	status2, out2 := f.orch.Sync(context.Background(), r)
	require.Equal(t, http.StatusUnprocessableEntity, status2)
	require.True(t, out2.IdempotentReplay)
	require.Equal(t, 0, f.mgmt.callCount())
}

func TestSync_MissingRequiredToken(t *testing.T) {
	f := newFixture(t, 10)
	f.store.Templates.Put(&repository.EmailTemplate{
		Slug:     "confirm_signup",
		Subject:  "Confirm",
		HTMLBody: `<p>No link here {{SITE_URL}}</p>`,
	})

	status, out := f.orch.Sync(context.Background(),
		req("missing-required", []string{"confirm_signup"}, false))

	require.Equal(t, http.StatusUnprocessableEntity, status)
	require.Equal(t, "missing required token CONFIRMATION_URL", out.Error.Details["reason"])
}

func TestSync_UpstreamErrorFinalizedAsFailure(t *testing.T) {
	f := newFixture(t, 10)
	f.mgmt.err = &mgmt.UpstreamError{Status: http.StatusServiceUnavailable}
	r := req("upstream-fail", []string{"confirm_signup"}, false)

	status, out := f.orch.Sync(context.Background(), r)
	require.Equal(t, http.StatusBadGateway, status)
	require.Equal(t, "upstream_error", out.Error.Code)
	require.Equal(t, http.StatusServiceUnavailable, out.Error.Details["management_status"])

	// El retry con la misma key replayea la falla, no re-pega al upstream.
	calls := f.mgmt.callCount()
	status2, out2 := f.orch.Sync(context.Background(), r)
	require.Equal(t, http.StatusBadGateway, status2)
	require.True(t, out2.IdempotentReplay)
	require.Equal(t, calls, f.mgmt.callCount())
}

func TestSync_UpstreamTimeoutIs504(t *testing.T) {
	f := newFixture(t, 10)
	f.mgmt.err = mgmt.ErrUnreachable

	status, out := f.orch.Sync(context.Background(), req("upstream-timeout", []string{"confirm_signup"}, false))
	require.Equal(t, http.StatusGatewayTimeout, status)
	require.Equal(t, "upstream_timeout", out.Error.Code)
}

func TestSync_OmittedSlugsUseDefaultSet(t *testing.T) {
	f := newFixture(t, 10)
	// Solo dos templates seedeados: el default set completo falla por
	// templates faltantes, lo cual prueba que sí expandió el default.
	status, out := f.orch.Sync(context.Background(), req("default-slugs", nil, true))

	require.Equal(t, http.StatusUnprocessableEntity, status)
	require.Equal(t, "template not found", out.Error.Details["reason"])
}

func TestSync_AuditTrailWritten(t *testing.T) {
	f := newFixture(t, 10)

	f.orch.Sync(context.Background(), req("audit-key-01", []string{"confirm_signup"}, false))

	entries := f.store.Audit.Entries()
	require.Len(t, entries, 1)
	require.Equal(t, "actor-1", entries[0].ActorID)
	require.Equal(t, "success", entries[0].Outcome)
	require.NotEmpty(t, entries[0].PatchChecksum)
	require.NotEmpty(t, entries[0].PayloadHash)
}
