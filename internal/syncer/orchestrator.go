// Package syncer implementa el protocolo de sync de templates hacia el
// identity provider: idempotencia claim/finalize, sliding window por
// actor, traducción de tokens y la única llamada externa por request.
package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/mailplane/internal/audit"
	"github.com/dropDatabas3/mailplane/internal/domain/repository"
	"github.com/dropDatabas3/mailplane/internal/metrics"
	"github.com/dropDatabas3/mailplane/internal/mgmt"
	"github.com/dropDatabas3/mailplane/internal/observability/logger"
	"github.com/dropDatabas3/mailplane/internal/rate"
)

// Integration y Action identifican este protocolo en el event log.
const (
	Integration = "identity_provider"
	Action      = "template_sync"
)

// KeyPattern es el formato aceptado para idempotency keys del caller.
var KeyPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{8,128}$`)

// ManagementClient es la única operación externa del orchestrator.
type ManagementClient interface {
	PatchAuthConfig(ctx context.Context, patch map[string]string) (int, error)
}

// Request es un intento de sync ya autenticado (el actor viene resuelto
// por el middleware de auth).
type Request struct {
	ActorID        string
	IdempotencyKey string
	Slugs          []string // vacío = DefaultSlugs()
	DryRun         bool
	RequestID      string
}

// Orchestrator coordina un intento de sync de punta a punta. No guarda
// estado entre requests: toda coordinación cruza por el store.
type Orchestrator struct {
	Templates   repository.TemplateRepository
	Idempotency repository.IdempotencyRepository
	Window      *rate.EventWindow
	Mgmt        ManagementClient
	Audit       *audit.Logger
}

// Sync ejecuta el protocolo y devuelve el status HTTP y el payload
// terminal. Todo camino termina en un SyncOutcome; los errores internos
// se loguean y salen como 500 genérico.
func (o *Orchestrator) Sync(ctx context.Context, req Request) (int, SyncOutcome) {
	log := logger.From(ctx).With(
		logger.Component("syncer"),
		logger.ActorID(req.ActorID),
		logger.IdemKey(req.IdempotencyKey),
	)

	// Validación de shape: sin side effects antes del claim.
	if !KeyPattern.MatchString(req.IdempotencyKey) {
		return fail(req, http.StatusBadRequest, "invalid_idempotency_key",
			"idempotency key must match ^[A-Za-z0-9._:-]{8,128}$", nil)
	}
	slugs := normalizeSlugs(req.Slugs)
	if len(slugs) == 0 {
		slugs = DefaultSlugs()
	}
	for _, s := range slugs {
		if !IsSupportedSlug(s) {
			return fail(req, http.StatusBadRequest, "unknown_slug",
				"slug is not in the supported set", map[string]any{"slug": s})
		}
	}

	hash := PayloadHash(req.ActorID, slugs, req.DryRun)

	// Idempotency lookup: un replay no consume rate limit ni toca nada.
	if rec, err := o.Idempotency.Get(ctx, req.ActorID, req.IdempotencyKey); err == nil {
		return replay(log, req, rec, hash)
	} else if !repository.IsNotFound(err) {
		log.Error("idempotency lookup failed", logger.Err(err))
		return fail(req, http.StatusInternalServerError, "internal", "internal error", nil)
	}

	// Rate limit: se chequea antes del claim y el intento se registra
	// aunque sea rechazado (los rechazos también cuentan).
	win, err := o.Window.Check(ctx, req.ActorID)
	if err != nil {
		log.Error("rate window check failed", logger.Err(err))
		return fail(req, http.StatusInternalServerError, "internal", "internal error", nil)
	}
	if err := o.Window.Record(ctx, req.ActorID); err != nil {
		log.Error("rate window record failed", logger.Err(err))
	}
	if !win.Allowed {
		status, out := fail(req, http.StatusTooManyRequests, "rate_limited",
			"too many sync attempts, retry later",
			map[string]any{"retry_after_seconds": int(win.RetryAfter.Seconds())})
		o.auditRecord(ctx, req, slugs, hash, status, out, "")
		metrics.SyncAttempts.WithLabelValues(outcomeLabel(status)).Inc()
		return status, out
	}

	// Claim: el insert bajo unique constraint decide qué request procede.
	_, err = o.Idempotency.Claim(ctx, repository.ClaimIdempotencyInput{
		ActorID:        req.ActorID,
		Key:            req.IdempotencyKey,
		PayloadHash:    hash,
		RequestSummary: strings.Join(slugs, ","),
	})
	if repository.IsConflict(err) {
		rec, gerr := o.Idempotency.Get(ctx, req.ActorID, req.IdempotencyKey)
		if gerr != nil {
			log.Error("re-read after claim conflict failed", logger.Err(gerr))
			return fail(req, http.StatusInternalServerError, "internal", "internal error", nil)
		}
		return replay(log, req, rec, hash)
	}
	if err != nil {
		log.Error("idempotency claim failed", logger.Err(err))
		return fail(req, http.StatusInternalServerError, "internal", "internal error", nil)
	}

	// Con el claim tomado, todo camino finaliza exactamente una vez.
	status, outcome, checksum := o.execute(ctx, log, req, slugs, hash)

	if ferr := o.Idempotency.Finalize(ctx, req.ActorID, req.IdempotencyKey, status, marshalOutcome(outcome)); ferr != nil {
		log.Error("idempotency finalize failed", logger.Err(ferr), logger.Status(status))
	}
	o.auditRecord(ctx, req, slugs, hash, status, outcome, checksum)
	metrics.SyncAttempts.WithLabelValues(outcomeLabel(status)).Inc()
	return status, outcome
}

// execute corre traducción y la llamada externa (o el preview en dry run).
// Devuelve además el checksum del patch para auditoría (vacío en falla).
func (o *Orchestrator) execute(ctx context.Context, log *zap.Logger, req Request, slugs []string, hash string) (int, SyncOutcome, string) {
	fetched, err := o.Templates.ListBySlugs(ctx, slugs)
	if err != nil {
		log.Error("template fetch failed", logger.Err(err))
		status, out := fail(req, http.StatusInternalServerError, "internal", "internal error", nil)
		return status, out, ""
	}
	bySlug := make(map[string]*repository.EmailTemplate, len(fetched))
	for _, t := range fetched {
		bySlug[t.Slug] = t
	}

	tr, err := Translate(slugs, bySlug)
	if err != nil {
		var terr *TranslateError
		details := map[string]any{}
		if errors.As(err, &terr) {
			details["slug"] = terr.Slug
			details["reason"] = terr.Reason
		}
		status, out := fail(req, http.StatusUnprocessableEntity, "translation_failed",
			"template translation failed", details)
		return status, out, ""
	}

	checksum := PatchChecksum(tr.Patch)
	outcome := SyncOutcome{
		Success:       true,
		RequestID:     req.RequestID,
		SyncedSlugs:   slugs,
		PayloadHash:   hash,
		PatchChecksum: checksum,
		DryRun:        req.DryRun,
	}

	if req.DryRun {
		outcome.PatchPreview = tr.Patch
		return http.StatusOK, outcome, checksum
	}

	start := time.Now()
	mgmtStatus, err := o.Mgmt.PatchAuthConfig(ctx, tr.Patch)
	metrics.SyncUpstreamLatency.Observe(float64(time.Since(start).Milliseconds()))
	if err != nil {
		switch {
		case errors.Is(err, mgmt.ErrUnreachable), errors.Is(err, context.DeadlineExceeded):
			status, out := fail(req, http.StatusGatewayTimeout, "upstream_timeout",
				"management API did not respond", nil)
			return status, out, checksum
		default:
			var ue *mgmt.UpstreamError
			details := map[string]any(nil)
			if errors.As(err, &ue) {
				details = map[string]any{"management_status": ue.Status}
			}
			status, out := fail(req, http.StatusBadGateway, "upstream_error",
				"management API rejected the sync", details)
			return status, out, checksum
		}
	}

	outcome.ManagementStatus = mgmtStatus
	return http.StatusOK, outcome, checksum
}

// replay sirve el payload terminal guardado sin side effects. Sentinel
// in-progress y hash distinto son 409, nunca re-ejecución.
func replay(log *zap.Logger, req Request, rec *repository.IdempotencyRecord, hash string) (int, SyncOutcome) {
	if rec.PayloadHash != hash {
		return fail(req, http.StatusConflict, "idempotency_conflict",
			"idempotency key was already used with a different request", nil)
	}
	if rec.InProgress() {
		return fail(req, http.StatusConflict, "idempotency_in_progress",
			"a request with this idempotency key is still in progress", nil)
	}

	var stored SyncOutcome
	if err := json.Unmarshal(rec.ResponseBody, &stored); err != nil {
		log.Error("stored outcome unmarshal failed", logger.Err(err))
		return fail(req, http.StatusInternalServerError, "internal", "internal error", nil)
	}
	stored.IdempotentReplay = true
	metrics.SyncReplays.Inc()
	log.Info("idempotent replay served", logger.Status(rec.ResponseStatus))
	return rec.ResponseStatus, stored
}

func (o *Orchestrator) auditRecord(ctx context.Context, req Request, slugs []string, hash string, status int, outcome SyncOutcome, checksum string) {
	if o.Audit == nil {
		return
	}
	entry := audit.Entry{
		RequestID:   req.RequestID,
		ActorID:     req.ActorID,
		Slugs:       slugs,
		DryRun:      req.DryRun,
		PayloadHash: hash,
		Outcome:     outcomeLabel(status),
	}
	if outcome.Success {
		entry.PatchChecksum = checksum
	} else if outcome.Error != nil {
		entry.Detail = outcome.Error.Code + ": " + outcome.Error.Message
	}
	o.Audit.Record(ctx, entry)
}

// fail arma un outcome de error terminal.
func fail(req Request, status int, code, message string, details map[string]any) (int, SyncOutcome) {
	return status, SyncOutcome{
		RequestID: req.RequestID,
		DryRun:    req.DryRun,
		Error:     &OutcomeError{Code: code, Message: message, Details: details},
	}
}

// normalizeSlugs ordena y dedupea preservando solo entradas no vacías.
func normalizeSlugs(in []string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func outcomeLabel(status int) string {
	switch {
	case status == http.StatusOK:
		return "success"
	case status == http.StatusTooManyRequests:
		return "rate_limited"
	case status == http.StatusConflict:
		return "conflict"
	case status == http.StatusUnprocessableEntity:
		return "translation_failed"
	case status == http.StatusBadGateway || status == http.StatusGatewayTimeout:
		return "upstream_failed"
	case status >= 400 && status < 500:
		return "rejected"
	default:
		return "internal_error"
	}
}
