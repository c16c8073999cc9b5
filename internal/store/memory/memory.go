// Package memory implementa los repositorios en memoria. Se usa para
// desarrollo local sin base de datos y en tests de unidad. Reproduce la
// semántica del adapter pg, incluido el claim atómico por unique key.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/dropDatabas3/mailplane/internal/domain/repository"
	tmpl "github.com/dropDatabas3/mailplane/internal/template"
)

// Store agrupa los repositorios en memoria.
type Store struct {
	Templates   *TemplateRepo
	Policies    *PolicyRepo
	Idempotency *IdempotencyRepo
	Events      *EventRepo
	Audit       *AuditRepo
}

// New crea un Store vacío.
func New() *Store {
	return &Store{
		Templates:   &TemplateRepo{byslug: map[string]*repository.EmailTemplate{}},
		Policies:    &PolicyRepo{policies: map[string]tmpl.RenderPolicy{}},
		Idempotency: &IdempotencyRepo{records: map[string]*repository.IdempotencyRecord{}},
		Events:      &EventRepo{},
		Audit:       &AuditRepo{},
	}
}

// TemplateRepo es un TemplateRepository en memoria.
type TemplateRepo struct {
	mu     sync.RWMutex
	byslug map[string]*repository.EmailTemplate
}

// Put inserta o reemplaza un template (seed de tests y modo dev).
func (r *TemplateRepo) Put(t *repository.EmailTemplate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *t
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	cp.UpdatedAt = time.Now()
	r.byslug[cp.Slug] = &cp
}

func (r *TemplateRepo) GetBySlug(_ context.Context, slug string) (*repository.EmailTemplate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byslug[slug]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *TemplateRepo) ListBySlugs(_ context.Context, slugs []string) ([]*repository.EmailTemplate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*repository.EmailTemplate
	for _, s := range slugs {
		if t, ok := r.byslug[s]; ok {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}

func (r *TemplateRepo) UpdateContent(_ context.Context, slug string, content repository.UpdateTemplateContent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byslug[slug]
	if !ok {
		return repository.ErrNotFound
	}
	t.Subject = content.Subject
	t.HTMLBody = content.HTMLBody
	t.TextBody = content.TextBody
	t.UpdatedAt = time.Now()
	return nil
}

// PolicyRepo es un VariablePolicyRepository en memoria.
type PolicyRepo struct {
	mu       sync.RWMutex
	policies map[string]tmpl.RenderPolicy
}

// Set fija la política de una clave canónica.
func (r *PolicyRepo) Set(key string, p tmpl.RenderPolicy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.policies[key] = p
}

func (r *PolicyRepo) ListPolicies(_ context.Context) (map[string]tmpl.RenderPolicy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]tmpl.RenderPolicy, len(r.policies))
	for k, v := range r.policies {
		out[k] = v
	}
	return out, nil
}

// IdempotencyRepo es un IdempotencyRepository en memoria. El mutex juega
// el rol del unique constraint: un solo claim gana por (actor, key).
type IdempotencyRepo struct {
	mu      sync.Mutex
	seq     int
	records map[string]*repository.IdempotencyRecord
}

func idemKey(actorID, key string) string { return actorID + "\x00" + key }

func (r *IdempotencyRepo) Get(_ context.Context, actorID, key string) (*repository.IdempotencyRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[idemKey(actorID, key)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (r *IdempotencyRepo) Claim(_ context.Context, input repository.ClaimIdempotencyInput) (*repository.IdempotencyRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := idemKey(input.ActorID, input.Key)
	if _, exists := r.records[k]; exists {
		return nil, repository.ErrConflict
	}
	r.seq++
	rec := &repository.IdempotencyRecord{
		ID:             strconv.Itoa(r.seq),
		ActorID:        input.ActorID,
		Key:            input.Key,
		PayloadHash:    input.PayloadHash,
		RequestSummary: input.RequestSummary,
		CreatedAt:      time.Now(),
	}
	r.records[k] = rec
	cp := *rec
	return &cp, nil
}

func (r *IdempotencyRepo) Finalize(_ context.Context, actorID, key string, status int, body json.RawMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[idemKey(actorID, key)]
	if !ok || rec.FinalizedAt != nil {
		return repository.ErrConflict
	}
	now := time.Now()
	rec.ResponseStatus = status
	rec.ResponseBody = append(json.RawMessage(nil), body...)
	rec.FinalizedAt = &now
	return nil
}

// EventRepo es un IntegrationEventRepository en memoria (append-only).
type EventRepo struct {
	mu     sync.Mutex
	events []repository.IntegrationEvent
}

func (r *EventRepo) Record(_ context.Context, integration, action, actorID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, repository.IntegrationEvent{
		Integration: integration,
		Action:      action,
		ActorID:     actorID,
		CreatedAt:   time.Now(),
	})
	return nil
}

func (r *EventRepo) CountSince(_ context.Context, integration, action, actorID string, since time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Integration == integration && e.Action == action && e.ActorID == actorID && !e.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

// AuditRepo acumula entradas de auditoría en memoria.
type AuditRepo struct {
	mu      sync.Mutex
	entries []repository.SyncAuditEntry
}

func (r *AuditRepo) Append(_ context.Context, entry repository.SyncAuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	r.entries = append(r.entries, entry)
	return nil
}

// Entries devuelve una copia de las entradas (inspección en tests).
func (r *AuditRepo) Entries() []repository.SyncAuditEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]repository.SyncAuditEntry, len(r.entries))
	copy(out, r.entries)
	return out
}
