package pg

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/mailplane/internal/domain/repository"
	tmpl "github.com/dropDatabas3/mailplane/internal/template"
)

type templateRepo struct {
	pool *pgxpool.Pool
}

const templateColumns = `id, slug, subject, html_body, COALESCE(text_body, ''),
	is_auth_critical, unresolved_policy, allowlist_fallback_keys, created_at, updated_at`

func scanTemplate(row pgx.Row) (*repository.EmailTemplate, error) {
	var t repository.EmailTemplate
	var policy string
	err := row.Scan(&t.ID, &t.Slug, &t.Subject, &t.HTMLBody, &t.TextBody,
		&t.IsAuthCritical, &policy, &t.AllowlistFallbackKeys, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.UnresolvedPolicy = tmpl.UnresolvedPolicy(policy)
	return &t, nil
}

func (r *templateRepo) GetBySlug(ctx context.Context, slug string) (*repository.EmailTemplate, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+templateColumns+` FROM email_template WHERE slug = $1`, slug)
	t, err := scanTemplate(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *templateRepo) ListBySlugs(ctx context.Context, slugs []string) ([]*repository.EmailTemplate, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+templateColumns+` FROM email_template WHERE slug = ANY($1) ORDER BY slug`, slugs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*repository.EmailTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *templateRepo) UpdateContent(ctx context.Context, slug string, content repository.UpdateTemplateContent) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE email_template
		    SET subject = $2, html_body = $3, text_body = NULLIF($4, ''), updated_at = NOW()
		  WHERE slug = $1`,
		slug, content.Subject, content.HTMLBody, content.TextBody)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

type policyRepo struct {
	pool *pgxpool.Pool
}

func (r *policyRepo) ListPolicies(ctx context.Context) (map[string]tmpl.RenderPolicy, error) {
	rows, err := r.pool.Query(ctx, `SELECT key, render_policy FROM variable_policy`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]tmpl.RenderPolicy{}
	for rows.Next() {
		var k, p string
		if err := rows.Scan(&k, &p); err != nil {
			return nil, err
		}
		out[k] = tmpl.RenderPolicy(p)
	}
	return out, rows.Err()
}
