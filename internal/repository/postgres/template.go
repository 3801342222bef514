package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/ignite/campaign-engine/internal/domain"
	"github.com/ignite/campaign-engine/internal/render"
)

// TemplateRepo implements render.TemplateSource.
type TemplateRepo struct {
	db *sql.DB
}

// NewTemplateRepo creates a template repository.
func NewTemplateRepo(db *sql.DB) *TemplateRepo {
	return &TemplateRepo{db: db}
}

func (r *TemplateRepo) GetTemplate(ctx context.Context, id uuid.UUID) (*domain.Template, error) {
	var t domain.Template
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, html_body, text_body, created_at, updated_at
		FROM templates WHERE id = $1`, id).
		Scan(&t.ID, &t.Name, &t.HTMLBody, &t.TextBody, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, render.ErrTemplateNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}
