package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/campaign-engine/internal/domain"
	"github.com/ignite/campaign-engine/internal/service/campaign"
)

const campaignCols = `id, name, subject, template_id, segment_ids, status, scheduled_at, sent_at, created_at, updated_at`

// CampaignRepo implements campaign.Repository.
type CampaignRepo struct {
	db *sql.DB
}

// NewCampaignRepo creates a campaign repository.
func NewCampaignRepo(db *sql.DB) *CampaignRepo {
	return &CampaignRepo{db: db}
}

func (r *CampaignRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Campaign, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+campaignCols+` FROM campaigns WHERE id = $1`, id)
	c, err := scanCampaign(row)
	if err == sql.ErrNoRows {
		return nil, campaign.ErrNotFound
	}
	return c, err
}

func (r *CampaignRepo) Create(ctx context.Context, c *domain.Campaign) error {
	segments, err := json.Marshal(c.SegmentIDs)
	if err != nil {
		return fmt.Errorf("marshal segment ids: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO campaigns (id, name, subject, template_id, segment_ids, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())`,
		c.ID, c.Name, c.Subject, c.TemplateID, segments, c.Status)
	if err != nil {
		return fmt.Errorf("insert campaign: %w", err)
	}
	return nil
}

func (r *CampaignRepo) Update(ctx context.Context, id uuid.UUID, u campaign.UpdateFields) error {
	set := "updated_at = NOW()"
	args := []interface{}{id}
	n := 2

	if u.Name != nil {
		set += fmt.Sprintf(", name = $%d", n)
		args = append(args, *u.Name)
		n++
	}
	if u.Subject != nil {
		set += fmt.Sprintf(", subject = $%d", n)
		args = append(args, *u.Subject)
		n++
	}
	if u.TemplateID != nil {
		set += fmt.Sprintf(", template_id = $%d", n)
		args = append(args, *u.TemplateID)
		n++
	}
	if u.SegmentIDs != nil {
		segments, err := json.Marshal(*u.SegmentIDs)
		if err != nil {
			return fmt.Errorf("marshal segment ids: %w", err)
		}
		set += fmt.Sprintf(", segment_ids = $%d", n)
		args = append(args, segments)
		n++
	}

	res, err := r.db.ExecContext(ctx, `UPDATE campaigns SET `+set+` WHERE id = $1`, args...)
	if err != nil {
		return fmt.Errorf("update campaign: %w", err)
	}
	return requireRow(res, campaign.ErrNotFound)
}

// Transition is the engine's only concurrency control: the status column
// acts as the lock, and the conditional update either wins or loses.
func (r *CampaignRepo) Transition(ctx context.Context, id uuid.UUID, from, to domain.CampaignStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3`,
		to, id, from)
	if err != nil {
		return fmt.Errorf("transition campaign: %w", err)
	}
	return requireRow(res, campaign.ErrInvalidTransition)
}

func (r *CampaignRepo) Schedule(ctx context.Context, id uuid.UUID, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns SET status = $1, scheduled_at = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4`,
		domain.CampaignScheduled, at, id, domain.CampaignDraft)
	if err != nil {
		return fmt.Errorf("schedule campaign: %w", err)
	}
	return requireRow(res, campaign.ErrInvalidTransition)
}

func (r *CampaignRepo) ClearSchedule(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns SET status = $1, scheduled_at = NULL, updated_at = NOW()
		WHERE id = $2 AND status = $3`,
		domain.CampaignDraft, id, domain.CampaignScheduled)
	if err != nil {
		return fmt.Errorf("clear schedule: %w", err)
	}
	return requireRow(res, campaign.ErrInvalidTransition)
}

func (r *CampaignRepo) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns SET status = $1, sent_at = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4`,
		domain.CampaignSent, at, id, domain.CampaignSending)
	if err != nil {
		return fmt.Errorf("mark campaign sent: %w", err)
	}
	return requireRow(res, campaign.ErrInvalidTransition)
}

func (r *CampaignRepo) Due(ctx context.Context, now time.Time) ([]domain.Campaign, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+campaignCols+` FROM campaigns
		WHERE status = $1 AND scheduled_at <= $2
		ORDER BY scheduled_at ASC`,
		domain.CampaignScheduled, now)
	if err != nil {
		return nil, fmt.Errorf("query due campaigns: %w", err)
	}
	defer rows.Close()

	var out []domain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCampaign(row rowScanner) (*domain.Campaign, error) {
	var c domain.Campaign
	var segments []byte
	err := row.Scan(&c.ID, &c.Name, &c.Subject, &c.TemplateID, &segments,
		&c.Status, &c.ScheduledAt, &c.SentAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(segments) > 0 {
		if err := json.Unmarshal(segments, &c.SegmentIDs); err != nil {
			return nil, fmt.Errorf("campaign %s has malformed segment_ids: %w", c.ID, err)
		}
	}
	return &c, nil
}

func requireRow(res sql.Result, missing error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return missing
	}
	return nil
}
