package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/campaign-engine/internal/domain"
)

// EventRepo appends to the email event log. The log is the source of truth
// for unsubscribe and attrition counts; rows are never updated or deleted.
type EventRepo struct {
	db *sql.DB
}

// NewEventRepo creates an event repository.
func NewEventRepo(db *sql.DB) *EventRepo {
	return &EventRepo{db: db}
}

func (r *EventRepo) Insert(ctx context.Context, e *domain.EmailEvent) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO email_events (id, event_type, campaign_id, subscriber_id, email_send_id, occurred_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())`,
		e.ID, e.Type, e.CampaignID, e.SubscriberID, e.EmailSendID, e.OccurredAt)
	if err != nil {
		return fmt.Errorf("insert email event: %w", err)
	}
	return nil
}
