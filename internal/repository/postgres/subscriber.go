package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ignite/campaign-engine/internal/domain"
)

// SubscriberRepo reads segment membership and subscriber rows, and flips
// subscriber statuses on unsubscribe/bounce.
type SubscriberRepo struct {
	db *sql.DB
}

// NewSubscriberRepo creates a subscriber repository.
func NewSubscriberRepo(db *sql.DB) *SubscriberRepo {
	return &SubscriberRepo{db: db}
}

// SegmentMemberIDs returns every membership edge for the given segments.
// Duplicates across segments are returned as-is; the resolver deduplicates.
func (r *SubscriberRepo) SegmentMemberIDs(ctx context.Context, segmentIDs []uuid.UUID) ([]uuid.UUID, error) {
	ids := make([]string, len(segmentIDs))
	for i, id := range segmentIDs {
		ids[i] = id.String()
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT subscriber_id FROM segment_subscribers
		WHERE segment_id = ANY($1)
		ORDER BY subscriber_id`,
		pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("query segment members: %w", err)
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// ActiveSubscribers returns only the active rows among ids.
func (r *SubscriberRepo) ActiveSubscribers(ctx context.Context, ids []uuid.UUID) ([]domain.Subscriber, error) {
	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = id.String()
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, email, first_name, last_name, status, subscribed_at, created_at, updated_at
		FROM subscribers
		WHERE id = ANY($1) AND status = $2`,
		pq.Array(strIDs), domain.SubscriberActive)
	if err != nil {
		return nil, fmt.Errorf("query subscribers: %w", err)
	}
	defer rows.Close()

	var out []domain.Subscriber
	for rows.Next() {
		var s domain.Subscriber
		if err := rows.Scan(&s.ID, &s.Email, &s.FirstName, &s.LastName, &s.Status,
			&s.SubscribedAt, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// SetStatus flips a subscriber's eligibility status.
func (r *SubscriberRepo) SetStatus(ctx context.Context, id uuid.UUID, status domain.SubscriberStatus) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE subscribers SET status = $1, updated_at = NOW() WHERE id = $2`,
		status, id)
	if err != nil {
		return fmt.Errorf("set subscriber status: %w", err)
	}
	return nil
}
