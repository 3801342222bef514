package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/campaign-engine/internal/domain"
	"github.com/ignite/campaign-engine/internal/service/metrics"
)

// MetricsRepo implements metrics.Repository. The daily tables carry two
// partial unique indexes (per-campaign rows and the campaign_id IS NULL
// overall row) so upserts are real upserts for both bucket shapes.
type MetricsRepo struct {
	db *sql.DB
}

// NewMetricsRepo creates a metrics repository.
func NewMetricsRepo(db *sql.DB) *MetricsRepo {
	return &MetricsRepo{db: db}
}

func (r *MetricsRepo) CampaignIDsWithSends(ctx context.Context, from, to time.Time) ([]uuid.UUID, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT campaign_id FROM email_sends
		WHERE created_at >= $1 AND created_at < $2`,
		from, to)
	if err != nil {
		return nil, fmt.Errorf("query campaigns with sends: %w", err)
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

// SendCounts tallies the window's send rows by current status. "Delivered"
// includes opened and clicked, and "opened" includes clicked, because those
// statuses presuppose delivery.
func (r *MetricsRepo) SendCounts(ctx context.Context, campaignID *uuid.UUID, from, to time.Time) (metrics.Counts, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE status <> 'pending'),
			COUNT(*) FILTER (WHERE status IN ('delivered', 'opened', 'clicked')),
			COUNT(*) FILTER (WHERE status IN ('opened', 'clicked')),
			COUNT(*) FILTER (WHERE status = 'clicked'),
			COUNT(*) FILTER (WHERE status = 'bounced')
		FROM email_sends
		WHERE created_at >= $1 AND created_at < $2`
	args := []interface{}{from, to}
	if campaignID != nil {
		query += ` AND campaign_id = $3`
		args = append(args, *campaignID)
	}

	var c metrics.Counts
	err := r.db.QueryRowContext(ctx, query, args...).
		Scan(&c.Sent, &c.Delivered, &c.Opened, &c.Clicked, &c.Bounced)
	if err != nil {
		return metrics.Counts{}, fmt.Errorf("count sends: %w", err)
	}
	return c, nil
}

func (r *MetricsRepo) UnsubscribeCount(ctx context.Context, campaignID *uuid.UUID, from, to time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM email_events
		WHERE event_type = $1 AND occurred_at >= $2 AND occurred_at < $3`
	args := []interface{}{domain.EventUnsubscribe, from, to}
	if campaignID != nil {
		query += ` AND campaign_id = $4`
		args = append(args, *campaignID)
	}

	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count unsubscribes: %w", err)
	}
	return n, nil
}

func (r *MetricsRepo) UpsertEmailMetrics(ctx context.Context, m *domain.DailyEmailMetrics) error {
	var err error
	if m.CampaignID != nil {
		_, err = r.db.ExecContext(ctx, `
			INSERT INTO daily_email_metrics
				(metric_date, campaign_id, sent_count, delivered_count, opened_count, clicked_count, bounced_count, unsubscribed_count)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (metric_date, campaign_id) WHERE campaign_id IS NOT NULL DO UPDATE SET
				sent_count = EXCLUDED.sent_count,
				delivered_count = EXCLUDED.delivered_count,
				opened_count = EXCLUDED.opened_count,
				clicked_count = EXCLUDED.clicked_count,
				bounced_count = EXCLUDED.bounced_count,
				unsubscribed_count = EXCLUDED.unsubscribed_count`,
			m.Date, *m.CampaignID, m.Sent, m.Delivered, m.Opened, m.Clicked, m.Bounced, m.Unsubscribed)
	} else {
		_, err = r.db.ExecContext(ctx, `
			INSERT INTO daily_email_metrics
				(metric_date, campaign_id, sent_count, delivered_count, opened_count, clicked_count, bounced_count, unsubscribed_count)
			VALUES ($1, NULL, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (metric_date) WHERE campaign_id IS NULL DO UPDATE SET
				sent_count = EXCLUDED.sent_count,
				delivered_count = EXCLUDED.delivered_count,
				opened_count = EXCLUDED.opened_count,
				clicked_count = EXCLUDED.clicked_count,
				bounced_count = EXCLUDED.bounced_count,
				unsubscribed_count = EXCLUDED.unsubscribed_count`,
			m.Date, m.Sent, m.Delivered, m.Opened, m.Clicked, m.Bounced, m.Unsubscribed)
	}
	if err != nil {
		return fmt.Errorf("upsert daily email metrics: %w", err)
	}
	return nil
}

func (r *MetricsRepo) SubscriberSnapshot(ctx context.Context, from, to time.Time) (int, int, int, error) {
	var newSubs, unsubscribed, totalActive int

	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM subscribers
		WHERE subscribed_at >= $1 AND subscribed_at < $2`,
		from, to).Scan(&newSubs)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("count new subscribers: %w", err)
	}

	err = r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM email_events
		WHERE event_type = $1 AND occurred_at >= $2 AND occurred_at < $3`,
		domain.EventUnsubscribe, from, to).Scan(&unsubscribed)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("count unsubscribes: %w", err)
	}

	// Active total as of the window's end, not "right now", so re-running an
	// old day does not pick up later signups.
	err = r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM subscribers
		WHERE status = $1 AND subscribed_at < $2`,
		domain.SubscriberActive, to).Scan(&totalActive)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("count active subscribers: %w", err)
	}

	return newSubs, unsubscribed, totalActive, nil
}

func (r *MetricsRepo) UpsertSubscriberMetrics(ctx context.Context, m *domain.DailySubscriberMetrics) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO daily_subscriber_metrics
			(metric_date, new_subscribers, unsubscribed, net_growth, total_active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (metric_date) DO UPDATE SET
			new_subscribers = EXCLUDED.new_subscribers,
			unsubscribed = EXCLUDED.unsubscribed,
			net_growth = EXCLUDED.net_growth,
			total_active = EXCLUDED.total_active`,
		m.Date, m.NewSubscribers, m.Unsubscribed, m.NetGrowth, m.TotalActive)
	if err != nil {
		return fmt.Errorf("upsert daily subscriber metrics: %w", err)
	}
	return nil
}

var _ metrics.Repository = (*MetricsRepo)(nil)
