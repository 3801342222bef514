package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ignite/campaign-engine/internal/domain"
	"github.com/ignite/campaign-engine/internal/pkg/logger"
)

// ErrSendNotFound is returned for unknown email send ids.
var ErrSendNotFound = errors.New("email send not found")

const sendCols = `id, campaign_id, subscriber_id, provider_message_id, status, sent_at, delivered_at, opened_at, clicked_at, created_at`

// SendRepo persists per-recipient EmailSend rows. Rows are append-and-advance:
// created pending, advanced forward by tracking and webhook traffic, never
// regressed and never deleted.
type SendRepo struct {
	db *sql.DB
}

// NewSendRepo creates an email send repository.
func NewSendRepo(db *sql.DB) *SendRepo {
	return &SendRepo{db: db}
}

// Create inserts a pending row before the provider call so a tracking id
// exists at render time.
func (r *SendRepo) Create(ctx context.Context, campaignID, subscriberID uuid.UUID) (*domain.EmailSend, error) {
	s := &domain.EmailSend{
		ID:           uuid.New(),
		CampaignID:   campaignID,
		SubscriberID: subscriberID,
		Status:       domain.SendPending,
		CreatedAt:    time.Now().UTC(),
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO email_sends (id, campaign_id, subscriber_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		s.ID, s.CampaignID, s.SubscriberID, s.Status, s.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert email send: %w", err)
	}
	return s, nil
}

// MarkSent backfills provider message ids positionally and flips the rows
// from pending to sent in one transaction.
func (r *SendRepo) MarkSent(ctx context.Context, ids []uuid.UUID, providerIDs []string, at time.Time) error {
	if len(ids) != len(providerIDs) {
		return fmt.Errorf("mark sent: %d ids for %d provider ids", len(ids), len(providerIDs))
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin mark sent: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		UPDATE email_sends SET status = $1, provider_message_id = $2, sent_at = $3
		WHERE id = $4 AND status = $5`)
	if err != nil {
		return fmt.Errorf("prepare mark sent: %w", err)
	}
	defer stmt.Close()

	for i, id := range ids {
		if _, err := stmt.ExecContext(ctx, domain.SendSent, providerIDs[i], at, id, domain.SendPending); err != nil {
			return fmt.Errorf("mark send %s sent: %w", id, err)
		}
	}
	return tx.Commit()
}

// Get returns one send row. Returns ErrSendNotFound for unknown ids.
func (r *SendRepo) Get(ctx context.Context, id uuid.UUID) (*domain.EmailSend, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sendCols+` FROM email_sends WHERE id = $1`, id)
	return scanSend(row)
}

// GetByProviderID looks a send up by the provider's message id, for webhook
// correlation.
func (r *SendRepo) GetByProviderID(ctx context.Context, providerID string) (*domain.EmailSend, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sendCols+` FROM email_sends WHERE provider_message_id = $1`, providerID)
	return scanSend(row)
}

// Advance moves a send to a later status. Regressions are silently dropped:
// the conditional update only matches rows whose current status ranks below
// the target, so a late "delivered" after a click changes nothing.
func (r *SendRepo) Advance(ctx context.Context, id uuid.UUID, status domain.SendStatus, at time.Time) error {
	query, args := advanceQuery(`id = $1`, id, status, at)
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("advance send %s to %s: %w", id, status, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		logger.Debug("send status advance dropped", "email_send_id", id, "status", string(status))
	}
	return nil
}

// AdvanceByProviderID is Advance keyed by the provider message id.
func (r *SendRepo) AdvanceByProviderID(ctx context.Context, providerID string, status domain.SendStatus, at time.Time) error {
	query, args := advanceQuery(`provider_message_id = $1`, providerID, status, at)
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("advance send %s to %s: %w", providerID, status, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		logger.Debug("send status advance dropped", "provider_message_id", providerID, "status", string(status))
	}
	return nil
}

func advanceQuery(where string, key interface{}, status domain.SendStatus, at time.Time) (string, []interface{}) {
	set := `status = $2`
	args := []interface{}{key, status}
	n := 3

	if col := timestampColumn(status); col != "" {
		set += fmt.Sprintf(`, %s = $%d`, col, n)
		args = append(args, at)
		n++
	}

	query := fmt.Sprintf(`UPDATE email_sends SET %s WHERE %s AND status = ANY($%d)`, set, where, n)
	args = append(args, pq.Array(priorStatuses(status)))
	return query, args
}

// priorStatuses lists every status strictly below the target rank; the
// ANY clause is the monotonic-progression guard.
func priorStatuses(target domain.SendStatus) []string {
	all := []domain.SendStatus{
		domain.SendPending, domain.SendSent, domain.SendDelivered,
		domain.SendOpened, domain.SendClicked, domain.SendBounced, domain.SendComplained,
	}
	var out []string
	for _, s := range all {
		if domain.StatusRank(s) < domain.StatusRank(target) {
			out = append(out, string(s))
		}
	}
	return out
}

func timestampColumn(status domain.SendStatus) string {
	switch status {
	case domain.SendDelivered:
		return "delivered_at"
	case domain.SendOpened:
		return "opened_at"
	case domain.SendClicked:
		return "clicked_at"
	}
	return ""
}

func scanSend(row rowScanner) (*domain.EmailSend, error) {
	var s domain.EmailSend
	err := row.Scan(&s.ID, &s.CampaignID, &s.SubscriberID, &s.ProviderMessageID,
		&s.Status, &s.SentAt, &s.DeliveredAt, &s.OpenedAt, &s.ClickedAt, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrSendNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}
