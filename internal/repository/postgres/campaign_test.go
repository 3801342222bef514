package postgres_test

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"github.com/ignite/campaign-engine/internal/domain"
	"github.com/ignite/campaign-engine/internal/repository/postgres"
	"github.com/ignite/campaign-engine/internal/service/campaign"
)

func newMock(t *testing.T) (sqlmock.Sqlmock, *postgres.CampaignRepo, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	return mock, postgres.NewCampaignRepo(db), func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		db.Close()
	}
}

func TestTransitionWinsWithMatchingStatus(t *testing.T) {
	mock, repo, done := newMock(t)
	defer done()

	id := uuid.New()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE campaigns SET status = $1, updated_at = NOW()`)).
		WithArgs(domain.CampaignSending, id, domain.CampaignScheduled).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Transition(context.Background(), id, domain.CampaignScheduled, domain.CampaignSending); err != nil {
		t.Fatalf("transition: %v", err)
	}
}

func TestTransitionLosesWhenRowMoved(t *testing.T) {
	mock, repo, done := newMock(t)
	defer done()

	id := uuid.New()
	mock.ExpectExec("UPDATE campaigns SET status").
		WithArgs(domain.CampaignSending, id, domain.CampaignScheduled).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Transition(context.Background(), id, domain.CampaignScheduled, domain.CampaignSending)
	if !errors.Is(err, campaign.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition on zero rows, got %v", err)
	}
}

func TestGetUnmarshalsSegmentIDs(t *testing.T) {
	mock, repo, done := newMock(t)
	defer done()

	id := uuid.New()
	segs := []uuid.UUID{uuid.New(), uuid.New()}
	segJSON, _ := json.Marshal(segs)
	now := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM campaigns WHERE id").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "subject", "template_id", "segment_ids", "status",
			"scheduled_at", "sent_at", "created_at", "updated_at",
		}).AddRow(id, "promo", "hi", nil, segJSON, "draft", nil, nil, now, now))

	c, err := repo.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(c.SegmentIDs) != 2 || c.SegmentIDs[0] != segs[0] {
		t.Fatalf("segment ids = %v, want %v", c.SegmentIDs, segs)
	}
}

func TestGetRejectsMalformedSegmentIDs(t *testing.T) {
	mock, repo, done := newMock(t)
	defer done()

	id := uuid.New()
	now := time.Now()
	mock.ExpectQuery("SELECT (.+) FROM campaigns WHERE id").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "subject", "template_id", "segment_ids", "status",
			"scheduled_at", "sent_at", "created_at", "updated_at",
		}).AddRow(id, "promo", "hi", nil, []byte(`{not json`), "draft", nil, nil, now, now))

	if _, err := repo.Get(context.Background(), id); err == nil {
		t.Fatal("malformed segment_ids must be a hard error, not an empty list")
	}
}

func TestGetNotFound(t *testing.T) {
	mock, repo, done := newMock(t)
	defer done()

	id := uuid.New()
	mock.ExpectQuery("SELECT (.+) FROM campaigns WHERE id").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "subject", "template_id", "segment_ids", "status",
			"scheduled_at", "sent_at", "created_at", "updated_at",
		}))

	if _, err := repo.Get(context.Background(), id); !errors.Is(err, campaign.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDueQueriesScheduledOnly(t *testing.T) {
	mock, repo, done := newMock(t)
	defer done()

	now := time.Now().UTC()
	id := uuid.New()
	segJSON, _ := json.Marshal([]uuid.UUID{uuid.New()})
	at := now.Add(-time.Minute)

	mock.ExpectQuery("SELECT (.+) FROM campaigns\\s+WHERE status = \\$1 AND scheduled_at <= \\$2").
		WithArgs(domain.CampaignScheduled, now).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "subject", "template_id", "segment_ids", "status",
			"scheduled_at", "sent_at", "created_at", "updated_at",
		}).AddRow(id, "promo", "hi", nil, segJSON, "scheduled", at, nil, now, now))

	due, err := repo.Due(context.Background(), now)
	if err != nil {
		t.Fatalf("due: %v", err)
	}
	if len(due) != 1 || due[0].ID != id {
		t.Fatalf("due = %+v", due)
	}
}
