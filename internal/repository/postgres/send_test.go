package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"github.com/ignite/campaign-engine/internal/domain"
	"github.com/ignite/campaign-engine/internal/repository/postgres"
)

func newSendMock(t *testing.T) (sqlmock.Sqlmock, *postgres.SendRepo, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	return mock, postgres.NewSendRepo(db), func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		db.Close()
	}
}

func TestCreateInsertsPendingRow(t *testing.T) {
	mock, repo, done := newSendMock(t)
	defer done()

	campaignID, subscriberID := uuid.New(), uuid.New()
	mock.ExpectExec("INSERT INTO email_sends").
		WithArgs(sqlmock.AnyArg(), campaignID, subscriberID, domain.SendPending, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	s, err := repo.Create(context.Background(), campaignID, subscriberID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if s.Status != domain.SendPending || s.ID == uuid.Nil {
		t.Fatalf("row = %+v", s)
	}
}

func TestMarkSentBackfillsInOneTransaction(t *testing.T) {
	mock, repo, done := newSendMock(t)
	defer done()

	ids := []uuid.UUID{uuid.New(), uuid.New()}
	at := time.Now().UTC()

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("UPDATE email_sends SET status")
	prep.ExpectExec().
		WithArgs(domain.SendSent, "msg-a", at, ids[0], domain.SendPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().
		WithArgs(domain.SendSent, "msg-b", at, ids[1], domain.SendPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.MarkSent(context.Background(), ids, []string{"msg-a", "msg-b"}, at); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
}

func TestMarkSentRejectsLengthMismatch(t *testing.T) {
	_, repo, done := newSendMock(t)
	defer done()

	err := repo.MarkSent(context.Background(), []uuid.UUID{uuid.New()}, []string{"a", "b"}, time.Now())
	if err == nil {
		t.Fatal("expected length mismatch error")
	}
}

func TestAdvanceGuardsAgainstRegression(t *testing.T) {
	mock, repo, done := newSendMock(t)
	defer done()

	id := uuid.New()
	at := time.Now().UTC()

	// The ANY clause carries only statuses ranked below the target, so the
	// update matches nothing if the row already moved past it.
	mock.ExpectExec(`UPDATE email_sends SET status = \$2, opened_at = \$3 WHERE id = \$1 AND status = ANY\(\$4\)`).
		WithArgs(id, domain.SendOpened, at, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	// Zero rows is a drop, not an error.
	if err := repo.Advance(context.Background(), id, domain.SendOpened, at); err != nil {
		t.Fatalf("advance: %v", err)
	}
}

func TestAdvanceByProviderIDWithoutTimestampColumn(t *testing.T) {
	mock, repo, done := newSendMock(t)
	defer done()

	at := time.Now().UTC()
	mock.ExpectExec(`UPDATE email_sends SET status = \$2 WHERE provider_message_id = \$1 AND status = ANY\(\$3\)`).
		WithArgs("msg-x", domain.SendBounced, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.AdvanceByProviderID(context.Background(), "msg-x", domain.SendBounced, at); err != nil {
		t.Fatalf("advance by provider id: %v", err)
	}
}
