package repositories

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"fileforge/internal/database"
	"fileforge/internal/models"
)

func newMockJobRepo(t *testing.T) (*JobRepository, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { mockDB.Close() })

	db := &database.DB{DB: sqlx.NewDb(mockDB, "sqlmock")}
	return NewJobRepository(db), mock
}

// TestTransitionStatusCompareAndSwap exercises the idempotent-redelivery
// guard: a transition only succeeds when the row is still in the
// expected `from` status, so a broker redelivery of an already-advanced
// job is a no-op rather than a double-apply.
func TestTransitionStatusCompareAndSwap(t *testing.T) {
	repo, mock := newMockJobRepo(t)
	id := uuid.New()

	mock.ExpectExec("UPDATE jobs SET status").
		WithArgs(models.JobRunning, id, models.JobQueued).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.TransitionStatus(context.Background(), id, models.JobQueued, models.JobRunning)
	require.NoError(t, err)
	require.True(t, ok, "expected transition to succeed when row matches the expected from-status")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionStatusStaleNoOp(t *testing.T) {
	repo, mock := newMockJobRepo(t)
	id := uuid.New()

	mock.ExpectExec("UPDATE jobs SET status").
		WithArgs(models.JobRunning, id, models.JobQueued).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.TransitionStatus(context.Background(), id, models.JobQueued, models.JobRunning)
	require.NoError(t, err)
	require.False(t, ok, "expected no-op when the row is no longer in the expected from-status")
}

func TestFailSetsErrorMessage(t *testing.T) {
	repo, mock := newMockJobRepo(t)
	id := uuid.New()

	mock.ExpectExec("UPDATE jobs SET status").
		WithArgs(models.JobFailed, "Virus detected: stream: Eicar-Test-Signature FOUND", id).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Fail(context.Background(), id, "Virus detected: stream: Eicar-Test-Signature FOUND")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
