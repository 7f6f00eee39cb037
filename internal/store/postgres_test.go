package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock, rules: EligibilityRules{
		FollowupMinAge: 5 * 24 * time.Hour,
		MaxFollowups:   2,
	}}
	return s, mock
}

func TestPostgresStore_InsertProspect_Dedup(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO prospects`).
		WithArgs(pgxmock.AnyArg(), "acme.com", "Acme", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	now := time.Now().UTC()
	inserted, err := s.InsertProspect(context.Background(), &model.Prospect{
		Domain:       "acme.com",
		Name:         "Acme",
		DiscoveredAt: &now,
	})
	require.NoError(t, err)
	assert.False(t, inserted, "conflicting domain must not count as inserted")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetProspect_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .+ FROM prospects WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetProspect(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CountProspects_EmptyIsZero(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT count\(\*\) FROM prospects WHERE`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))

	n, err := s.CountProspects(context.Background(), BucketLeads)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateJob_DuplicateActiveType(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO jobs`).
		WithArgs(pgxmock.AnyArg(), "scrape", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "idx_jobs_active_type"})

	_, err := s.CreateJob(context.Background(), model.StageScrape, nil)
	assert.ErrorIs(t, err, ErrJobAlreadyRunning)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateJob_Pending(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO jobs`).
		WithArgs(pgxmock.AnyArg(), "send", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	total := 7
	job, err := s.CreateJob(context.Background(), model.StageSend, &total)
	require.NoError(t, err)
	assert.Equal(t, model.JobPending, job.Status)
	assert.Equal(t, model.StageSend, job.Type)
	require.NotNil(t, job.TargetsTotal)
	assert.Equal(t, 7, *job.TargetsTotal)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RecordJobTarget_TerminalJobFrozen(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	// Status guard matches no rows once the job is terminal.
	mock.ExpectExec(`UPDATE jobs SET`).
		WithArgs("job-1", true).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.RecordJobTarget(context.Background(), "job-1", true)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CompleteJob_RequiresRunning(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE jobs SET status = 'completed'`).
		WithArgs("job-2").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.CompleteJob(context.Background(), "job-2")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FilterEligibleIDs_Empty(t *testing.T) {
	s, _ := newMockPostgresStore(t)

	ids, err := s.FilterEligibleIDs(context.Background(), model.StageSend, nil)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestPostgresStore_EligibleProspectIDs_DiscoverHasNone(t *testing.T) {
	s, _ := newMockPostgresStore(t)

	ids, err := s.EligibleProspectIDs(context.Background(), model.StageDiscover)
	require.NoError(t, err)
	assert.Nil(t, ids)
}

func TestPostgresStore_GetJob(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	created := time.Now().UTC()
	total := 3
	mock.ExpectQuery(`SELECT .+ FROM jobs WHERE id = \$1`).
		WithArgs("job-3").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "job_type", "status", "targets_total", "targets_processed",
			"targets_succeeded", "targets_failed", "error_message", "created_at",
			"started_at", "completed_at",
		}).AddRow("job-3", model.StageDraft, model.JobRunning, &total, 2, 1, 1, (*string)(nil), created, &created, (*time.Time)(nil)))

	job, err := s.GetJob(context.Background(), "job-3")
	require.NoError(t, err)
	assert.Equal(t, model.JobRunning, job.Status)
	assert.Equal(t, 2, job.TargetsProcessed)
	assert.Equal(t, 1, job.TargetsFailed)
	assert.NoError(t, mock.ExpectationsWereMet())
}
