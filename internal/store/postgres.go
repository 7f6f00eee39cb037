package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-cli/internal/db"
	"github.com/sells-group/outreach-cli/internal/model"
)

// PostgresStore implements Store using pgx.
type PostgresStore struct {
	pool  db.Pool
	rules EligibilityRules
}

// NewPostgres creates a PostgresStore over an existing pool.
func NewPostgres(pool db.Pool, rules EligibilityRules) *PostgresStore {
	return &PostgresStore{pool: pool, rules: rules}
}

const pgMigration = `
CREATE TABLE IF NOT EXISTS prospects (
	id                  UUID PRIMARY KEY,
	domain              TEXT NOT NULL UNIQUE,
	name                TEXT NOT NULL DEFAULT '',
	discovered_at       TIMESTAMPTZ,
	rejected            BOOLEAN NOT NULL DEFAULT FALSE,
	reject_reason       TEXT NOT NULL DEFAULT '',
	scrape_status       TEXT NOT NULL DEFAULT 'not_started',
	site_summary        TEXT NOT NULL DEFAULT '',
	contact_email       TEXT,
	email_source        TEXT NOT NULL DEFAULT '',
	email_confidence    DOUBLE PRECISION,
	verification_status TEXT NOT NULL DEFAULT 'unverified',
	draft_subject       TEXT,
	draft_body          TEXT,
	outreach_status     TEXT NOT NULL DEFAULT 'pending',
	last_sent           TIMESTAMPTZ,
	followups_sent      INTEGER NOT NULL DEFAULT 0,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS jobs (
	id                UUID PRIMARY KEY,
	job_type          TEXT NOT NULL,
	status            TEXT NOT NULL DEFAULT 'pending',
	targets_total     INTEGER,
	targets_processed INTEGER NOT NULL DEFAULT 0,
	targets_succeeded INTEGER NOT NULL DEFAULT 0,
	targets_failed    INTEGER NOT NULL DEFAULT 0,
	error_message     TEXT,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	started_at        TIMESTAMPTZ,
	completed_at      TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_prospects_scrape_status ON prospects(scrape_status);
CREATE INDEX IF NOT EXISTS idx_prospects_verification ON prospects(verification_status);
CREATE INDEX IF NOT EXISTS idx_prospects_outreach ON prospects(outreach_status);
CREATE INDEX IF NOT EXISTS idx_jobs_type_created ON jobs(job_type, created_at DESC);

-- At most one non-terminal job per type, enforced across processes.
CREATE UNIQUE INDEX IF NOT EXISTS idx_jobs_active_type ON jobs(job_type)
	WHERE status IN ('pending', 'running');
`

// Migrate applies the schema. Safe to run repeatedly.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, pgMigration); err != nil {
		return eris.Wrap(err, "postgres: migrate")
	}
	return nil
}

// Close releases the underlying pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// -- prospects --

// InsertProspect adds a discovered prospect, deduplicating by domain.
func (s *PostgresStore) InsertProspect(ctx context.Context, p *model.Prospect) (bool, error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO prospects (id, domain, name, discovered_at, scrape_status, verification_status, outreach_status)
		 VALUES ($1, $2, $3, $4, 'not_started', 'unverified', 'pending')
		 ON CONFLICT (domain) DO NOTHING`,
		p.ID, p.Domain, p.Name, p.DiscoveredAt,
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: insert prospect %s", p.Domain)
	}
	return tag.RowsAffected() > 0, nil
}

const prospectCols = `id, domain, name, discovered_at, rejected, reject_reason,
	scrape_status, site_summary, contact_email, email_source, email_confidence,
	verification_status, draft_subject, draft_body, outreach_status, last_sent,
	followups_sent, created_at, updated_at`

func scanProspect(row pgx.Row) (*model.Prospect, error) {
	var p model.Prospect
	err := row.Scan(
		&p.ID, &p.Domain, &p.Name, &p.DiscoveredAt, &p.Rejected, &p.RejectReason,
		&p.ScrapeStatus, &p.SiteSummary, &p.ContactEmail, &p.EmailSource, &p.EmailConfidence,
		&p.VerificationStatus, &p.DraftSubject, &p.DraftBody, &p.OutreachStatus, &p.LastSent,
		&p.FollowupsSent, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetProspect fetches one prospect by id.
func (s *PostgresStore) GetProspect(ctx context.Context, id string) (*model.Prospect, error) {
	p, err := scanProspect(s.pool.QueryRow(ctx,
		`SELECT `+prospectCols+` FROM prospects WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "postgres: get prospect %s", id)
	}
	return p, nil
}

// ListProspects returns prospects, optionally restricted to one bucket.
func (s *PostgresStore) ListProspects(ctx context.Context, f ProspectFilter) ([]model.Prospect, error) {
	query := `SELECT ` + prospectCols + ` FROM prospects`
	var args []any
	if f.Bucket != "" {
		pred, predArgs, err := bucketPredicate(f.Bucket, s.rules, pgPlaceholder, time.Now().UTC())
		if err != nil {
			return nil, err
		}
		query += ` WHERE ` + pred
		args = predArgs
	}
	query += ` ORDER BY created_at DESC`
	if f.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, f.Limit)
	}
	if f.Offset > 0 {
		query += fmt.Sprintf(` OFFSET %d`, f.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list prospects")
	}
	defer rows.Close()

	var out []model.Prospect
	for rows.Next() {
		p, err := scanProspect(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan prospect")
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// CountProspects counts one snapshot bucket. Zero rows is a valid result.
func (s *PostgresStore) CountProspects(ctx context.Context, b Bucket) (int, error) {
	pred, args, err := bucketPredicate(b, s.rules, pgPlaceholder, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	var n int
	err = s.pool.QueryRow(ctx, `SELECT count(*) FROM prospects WHERE `+pred, args...).Scan(&n)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: count %s", b)
	}
	return n, nil
}

// EligibleProspectIDs enumerates ids matching the stage predicate now.
func (s *PostgresStore) EligibleProspectIDs(ctx context.Context, stage model.Stage) ([]string, error) {
	if stage == model.StageDiscover {
		return nil, nil
	}
	pred, args, err := eligibilityPredicate(stage, s.rules, pgPlaceholder, 1, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id FROM prospects WHERE `+pred+` ORDER BY created_at`, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: eligible ids for %s", stage)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan id")
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// FilterEligibleIDs keeps only the ids that still match the stage predicate.
func (s *PostgresStore) FilterEligibleIDs(ctx context.Context, stage model.Stage, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if stage == model.StageDiscover {
		return nil, eris.New("postgres: discover does not accept a target selector")
	}
	pred, args, err := eligibilityPredicate(stage, s.rules, pgPlaceholder, 2, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	args = append([]any{ids}, args...)
	rows, err := s.pool.Query(ctx,
		`SELECT id FROM prospects WHERE id = ANY($1) AND (`+pred+`) ORDER BY created_at`, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: filter eligible ids for %s", stage)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan id")
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// ProspectDomainExists reports whether a domain is already tracked.
func (s *PostgresStore) ProspectDomainExists(ctx context.Context, domain string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM prospects WHERE domain = $1)`, domain).Scan(&exists)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: domain exists %s", domain)
	}
	return exists, nil
}

func (s *PostgresStore) exec(ctx context.Context, op, query string, args ...any) error {
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return eris.Wrapf(err, "postgres: %s", op)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkScraped records scrape output. Owned fields only.
func (s *PostgresStore) MarkScraped(ctx context.Context, id, siteSummary string) error {
	return s.exec(ctx, "mark scraped",
		`UPDATE prospects SET scrape_status = 'scraped', site_summary = $2, updated_at = now() WHERE id = $1`,
		id, siteSummary)
}

// SetContactEmail records a found email with its source and confidence.
func (s *PostgresStore) SetContactEmail(ctx context.Context, id, email, source string, confidence float64) error {
	return s.exec(ctx, "set contact email",
		`UPDATE prospects SET contact_email = $2, email_source = $3, email_confidence = $4, updated_at = now() WHERE id = $1`,
		id, email, source, confidence)
}

// SetVerification records the verification outcome.
func (s *PostgresStore) SetVerification(ctx context.Context, id string, status model.VerificationStatus) error {
	return s.exec(ctx, "set verification",
		`UPDATE prospects SET verification_status = $2, updated_at = now() WHERE id = $1`,
		id, string(status))
}

// SetDraft records a composed draft.
func (s *PostgresStore) SetDraft(ctx context.Context, id, subject, body string) error {
	return s.exec(ctx, "set draft",
		`UPDATE prospects SET draft_subject = $2, draft_body = $3, updated_at = now() WHERE id = $1`,
		id, subject, body)
}

// MarkSent records a successful send.
func (s *PostgresStore) MarkSent(ctx context.Context, id string, at time.Time) error {
	return s.exec(ctx, "mark sent",
		`UPDATE prospects SET outreach_status = 'sent', last_sent = $2, updated_at = now() WHERE id = $1`,
		id, at)
}

// RecordFollowup bumps the followup counter and refreshes last_sent.
func (s *PostgresStore) RecordFollowup(ctx context.Context, id string, at time.Time) error {
	return s.exec(ctx, "record followup",
		`UPDATE prospects SET followups_sent = followups_sent + 1, last_sent = $2, updated_at = now() WHERE id = $1`,
		id, at)
}

// RejectProspect moves a prospect into the terminal rejected state. The row
// is retained for dedup.
func (s *PostgresStore) RejectProspect(ctx context.Context, id, reason string) error {
	return s.exec(ctx, "reject prospect",
		`UPDATE prospects SET rejected = TRUE, reject_reason = $2, updated_at = now() WHERE id = $1`,
		id, reason)
}

// -- jobs --

const jobCols = `id, job_type, status, targets_total, targets_processed,
	targets_succeeded, targets_failed, error_message, created_at, started_at, completed_at`

func scanJob(row pgx.Row) (*model.Job, error) {
	var j model.Job
	var errMsg *string
	err := row.Scan(
		&j.ID, &j.Type, &j.Status, &j.TargetsTotal, &j.TargetsProcessed,
		&j.TargetsSucceeded, &j.TargetsFailed, &errMsg, &j.CreatedAt, &j.StartedAt, &j.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	if errMsg != nil {
		j.ErrorMessage = *errMsg
	}
	return &j, nil
}

// CreateJob inserts a pending job. The partial unique index on active job
// types turns a duplicate dispatch into ErrJobAlreadyRunning.
func (s *PostgresStore) CreateJob(ctx context.Context, stage model.Stage, targetsTotal *int) (*model.Job, error) {
	id := uuid.New().String()
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO jobs (id, job_type, status, targets_total, created_at) VALUES ($1, $2, 'pending', $3, $4)`,
		id, string(stage), targetsTotal, now,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrJobAlreadyRunning
		}
		return nil, eris.Wrapf(err, "postgres: create %s job", stage)
	}
	return &model.Job{
		ID:           id,
		Type:         stage,
		Status:       model.JobPending,
		TargetsTotal: targetsTotal,
		CreatedAt:    now,
	}, nil
}

// StartJob flips pending → running.
func (s *PostgresStore) StartJob(ctx context.Context, id string) error {
	return s.exec(ctx, "start job",
		`UPDATE jobs SET status = 'running', started_at = now() WHERE id = $1 AND status = 'pending'`,
		id)
}

// RecordJobTarget increments progress counters in a single statement so
// concurrent per-target goroutines stay monotonically consistent.
func (s *PostgresStore) RecordJobTarget(ctx context.Context, id string, succeeded bool) error {
	return s.exec(ctx, "record job target",
		`UPDATE jobs SET
			targets_processed = targets_processed + 1,
			targets_succeeded = targets_succeeded + CASE WHEN $2 THEN 1 ELSE 0 END,
			targets_failed    = targets_failed + CASE WHEN $2 THEN 0 ELSE 1 END
		 WHERE id = $1 AND status = 'running'`,
		id, succeeded)
}

// CompleteJob flips running → completed. Terminal rows never change again.
func (s *PostgresStore) CompleteJob(ctx context.Context, id string) error {
	return s.exec(ctx, "complete job",
		`UPDATE jobs SET status = 'completed', completed_at = now() WHERE id = $1 AND status = 'running'`,
		id)
}

// FailJob flips running → failed with a human-readable message.
func (s *PostgresStore) FailJob(ctx context.Context, id, errMsg string) error {
	return s.exec(ctx, "fail job",
		`UPDATE jobs SET status = 'failed', error_message = $2, completed_at = now()
		 WHERE id = $1 AND status IN ('pending', 'running')`,
		id, errMsg)
}

// GetJob fetches one job by id.
func (s *PostgresStore) GetJob(ctx context.Context, id string) (*model.Job, error) {
	j, err := scanJob(s.pool.QueryRow(ctx, `SELECT `+jobCols+` FROM jobs WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "postgres: get job %s", id)
	}
	return j, nil
}

// ListJobs returns jobs, most recent first.
func (s *PostgresStore) ListJobs(ctx context.Context, f JobFilter) ([]model.Job, error) {
	query := `SELECT ` + jobCols + ` FROM jobs`
	var conds []string
	var args []any
	if f.Type != "" {
		args = append(args, string(f.Type))
		conds = append(conds, fmt.Sprintf(`job_type = $%d`, len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		conds = append(conds, fmt.Sprintf(`status = $%d`, len(args)))
	}
	for i, c := range conds {
		if i == 0 {
			query += ` WHERE ` + c
		} else {
			query += ` AND ` + c
		}
	}
	query += ` ORDER BY created_at DESC`
	if f.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, f.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list jobs")
	}
	defer rows.Close()

	var out []model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan job")
		}
		out = append(out, *j)
	}
	return out, rows.Err()
}
