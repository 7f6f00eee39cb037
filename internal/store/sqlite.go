package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/outreach-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite, for local
// single-user use.
type SQLiteStore struct {
	db    *sql.DB
	rules EligibilityRules
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string, rules EligibilityRules) (*SQLiteStore, error) {
	sdb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := sdb.Exec(pragma); err != nil {
			sdb.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: sdb, rules: rules}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS prospects (
	id                  TEXT PRIMARY KEY,
	domain              TEXT NOT NULL UNIQUE,
	name                TEXT NOT NULL DEFAULT '',
	discovered_at       DATETIME,
	rejected            INTEGER NOT NULL DEFAULT 0,
	reject_reason       TEXT NOT NULL DEFAULT '',
	scrape_status       TEXT NOT NULL DEFAULT 'not_started',
	site_summary        TEXT NOT NULL DEFAULT '',
	contact_email       TEXT,
	email_source        TEXT NOT NULL DEFAULT '',
	email_confidence    REAL,
	verification_status TEXT NOT NULL DEFAULT 'unverified',
	draft_subject       TEXT,
	draft_body          TEXT,
	outreach_status     TEXT NOT NULL DEFAULT 'pending',
	last_sent           DATETIME,
	followups_sent      INTEGER NOT NULL DEFAULT 0,
	created_at          DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at          DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS jobs (
	id                TEXT PRIMARY KEY,
	job_type          TEXT NOT NULL,
	status            TEXT NOT NULL DEFAULT 'pending',
	targets_total     INTEGER,
	targets_processed INTEGER NOT NULL DEFAULT 0,
	targets_succeeded INTEGER NOT NULL DEFAULT 0,
	targets_failed    INTEGER NOT NULL DEFAULT 0,
	error_message     TEXT,
	created_at        DATETIME NOT NULL DEFAULT (datetime('now')),
	started_at        DATETIME,
	completed_at      DATETIME
);

CREATE INDEX IF NOT EXISTS idx_prospects_scrape_status ON prospects(scrape_status);
CREATE INDEX IF NOT EXISTS idx_jobs_type_created ON jobs(job_type, created_at);
CREATE UNIQUE INDEX IF NOT EXISTS idx_jobs_active_type ON jobs(job_type)
	WHERE status IN ('pending', 'running');
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func checkRowsAffected(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "sqlite: %s: rows affected", op)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// -- prospects --

func (s *SQLiteStore) InsertProspect(ctx context.Context, p *model.Prospect) (bool, error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO prospects (id, domain, name, discovered_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (domain) DO NOTHING`,
		p.ID, p.Domain, p.Name, p.DiscoveredAt,
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: insert prospect %s", p.Domain)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: insert prospect: rows affected")
	}
	return n > 0, nil
}

type sqlRow interface {
	Scan(dest ...any) error
}

func scanProspectSQL(row sqlRow) (*model.Prospect, error) {
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

func (s *SQLiteStore) GetProspect(ctx context.Context, id string) (*model.Prospect, error) {
	p, err := scanProspectSQL(s.db.QueryRowContext(ctx,
		`SELECT `+prospectCols+` FROM prospects WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "sqlite: get prospect %s", id)
	}
	return p, nil
}

func (s *SQLiteStore) ListProspects(ctx context.Context, f ProspectFilter) ([]model.Prospect, error) {
	query := `SELECT ` + prospectCols + ` FROM prospects`
	var args []any
	if f.Bucket != "" {
		pred, predArgs, err := bucketPredicate(f.Bucket, s.rules, sqlitePlaceholder, time.Now().UTC())
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

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list prospects")
	}
	defer rows.Close()

	var out []model.Prospect
	for rows.Next() {
		p, err := scanProspectSQL(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan prospect")
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) CountProspects(ctx context.Context, b Bucket) (int, error) {
	pred, args, err := bucketPredicate(b, s.rules, sqlitePlaceholder, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	var n int
	err = s.db.QueryRowContext(ctx, `SELECT count(*) FROM prospects WHERE `+pred, args...).Scan(&n)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: count %s", b)
	}
	return n, nil
}

func (s *SQLiteStore) EligibleProspectIDs(ctx context.Context, stage model.Stage) ([]string, error) {
	if stage == model.StageDiscover {
		return nil, nil
	}
	pred, args, err := eligibilityPredicate(stage, s.rules, sqlitePlaceholder, 1, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM prospects WHERE `+pred+` ORDER BY created_at`, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: eligible ids for %s", stage)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan id")
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteStore) FilterEligibleIDs(ctx context.Context, stage model.Stage, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if stage == model.StageDiscover {
		return nil, eris.New("sqlite: discover does not accept a target selector")
	}
	pred, predArgs, err := eligibilityPredicate(stage, s.rules, sqlitePlaceholder, 1, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	args := make([]any, 0, len(ids)+len(predArgs))
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, predArgs...)
	in := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")

	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM prospects WHERE id IN (`+in+`) AND (`+pred+`) ORDER BY created_at`, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: filter eligible ids for %s", stage)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan id")
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ProspectDomainExists(ctx context.Context, domain string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM prospects WHERE domain = ?`, domain).Scan(&n)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: domain exists %s", domain)
	}
	return n > 0, nil
}

func (s *SQLiteStore) update(ctx context.Context, op, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return eris.Wrapf(err, "sqlite: %s", op)
	}
	return checkRowsAffected(res, op)
}

func (s *SQLiteStore) MarkScraped(ctx context.Context, id, siteSummary string) error {
	return s.update(ctx, "mark scraped",
		`UPDATE prospects SET scrape_status = 'scraped', site_summary = ?, updated_at = datetime('now') WHERE id = ?`,
		siteSummary, id)
}

func (s *SQLiteStore) SetContactEmail(ctx context.Context, id, email, source string, confidence float64) error {
	return s.update(ctx, "set contact email",
		`UPDATE prospects SET contact_email = ?, email_source = ?, email_confidence = ?, updated_at = datetime('now') WHERE id = ?`,
		email, source, confidence, id)
}

func (s *SQLiteStore) SetVerification(ctx context.Context, id string, status model.VerificationStatus) error {
	return s.update(ctx, "set verification",
		`UPDATE prospects SET verification_status = ?, updated_at = datetime('now') WHERE id = ?`,
		string(status), id)
}

func (s *SQLiteStore) SetDraft(ctx context.Context, id, subject, body string) error {
	return s.update(ctx, "set draft",
		`UPDATE prospects SET draft_subject = ?, draft_body = ?, updated_at = datetime('now') WHERE id = ?`,
		subject, body, id)
}

func (s *SQLiteStore) MarkSent(ctx context.Context, id string, at time.Time) error {
	return s.update(ctx, "mark sent",
		`UPDATE prospects SET outreach_status = 'sent', last_sent = ?, updated_at = datetime('now') WHERE id = ?`,
		at, id)
}

func (s *SQLiteStore) RecordFollowup(ctx context.Context, id string, at time.Time) error {
	return s.update(ctx, "record followup",
		`UPDATE prospects SET followups_sent = followups_sent + 1, last_sent = ?, updated_at = datetime('now') WHERE id = ?`,
		at, id)
}

func (s *SQLiteStore) RejectProspect(ctx context.Context, id, reason string) error {
	return s.update(ctx, "reject prospect",
		`UPDATE prospects SET rejected = 1, reject_reason = ?, updated_at = datetime('now') WHERE id = ?`,
		reason, id)
}

// -- jobs --

func scanJobSQL(row sqlRow) (*model.Job, error) {
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

func (s *SQLiteStore) CreateJob(ctx context.Context, stage model.Stage, targetsTotal *int) (*model.Job, error) {
	id := uuid.New().String()
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, job_type, status, targets_total, created_at) VALUES (?, ?, 'pending', ?, ?)`,
		id, string(stage), targetsTotal, now,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return nil, ErrJobAlreadyRunning
		}
		return nil, eris.Wrapf(err, "sqlite: create %s job", stage)
	}
	return &model.Job{
		ID:           id,
		Type:         stage,
		Status:       model.JobPending,
		TargetsTotal: targetsTotal,
		CreatedAt:    now,
	}, nil
}

func (s *SQLiteStore) StartJob(ctx context.Context, id string) error {
	return s.update(ctx, "start job",
		`UPDATE jobs SET status = 'running', started_at = datetime('now') WHERE id = ? AND status = 'pending'`,
		id)
}

func (s *SQLiteStore) RecordJobTarget(ctx context.Context, id string, succeeded bool) error {
	succ := 0
	if succeeded {
		succ = 1
	}
	return s.update(ctx, "record job target",
		`UPDATE jobs SET
			targets_processed = targets_processed + 1,
			targets_succeeded = targets_succeeded + ?,
			targets_failed    = targets_failed + ?
		 WHERE id = ? AND status = 'running'`,
		succ, 1-succ, id)
}

func (s *SQLiteStore) CompleteJob(ctx context.Context, id string) error {
	return s.update(ctx, "complete job",
		`UPDATE jobs SET status = 'completed', completed_at = datetime('now') WHERE id = ? AND status = 'running'`,
		id)
}

func (s *SQLiteStore) FailJob(ctx context.Context, id, errMsg string) error {
	return s.update(ctx, "fail job",
		`UPDATE jobs SET status = 'failed', error_message = ?, completed_at = datetime('now')
		 WHERE id = ? AND status IN ('pending', 'running')`,
		errMsg, id)
}

func (s *SQLiteStore) GetJob(ctx context.Context, id string) (*model.Job, error) {
	j, err := scanJobSQL(s.db.QueryRowContext(ctx, `SELECT `+jobCols+` FROM jobs WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "sqlite: get job %s", id)
	}
	return j, nil
}

func (s *SQLiteStore) ListJobs(ctx context.Context, f JobFilter) ([]model.Job, error) {
	query := `SELECT ` + jobCols + ` FROM jobs`
	var conds []string
	var args []any
	if f.Type != "" {
		conds = append(conds, `job_type = ?`)
		args = append(args, string(f.Type))
	}
	if f.Status != "" {
		conds = append(conds, `status = ?`)
		args = append(args, string(f.Status))
	}
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, ` AND `)
	}
	query += ` ORDER BY created_at DESC`
	if f.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list jobs")
	}
	defer rows.Close()

	var out []model.Job
	for rows.Next() {
		j, err := scanJobSQL(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan job")
		}
		out = append(out, *j)
	}
	return out, rows.Err()
}
