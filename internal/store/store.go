// Package store persists prospects and jobs behind a driver-neutral
// interface, with Postgres and SQLite implementations.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-cli/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = eris.New("store: not found")

// ErrJobAlreadyRunning is returned by CreateJob when a non-terminal job of
// the same type already exists. At most one pending/running job may exist
// per job type system-wide; the constraint lives in the database (a partial
// unique index), not in process memory, so it holds across processes.
var ErrJobAlreadyRunning = eris.New("store: a job of this type is already pending or running")

// Bucket names one derived prospect count in the pipeline status snapshot.
type Bucket string

const (
	BucketDiscovered     Bucket = "discovered"
	BucketScrapeReady    Bucket = "scrape_ready"
	BucketScraped        Bucket = "scraped"
	BucketEmailFound     Bucket = "email_found"
	BucketLeads          Bucket = "leads"
	BucketEmailsVerified Bucket = "emails_verified"
	BucketDraftingReady  Bucket = "drafting_ready"
	BucketDrafted        Bucket = "drafted"
	BucketSendReady      Bucket = "send_ready"
	BucketSent           Bucket = "sent"
	BucketFollowupReady  Bucket = "followup_ready"
)

// Buckets lists every snapshot bucket in display order.
var Buckets = []Bucket{
	BucketDiscovered, BucketScrapeReady, BucketScraped, BucketEmailFound,
	BucketLeads, BucketEmailsVerified, BucketDraftingReady, BucketDrafted,
	BucketSendReady, BucketSent, BucketFollowupReady,
}

// EligibilityRules holds the configurable knobs of the stage eligibility
// predicates. Only the followup stage has any.
type EligibilityRules struct {
	// FollowupMinAge is how long after last_sent a prospect becomes
	// followup-eligible.
	FollowupMinAge time.Duration
	// MaxFollowups caps followups_sent.
	MaxFollowups int
}

// ProspectFilter selects prospects for listing/export. An empty Bucket
// means all prospects.
type ProspectFilter struct {
	Bucket Bucket
	Limit  int
	Offset int
}

// JobFilter selects jobs for listing.
type JobFilter struct {
	Type   model.Stage
	Status model.JobStatus
	Limit  int
}

// ProspectStore defines prospect persistence. Mutators touch only the
// fields owned by their stage so concurrent stage executions never clobber
// each other.
type ProspectStore interface {
	// InsertProspect adds a newly discovered prospect. Returns false
	// without error when the domain already exists (dedup).
	InsertProspect(ctx context.Context, p *model.Prospect) (bool, error)
	GetProspect(ctx context.Context, id string) (*model.Prospect, error)
	ListProspects(ctx context.Context, f ProspectFilter) ([]model.Prospect, error)
	// CountProspects returns the size of one snapshot bucket. An empty
	// store yields zero, never an error.
	CountProspects(ctx context.Context, b Bucket) (int, error)
	// EligibleProspectIDs enumerates ids matching the stage's eligibility
	// predicate right now. Discover has no per-row predicate and returns nil.
	EligibleProspectIDs(ctx context.Context, stage model.Stage) ([]string, error)
	// FilterEligibleIDs narrows an explicit id selector to those ids that
	// still match the stage predicate.
	FilterEligibleIDs(ctx context.Context, stage model.Stage, ids []string) ([]string, error)
	ProspectDomainExists(ctx context.Context, domain string) (bool, error)

	MarkScraped(ctx context.Context, id, siteSummary string) error
	SetContactEmail(ctx context.Context, id, email, source string, confidence float64) error
	SetVerification(ctx context.Context, id string, status model.VerificationStatus) error
	SetDraft(ctx context.Context, id, subject, body string) error
	MarkSent(ctx context.Context, id string, at time.Time) error
	RecordFollowup(ctx context.Context, id string, at time.Time) error
	RejectProspect(ctx context.Context, id, reason string) error
}

// JobStore defines job persistence. State moves strictly forward: pending →
// running → completed|failed. Terminal rows are frozen; every update is
// guarded by the expected current status.
type JobStore interface {
	// CreateJob inserts a pending job, or returns ErrJobAlreadyRunning if a
	// non-terminal job of the same type exists.
	CreateJob(ctx context.Context, stage model.Stage, targetsTotal *int) (*model.Job, error)
	// StartJob flips pending → running and stamps started_at.
	StartJob(ctx context.Context, id string) error
	// RecordJobTarget increments targets_processed and exactly one of
	// targets_succeeded/targets_failed, atomically in the database.
	RecordJobTarget(ctx context.Context, id string, succeeded bool) error
	// CompleteJob flips running → completed.
	CompleteJob(ctx context.Context, id string) error
	// FailJob flips running → failed and records a human-readable message.
	FailJob(ctx context.Context, id, errMsg string) error
	GetJob(ctx context.Context, id string) (*model.Job, error)
	ListJobs(ctx context.Context, f JobFilter) ([]model.Job, error)
}

// Store is the full persistence surface.
type Store interface {
	ProspectStore
	JobStore
	Migrate(ctx context.Context) error
	Close() error
}
