package stage

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/store"
)

// Config holds the campaign knobs the executors need.
type Config struct {
	// SearchQuery is the discovery query for the campaign.
	SearchQuery string
	// MaxSearchResults caps one discovery run.
	MaxSearchResults int
	// Concurrency bounds parallel target processing within a job.
	Concurrency int
}

// Runner executes stage jobs. One Runner serves all stages; the dispatcher
// guarantees at most one job per stage runs at a time, so the only
// concurrency inside a Runner is the bounded per-target fan-out.
type Runner struct {
	store    store.Store
	search   Searcher
	scraper  Scraper
	finder   EmailFinder
	composer Composer
	sender   Sender
	cfg      Config
}

// NewRunner creates a Runner. Collaborators a deployment does not use may
// be nil; dispatching a stage whose collaborator is missing fails the job.
func NewRunner(st store.Store, search Searcher, scraper Scraper, finder EmailFinder, composer Composer, sender Sender, cfg Config) *Runner {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.MaxSearchResults <= 0 {
		cfg.MaxSearchResults = 50
	}
	return &Runner{
		store:    st,
		search:   search,
		scraper:  scraper,
		finder:   finder,
		composer: composer,
		sender:   sender,
		cfg:      cfg,
	}
}

// Execute runs one job to a terminal state. Per-target failures are counted
// and logged but never fail the job; only systemic errors (collaborator
// unavailable, store writes failing, cancellation) flip it to failed. The
// terminal write uses a detached context so a cancelled run still lands in
// a terminal state instead of sticking at running forever.
func (r *Runner) Execute(ctx context.Context, job *model.Job, targetIDs []string) error {
	if err := r.store.StartJob(ctx, job.ID); err != nil {
		startErr := eris.Wrapf(err, "stage: start %s job %s", job.Type, job.ID)
		// A job that never left pending would hold the per-type lock forever,
		// blocking every future dispatch of this stage.
		if failErr := r.store.FailJob(context.WithoutCancel(ctx), job.ID, startErr.Error()); failErr != nil {
			zap.L().Error("failed to mark unstarted job failed",
				zap.String("job_id", job.ID), zap.Error(failErr))
		}
		return startErr
	}

	zap.L().Info("stage job started",
		zap.String("job_id", job.ID),
		zap.String("stage", string(job.Type)),
		zap.Int("targets", len(targetIDs)),
	)

	var runErr error
	switch job.Type {
	case model.StageDiscover:
		runErr = r.runDiscover(ctx, job)
	case model.StageScrape:
		runErr = r.runTargets(ctx, job, targetIDs, r.scrapeOne)
	case model.StageVerify:
		runErr = r.runTargets(ctx, job, targetIDs, r.verifyOne)
	case model.StageDraft:
		runErr = r.runTargets(ctx, job, targetIDs, r.draftOne)
	case model.StageSend:
		runErr = r.runTargets(ctx, job, targetIDs, r.sendOne)
	case model.StageFollowup:
		runErr = r.runTargets(ctx, job, targetIDs, r.followupOne)
	default:
		runErr = eris.Errorf("stage: unknown job type %q", job.Type)
	}

	done := context.WithoutCancel(ctx)
	if runErr != nil {
		zap.L().Error("stage job failed",
			zap.String("job_id", job.ID),
			zap.String("stage", string(job.Type)),
			zap.Error(runErr),
		)
		if err := r.store.FailJob(done, job.ID, runErr.Error()); err != nil {
			zap.L().Error("failed to mark job failed", zap.String("job_id", job.ID), zap.Error(err))
		}
		return runErr
	}

	if err := r.store.CompleteJob(done, job.ID); err != nil {
		return eris.Wrapf(err, "stage: complete %s job %s", job.Type, job.ID)
	}
	zap.L().Info("stage job completed",
		zap.String("job_id", job.ID),
		zap.String("stage", string(job.Type)),
	)
	return nil
}

// runTargets fans the per-target fn out over targetIDs with bounded
// concurrency, recording every outcome against the job as it lands so
// observers polling the job see live progress.
func (r *Runner) runTargets(ctx context.Context, job *model.Job, targetIDs []string, fn func(ctx context.Context, id string) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)

	for _, id := range targetIDs {
		g.Go(func() error {
			err := fn(gctx, id)
			if gctx.Err() != nil {
				return gctx.Err()
			}
			if err != nil {
				zap.L().Warn("target failed",
					zap.String("job_id", job.ID),
					zap.String("stage", string(job.Type)),
					zap.String("prospect_id", id),
					zap.Error(err),
				)
			}
			if recErr := r.store.RecordJobTarget(gctx, job.ID, err == nil); recErr != nil {
				return eris.Wrapf(recErr, "stage: record target %s", id)
			}
			return nil
		})
	}
	return g.Wait()
}
