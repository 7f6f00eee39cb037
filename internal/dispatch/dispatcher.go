// Package dispatch turns stage requests into jobs and hands them to the
// executor.
package dispatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/gate"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/status"
	"github.com/sells-group/outreach-cli/internal/store"
)

// ErrInvalidStage is returned for a job type that is not a pipeline stage.
var ErrInvalidStage = eris.New("dispatch: invalid stage")

// NotReadyError is returned when a stage cannot be dispatched right now,
// either because its gate is closed or because no targets are eligible.
// Reason is the human-readable explanation surfaced to the caller.
type NotReadyError struct {
	Stage  model.Stage
	Reason string
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("dispatch: %s not ready: %s", e.Stage, e.Reason)
}

// Executor runs one job to a terminal state.
type Executor interface {
	Execute(ctx context.Context, job *model.Job, targetIDs []string) error
}

// Dispatcher validates stage requests, snapshots the eligible target set,
// creates the job row, and starts execution in the background. The at-most-
// one-job-per-stage guarantee is enforced by the store's unique constraint,
// not here, so it holds even across processes.
type Dispatcher struct {
	store store.Store
	agg   *status.Aggregator
	exec  Executor

	wg sync.WaitGroup
}

// New creates a Dispatcher.
func New(st store.Store, agg *status.Aggregator, exec Executor) *Dispatcher {
	return &Dispatcher{store: st, agg: agg, exec: exec}
}

// Dispatch creates and starts a job for the stage. When ids is non-empty the
// target set is the eligible subset of those ids; otherwise every currently
// eligible prospect is targeted. The returned job is pending; execution
// proceeds in the background, detached from the caller's cancellation, and
// progress is observable through the job row.
//
// Returns ErrInvalidStage, *NotReadyError, or store.ErrJobAlreadyRunning
// for the three refusal cases.
func (d *Dispatcher) Dispatch(ctx context.Context, stage model.Stage, ids []string) (*model.Job, error) {
	if !stage.Valid() {
		return nil, eris.Wrapf(ErrInvalidStage, "%q", stage)
	}

	snap, err := d.agg.Compute(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "dispatch: snapshot")
	}
	if g := gate.Evaluate(snap)[stage]; !g.Enabled {
		return nil, &NotReadyError{Stage: stage, Reason: g.Reason}
	}

	targets, targetsTotal, err := d.resolveTargets(ctx, stage, ids)
	if err != nil {
		return nil, err
	}

	job, err := d.store.CreateJob(ctx, stage, targetsTotal)
	if err != nil {
		return nil, err
	}
	zap.L().Info("job dispatched",
		zap.String("job_id", job.ID),
		zap.String("stage", string(stage)),
		zap.Int("targets", len(targets)),
	)

	d.wg.Add(1)
	go func(runCtx context.Context) {
		defer d.wg.Done()
		_ = d.exec.Execute(runCtx, job, targets)
	}(context.WithoutCancel(ctx))

	return job, nil
}

// resolveTargets snapshots the target id set at dispatch time. Discover has
// no enumerable targets; its total stays unknown until the search returns.
func (d *Dispatcher) resolveTargets(ctx context.Context, stage model.Stage, ids []string) ([]string, *int, error) {
	if stage == model.StageDiscover {
		return nil, nil, nil
	}

	var (
		targets []string
		err     error
	)
	if len(ids) > 0 {
		targets, err = d.store.FilterEligibleIDs(ctx, stage, ids)
	} else {
		targets, err = d.store.EligibleProspectIDs(ctx, stage)
	}
	if err != nil {
		return nil, nil, eris.Wrapf(err, "dispatch: resolve %s targets", stage)
	}
	if len(targets) == 0 {
		reason := "no eligible prospects remain for this stage"
		if len(ids) > 0 {
			reason = "none of the selected prospects are eligible for this stage"
		}
		return nil, nil, &NotReadyError{Stage: stage, Reason: reason}
	}
	n := len(targets)
	return targets, &n, nil
}

// Wait blocks until every background job started by this dispatcher has
// reached a terminal state. Used on shutdown.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
