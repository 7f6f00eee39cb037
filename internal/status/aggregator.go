// Package status computes the pipeline status snapshot.
package status

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-cli/internal/gate"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/store"
)

// Counter is the slice of the prospect store the aggregator reads.
type Counter interface {
	CountProspects(ctx context.Context, b store.Bucket) (int, error)
}

// Aggregator computes snapshots from raw prospect counts. Read-only; a
// snapshot is a projection, never a source of truth for mutation.
type Aggregator struct {
	counter Counter
}

// NewAggregator creates an Aggregator over the given counter.
func NewAggregator(c Counter) *Aggregator {
	return &Aggregator{counter: c}
}

// Compute runs one count query per bucket and assembles the snapshot. An
// empty store produces the all-zero snapshot, which is valid, not an error.
func (a *Aggregator) Compute(ctx context.Context) (*model.Snapshot, error) {
	var snap model.Snapshot
	dests := map[store.Bucket]*int{
		store.BucketDiscovered:     &snap.Discovered,
		store.BucketScrapeReady:    &snap.ScrapeReady,
		store.BucketScraped:        &snap.Scraped,
		store.BucketEmailFound:     &snap.EmailFound,
		store.BucketLeads:          &snap.Leads,
		store.BucketEmailsVerified: &snap.EmailsVerified,
		store.BucketDraftingReady:  &snap.DraftingReady,
		store.BucketDrafted:        &snap.Drafted,
		store.BucketSendReady:      &snap.SendReady,
		store.BucketSent:           &snap.Sent,
		store.BucketFollowupReady:  &snap.FollowupReady,
	}

	for _, b := range store.Buckets {
		n, err := a.counter.CountProspects(ctx, b)
		if err != nil {
			return nil, eris.Wrapf(err, "status: count %s", b)
		}
		*dests[b] = n
	}
	return &snap, nil
}

// Status pairs a snapshot with its gate evaluation, for the API surface.
type Status struct {
	Snapshot *model.Snapshot           `json:"snapshot"`
	Gates    map[model.Stage]gate.Gate `json:"gates"`
}

// ComputeStatus returns the snapshot together with the gates derived from it.
func (a *Aggregator) ComputeStatus(ctx context.Context) (*Status, error) {
	snap, err := a.Compute(ctx)
	if err != nil {
		return nil, err
	}
	return &Status{Snapshot: snap, Gates: gate.Evaluate(snap)}, nil
}
