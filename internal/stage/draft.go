package stage

import (
	"context"

	"github.com/rotisserie/eris"
)

// draftOne composes a personalized outreach email and stores it immediately,
// so drafts produced early in a run are visible (and sendable) even if a
// later target fails.
func (r *Runner) draftOne(ctx context.Context, id string) error {
	if r.composer == nil {
		return eris.New("stage: no composer configured")
	}

	p, err := r.store.GetProspect(ctx, id)
	if err != nil {
		return eris.Wrapf(err, "stage: load prospect %s", id)
	}

	draft, err := r.composer.Compose(ctx, p)
	if err != nil {
		return eris.Wrapf(err, "stage: compose for %s", p.Domain)
	}
	if draft.Subject == "" || draft.Body == "" {
		return eris.Errorf("stage: composer returned incomplete draft for %s", p.Domain)
	}
	return r.store.SetDraft(ctx, id, draft.Subject, draft.Body)
}
