package stage

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/model"
)

// sendOne delivers the stored draft. The prospect's state is re-read and
// re-checked at send time: the eligibility snapshot taken at dispatch may be
// stale, and sending twice (or sending to someone who replied meanwhile) is
// the one mistake this pipeline must never make.
func (r *Runner) sendOne(ctx context.Context, id string) error {
	if r.sender == nil {
		return eris.New("stage: no sender configured")
	}

	p, err := r.store.GetProspect(ctx, id)
	if err != nil {
		return eris.Wrapf(err, "stage: load prospect %s", id)
	}
	if p.OutreachStatus != model.OutreachPending {
		zap.L().Info("send skipped, prospect no longer pending",
			zap.String("prospect_id", id),
			zap.String("outreach_status", string(p.OutreachStatus)),
		)
		return nil
	}
	if !p.Drafted() || !p.EmailFound() {
		return eris.Errorf("stage: prospect %s is not sendable", id)
	}

	sentAt, err := r.sender.Send(ctx, *p.ContactEmail, *p.DraftSubject, *p.DraftBody)
	if err != nil {
		return eris.Wrapf(err, "stage: send to %s", *p.ContactEmail)
	}
	return r.store.MarkSent(ctx, id, sentAt)
}
