package stage

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/model"
)

// followupOne composes and sends a follow-up to a prospect that never
// replied. Like send, the state is re-checked at execution time: a reply
// that landed after dispatch must suppress the follow-up.
func (r *Runner) followupOne(ctx context.Context, id string) error {
	if r.composer == nil {
		return eris.New("stage: no composer configured")
	}
	if r.sender == nil {
		return eris.New("stage: no sender configured")
	}

	p, err := r.store.GetProspect(ctx, id)
	if err != nil {
		return eris.Wrapf(err, "stage: load prospect %s", id)
	}
	if p.OutreachStatus != model.OutreachSent {
		zap.L().Info("followup skipped, prospect no longer awaiting reply",
			zap.String("prospect_id", id),
			zap.String("outreach_status", string(p.OutreachStatus)),
		)
		return nil
	}
	if !p.EmailFound() {
		return eris.Errorf("stage: prospect %s has no contact email", id)
	}

	draft, err := r.composer.ComposeFollowup(ctx, p)
	if err != nil {
		return eris.Wrapf(err, "stage: compose followup for %s", p.Domain)
	}
	sentAt, err := r.sender.Send(ctx, *p.ContactEmail, draft.Subject, draft.Body)
	if err != nil {
		return eris.Wrapf(err, "stage: send followup to %s", *p.ContactEmail)
	}
	zap.L().Info("followup sent",
		zap.String("prospect_id", id),
		zap.Int("followups_sent", p.FollowupsSent+1),
	)
	return r.store.RecordFollowup(ctx, id, sentAt)
}
