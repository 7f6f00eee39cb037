package stage

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/model"
)

// verifyOne checks deliverability of the prospect's contact email. Both
// outcomes are processed successes; only a verifier error fails the target.
// An undeliverable address is recorded as invalid, which removes the
// prospect from every downstream stage without rejecting the row.
func (r *Runner) verifyOne(ctx context.Context, id string) error {
	if r.finder == nil {
		return eris.New("stage: no email finder configured")
	}

	p, err := r.store.GetProspect(ctx, id)
	if err != nil {
		return eris.Wrapf(err, "stage: load prospect %s", id)
	}
	if !p.EmailFound() {
		return eris.Errorf("stage: prospect %s has no contact email to verify", id)
	}

	deliverable, err := r.finder.VerifyEmail(ctx, *p.ContactEmail)
	if err != nil {
		return eris.Wrapf(err, "stage: verify %s", *p.ContactEmail)
	}

	status := model.VerificationVerified
	if !deliverable {
		status = model.VerificationInvalid
		zap.L().Info("contact email undeliverable",
			zap.String("prospect_id", id),
			zap.String("domain", p.Domain),
		)
	}
	return r.store.SetVerification(ctx, id, status)
}
