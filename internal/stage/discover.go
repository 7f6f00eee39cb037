package stage

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/outreach-cli/internal/model"
)

// runDiscover searches for candidate organizations and inserts the new ones.
// The target set is produced by the external search, so the job carries no
// targets_total; each candidate still gets a per-target progress record. A
// candidate whose domain already exists is skipped without error, which
// keeps discovery safe to re-run.
func (r *Runner) runDiscover(ctx context.Context, job *model.Job) error {
	if r.search == nil {
		return eris.New("stage: no searcher configured")
	}

	candidates, err := r.search.Search(ctx, r.cfg.SearchQuery, r.cfg.MaxSearchResults)
	if err != nil {
		return eris.Wrap(err, "stage: discovery search")
	}
	zap.L().Info("discovery search returned candidates",
		zap.String("job_id", job.ID),
		zap.Int("count", len(candidates)),
	)

	for _, c := range candidates {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		insErr := r.insertCandidate(ctx, c)
		if insErr != nil {
			zap.L().Warn("candidate rejected",
				zap.String("job_id", job.ID),
				zap.String("website", c.Website),
				zap.Error(insErr),
			)
		}
		if recErr := r.store.RecordJobTarget(ctx, job.ID, insErr == nil); recErr != nil {
			return eris.Wrap(recErr, "stage: record discovery target")
		}
	}
	return nil
}

func (r *Runner) insertCandidate(ctx context.Context, c Candidate) error {
	domain, err := CanonicalDomain(c.Website)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	p := &model.Prospect{
		ID:           uuid.NewString(),
		Domain:       domain,
		Name:         strings.TrimSpace(norm.NFC.String(c.Name)),
		DiscoveredAt: &now,
	}
	inserted, err := r.store.InsertProspect(ctx, p)
	if err != nil {
		return eris.Wrapf(err, "stage: insert prospect %s", domain)
	}
	if !inserted {
		zap.L().Debug("duplicate domain skipped", zap.String("domain", domain))
	}
	return nil
}

// CanonicalDomain reduces a website URL to a lowercase registrable host,
// the dedup key for prospects.
func CanonicalDomain(website string) (string, error) {
	raw := strings.TrimSpace(website)
	if raw == "" {
		return "", eris.New("stage: candidate has no website")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return "", eris.Errorf("stage: unparseable website %q", website)
	}
	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	return host, nil
}
