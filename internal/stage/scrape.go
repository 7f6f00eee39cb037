package stage

import (
	"context"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// maxSummaryLen bounds the stored site summary so one content-heavy site
// cannot bloat the prospects table.
const maxSummaryLen = 4000

var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

// scrapeOne fetches the prospect's site, stores a summary, then tries to
// attach a contact email: first from the page content, then via the email
// finder. A finder miss is a processed outcome, not a failure; the prospect
// stays scrape-eligible so the next run retries the lookup.
func (r *Runner) scrapeOne(ctx context.Context, id string) error {
	if r.scraper == nil {
		return eris.New("stage: no scraper configured")
	}

	p, err := r.store.GetProspect(ctx, id)
	if err != nil {
		return eris.Wrapf(err, "stage: load prospect %s", id)
	}

	content, err := r.scraper.Scrape(ctx, "https://"+p.Domain)
	if err != nil {
		return eris.Wrapf(err, "stage: scrape %s", p.Domain)
	}
	if err := r.store.MarkScraped(ctx, id, summarize(content)); err != nil {
		return eris.Wrapf(err, "stage: mark scraped %s", id)
	}

	if email, ok := extractEmail(content, p.Domain); ok {
		return r.store.SetContactEmail(ctx, id, email, "site", 1.0)
	}
	if r.finder == nil {
		return nil
	}

	contact, err := r.finder.FindEmail(ctx, p.Domain)
	if eris.Is(err, ErrNoEmail) {
		zap.L().Debug("no contact email for domain", zap.String("domain", p.Domain))
		return nil
	}
	if err != nil {
		return eris.Wrapf(err, "stage: find email for %s", p.Domain)
	}
	return r.store.SetContactEmail(ctx, id, contact.Email, "finder", contact.Confidence)
}

func summarize(content string) string {
	s := strings.TrimSpace(content)
	if len(s) > maxSummaryLen {
		s = s[:maxSummaryLen]
	}
	return s
}

// extractEmail returns the first address in the content whose domain matches
// the prospect, preferring on-domain addresses over stray third-party ones
// (support widgets, analytics vendors).
func extractEmail(content, domain string) (string, bool) {
	matches := emailPattern.FindAllString(content, -1)
	for _, m := range matches {
		if strings.HasSuffix(strings.ToLower(m), "@"+domain) {
			return strings.ToLower(m), true
		}
	}
	return "", false
}
