package store

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-cli/internal/model"
)

// Stage eligibility and snapshot bucket predicates, shared by both drivers.
// Only the followup predicate takes bind parameters (cutoff, max), so most
// predicates are plain SQL fragments.
//
// The scrape predicate deliberately includes scraped prospects that still
// lack an email: a NotFound from the email finder is a processed outcome,
// and the prospect stays eligible so the next scrape run retries the lookup.
const (
	predScrape = `discovered_at IS NOT NULL AND NOT rejected
		AND (scrape_status = 'not_started'
			OR (scrape_status = 'scraped' AND contact_email IS NULL AND verification_status = 'unverified'))`
	predVerify = `NOT rejected AND contact_email IS NOT NULL AND verification_status = 'unverified'`
	predDraft  = `NOT rejected AND verification_status = 'verified' AND contact_email IS NOT NULL
		AND (draft_subject IS NULL OR draft_subject = '' OR draft_body IS NULL OR draft_body = '')`
	predSend = `NOT rejected AND verification_status = 'verified'
		AND draft_subject IS NOT NULL AND draft_subject <> ''
		AND draft_body IS NOT NULL AND draft_body <> ''
		AND outreach_status = 'pending'`
)

// placeholder renders the nth bind parameter for a driver ($n vs ?).
type placeholder func(n int) string

func pgPlaceholder(n int) string { return fmt.Sprintf("$%d", n) }

func sqlitePlaceholder(int) string { return "?" }

// predFollowup builds the followup predicate starting at bind index n.
// Args are (cutoff, maxFollowups).
func predFollowup(ph placeholder, n int) string {
	return fmt.Sprintf(`NOT rejected AND outreach_status = 'sent' AND last_sent IS NOT NULL
		AND last_sent <= %s AND followups_sent < %s`, ph(n), ph(n+1))
}

// followupArgs returns the bind args matching predFollowup.
func (r EligibilityRules) followupArgs(now time.Time) []any {
	return []any{now.Add(-r.FollowupMinAge), r.MaxFollowups}
}

// eligibilityPredicate returns the WHERE fragment and bind args for a
// stage's eligibility, with bind indexes starting at n. Discover has no
// per-row predicate.
func eligibilityPredicate(stage model.Stage, rules EligibilityRules, ph placeholder, n int, now time.Time) (string, []any, error) {
	switch stage {
	case model.StageScrape:
		return predScrape, nil, nil
	case model.StageVerify:
		return predVerify, nil, nil
	case model.StageDraft:
		return predDraft, nil, nil
	case model.StageSend:
		return predSend, nil, nil
	case model.StageFollowup:
		return predFollowup(ph, n), rules.followupArgs(now), nil
	default:
		return "", nil, eris.Errorf("store: stage %q has no eligibility predicate", stage)
	}
}

// bucketPredicate returns the WHERE fragment and bind args for a snapshot
// bucket count.
func bucketPredicate(b Bucket, rules EligibilityRules, ph placeholder, now time.Time) (string, []any, error) {
	switch b {
	case BucketDiscovered:
		return `discovered_at IS NOT NULL AND NOT rejected`, nil, nil
	case BucketScrapeReady:
		return `discovered_at IS NOT NULL AND NOT rejected AND scrape_status = 'not_started'`, nil, nil
	case BucketScraped:
		return `scrape_status = 'scraped' AND NOT rejected`, nil, nil
	case BucketEmailFound:
		return `contact_email IS NOT NULL AND NOT rejected`, nil, nil
	case BucketLeads:
		return `scrape_status = 'scraped' AND contact_email IS NOT NULL AND NOT rejected`, nil, nil
	case BucketEmailsVerified:
		return `verification_status = 'verified' AND NOT rejected`, nil, nil
	case BucketDraftingReady:
		return `verification_status = 'verified' AND contact_email IS NOT NULL
			AND (draft_subject IS NULL OR draft_subject = '') AND NOT rejected`, nil, nil
	case BucketDrafted:
		return `draft_subject IS NOT NULL AND draft_subject <> ''
			AND draft_body IS NOT NULL AND draft_body <> '' AND NOT rejected`, nil, nil
	case BucketSendReady:
		return predSend, nil, nil
	case BucketSent:
		return `outreach_status IN ('sent', 'replied')`, nil, nil
	case BucketFollowupReady:
		return predFollowup(ph, 1), rules.followupArgs(now), nil
	default:
		return "", nil, eris.Errorf("store: unknown bucket %q", b)
	}
}
