// Package gate decides which pipeline stages may currently be dispatched.
package gate

import (
	"github.com/sells-group/outreach-cli/internal/model"
)

// Gate is the enabled/disabled decision for one stage. When disabled,
// Reason names the exact upstream stage to run first.
type Gate struct {
	Enabled bool   `json:"enabled"`
	Reason  string `json:"reason,omitempty"`
}

// Evaluate maps a status snapshot to the set of permitted stage actions.
// Pure function; stages are repeatable actions, not one-shot gates, so
// draft and send stay enabled once they have produced output even when the
// immediate backlog is empty (incremental runs).
func Evaluate(snap *model.Snapshot) map[model.Stage]Gate {
	gates := map[model.Stage]Gate{
		model.StageDiscover: {Enabled: true},
	}

	// Scraped prospects without an email stay scrape-eligible so the next
	// run retries the finder; the gate has to admit that pool too, not just
	// never-scraped rows.
	if snap.ScrapeReady > 0 || snap.Scraped > snap.Leads {
		gates[model.StageScrape] = Gate{Enabled: true}
	} else {
		gates[model.StageScrape] = Gate{Reason: "run discover first: no prospects are waiting to be scraped"}
	}

	if snap.Leads > 0 {
		gates[model.StageVerify] = Gate{Enabled: true}
	} else {
		gates[model.StageVerify] = Gate{Reason: "run scrape first: no scraped prospects have an email to verify"}
	}

	if snap.DraftingReady > 0 || snap.Drafted > 0 {
		gates[model.StageDraft] = Gate{Enabled: true}
	} else {
		gates[model.StageDraft] = Gate{Reason: "run verify first: no verified prospects are ready for drafting"}
	}

	if snap.SendReady > 0 || snap.Drafted > 0 {
		gates[model.StageSend] = Gate{Enabled: true}
	} else {
		gates[model.StageSend] = Gate{Reason: "run draft first: no drafted prospects are ready to send"}
	}

	if snap.FollowupReady > 0 {
		gates[model.StageFollowup] = Gate{Enabled: true}
	} else {
		gates[model.StageFollowup] = Gate{Reason: "run send first: no sent prospects are due a follow-up"}
	}

	return gates
}
