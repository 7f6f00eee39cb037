// Package stage executes pipeline stage jobs against their target prospects.
//
// Each stage talks to one or more external collaborators through the narrow
// interfaces below; the concrete API clients live under pkg/ and are wired
// in by the command layer.
package stage

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-cli/internal/model"
)

// ErrNoEmail is returned by an EmailFinder when no contact address exists
// for the domain. It is a processed outcome, not a failure.
var ErrNoEmail = eris.New("stage: no contact email found")

// Candidate is one organization returned by prospect discovery.
type Candidate struct {
	Name    string
	Website string
}

// Searcher discovers candidate organizations for a campaign query.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]Candidate, error)
}

// Scraper fetches a prospect's site as clean text.
type Scraper interface {
	Scrape(ctx context.Context, url string) (string, error)
}

// Contact is a discovered email address with the finder's confidence score.
type Contact struct {
	Email      string
	Confidence float64
}

// EmailFinder looks up and verifies contact addresses.
type EmailFinder interface {
	// FindEmail returns the best contact for a domain, or ErrNoEmail.
	FindEmail(ctx context.Context, domain string) (*Contact, error)
	// VerifyEmail reports whether an address is deliverable.
	VerifyEmail(ctx context.Context, email string) (bool, error)
}

// Draft is a composed outreach email.
type Draft struct {
	Subject string
	Body    string
}

// Composer writes personalized outreach drafts.
type Composer interface {
	Compose(ctx context.Context, p *model.Prospect) (*Draft, error)
	ComposeFollowup(ctx context.Context, p *model.Prospect) (*Draft, error)
}

// Sender delivers a composed email and reports when it was accepted.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) (time.Time, error)
}
