// Package model defines the core types shared across the outreach pipeline.
package model

import "time"

// ScrapeStatus tracks whether a prospect's site has been scraped.
type ScrapeStatus string

const (
	ScrapeNotStarted ScrapeStatus = "not_started"
	ScrapeDone       ScrapeStatus = "scraped"
)

// VerificationStatus tracks the outcome of email verification.
type VerificationStatus string

const (
	VerificationUnverified VerificationStatus = "unverified"
	VerificationVerified   VerificationStatus = "verified"
	VerificationInvalid    VerificationStatus = "invalid"
)

// OutreachStatus tracks where a prospect sits in the send lifecycle.
type OutreachStatus string

const (
	OutreachPending OutreachStatus = "pending"
	OutreachSent    OutreachStatus = "sent"
	OutreachReplied OutreachStatus = "replied"
)

// Prospect is one candidate organization tracked through the pipeline.
// Rows are never deleted; a prospect leaves the pipeline by being rejected,
// and the row is retained for domain dedup.
type Prospect struct {
	ID                 string             `json:"id" db:"id"`
	Domain             string             `json:"domain" db:"domain"`
	Name               string             `json:"name" db:"name"`
	DiscoveredAt       *time.Time         `json:"discovered_at,omitempty" db:"discovered_at"`
	Rejected           bool               `json:"rejected" db:"rejected"`
	RejectReason       string             `json:"reject_reason,omitempty" db:"reject_reason"`
	ScrapeStatus       ScrapeStatus       `json:"scrape_status" db:"scrape_status"`
	SiteSummary        string             `json:"site_summary,omitempty" db:"site_summary"`
	ContactEmail       *string            `json:"contact_email,omitempty" db:"contact_email"`
	EmailSource        string             `json:"email_source,omitempty" db:"email_source"`
	EmailConfidence    *float64           `json:"email_confidence,omitempty" db:"email_confidence"`
	VerificationStatus VerificationStatus `json:"verification_status" db:"verification_status"`
	DraftSubject       *string            `json:"draft_subject,omitempty" db:"draft_subject"`
	DraftBody          *string            `json:"draft_body,omitempty" db:"draft_body"`
	OutreachStatus     OutreachStatus     `json:"outreach_status" db:"outreach_status"`
	LastSent           *time.Time         `json:"last_sent,omitempty" db:"last_sent"`
	FollowupsSent      int                `json:"followups_sent" db:"followups_sent"`
	CreatedAt          time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at" db:"updated_at"`
}

// Drafted reports whether the prospect has a complete draft.
// Both fields must be non-empty; a subject without a body is not a draft.
func (p *Prospect) Drafted() bool {
	return p.DraftSubject != nil && *p.DraftSubject != "" &&
		p.DraftBody != nil && *p.DraftBody != ""
}

// EmailFound reports whether any contact email has been recorded.
func (p *Prospect) EmailFound() bool {
	return p.ContactEmail != nil && *p.ContactEmail != ""
}
