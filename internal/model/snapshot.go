package model

// Snapshot is a derived projection of how many prospects occupy each stage
// bucket. It is computed on demand and never used as a source of truth for
// mutation. A snapshot with every count at zero is the valid virgin state.
type Snapshot struct {
	Discovered     int `json:"discovered"`
	ScrapeReady    int `json:"scrape_ready"`
	Scraped        int `json:"scraped"`
	EmailFound     int `json:"email_found"`
	Leads          int `json:"leads"`
	EmailsVerified int `json:"emails_verified"`
	DraftingReady  int `json:"drafting_ready"`
	Drafted        int `json:"drafted"`
	SendReady      int `json:"send_ready"`
	Sent           int `json:"sent"`
	FollowupReady  int `json:"followup_ready"`
}
