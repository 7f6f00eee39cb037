// Package compose writes personalized outreach emails with the Anthropic API.
package compose

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/stage"
	"github.com/sells-group/outreach-cli/pkg/anthropic"
)

const systemPrompt = `You write short, personalized B2B outreach emails.
Ground every email in the specific details provided about the recipient's
company. Plain text only, no placeholders, under 150 words.
Respond with a JSON object: {"subject": "...", "body": "..."}.`

const followupPrompt = `You write short, polite follow-up emails for B2B
outreach that received no reply. Reference the original email briefly and
add one new piece of value. Under 80 words, plain text only.
Respond with a JSON object: {"subject": "...", "body": "..."}.`

// Config holds the composer's model settings.
type Config struct {
	Model       string
	MaxTokens   int64
	Temperature float64
}

// Composer produces outreach drafts via the Anthropic messages API.
type Composer struct {
	client anthropic.Client
	cfg    Config
}

// New creates a Composer.
func New(client anthropic.Client, cfg Config) *Composer {
	if cfg.Model == "" {
		cfg.Model = "claude-haiku-4-5-20251001"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.7
	}
	return &Composer{client: client, cfg: cfg}
}

// Compose writes the initial outreach email for a prospect.
func (c *Composer) Compose(ctx context.Context, p *model.Prospect) (*stage.Draft, error) {
	prompt := fmt.Sprintf("Company: %s\nWebsite: %s\n\nWhat we know about them:\n%s",
		p.Name, p.Domain, p.SiteSummary)
	return c.generate(ctx, systemPrompt, prompt, "compose")
}

// ComposeFollowup writes a follow-up referencing the stored draft.
func (c *Composer) ComposeFollowup(ctx context.Context, p *model.Prospect) (*stage.Draft, error) {
	if !p.Drafted() {
		return nil, eris.Errorf("compose: prospect %s has no original draft to follow up on", p.ID)
	}
	prompt := fmt.Sprintf("Company: %s\nWebsite: %s\nFollow-ups already sent: %d\n\nOriginal email:\nSubject: %s\n\n%s",
		p.Name, p.Domain, p.FollowupsSent, *p.DraftSubject, *p.DraftBody)
	return c.generate(ctx, followupPrompt, prompt, "followup")
}

func (c *Composer) generate(ctx context.Context, system, prompt, phase string) (*stage.Draft, error) {
	temp := c.cfg.Temperature
	resp, err := c.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       c.cfg.Model,
		MaxTokens:   c.cfg.MaxTokens,
		System:      system,
		Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
		Temperature: &temp,
	})
	if err != nil {
		return nil, eris.Wrap(err, "compose: create message")
	}
	resp.Usage.LogCost(c.cfg.Model, phase)

	draft, err := parseDraft(resp.Text())
	if err != nil {
		return nil, err
	}
	return draft, nil
}

// parseDraft extracts the draft JSON, tolerating a fenced code block around it.
func parseDraft(text string) (*stage.Draft, error) {
	s := strings.TrimSpace(text)
	if i := strings.Index(s, "{"); i >= 0 {
		if j := strings.LastIndex(s, "}"); j > i {
			s = s[i : j+1]
		}
	}

	var out struct {
		Subject string `json:"subject"`
		Body    string `json:"body"`
	}
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, eris.Wrapf(err, "compose: parse draft from %q", truncate(text, 120))
	}
	if out.Subject == "" || out.Body == "" {
		return nil, eris.New("compose: model returned an incomplete draft")
	}
	return &stage.Draft{Subject: out.Subject, Body: out.Body}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
