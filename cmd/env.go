package main

import (
	"context"
	"os"
	"time"

	"github.com/k-capehart/go-salesforce/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/compose"
	"github.com/sells-group/outreach-cli/internal/db"
	"github.com/sells-group/outreach-cli/internal/dispatch"
	"github.com/sells-group/outreach-cli/internal/poller"
	"github.com/sells-group/outreach-cli/internal/stage"
	"github.com/sells-group/outreach-cli/internal/status"
	"github.com/sells-group/outreach-cli/internal/store"
	"github.com/sells-group/outreach-cli/pkg/anthropic"
	"github.com/sells-group/outreach-cli/pkg/hunter"
	"github.com/sells-group/outreach-cli/pkg/jina"
	"github.com/sells-group/outreach-cli/pkg/places"
	sfpkg "github.com/sells-group/outreach-cli/pkg/salesforce"
	sendgridpkg "github.com/sells-group/outreach-cli/pkg/sendgrid"
)

// env bundles the wired application for the command handlers.
type env struct {
	Store      store.Store
	Aggregator *status.Aggregator
	Dispatcher *dispatch.Dispatcher
	Poller     *poller.Poller
}

func (e *env) Close() {
	e.Dispatcher.Wait()
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("close store", zap.Error(err))
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	rules := store.EligibilityRules{
		FollowupMinAge: cfg.Campaign.FollowupMinAge(),
		MaxFollowups:   cfg.Campaign.MaxFollowups,
	}
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "outreach.db"
		}
		return store.NewSQLite(dsn, rules)
	case "postgres":
		pool, err := db.Connect(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return store.NewPostgres(pool, rules), nil
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initEnv wires the store, external clients, and orchestration for the
// pipeline commands. Collaborators without credentials stay nil; jobs that
// need a missing one fail with a clear message instead of at startup.
func initEnv(ctx context.Context) (*env, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	var searcher stage.Searcher
	if cfg.Places.Key != "" {
		searcher = &placesSearcher{c: places.NewClient(cfg.Places.Key, places.WithBaseURL(cfg.Places.BaseURL))}
	}

	var scraper stage.Scraper
	if cfg.Jina.Key != "" {
		scraper = &jinaScraper{c: jina.NewClient(cfg.Jina.Key, jina.WithBaseURL(cfg.Jina.BaseURL))}
	}

	var finder stage.EmailFinder
	if cfg.Hunter.Key != "" {
		finder = &hunterFinder{c: hunter.NewClient(cfg.Hunter.Key,
			hunter.WithBaseURL(cfg.Hunter.BaseURL),
			hunter.WithRateLimit(cfg.Hunter.RPS),
		)}
	}

	var composer stage.Composer
	if cfg.Anthropic.Key != "" {
		composer = compose.New(anthropic.NewClient(cfg.Anthropic.Key), compose.Config{
			Model:       cfg.Anthropic.Model,
			MaxTokens:   cfg.Anthropic.MaxTokens,
			Temperature: cfg.Anthropic.Temperature,
		})
	}

	var sender stage.Sender
	if cfg.SendGrid.Key != "" {
		sender = &sendgridSender{c: sendgridpkg.NewClient(
			cfg.SendGrid.Key, cfg.SendGrid.FromEmail, cfg.SendGrid.FromName,
			sendgridpkg.WithBaseURL(cfg.SendGrid.BaseURL),
		)}
	}

	runner := stage.NewRunner(st, searcher, scraper, finder, composer, sender, stage.Config{
		SearchQuery:      cfg.Campaign.SearchQuery,
		MaxSearchResults: cfg.Campaign.MaxSearchResults,
		Concurrency:      cfg.Campaign.Concurrency,
	})
	agg := status.NewAggregator(st)

	return &env{
		Store:      st,
		Aggregator: agg,
		Dispatcher: dispatch.New(st, agg, runner),
		Poller:     poller.New(st, cfg.Campaign.PollInterval()),
	}, nil
}

func initSalesforce() (sfpkg.Client, error) {
	if cfg.Salesforce.ClientID == "" {
		return nil, eris.New("salesforce client ID is required (OUTREACH_SALESFORCE_CLIENT_ID)")
	}

	pemData, err := os.ReadFile(cfg.Salesforce.KeyPath)
	if err != nil {
		return nil, eris.Wrap(err, "read salesforce JWT private key")
	}

	sf, err := salesforce.Init(salesforce.Creds{
		Domain:         cfg.Salesforce.LoginURL,
		Username:       cfg.Salesforce.Username,
		ConsumerKey:    cfg.Salesforce.ClientID,
		ConsumerRSAPem: string(pemData),
	})
	if err != nil {
		return nil, eris.Wrap(err, "init salesforce")
	}

	return sfpkg.NewClient(sf), nil
}

// Collaborator adapters: translate the pkg client types into the narrow
// shapes the stage executors consume.

type placesSearcher struct {
	c places.Client
}

func (s *placesSearcher) Search(ctx context.Context, query string, maxResults int) ([]stage.Candidate, error) {
	found, err := s.c.TextSearch(ctx, query, maxResults)
	if err != nil {
		return nil, err
	}
	out := make([]stage.Candidate, 0, len(found))
	for _, p := range found {
		out = append(out, stage.Candidate{
			Name:    p.DisplayName.Text,
			Website: p.WebsiteURI,
		})
	}
	return out, nil
}

type jinaScraper struct {
	c jina.Client
}

func (s *jinaScraper) Scrape(ctx context.Context, url string) (string, error) {
	resp, err := s.c.Read(ctx, url)
	if err != nil {
		return "", err
	}
	return resp.Data.Content, nil
}

type hunterFinder struct {
	c hunter.Client
}

func (f *hunterFinder) FindEmail(ctx context.Context, domain string) (*stage.Contact, error) {
	res, err := f.c.Find(ctx, domain)
	if eris.Is(err, hunter.ErrNoEmail) {
		return nil, stage.ErrNoEmail
	}
	if err != nil {
		return nil, err
	}
	return &stage.Contact{Email: res.Email, Confidence: res.Confidence}, nil
}

func (f *hunterFinder) VerifyEmail(ctx context.Context, email string) (bool, error) {
	res, err := f.c.Verify(ctx, email)
	if err != nil {
		return false, err
	}
	return res.Deliverable(), nil
}

type sendgridSender struct {
	c sendgridpkg.Client
}

func (s *sendgridSender) Send(ctx context.Context, to, subject, body string) (time.Time, error) {
	return s.c.Send(ctx, sendgridpkg.SendRequest{To: to, Subject: subject, Body: body})
}
