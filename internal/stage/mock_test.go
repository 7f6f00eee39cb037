package stage

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/store"
)

// memStore is an in-memory store.Store for executor tests. Methods the
// executors never touch come from the embedded nil interface and will panic
// if reached.
type memStore struct {
	store.Store

	mu        sync.Mutex
	prospects map[string]*model.Prospect
	jobs      map[string]*model.Job

	failRecord bool
}

func newMemStore() *memStore {
	return &memStore{
		prospects: make(map[string]*model.Prospect),
		jobs:      make(map[string]*model.Job),
	}
}

func (m *memStore) addProspect(p *model.Prospect) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prospects[p.ID] = p
}

func (m *memStore) addJob(j *model.Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[j.ID] = j
}

func (m *memStore) job(id string) model.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.jobs[id]
}

func (m *memStore) prospect(id string) model.Prospect {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.prospects[id]
}

func (m *memStore) GetProspect(_ context.Context, id string) (*model.Prospect, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prospects[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) InsertProspect(_ context.Context, p *model.Prospect) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.prospects {
		if existing.Domain == p.Domain {
			return false, nil
		}
	}
	m.prospects[p.ID] = p
	return true, nil
}

func (m *memStore) MarkScraped(_ context.Context, id, summary string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prospects[id]
	if !ok {
		return store.ErrNotFound
	}
	p.ScrapeStatus = model.ScrapeDone
	p.SiteSummary = summary
	return nil
}

func (m *memStore) SetContactEmail(_ context.Context, id, email, source string, confidence float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prospects[id]
	if !ok {
		return store.ErrNotFound
	}
	p.ContactEmail = &email
	p.EmailSource = source
	p.EmailConfidence = &confidence
	return nil
}

func (m *memStore) SetVerification(_ context.Context, id string, status model.VerificationStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prospects[id]
	if !ok {
		return store.ErrNotFound
	}
	p.VerificationStatus = status
	return nil
}

func (m *memStore) SetDraft(_ context.Context, id, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prospects[id]
	if !ok {
		return store.ErrNotFound
	}
	p.DraftSubject = &subject
	p.DraftBody = &body
	return nil
}

func (m *memStore) MarkSent(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prospects[id]
	if !ok {
		return store.ErrNotFound
	}
	p.OutreachStatus = model.OutreachSent
	p.LastSent = &at
	return nil
}

func (m *memStore) RecordFollowup(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prospects[id]
	if !ok {
		return store.ErrNotFound
	}
	p.FollowupsSent++
	p.LastSent = &at
	return nil
}

func (m *memStore) StartJob(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || j.Status != model.JobPending {
		return store.ErrNotFound
	}
	now := time.Now().UTC()
	j.Status = model.JobRunning
	j.StartedAt = &now
	return nil
}

func (m *memStore) RecordJobTarget(_ context.Context, id string, succeeded bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failRecord {
		return eris.New("record target write failed")
	}
	j, ok := m.jobs[id]
	if !ok || j.Status != model.JobRunning {
		return store.ErrNotFound
	}
	j.TargetsProcessed++
	if succeeded {
		j.TargetsSucceeded++
	} else {
		j.TargetsFailed++
	}
	return nil
}

func (m *memStore) CompleteJob(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || j.Status != model.JobRunning {
		return store.ErrNotFound
	}
	now := time.Now().UTC()
	j.Status = model.JobCompleted
	j.CompletedAt = &now
	return nil
}

func (m *memStore) FailJob(_ context.Context, id, msg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || j.Status.Terminal() {
		return store.ErrNotFound
	}
	now := time.Now().UTC()
	j.Status = model.JobFailed
	j.ErrorMessage = msg
	j.CompletedAt = &now
	return nil
}

// -- collaborator fakes --

type fakeSearcher struct {
	candidates []Candidate
	err        error
}

func (f *fakeSearcher) Search(context.Context, string, int) ([]Candidate, error) {
	return f.candidates, f.err
}

type fakeScraper struct {
	content map[string]string
	err     map[string]error
}

func (f *fakeScraper) Scrape(_ context.Context, url string) (string, error) {
	if err := f.err[url]; err != nil {
		return "", err
	}
	return f.content[url], nil
}

type fakeFinder struct {
	contacts map[string]*Contact
	findErr  map[string]error

	deliverable map[string]bool
	verifyErr   map[string]error
}

func (f *fakeFinder) FindEmail(_ context.Context, domain string) (*Contact, error) {
	if err := f.findErr[domain]; err != nil {
		return nil, err
	}
	if c := f.contacts[domain]; c != nil {
		return c, nil
	}
	return nil, ErrNoEmail
}

func (f *fakeFinder) VerifyEmail(_ context.Context, email string) (bool, error) {
	if err := f.verifyErr[email]; err != nil {
		return false, err
	}
	return f.deliverable[email], nil
}

type fakeComposer struct {
	draft *Draft
	err   error
}

func (f *fakeComposer) Compose(context.Context, *model.Prospect) (*Draft, error) {
	return f.draft, f.err
}

func (f *fakeComposer) ComposeFollowup(context.Context, *model.Prospect) (*Draft, error) {
	return f.draft, f.err
}

type fakeSender struct {
	mu   sync.Mutex
	sent []string
	err  error
	at   time.Time
}

func (f *fakeSender) Send(_ context.Context, to, _, _ string) (time.Time, error) {
	if f.err != nil {
		return time.Time{}, f.err
	}
	f.mu.Lock()
	f.sent = append(f.sent, to)
	f.mu.Unlock()
	return f.at, nil
}
