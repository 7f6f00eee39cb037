package stage

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/model"
)

func pendingJob(st *memStore, stage model.Stage, total int) *model.Job {
	j := &model.Job{ID: "job-" + string(stage), Type: stage, Status: model.JobPending}
	if total >= 0 {
		j.TargetsTotal = &total
	}
	st.addJob(j)
	return j
}

func seedProspect(st *memStore, id, domain string, mutate func(*model.Prospect)) *model.Prospect {
	now := time.Now().UTC()
	p := &model.Prospect{
		ID:                 id,
		Domain:             domain,
		Name:               domain,
		DiscoveredAt:       &now,
		ScrapeStatus:       model.ScrapeNotStarted,
		VerificationStatus: model.VerificationUnverified,
		OutreachStatus:     model.OutreachPending,
	}
	if mutate != nil {
		mutate(p)
	}
	st.addProspect(p)
	return p
}

func TestExecute_Discover_DedupAndProgress(t *testing.T) {
	st := newMemStore()
	seedProspect(st, "p0", "existing.com", nil)
	job := pendingJob(st, model.StageDiscover, -1)

	search := &fakeSearcher{candidates: []Candidate{
		{Name: "Existing", Website: "https://www.existing.com/about"},
		{Name: "Fresh", Website: "https://fresh.io"},
		{Name: "Broken", Website: ""},
	}}
	r := NewRunner(st, search, nil, nil, nil, nil, Config{SearchQuery: "plumbers"})

	require.NoError(t, r.Execute(context.Background(), job, nil))

	final := st.job(job.ID)
	assert.Equal(t, model.JobCompleted, final.Status)
	assert.Nil(t, final.TargetsTotal, "discover cannot enumerate targets up front")
	assert.Equal(t, 3, final.TargetsProcessed)
	assert.Equal(t, 2, final.TargetsSucceeded, "dedup skip still counts as processed ok")
	assert.Equal(t, 1, final.TargetsFailed, "candidate with no website fails that target only")
}

func TestExecute_Discover_SearchFailureIsSystemic(t *testing.T) {
	st := newMemStore()
	job := pendingJob(st, model.StageDiscover, -1)

	r := NewRunner(st, &fakeSearcher{err: eris.New("places quota exhausted")}, nil, nil, nil, nil, Config{})

	err := r.Execute(context.Background(), job, nil)
	require.Error(t, err)

	final := st.job(job.ID)
	assert.Equal(t, model.JobFailed, final.Status)
	assert.Contains(t, final.ErrorMessage, "places quota exhausted")
}

func TestExecute_Scrape_NoEmailIsProcessedNotFailed(t *testing.T) {
	st := newMemStore()
	seedProspect(st, "p1", "quiet.com", nil)
	job := pendingJob(st, model.StageScrape, 1)

	scraper := &fakeScraper{content: map[string]string{
		"https://quiet.com": "We are a quiet company with no contact info.",
	}}
	finder := &fakeFinder{} // no contacts: every lookup returns ErrNoEmail
	r := NewRunner(st, nil, scraper, finder, nil, nil, Config{Concurrency: 1})

	require.NoError(t, r.Execute(context.Background(), job, []string{"p1"}))

	final := st.job(job.ID)
	assert.Equal(t, model.JobCompleted, final.Status)
	assert.Equal(t, 1, final.TargetsSucceeded)
	assert.Zero(t, final.TargetsFailed)

	p := st.prospect("p1")
	assert.Equal(t, model.ScrapeDone, p.ScrapeStatus)
	assert.Nil(t, p.ContactEmail, "prospect stays emailless and scrape-eligible for a retry")
}

func TestExecute_Scrape_PrefersOnDomainEmailFromContent(t *testing.T) {
	st := newMemStore()
	seedProspect(st, "p1", "acme.com", nil)
	job := pendingJob(st, model.StageScrape, 1)

	scraper := &fakeScraper{content: map[string]string{
		"https://acme.com": "Support by widget@thirdparty.io. Reach us at Hello@acme.com today.",
	}}
	r := NewRunner(st, nil, scraper, &fakeFinder{}, nil, nil, Config{Concurrency: 1})

	require.NoError(t, r.Execute(context.Background(), job, []string{"p1"}))

	p := st.prospect("p1")
	require.NotNil(t, p.ContactEmail)
	assert.Equal(t, "hello@acme.com", *p.ContactEmail)
	assert.Equal(t, "site", p.EmailSource)
}

func TestExecute_Scrape_FailureIsolation(t *testing.T) {
	st := newMemStore()
	seedProspect(st, "p1", "up.com", nil)
	seedProspect(st, "p2", "down.com", nil)
	job := pendingJob(st, model.StageScrape, 2)

	scraper := &fakeScraper{
		content: map[string]string{"https://up.com": "fine"},
		err:     map[string]error{"https://down.com": eris.New("read timed out")},
	}
	r := NewRunner(st, nil, scraper, &fakeFinder{}, nil, nil, Config{Concurrency: 2})

	require.NoError(t, r.Execute(context.Background(), job, []string{"p1", "p2"}))

	final := st.job(job.ID)
	assert.Equal(t, model.JobCompleted, final.Status, "one bad target must not fail the job")
	assert.Equal(t, 2, final.TargetsProcessed)
	assert.Equal(t, 1, final.TargetsSucceeded)
	assert.Equal(t, 1, final.TargetsFailed)
	assert.Equal(t, model.ScrapeDone, st.prospect("p1").ScrapeStatus)
	assert.Equal(t, model.ScrapeNotStarted, st.prospect("p2").ScrapeStatus)
}

func TestExecute_StoreWriteFailureIsSystemic(t *testing.T) {
	st := newMemStore()
	seedProspect(st, "p1", "up.com", nil)
	job := pendingJob(st, model.StageScrape, 1)
	st.failRecord = true

	scraper := &fakeScraper{content: map[string]string{"https://up.com": "fine"}}
	r := NewRunner(st, nil, scraper, &fakeFinder{}, nil, nil, Config{Concurrency: 1})

	err := r.Execute(context.Background(), job, []string{"p1"})
	require.Error(t, err)
	assert.Equal(t, model.JobFailed, st.job(job.ID).Status)
}

func TestExecute_Verify_RecordsBothOutcomes(t *testing.T) {
	st := newMemStore()
	good, bad := "ok@a.com", "bounce@b.com"
	seedProspect(st, "p1", "a.com", func(p *model.Prospect) {
		p.ScrapeStatus = model.ScrapeDone
		p.ContactEmail = &good
	})
	seedProspect(st, "p2", "b.com", func(p *model.Prospect) {
		p.ScrapeStatus = model.ScrapeDone
		p.ContactEmail = &bad
	})
	job := pendingJob(st, model.StageVerify, 2)

	finder := &fakeFinder{deliverable: map[string]bool{good: true, bad: false}}
	r := NewRunner(st, nil, nil, finder, nil, nil, Config{Concurrency: 2})

	require.NoError(t, r.Execute(context.Background(), job, []string{"p1", "p2"}))

	final := st.job(job.ID)
	assert.Equal(t, 2, final.TargetsSucceeded, "an invalid address is still a processed outcome")
	assert.Equal(t, model.VerificationVerified, st.prospect("p1").VerificationStatus)
	assert.Equal(t, model.VerificationInvalid, st.prospect("p2").VerificationStatus)
}

func TestExecute_Draft_WritesSurviveLaterFailure(t *testing.T) {
	st := newMemStore()
	email := "x@a.com"
	seedProspect(st, "p1", "a.com", func(p *model.Prospect) {
		p.VerificationStatus = model.VerificationVerified
		p.ContactEmail = &email
	})
	seedProspect(st, "p2", "missing", nil)
	st.mu.Lock()
	delete(st.prospects, "p2")
	st.mu.Unlock()
	job := pendingJob(st, model.StageDraft, 2)

	composer := &fakeComposer{draft: &Draft{Subject: "Hello", Body: "Quick note."}}
	r := NewRunner(st, nil, nil, nil, composer, nil, Config{Concurrency: 1})

	require.NoError(t, r.Execute(context.Background(), job, []string{"p1", "p2"}))

	final := st.job(job.ID)
	assert.Equal(t, model.JobCompleted, final.Status)
	assert.Equal(t, 1, final.TargetsFailed)

	p := st.prospect("p1")
	require.NotNil(t, p.DraftSubject)
	assert.Equal(t, "Hello", *p.DraftSubject, "draft written before the failing target is kept")
}

func TestExecute_Send_SkipsNonPendingProspect(t *testing.T) {
	st := newMemStore()
	email := "x@a.com"
	subject, body := "Hi", "Body"
	seedProspect(st, "p1", "a.com", func(p *model.Prospect) {
		p.VerificationStatus = model.VerificationVerified
		p.ContactEmail = &email
		p.DraftSubject = &subject
		p.DraftBody = &body
		p.OutreachStatus = model.OutreachReplied
	})
	job := pendingJob(st, model.StageSend, 1)

	sender := &fakeSender{at: time.Now().UTC()}
	r := NewRunner(st, nil, nil, nil, nil, sender, Config{Concurrency: 1})

	require.NoError(t, r.Execute(context.Background(), job, []string{"p1"}))

	assert.Empty(t, sender.sent, "a replied prospect must never be emailed again")
	assert.Equal(t, 1, st.job(job.ID).TargetsSucceeded)
	assert.Equal(t, model.OutreachReplied, st.prospect("p1").OutreachStatus)
}

func TestExecute_Send_MarksSentWithProviderTime(t *testing.T) {
	st := newMemStore()
	email := "x@a.com"
	subject, body := "Hi", "Body"
	seedProspect(st, "p1", "a.com", func(p *model.Prospect) {
		p.VerificationStatus = model.VerificationVerified
		p.ContactEmail = &email
		p.DraftSubject = &subject
		p.DraftBody = &body
	})
	job := pendingJob(st, model.StageSend, 1)

	sentAt := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	sender := &fakeSender{at: sentAt}
	r := NewRunner(st, nil, nil, nil, nil, sender, Config{Concurrency: 1})

	require.NoError(t, r.Execute(context.Background(), job, []string{"p1"}))

	p := st.prospect("p1")
	assert.Equal(t, model.OutreachSent, p.OutreachStatus)
	require.NotNil(t, p.LastSent)
	assert.Equal(t, sentAt, *p.LastSent)
	assert.Equal(t, []string{email}, sender.sent)
}

func TestExecute_Followup_SuppressedAfterReply(t *testing.T) {
	st := newMemStore()
	email := "x@a.com"
	subject, body := "Hi", "Body"
	last := time.Now().Add(-10 * 24 * time.Hour)
	seedProspect(st, "p1", "a.com", func(p *model.Prospect) {
		p.ContactEmail = &email
		p.DraftSubject = &subject
		p.DraftBody = &body
		p.OutreachStatus = model.OutreachReplied
		p.LastSent = &last
	})
	job := pendingJob(st, model.StageFollowup, 1)

	sender := &fakeSender{at: time.Now().UTC()}
	composer := &fakeComposer{draft: &Draft{Subject: "Re: Hi", Body: "Bump."}}
	r := NewRunner(st, nil, nil, nil, composer, sender, Config{Concurrency: 1})

	require.NoError(t, r.Execute(context.Background(), job, []string{"p1"}))

	assert.Empty(t, sender.sent)
	assert.Zero(t, st.prospect("p1").FollowupsSent)
}

func TestExecute_Followup_SendsAndCounts(t *testing.T) {
	st := newMemStore()
	email := "x@a.com"
	subject, body := "Hi", "Body"
	last := time.Now().Add(-10 * 24 * time.Hour).UTC()
	seedProspect(st, "p1", "a.com", func(p *model.Prospect) {
		p.ContactEmail = &email
		p.DraftSubject = &subject
		p.DraftBody = &body
		p.OutreachStatus = model.OutreachSent
		p.LastSent = &last
	})
	job := pendingJob(st, model.StageFollowup, 1)

	sentAt := time.Now().UTC()
	sender := &fakeSender{at: sentAt}
	composer := &fakeComposer{draft: &Draft{Subject: "Re: Hi", Body: "Bump."}}
	r := NewRunner(st, nil, nil, nil, composer, sender, Config{Concurrency: 1})

	require.NoError(t, r.Execute(context.Background(), job, []string{"p1"}))

	p := st.prospect("p1")
	assert.Equal(t, 1, p.FollowupsSent)
	require.NotNil(t, p.LastSent)
	assert.Equal(t, sentAt, *p.LastSent)
	assert.Equal(t, model.OutreachSent, p.OutreachStatus, "a followup does not change outreach status")
}

func TestExecute_MissingCollaboratorFailsTargets(t *testing.T) {
	st := newMemStore()
	seedProspect(st, "p1", "a.com", nil)
	job := pendingJob(st, model.StageScrape, 1)

	r := NewRunner(st, nil, nil, nil, nil, nil, Config{Concurrency: 1})

	// No scraper configured: the target fails but the loop is healthy.
	require.NoError(t, r.Execute(context.Background(), job, []string{"p1"}))
	final := st.job(job.ID)
	assert.Equal(t, model.JobCompleted, final.Status)
	assert.Equal(t, 1, final.TargetsFailed)
}

func TestCanonicalDomain(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "https://www.Acme.COM/about", want: "acme.com"},
		{in: "fresh.io", want: "fresh.io"},
		{in: "http://sub.domain.co.uk/path?q=1", want: "sub.domain.co.uk"},
		{in: "", wantErr: true},
		{in: "://bad", wantErr: true},
	}
	for _, tt := range tests {
		got, err := CanonicalDomain(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

// startFailStore simulates a store outage at the pending->running flip.
type startFailStore struct {
	*memStore
}

func (s *startFailStore) StartJob(context.Context, string) error {
	return eris.New("read tcp: connection reset by peer")
}

func TestExecute_StartFailureReleasesJobLock(t *testing.T) {
	st := newMemStore()
	job := pendingJob(st, model.StageScrape, 0)

	r := NewRunner(&startFailStore{memStore: st}, nil, nil, nil, nil, nil, Config{})
	err := r.Execute(context.Background(), job, nil)
	require.Error(t, err)

	got := st.job(job.ID)
	assert.Equal(t, model.JobFailed, got.Status, "an unstarted job must still reach a terminal state")
	assert.Contains(t, got.ErrorMessage, "start")
	assert.NotNil(t, got.CompletedAt)
}
