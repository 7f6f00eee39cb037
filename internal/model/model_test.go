package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStageValid(t *testing.T) {
	for _, s := range Stages {
		assert.True(t, s.Valid(), "stage %s", s)
	}
	assert.False(t, Stage("deploy").Valid())
	assert.False(t, Stage("").Valid())
}

func TestJobStatusTerminal(t *testing.T) {
	assert.False(t, JobPending.Terminal())
	assert.False(t, JobRunning.Terminal())
	assert.True(t, JobCompleted.Terminal())
	assert.True(t, JobFailed.Terminal())
}

func TestProspectDrafted(t *testing.T) {
	subject, body, empty := "Hi", "Body", ""

	p := &Prospect{}
	assert.False(t, p.Drafted())

	p.DraftSubject = &subject
	assert.False(t, p.Drafted(), "subject alone is not a draft")

	p.DraftBody = &empty
	assert.False(t, p.Drafted())

	p.DraftBody = &body
	assert.True(t, p.Drafted())
}

func TestProspectEmailFound(t *testing.T) {
	email, empty := "jane@acme.com", ""

	p := &Prospect{}
	assert.False(t, p.EmailFound())

	p.ContactEmail = &empty
	assert.False(t, p.EmailFound())

	p.ContactEmail = &email
	assert.True(t, p.EmailFound())
}
