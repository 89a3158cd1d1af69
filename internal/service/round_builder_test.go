package service_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/unclebandit/pulse-scheduler/internal/errors"
	"github.com/unclebandit/pulse-scheduler/internal/model"
)

func activeRound(e *env, id, campaignID string, number int) {
	e.store.PutRound(model.Round{
		ID: id, CampaignID: campaignID, Number: number,
		StartDate: e.now, EndDate: e.now.AddDate(0, 0, 7),
		Status: model.RoundStatusActive,
	})
}

func TestProcessIsIdempotent(t *testing.T) {
	e := newEnv(t)
	e.pulseCampaign("c1", model.FrequencyWeekly, "p1", "p2", "p3")
	activeRound(e, "r1", "c1", 1)

	first, err := e.builder.Process(e.ctx, "r1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"p1", "p2", "p3"}, first.Processed)
	assert.Empty(t, first.Skipped)

	second, err := e.builder.Process(e.ctx, "r1")
	require.NoError(t, err)
	assert.Empty(t, second.Processed)
	assert.ElementsMatch(t, []string{"p1", "p2", "p3"}, second.Skipped)

	assert.Len(t, e.results(t, "r1"), 3)
	assert.Len(t, e.gw.addresses(model.MessageKindInvite), 3)
}

func TestProcessPicksUpLateRecipients(t *testing.T) {
	e := newEnv(t)
	e.pulseCampaign("c1", model.FrequencyWeekly, "p1")
	activeRound(e, "r1", "c1", 1)

	_, err := e.builder.Process(e.ctx, "r1")
	require.NoError(t, err)

	e.store.PutRecipient(model.Recipient{ID: "p2", CampaignID: "c1", Email: "p2@acme.io"})
	res, err := e.builder.Process(e.ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, []string{"p2"}, res.Processed)
	assert.Equal(t, []string{"p1"}, res.Skipped)
}

func TestProcessPersistsRecipientMemory(t *testing.T) {
	e := newEnv(t)
	e.pulseCampaign("c1", model.FrequencyWeekly, "p1")
	activeRound(e, "r1", "c1", 1)

	_, err := e.builder.Process(e.ctx, "r1")
	require.NoError(t, err)

	results := e.results(t, "r1")
	require.Len(t, results, 1)
	recipients, err := e.store.Recipients().ListByCampaign(e.ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, model.NewItemSet(results[0].SurveyItems...), recipients[0].SurveyItems)
}

func TestProcessRotatesAcrossRounds(t *testing.T) {
	e := newEnv(t)
	c := e.pulseCampaign("c1", model.FrequencyWeekly, "p1")
	c.QuestionPerSurvey = 3
	e.store.PutCampaign(c)

	seen := model.NewItemSet()
	for n, id := range []string{"r1", "r2"} {
		activeRound(e, id, "c1", n+1)
		_, err := e.builder.Process(e.ctx, id)
		require.NoError(t, err)
		require.NoError(t, e.store.Rounds().UpdateStatus(e.ctx, id, model.RoundStatusCompleted))
		for _, item := range e.results(t, id)[0].SurveyItems {
			seen.Add(item)
		}
	}
	assert.Equal(t, 6, seen.Len(), "two rounds of three cover the six eligible items")
}

func TestProcessSkipsUnsubscribedRecipients(t *testing.T) {
	e := newEnv(t)
	e.pulseCampaign("c1", model.FrequencyWeekly, "p1")
	e.store.PutRecipient(model.Recipient{ID: "gone", CampaignID: "c1", Email: "gone@acme.io", Unsubscribe: true})
	activeRound(e, "r1", "c1", 1)

	res, err := e.builder.Process(e.ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, res.Processed)
	assert.Equal(t, []string{"gone"}, res.Skipped)
}

func TestProcessWithEmptyCatalogSkipsEveryone(t *testing.T) {
	e := newEnv(t)
	e.store.PutDriver(model.Driver{ID: "d1", CompanyID: "co1", Active: false})
	e.store.PutDriver(model.Driver{ID: "d2", CompanyID: "co1", Active: false})
	e.pulseCampaign("c1", model.FrequencyWeekly, "p1", "p2")
	activeRound(e, "r1", "c1", 1)

	res, err := e.builder.Process(e.ctx, "r1")
	require.NoError(t, err)
	assert.Empty(t, res.Processed)
	assert.ElementsMatch(t, []string{"p1", "p2"}, res.Skipped)
	assert.Empty(t, e.results(t, "r1"))
	assert.Empty(t, e.gw.all())
}

func TestProcessRejectsCompletedRound(t *testing.T) {
	e := newEnv(t)
	e.pulseCampaign("c1", model.FrequencyWeekly, "p1")
	e.store.PutRound(model.Round{ID: "r1", CampaignID: "c1", Number: 1, Status: model.RoundStatusCompleted})

	_, err := e.builder.Process(e.ctx, "r1")
	assert.ErrorIs(t, err, appErrors.ErrRoundNotActive)
}

func TestProcessUnknownRound(t *testing.T) {
	e := newEnv(t)
	_, err := e.builder.Process(e.ctx, "nope")
	var nf *appErrors.ErrRoundNotFound
	assert.ErrorAs(t, err, &nf)
}

func TestInviteFailureDoesNotUndoAssignment(t *testing.T) {
	e := newEnv(t)
	e.pulseCampaign("c1", model.FrequencyWeekly, "p1", "p2")
	e.gw.fail["p2@acme.io"] = true
	activeRound(e, "r1", "c1", 1)

	res, err := e.builder.Process(e.ctx, "r1")
	require.NoError(t, err)
	assert.Len(t, res.Processed, 2)
	assert.Equal(t, 1, res.Dispatch.Sent)
	assert.Equal(t, 1, res.Dispatch.Failed)
	assert.Len(t, e.results(t, "r1"), 2)
}
