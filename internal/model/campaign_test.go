package model_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/pulse-scheduler/internal/model"
)

func TestCampaignWindow(t *testing.T) {
	day := func(d int) *time.Time {
		v := time.Date(2026, 3, d, 9, 0, 0, 0, time.UTC)
		return &v
	}
	c := model.Campaign{StartDate: day(5), EndDate: day(20), SurveyStartDate: day(8), SurveyEndDate: day(25)}

	assert.True(t, c.NotStartedAt(*day(4)))
	assert.True(t, c.NotStartedAt(*day(6)), "survey start is checked too")
	assert.False(t, c.NotStartedAt(*day(8)))

	assert.False(t, c.EndedAt(*day(20)), "the end instant itself is still inside")
	assert.True(t, c.EndedAt(*day(21)))

	open := model.Campaign{}
	assert.False(t, open.NotStartedAt(*day(1)))
	assert.False(t, open.EndedAt(*day(31)))
}

func TestRecipientAddressFallsBackToPhone(t *testing.T) {
	assert.Equal(t, "a@acme.io", (&model.Recipient{Email: "a@acme.io", Phone: "+1"}).Address())
	assert.Equal(t, "+1", (&model.Recipient{Phone: "+1"}).Address())
}

func TestOutboundMessageData(t *testing.T) {
	m := &model.OutboundMessage{Payload: json.RawMessage(`{"token":"t1","round_number":2}`)}
	data, err := m.Data()
	require.NoError(t, err)
	assert.Equal(t, "t1", data["token"])
	assert.Equal(t, float64(2), data["round_number"])

	empty, err := (&model.OutboundMessage{}).Data()
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = (&model.OutboundMessage{Payload: json.RawMessage(`[`)}).Data()
	assert.Error(t, err)
}
