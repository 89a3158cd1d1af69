package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/unclebandit/pulse-scheduler/internal/errors"
	"github.com/unclebandit/pulse-scheduler/internal/model"
	"github.com/unclebandit/pulse-scheduler/internal/repository"
)

func newMockStore(t *testing.T) (*repository.PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return repository.NewPostgresStore(db), mock
}

var campaignCols = []string{
	"id", "company_id", "survey_id", "name", "kind", "frequency", "fire_time",
	"start_date", "end_date", "survey_start_date", "survey_end_date", "status",
	"question_per_survey", "day_of_week", "invites_data", "report_address",
	"suppress_empty_reports", "created_at", "updated_at",
}

func TestCampaignGetForUpdateScansRow(t *testing.T) {
	store, mock := newMockStore(t)
	fire := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	end := fire.AddDate(0, 6, 0)

	mock.ExpectQuery(`FROM campaigns WHERE id=\$1 FOR UPDATE`).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows(campaignCols).AddRow(
			"c1", "co1", "s1", "Weekly pulse", "pulse", "weekly", fire,
			nil, end, nil, nil, "active",
			3, int64(1), []byte(`[{"email":"a@x.io","name":"A"}]`), "",
			false, fire, nil,
		))

	c, err := store.Campaigns().GetForUpdate(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, model.CampaignKindPulse, c.Kind)
	assert.Equal(t, model.FrequencyWeekly, c.Frequency)
	assert.Equal(t, model.CampaignStatusActive, c.Status)
	assert.Nil(t, c.StartDate)
	require.NotNil(t, c.EndDate)
	assert.True(t, end.Equal(*c.EndDate))
	require.NotNil(t, c.DayOfWeek)
	assert.Equal(t, time.Monday, *c.DayOfWeek)
	require.Len(t, c.InvitesData, 1)
	assert.Equal(t, "a@x.io", c.InvitesData[0].Email)
}

func TestCampaignGetByIDNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`FROM campaigns WHERE id=\$1`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(campaignCols))

	_, err := store.Campaigns().GetByID(context.Background(), "missing")
	var nf *appErrors.ErrCampaignNotFound
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "missing", nf.CampaignID)
}

func TestCampaignUpdateScheduleMissingRow(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(`UPDATE campaigns`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Campaigns().UpdateSchedule(context.Background(), &model.Campaign{ID: "gone"})
	assert.True(t, appErrors.IsNotFound(err))
}

func TestCampaignListDue(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT id FROM campaigns`).
		WithArgs(now, 10).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("c1").AddRow("c2"))

	ids, err := store.Campaigns().ListDue(context.Background(), now, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2"}, ids)
}

func TestWithTxCommitsOnSuccess(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE rounds SET status=\$1 WHERE id=\$2`).
		WithArgs(model.RoundStatusCompleted, "r1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.WithTx(context.Background(), func(tx repository.Tx) error {
		return tx.Rounds().UpdateStatus(context.Background(), "r1", model.RoundStatusCompleted)
	})
	require.NoError(t, err)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	store, mock := newMockStore(t)
	boom := errors.New("boom")
	mock.ExpectBegin()
	mock.ExpectRollback()

	err := store.WithTx(context.Background(), func(tx repository.Tx) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestWithTxReportsCommitFailure(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(errors.New("connection reset"))

	err := store.WithTx(context.Background(), func(tx repository.Tx) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "commit tx")
}

func TestRoundLastNumberAndListActive(t *testing.T) {
	store, mock := newMockStore(t)
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT COALESCE\(MAX\(number\), 0\) FROM rounds`).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(4))
	mock.ExpectQuery(`FROM rounds\s+WHERE campaign_id=\$1 AND status='active'`).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "campaign_id", "number", "start_date", "end_date", "day_of_week",
			"status", "reminders_counter", "created_at",
		}).AddRow("r4", "c1", 4, start, start.AddDate(0, 0, 7), nil, "active", 0, start))

	n, err := store.Rounds().LastNumber(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	rounds, err := store.Rounds().ListActive(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, rounds, 1)
	assert.Equal(t, 4, rounds[0].Number)
	assert.Nil(t, rounds[0].DayOfWeek)
	assert.Equal(t, model.RoundStatusActive, rounds[0].Status)
}

func TestRoundGetByIDNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`FROM rounds WHERE id=\$1`).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.Rounds().GetByID(context.Background(), "nope")
	var nf *appErrors.ErrRoundNotFound
	assert.ErrorAs(t, err, &nf)
}

func TestRoundCreateFillsIdentity(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(`INSERT INTO rounds`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	r := &model.Round{CampaignID: "c1", Number: 1}
	require.NoError(t, store.Rounds().Create(context.Background(), r))
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, model.RoundStatusActive, r.Status)
	assert.False(t, r.CreatedAt.IsZero())
}

func TestRecipientListByCampaignDecodesArrays(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`FROM recipients`).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "campaign_id", "email", "name", "phone", "tags", "unsubscribe", "survey_items",
		}).
			AddRow("p1", "c1", "a@x.io", "A", "", []byte("{eng,ops}"), false, []byte("{i1,i2}")).
			AddRow("p2", "c1", "b@x.io", "B", "", []byte("{}"), true, []byte("{}")))

	got, err := store.Recipients().ListByCampaign(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"eng", "ops"}, got[0].Tags)
	assert.Equal(t, model.NewItemSet("i1", "i2"), got[0].SurveyItems)
	assert.True(t, got[1].Unsubscribe)
	assert.Equal(t, 0, got[1].SurveyItems.Len())
}

func TestResultCountStartedBetween(t *testing.T) {
	store, mock := newMockStore(t)
	from := time.Date(2026, 2, 23, 9, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 7)
	mock.ExpectQuery(`SELECT COUNT\(\*\)\s+FROM round_results`).
		WithArgs("s1", from, to).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))

	n, err := store.Results().CountStartedBetween(context.Background(), "s1", from, to)
	require.NoError(t, err)
	assert.Equal(t, 12, n)
}

func TestCatalogEligibleItems(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`FROM items i\s+JOIN drivers d`).
		WithArgs("co1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "driver_id", "text", "status"}).
			AddRow("i1", "d1", "How was your week?", "active"))

	items, err := store.Catalog().EligibleItems(context.Background(), "co1")
	require.NoError(t, err)
	assert.Equal(t, []model.Item{{ID: "i1", DriverID: "d1", Text: "How was your week?", Status: model.ItemStatusActive}}, items)
}

func TestCompanyGetForUpdate(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`FROM companies\s+WHERE id=\$1\s+FOR UPDATE`).
		WithArgs("co1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "admin_email", "invite_quota"}).
			AddRow("co1", "Acme", "admin@acme.io", 40))

	c, err := store.Companies().GetForUpdate(context.Background(), "co1")
	require.NoError(t, err)
	assert.Equal(t, 40, c.InviteQuota)
}

func TestOutboxCreateAndStats(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(`INSERT INTO outbound_messages`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT status, COUNT\(\*\) FROM outbound_messages`).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("sent", 3).AddRow("failed", 1))

	msg := &model.OutboundMessage{CampaignID: "c1", Kind: model.MessageKindInvite, Address: "a@x.io"}
	require.NoError(t, store.Outbox().Create(context.Background(), msg))
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, model.MessageStatusPending, msg.Status)

	stats, err := store.Outbox().GetCampaignStats(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"total": 4, "pending": 0, "sent": 3, "failed": 1}, stats)
}
