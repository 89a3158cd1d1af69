package service_test

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/unclebandit/pulse-scheduler/internal/model"
	"github.com/unclebandit/pulse-scheduler/internal/repository/memory"
	"github.com/unclebandit/pulse-scheduler/internal/selector"
	"github.com/unclebandit/pulse-scheduler/internal/service"
)

// monday is the anchor most scenarios fire at.
var monday = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type sent struct {
	Kind    model.MessageKind
	Address string
	Data    map[string]any
}

type fakeGateway struct {
	mu    sync.Mutex
	calls []sent
	fail  map[string]bool
}

func (g *fakeGateway) Notify(ctx context.Context, kind model.MessageKind, address string, data map[string]any) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, sent{Kind: kind, Address: address, Data: data})
	if g.fail[address] {
		return errors.New("mailbox unavailable")
	}
	return nil
}

func (g *fakeGateway) all() []sent {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]sent(nil), g.calls...)
}

func (g *fakeGateway) addresses(kind model.MessageKind) []string {
	var out []string
	for _, c := range g.all() {
		if c.Kind == kind {
			out = append(out, c.Address)
		}
	}
	return out
}

type env struct {
	ctx        context.Context
	now        time.Time
	store      *memory.Store
	gw         *fakeGateway
	dispatcher *service.Dispatcher
	builder    *service.RoundBuilder
	clock      *service.CampaignClock
	reminders  *service.ReminderEscalator
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{ctx: context.Background(), now: monday, store: memory.New(), gw: &fakeGateway{fail: map[string]bool{}}}
	clock := func() time.Time { return e.now }
	log := zap.NewNop()

	e.store.Now = clock
	e.dispatcher = service.NewDispatcher(e.store, e.gw, log)
	e.dispatcher.Now = clock
	e.builder = service.NewRoundBuilder(e.store, selector.New(rand.New(rand.NewSource(1))), e.dispatcher, log)
	e.builder.Now = clock
	e.clock = service.NewCampaignClock(e.store, e.builder, e.dispatcher, log)
	e.clock.Now = clock
	e.reminders = service.NewReminderEscalator(e.store, e.dispatcher, log, rand.New(rand.NewSource(2)))

	e.store.PutCompany(model.Company{ID: "co1", Name: "Acme", AdminEmail: "admin@acme.io", InviteQuota: 100})
	for _, d := range []model.Driver{
		{ID: "d1", CompanyID: "co1", Name: "Recognition", Weight: 1, Active: true},
		{ID: "d2", CompanyID: "co1", Name: "Growth", Weight: 2, Active: true},
	} {
		e.store.PutDriver(d)
	}
	for _, it := range []model.Item{
		{ID: "d1-a", DriverID: "d1", Status: model.ItemStatusActive},
		{ID: "d1-b", DriverID: "d1", Status: model.ItemStatusActive},
		{ID: "d1-c", DriverID: "d1", Status: model.ItemStatusActive},
		{ID: "d1-x", DriverID: "d1", Status: model.ItemStatusHidden},
		{ID: "d2-a", DriverID: "d2", Status: model.ItemStatusActive},
		{ID: "d2-b", DriverID: "d2", Status: model.ItemStatusActive},
		{ID: "d2-c", DriverID: "d2", Status: model.ItemStatusActive},
	} {
		e.store.PutItem(it)
	}
	return e
}

func (e *env) pulseCampaign(id string, freq model.Frequency, recipients ...string) model.Campaign {
	c := model.Campaign{
		ID:                id,
		CompanyID:         "co1",
		SurveyID:          "s-" + id,
		Name:              "Pulse " + id,
		Kind:              model.CampaignKindPulse,
		Frequency:         freq,
		FireTime:          e.now,
		Status:            model.CampaignStatusActive,
		QuestionPerSurvey: 2,
	}
	e.store.PutCampaign(c)
	for _, r := range recipients {
		e.store.PutRecipient(model.Recipient{ID: r, CampaignID: id, Email: r + "@acme.io", Name: r})
	}
	return c
}

func (e *env) campaign(t *testing.T, id string) *model.Campaign {
	t.Helper()
	c, err := e.store.Campaigns().GetByID(e.ctx, id)
	if err != nil {
		t.Fatalf("load campaign %s: %v", id, err)
	}
	return c
}

func (e *env) results(t *testing.T, roundID string) []*model.RoundResult {
	t.Helper()
	rs, err := e.store.Results().ListByRound(e.ctx, roundID)
	if err != nil {
		t.Fatalf("load results: %v", err)
	}
	return rs
}
