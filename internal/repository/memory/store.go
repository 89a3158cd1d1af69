// Package memory is an in-process repository.Store. Each WithTx call works on
// a private copy of the data and publishes it only when fn succeeds, so a
// failed unit of work leaves nothing behind. Transactions are serialised.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	appErrors "github.com/unclebandit/pulse-scheduler/internal/errors"
	"github.com/unclebandit/pulse-scheduler/internal/model"
	"github.com/unclebandit/pulse-scheduler/internal/repository"
)

// ErrDuplicate mirrors a unique constraint violation.
var ErrDuplicate = errors.New("duplicate key")

type Store struct {
	mu   sync.Mutex
	data *state

	// Now stamps created rows. Defaults to time.Now in UTC.
	Now func() time.Time
	// FailCommit, when set, is returned by the next WithTx instead of
	// publishing its writes.
	FailCommit error
}

type state struct {
	campaigns   map[string]*model.Campaign
	rounds      map[string]*model.Round
	recipients  map[string]*model.Recipient
	results     map[string]*model.RoundResult
	resultOrder []string
	drivers     map[string]model.Driver
	items       map[string]model.Item
	companies   map[string]*model.Company
	outbox      map[string]*model.OutboundMessage
	outboxOrder []string
}

func New() *Store {
	return &Store{
		data: &state{
			campaigns:  map[string]*model.Campaign{},
			rounds:     map[string]*model.Round{},
			recipients: map[string]*model.Recipient{},
			results:    map[string]*model.RoundResult{},
			drivers:    map[string]model.Driver{},
			items:      map[string]model.Item{},
			companies:  map[string]*model.Company{},
			outbox:     map[string]*model.OutboundMessage{},
		},
		Now: func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) WithTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.data.clone()
	v := &view{now: s.Now, run: func(f func(*state) error) error { return f(work) }}
	if err := fn(v); err != nil {
		return err
	}
	if s.FailCommit != nil {
		err := s.FailCommit
		s.FailCommit = nil
		return fmt.Errorf("commit tx: %w", err)
	}
	s.data = work
	return nil
}

func (s *Store) direct() *view {
	return &view{now: s.Now, run: func(f func(*state) error) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		return f(s.data)
	}}
}

func (s *Store) Campaigns() repository.CampaignRepositoryInterface   { return campaigns{s.direct()} }
func (s *Store) Rounds() repository.RoundRepositoryInterface         { return rounds{s.direct()} }
func (s *Store) Recipients() repository.RecipientRepositoryInterface { return recipients{s.direct()} }
func (s *Store) Results() repository.RoundResultRepositoryInterface  { return results{s.direct()} }
func (s *Store) Catalog() repository.CatalogRepositoryInterface      { return catalog{s.direct()} }
func (s *Store) Companies() repository.CompanyRepositoryInterface    { return companies{s.direct()} }
func (s *Store) Outbox() repository.OutboundMessageRepositoryInterface {
	return outbox{s.direct()}
}

// view binds the repositories to either the committed data or a transaction's copy.
type view struct {
	now func() time.Time
	run func(func(*state) error) error
}

func (v *view) Campaigns() repository.CampaignRepositoryInterface   { return campaigns{v} }
func (v *view) Rounds() repository.RoundRepositoryInterface         { return rounds{v} }
func (v *view) Recipients() repository.RecipientRepositoryInterface { return recipients{v} }
func (v *view) Results() repository.RoundResultRepositoryInterface  { return results{v} }
func (v *view) Catalog() repository.CatalogRepositoryInterface      { return catalog{v} }
func (v *view) Companies() repository.CompanyRepositoryInterface    { return companies{v} }
func (v *view) Outbox() repository.OutboundMessageRepositoryInterface {
	return outbox{v}
}

// Seeding and inspection helpers used by tests and the dev server.

func (s *Store) PutCampaign(c model.Campaign) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.campaigns[c.ID] = copyCampaign(&c)
}

func (s *Store) PutRound(r model.Round) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.rounds[r.ID] = &r
}

func (s *Store) PutRecipient(r model.Recipient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.SurveyItems == nil {
		r.SurveyItems = model.NewItemSet()
	}
	s.data.recipients[r.ID] = copyRecipient(&r)
}

func (s *Store) PutResult(r model.RoundResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data.results[r.ID]; !ok {
		s.data.resultOrder = append(s.data.resultOrder, r.ID)
	}
	s.data.results[r.ID] = copyResult(&r)
}

func (s *Store) PutDriver(d model.Driver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.drivers[d.ID] = d
}

func (s *Store) PutItem(it model.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.items[it.ID] = it
}

func (s *Store) PutCompany(c model.Company) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.companies[c.ID] = &c
}

// Company returns a copy of the stored company, or nil.
func (s *Store) Company(id string) *model.Company {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.data.companies[id]
	if !ok {
		return nil
	}
	out := *c
	return &out
}

// RoundsOf returns every round of the campaign ordered by number.
func (s *Store) RoundsOf(campaignID string) []*model.Round {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Round
	for _, r := range s.data.rounds {
		if r.CampaignID == campaignID {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// Messages returns every outbox row in creation order.
func (s *Store) Messages() []*model.OutboundMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.OutboundMessage, 0, len(s.data.outboxOrder))
	for _, id := range s.data.outboxOrder {
		out = append(out, copyMessage(s.data.outbox[id]))
	}
	return out
}

func (st *state) clone() *state {
	out := &state{
		campaigns:   make(map[string]*model.Campaign, len(st.campaigns)),
		rounds:      make(map[string]*model.Round, len(st.rounds)),
		recipients:  make(map[string]*model.Recipient, len(st.recipients)),
		results:     make(map[string]*model.RoundResult, len(st.results)),
		resultOrder: append([]string(nil), st.resultOrder...),
		drivers:     make(map[string]model.Driver, len(st.drivers)),
		items:       make(map[string]model.Item, len(st.items)),
		companies:   make(map[string]*model.Company, len(st.companies)),
		outbox:      make(map[string]*model.OutboundMessage, len(st.outbox)),
		outboxOrder: append([]string(nil), st.outboxOrder...),
	}
	for k, v := range st.campaigns {
		out.campaigns[k] = copyCampaign(v)
	}
	for k, v := range st.rounds {
		cp := *v
		out.rounds[k] = &cp
	}
	for k, v := range st.recipients {
		out.recipients[k] = copyRecipient(v)
	}
	for k, v := range st.results {
		out.results[k] = copyResult(v)
	}
	for k, v := range st.drivers {
		out.drivers[k] = v
	}
	for k, v := range st.items {
		out.items[k] = v
	}
	for k, v := range st.companies {
		cp := *v
		out.companies[k] = &cp
	}
	for k, v := range st.outbox {
		out.outbox[k] = copyMessage(v)
	}
	return out
}

func copyCampaign(c *model.Campaign) *model.Campaign {
	cp := *c
	cp.InvitesData = append([]model.InviteData(nil), c.InvitesData...)
	return &cp
}

func copyRecipient(r *model.Recipient) *model.Recipient {
	cp := *r
	cp.Tags = append([]string(nil), r.Tags...)
	cp.SurveyItems = r.SurveyItems.Clone()
	return &cp
}

func copyResult(r *model.RoundResult) *model.RoundResult {
	cp := *r
	cp.SurveyItems = append([]string(nil), r.SurveyItems...)
	return &cp
}

func copyMessage(m *model.OutboundMessage) *model.OutboundMessage {
	cp := *m
	cp.Payload = append([]byte(nil), m.Payload...)
	return &cp
}

type campaigns struct{ v *view }

func (r campaigns) GetByID(ctx context.Context, id string) (*model.Campaign, error) {
	var out *model.Campaign
	err := r.v.run(func(st *state) error {
		c, ok := st.campaigns[id]
		if !ok {
			return appErrors.NewCampaignNotFound(id)
		}
		out = copyCampaign(c)
		return nil
	})
	return out, err
}

// GetForUpdate needs no extra locking: transactions already run one at a time.
func (r campaigns) GetForUpdate(ctx context.Context, id string) (*model.Campaign, error) {
	return r.GetByID(ctx, id)
}

func (r campaigns) UpdateSchedule(ctx context.Context, c *model.Campaign) error {
	return r.v.run(func(st *state) error {
		stored, ok := st.campaigns[c.ID]
		if !ok {
			return appErrors.NewCampaignNotFound(c.ID)
		}
		now := r.v.now()
		stored.Frequency = c.Frequency
		stored.FireTime = c.FireTime
		stored.Status = c.Status
		stored.UpdatedAt = &now
		c.UpdatedAt = &now
		return nil
	})
}

func (r campaigns) ListDue(ctx context.Context, now time.Time, limit int) ([]string, error) {
	var due []*model.Campaign
	err := r.v.run(func(st *state) error {
		for _, c := range st.campaigns {
			if c.Status == model.CampaignStatusActive && !c.FireTime.After(now) {
				due = append(due, c)
			}
		}
		return nil
	})
	sort.Slice(due, func(i, j int) bool {
		if due[i].FireTime.Equal(due[j].FireTime) {
			return due[i].ID < due[j].ID
		}
		return due[i].FireTime.Before(due[j].FireTime)
	})
	ids := []string{}
	for _, c := range due {
		if limit > 0 && len(ids) == limit {
			break
		}
		ids = append(ids, c.ID)
	}
	return ids, err
}

type rounds struct{ v *view }

func (r rounds) GetByID(ctx context.Context, id string) (*model.Round, error) {
	var out *model.Round
	err := r.v.run(func(st *state) error {
		round, ok := st.rounds[id]
		if !ok {
			return appErrors.NewRoundNotFound(id)
		}
		cp := *round
		out = &cp
		return nil
	})
	return out, err
}

func (r rounds) Create(ctx context.Context, round *model.Round) error {
	return r.v.run(func(st *state) error {
		if round.ID == "" {
			round.ID = uuid.NewString()
		}
		if round.Status == "" {
			round.Status = model.RoundStatusActive
		}
		if _, ok := st.rounds[round.ID]; ok {
			return fmt.Errorf("round %s: %w", round.ID, ErrDuplicate)
		}
		if round.Status == model.RoundStatusActive {
			for _, other := range st.rounds {
				if other.CampaignID == round.CampaignID && other.Status == model.RoundStatusActive {
					return fmt.Errorf("active round for campaign %s: %w", round.CampaignID, ErrDuplicate)
				}
			}
		}
		round.CreatedAt = r.v.now()
		cp := *round
		st.rounds[round.ID] = &cp
		return nil
	})
}

func (r rounds) ListActive(ctx context.Context, campaignID string) ([]*model.Round, error) {
	out := []*model.Round{}
	err := r.v.run(func(st *state) error {
		for _, round := range st.rounds {
			if round.CampaignID == campaignID && round.Status == model.RoundStatusActive {
				cp := *round
				out = append(out, &cp)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, err
}

func (r rounds) LastNumber(ctx context.Context, campaignID string) (int, error) {
	n := 0
	err := r.v.run(func(st *state) error {
		for _, round := range st.rounds {
			if round.CampaignID == campaignID && round.Number > n {
				n = round.Number
			}
		}
		return nil
	})
	return n, err
}

func (r rounds) UpdateStatus(ctx context.Context, id string, status model.RoundStatus) error {
	return r.v.run(func(st *state) error {
		round, ok := st.rounds[id]
		if !ok {
			return appErrors.NewRoundNotFound(id)
		}
		round.Status = status
		return nil
	})
}

func (r rounds) UpdateRemindersCounter(ctx context.Context, id string, counter int) error {
	return r.v.run(func(st *state) error {
		round, ok := st.rounds[id]
		if !ok {
			return appErrors.NewRoundNotFound(id)
		}
		round.RemindersCounter = counter
		return nil
	})
}

type recipients struct{ v *view }

func (r recipients) ListByCampaign(ctx context.Context, campaignID string) ([]*model.Recipient, error) {
	out := []*model.Recipient{}
	err := r.v.run(func(st *state) error {
		for _, rc := range st.recipients {
			if rc.CampaignID == campaignID {
				out = append(out, copyRecipient(rc))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

func (r recipients) UpdateSurveyItems(ctx context.Context, id string, items model.ItemSet) error {
	return r.v.run(func(st *state) error {
		rc, ok := st.recipients[id]
		if !ok {
			return fmt.Errorf("recipient %s not found", id)
		}
		rc.SurveyItems = items.Clone()
		return nil
	})
}

type results struct{ v *view }

func (r results) ListByRound(ctx context.Context, roundID string) ([]*model.RoundResult, error) {
	out := []*model.RoundResult{}
	err := r.v.run(func(st *state) error {
		for _, id := range st.resultOrder {
			if res := st.results[id]; res.RoundID == roundID {
				out = append(out, copyResult(res))
			}
		}
		return nil
	})
	return out, err
}

func (r results) Create(ctx context.Context, res *model.RoundResult) error {
	return r.v.run(func(st *state) error {
		for _, other := range st.results {
			if other.RoundID == res.RoundID && other.RecipientID == res.RecipientID {
				return fmt.Errorf("result for round %s recipient %s: %w", res.RoundID, res.RecipientID, ErrDuplicate)
			}
		}
		if res.ID == "" {
			res.ID = uuid.NewString()
		}
		if res.Token == "" {
			res.Token = uuid.NewString()
		}
		res.CreatedAt = r.v.now()
		st.results[res.ID] = copyResult(res)
		st.resultOrder = append(st.resultOrder, res.ID)
		return nil
	})
}

func (r results) CountStartedBetween(ctx context.Context, surveyID string, from, to time.Time) (int, error) {
	n := 0
	err := r.v.run(func(st *state) error {
		for _, res := range st.results {
			if res.StartedAt == nil || res.StartedAt.Before(from) || !res.StartedAt.Before(to) {
				continue
			}
			round, ok := st.rounds[res.RoundID]
			if !ok {
				continue
			}
			if c, ok := st.campaigns[round.CampaignID]; ok && c.SurveyID == surveyID {
				n++
			}
		}
		return nil
	})
	return n, err
}

type catalog struct{ v *view }

func (r catalog) ActiveDrivers(ctx context.Context, companyID string) ([]model.Driver, error) {
	out := []model.Driver{}
	err := r.v.run(func(st *state) error {
		for _, d := range st.drivers {
			if d.CompanyID == companyID && d.Active {
				out = append(out, d)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

func (r catalog) EligibleItems(ctx context.Context, companyID string) ([]model.Item, error) {
	out := []model.Item{}
	err := r.v.run(func(st *state) error {
		for _, it := range st.items {
			d, ok := st.drivers[it.DriverID]
			if ok && d.CompanyID == companyID && d.Active && it.Status == model.ItemStatusActive {
				out = append(out, it)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

type companies struct{ v *view }

func (r companies) GetForUpdate(ctx context.Context, id string) (*model.Company, error) {
	var out *model.Company
	err := r.v.run(func(st *state) error {
		c, ok := st.companies[id]
		if !ok {
			return fmt.Errorf("company %s not found", id)
		}
		cp := *c
		out = &cp
		return nil
	})
	return out, err
}

func (r companies) UpdateInviteQuota(ctx context.Context, id string, quota int) error {
	return r.v.run(func(st *state) error {
		c, ok := st.companies[id]
		if !ok {
			return fmt.Errorf("company %s not found", id)
		}
		c.InviteQuota = quota
		return nil
	})
}

type outbox struct{ v *view }

func (r outbox) Create(ctx context.Context, msg *model.OutboundMessage) error {
	return r.v.run(func(st *state) error {
		if msg.ID == "" {
			msg.ID = uuid.NewString()
		}
		if msg.Status == "" {
			msg.Status = model.MessageStatusPending
		}
		now := r.v.now()
		msg.CreatedAt = now
		msg.UpdatedAt = now
		st.outbox[msg.ID] = copyMessage(msg)
		st.outboxOrder = append(st.outboxOrder, msg.ID)
		return nil
	})
}

func (r outbox) GetByID(ctx context.Context, id string) (*model.OutboundMessage, error) {
	var out *model.OutboundMessage
	err := r.v.run(func(st *state) error {
		m, ok := st.outbox[id]
		if !ok {
			return fmt.Errorf("outbound message %s not found", id)
		}
		out = copyMessage(m)
		return nil
	})
	return out, err
}

func (r outbox) UpdateStatus(ctx context.Context, id string, status, lastError string) error {
	return r.v.run(func(st *state) error {
		m, ok := st.outbox[id]
		if !ok {
			return fmt.Errorf("outbound message %s not found", id)
		}
		m.Status = status
		m.LastError = lastError
		m.RetryCount++
		m.UpdatedAt = r.v.now()
		return nil
	})
}

func (r outbox) ListRetryable(ctx context.Context, before time.Time, maxAttempts, limit int) ([]*model.OutboundMessage, error) {
	out := []*model.OutboundMessage{}
	err := r.v.run(func(st *state) error {
		for _, id := range st.outboxOrder {
			if limit > 0 && len(out) == limit {
				break
			}
			m := st.outbox[id]
			if !m.CreatedAt.Before(before) {
				continue
			}
			if m.Status == model.MessageStatusPending ||
				(m.Status == model.MessageStatusFailed && m.RetryCount < maxAttempts) {
				out = append(out, copyMessage(m))
			}
		}
		return nil
	})
	return out, err
}

func (r outbox) GetCampaignStats(ctx context.Context, campaignID string) (map[string]int, error) {
	stats := map[string]int{
		"total":                   0,
		model.MessageStatusPending: 0,
		model.MessageStatusSent:    0,
		model.MessageStatusFailed:  0,
	}
	err := r.v.run(func(st *state) error {
		for _, m := range st.outbox {
			if m.CampaignID == campaignID {
				stats[m.Status]++
				stats["total"]++
			}
		}
		return nil
	})
	return stats, err
}

var _ repository.Store = (*Store)(nil)
