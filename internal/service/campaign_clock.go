package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/unclebandit/pulse-scheduler/internal/errors"
	"github.com/unclebandit/pulse-scheduler/internal/model"
	"github.com/unclebandit/pulse-scheduler/internal/repository"
)

type Outcome string

const (
	OutcomeNoop         Outcome = "noop"
	OutcomeNotStarted   Outcome = "not_started"
	OutcomeFinished     Outcome = "finished"
	OutcomeRoundCreated Outcome = "round_created"
	OutcomeRoundPending Outcome = "round_pending"
	OutcomeInvitesSent  Outcome = "invites_sent"
	OutcomePausedQuota  Outcome = "paused_quota"
	OutcomeReportSent   Outcome = "report_sent"
	OutcomeReportSkip   Outcome = "report_skipped"
)

type TickResult struct {
	CampaignID      string               `json:"campaign_id"`
	Outcome         Outcome              `json:"outcome"`
	Reason          string               `json:"reason,omitempty"`
	Status          model.CampaignStatus `json:"status"`
	FireTime        time.Time            `json:"fire_time"`
	RoundID         string               `json:"round_id,omitempty"`
	CompletedRounds []string             `json:"completed_rounds,omitempty"`
	Process         *ProcessResult       `json:"process,omitempty"`
	Staged          int                  `json:"staged"`
	Dispatch        *DispatchReport      `json:"dispatch,omitempty"`

	messages []*model.OutboundMessage
}

func (r *TickResult) add(msgs ...*model.OutboundMessage) {
	r.messages = append(r.messages, msgs...)
	r.Staged = len(r.messages)
}

// dueBehavior is what a campaign kind does once its fire time is reached and
// the validity window checks passed. It runs inside the tick transaction and
// owns rescheduling.
type dueBehavior interface {
	fire(ctx context.Context, tx repository.Tx, c *model.Campaign, now time.Time, res *TickResult) error
}

// CampaignClock drives the fire-time state machine of campaigns.
type CampaignClock struct {
	Store      repository.Store
	Builder    *RoundBuilder
	Dispatcher *Dispatcher
	Logger     *zap.Logger
	Now        func() time.Time

	behaviors map[model.CampaignKind]dueBehavior
}

func NewCampaignClock(store repository.Store, builder *RoundBuilder, dispatcher *Dispatcher, logger *zap.Logger) *CampaignClock {
	c := &CampaignClock{
		Store:      store,
		Builder:    builder,
		Dispatcher: dispatcher,
		Logger:     logger,
		Now:        func() time.Time { return time.Now().UTC() },
	}
	c.behaviors = map[model.CampaignKind]dueBehavior{
		model.CampaignKindPulse:  &pulseBehavior{builder: builder},
		model.CampaignKindInvite: inviteBehavior{},
		model.CampaignKindReport: reportBehavior{},
	}
	return c
}

// Tick fires the campaign if it is due. It is safe to call at any time.
func (c *CampaignClock) Tick(ctx context.Context, campaignID string) (*TickResult, error) {
	now := c.Now()
	var res *TickResult

	err := c.Store.WithTx(ctx, func(tx repository.Tx) error {
		res = &TickResult{CampaignID: campaignID, Outcome: OutcomeNoop}

		campaign, err := tx.Campaigns().GetForUpdate(ctx, campaignID)
		if err != nil {
			return err
		}
		defer func() {
			res.Status = campaign.Status
			res.FireTime = campaign.FireTime
		}()

		if campaign.Status != model.CampaignStatusActive || campaign.FireTime.After(now) {
			return nil
		}
		if campaign.NotStartedAt(campaign.FireTime) {
			res.Outcome = OutcomeNotStarted
			return nil
		}
		if campaign.EndedAt(campaign.FireTime) {
			campaign.Status = model.CampaignStatusFinished
			res.Outcome = OutcomeFinished
			return tx.Campaigns().UpdateSchedule(ctx, campaign)
		}

		behavior, ok := c.behaviors[campaign.Kind]
		if !ok {
			return fmt.Errorf("campaign %s has unknown kind %q", campaign.ID, campaign.Kind)
		}
		return behavior.fire(ctx, tx, campaign, now, res)
	})
	if err != nil {
		return nil, appErrors.Persistence("tick", err)
	}

	if len(res.messages) > 0 {
		res.Dispatch = c.Dispatcher.Dispatch(ctx, res.messages)
		if res.Process != nil {
			res.Process.Dispatch = res.Dispatch
		}
	}
	if res.Outcome != OutcomeNoop {
		c.Logger.Info("campaign ticked",
			zap.String("campaign_id", campaignID),
			zap.String("outcome", string(res.Outcome)),
			zap.String("status", string(res.Status)),
			zap.Time("fire_time", res.FireTime),
			zap.Int("staged", res.Staged),
		)
	}
	return res, nil
}

// reschedule moves a fired campaign to its next period. once campaigns, and
// campaigns whose next fire time falls past their end, finish instead.
func reschedule(c *model.Campaign) {
	if c.Frequency == model.FrequencyOnce || c.Frequency.Delay().IsZero() {
		c.Status = model.CampaignStatusFinished
		return
	}
	c.FireTime = c.Frequency.Advance(c.FireTime)
	if c.EndedAt(c.FireTime) {
		c.Status = model.CampaignStatusFinished
	}
}

type pulseBehavior struct {
	builder *RoundBuilder
}

func (p *pulseBehavior) fire(ctx context.Context, tx repository.Tx, c *model.Campaign, now time.Time, res *TickResult) error {
	active, err := tx.Rounds().ListActive(ctx, c.ID)
	if err != nil {
		return err
	}
	open := false
	for _, r := range active {
		if r.EndDate.After(now) {
			open = true
			res.RoundID = r.ID
			continue
		}
		if err := tx.Rounds().UpdateStatus(ctx, r.ID, model.RoundStatusCompleted); err != nil {
			return err
		}
		res.CompletedRounds = append(res.CompletedRounds, r.ID)
	}
	if open {
		res.Outcome = OutcomeRoundPending
		return nil
	}

	start := model.RollToWeekday(c.FireTime, c.DayOfWeek)
	if start.After(now) {
		res.Outcome = OutcomeRoundPending
		return nil
	}

	last, err := tx.Rounds().LastNumber(ctx, c.ID)
	if err != nil {
		return err
	}
	round := &model.Round{
		CampaignID: c.ID,
		Number:     last + 1,
		StartDate:  start,
		EndDate:    roundEnd(c, start),
		DayOfWeek:  c.DayOfWeek,
		Status:     model.RoundStatusActive,
	}
	if err := tx.Rounds().Create(ctx, round); err != nil {
		return err
	}

	processed, err := p.builder.processInTx(ctx, tx, round, c)
	if err != nil {
		return err
	}
	res.Process = processed
	res.add(processed.messages...)

	reschedule(c)
	if err := tx.Campaigns().UpdateSchedule(ctx, c); err != nil {
		return err
	}
	res.Outcome = OutcomeRoundCreated
	res.RoundID = round.ID
	return nil
}

// roundEnd is one period after start. A once campaign keeps its single
// round open until the campaign ends, or for a week when it has no end.
func roundEnd(c *model.Campaign, start time.Time) time.Time {
	if c.Frequency != model.FrequencyOnce {
		return c.Frequency.Advance(start)
	}
	if c.EndDate != nil && c.EndDate.After(start) {
		return *c.EndDate
	}
	return start.AddDate(0, 0, 7)
}

type inviteBehavior struct{}

func (inviteBehavior) fire(ctx context.Context, tx repository.Tx, c *model.Campaign, now time.Time, res *TickResult) error {
	invites := dedupeInvites(c.InvitesData)
	n := len(invites)

	if n > 0 {
		company, err := tx.Companies().GetForUpdate(ctx, c.CompanyID)
		if err != nil {
			return err
		}
		if company.InviteQuota < n {
			c.Status = model.CampaignStatusPaused
			res.Outcome = OutcomePausedQuota
			res.Reason = appErrors.ErrQuotaExceeded.Error()
			return tx.Campaigns().UpdateSchedule(ctx, c)
		}

		remaining := company.InviteQuota - n
		if err := tx.Companies().UpdateInviteQuota(ctx, company.ID, remaining); err != nil {
			return err
		}
		if remaining <= 2*n && company.AdminEmail != "" {
			msg, err := stage(ctx, tx, model.MessageKindQuotaWarning, c.ID, "", "", company.AdminEmail, map[string]any{
				"company_id":  company.ID,
				"campaign_id": c.ID,
				"remaining":   remaining,
				"batch_size":  n,
			})
			if err != nil {
				return err
			}
			res.add(msg)
		}

		for _, inv := range invites {
			address := inv.Email
			if address == "" {
				address = inv.Phone
			}
			msg, err := stage(ctx, tx, model.MessageKindInvite, c.ID, "", "", address, map[string]any{
				"campaign_id": c.ID,
				"survey_id":   c.SurveyID,
				"name":        inv.Name,
				"email":       inv.Email,
				"phone":       inv.Phone,
				"tags":        inv.Tags,
			})
			if err != nil {
				return err
			}
			res.add(msg)
		}
	}

	reschedule(c)
	res.Outcome = OutcomeInvitesSent
	return tx.Campaigns().UpdateSchedule(ctx, c)
}

// dedupeInvites drops entries with neither email nor phone and keeps the
// first entry per case-insensitive email.
func dedupeInvites(in []model.InviteData) []model.InviteData {
	seen := make(map[string]bool, len(in))
	out := make([]model.InviteData, 0, len(in))
	for _, inv := range in {
		inv.Email = strings.TrimSpace(inv.Email)
		inv.Phone = strings.TrimSpace(inv.Phone)
		key := strings.ToLower(inv.Email)
		if key == "" {
			key = "phone:" + inv.Phone
		}
		if (inv.Email == "" && inv.Phone == "") || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, inv)
	}
	return out
}

type reportBehavior struct{}

func (reportBehavior) fire(ctx context.Context, tx repository.Tx, c *model.Campaign, now time.Time, res *TickResult) error {
	to := c.FireTime
	from := c.Frequency.Rollback(to)
	if c.Frequency == model.FrequencyOnce {
		from = time.Time{}
		if c.StartDate != nil {
			from = *c.StartDate
		}
	}

	started, err := tx.Results().CountStartedBetween(ctx, c.SurveyID, from, to)
	if err != nil {
		return err
	}

	switch {
	case started == 0 && c.SuppressEmptyReports:
		res.Outcome = OutcomeReportSkip
		res.Reason = "no new results"
	case c.ReportAddress == "":
		res.Outcome = OutcomeReportSkip
		res.Reason = "no report address"
	default:
		msg, err := stage(ctx, tx, model.MessageKindReport, c.ID, "", "", c.ReportAddress, map[string]any{
			"campaign_id": c.ID,
			"survey_id":   c.SurveyID,
			"from":        from,
			"to":          to,
			"started":     started,
		})
		if err != nil {
			return err
		}
		res.add(msg)
		res.Outcome = OutcomeReportSent
	}

	reschedule(c)
	return tx.Campaigns().UpdateSchedule(ctx, c)
}

// ChangeFrequency switches a running campaign to freq, re-anchoring its fire
// time so the time of day and weekday survive the change.
func (c *CampaignClock) ChangeFrequency(ctx context.Context, campaignID string, freq model.Frequency) (*model.Campaign, error) {
	if !freq.Valid() {
		return nil, appErrors.ErrInvalidFrequency
	}
	var out *model.Campaign
	err := c.Store.WithTx(ctx, func(tx repository.Tx) error {
		campaign, err := tx.Campaigns().GetForUpdate(ctx, campaignID)
		if err != nil {
			return err
		}
		if campaign.Status == model.CampaignStatusFinished {
			return appErrors.ErrInvalidTransition
		}
		out = campaign
		if campaign.Frequency == freq {
			return nil
		}
		campaign.FireTime = freq.Reanchor(campaign.FireTime, campaign.Frequency)
		campaign.Frequency = freq
		return tx.Campaigns().UpdateSchedule(ctx, campaign)
	})
	if err != nil {
		return nil, appErrors.Persistence("change frequency", err)
	}
	c.Logger.Info("campaign frequency changed",
		zap.String("campaign_id", campaignID),
		zap.String("frequency", string(freq)),
		zap.Time("fire_time", out.FireTime),
	)
	return out, nil
}

func (c *CampaignClock) Pause(ctx context.Context, campaignID string) (*model.Campaign, error) {
	return c.transition(ctx, campaignID, model.CampaignStatusActive, model.CampaignStatusPaused)
}

func (c *CampaignClock) Resume(ctx context.Context, campaignID string) (*model.Campaign, error) {
	return c.transition(ctx, campaignID, model.CampaignStatusPaused, model.CampaignStatusActive)
}

func (c *CampaignClock) transition(ctx context.Context, campaignID string, from, to model.CampaignStatus) (*model.Campaign, error) {
	var out *model.Campaign
	err := c.Store.WithTx(ctx, func(tx repository.Tx) error {
		campaign, err := tx.Campaigns().GetForUpdate(ctx, campaignID)
		if err != nil {
			return err
		}
		out = campaign
		switch campaign.Status {
		case to:
			return nil
		case from:
			campaign.Status = to
			return tx.Campaigns().UpdateSchedule(ctx, campaign)
		default:
			return appErrors.ErrInvalidTransition
		}
	})
	if err != nil {
		return nil, appErrors.Persistence("status transition", err)
	}
	return out, nil
}

// DueCampaigns lists active campaigns whose fire time has passed.
func (c *CampaignClock) DueCampaigns(ctx context.Context, limit int) ([]string, error) {
	ids, err := c.Store.Campaigns().ListDue(ctx, c.Now(), limit)
	if err != nil {
		return nil, appErrors.Persistence("list due campaigns", err)
	}
	return ids, nil
}
