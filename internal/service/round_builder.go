package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appErrors "github.com/unclebandit/pulse-scheduler/internal/errors"
	"github.com/unclebandit/pulse-scheduler/internal/model"
	"github.com/unclebandit/pulse-scheduler/internal/repository"
	"github.com/unclebandit/pulse-scheduler/internal/selector"
)

// RoundBuilder assigns every recipient of a round its items for that round.
type RoundBuilder struct {
	Store      repository.Store
	Selector   *selector.Selector
	Dispatcher *Dispatcher
	Logger     *zap.Logger
	Now        func() time.Time
}

func NewRoundBuilder(store repository.Store, sel *selector.Selector, dispatcher *Dispatcher, logger *zap.Logger) *RoundBuilder {
	return &RoundBuilder{
		Store:      store,
		Selector:   sel,
		Dispatcher: dispatcher,
		Logger:     logger,
		Now:        func() time.Time { return time.Now().UTC() },
	}
}

type ProcessResult struct {
	RoundID   string          `json:"round_id"`
	Processed []string        `json:"processed"`
	Skipped   []string        `json:"skipped"`
	Dispatch  *DispatchReport `json:"dispatch,omitempty"`

	messages []*model.OutboundMessage
}

// Process assigns items to every recipient of the round that has no result
// yet. All results of one call commit together; invites go out afterwards.
func (b *RoundBuilder) Process(ctx context.Context, roundID string) (*ProcessResult, error) {
	var res *ProcessResult
	err := b.Store.WithTx(ctx, func(tx repository.Tx) error {
		round, err := tx.Rounds().GetByID(ctx, roundID)
		if err != nil {
			return err
		}
		if round.Status != model.RoundStatusActive {
			return appErrors.ErrRoundNotActive
		}
		campaign, err := tx.Campaigns().GetByID(ctx, round.CampaignID)
		if err != nil {
			return err
		}
		res, err = b.processInTx(ctx, tx, round, campaign)
		return err
	})
	if err != nil {
		return nil, appErrors.Persistence("process round", err)
	}

	res.Dispatch = b.Dispatcher.Dispatch(ctx, res.messages)
	b.Logger.Info("round processed",
		zap.String("round_id", roundID),
		zap.Int("processed", len(res.Processed)),
		zap.Int("skipped", len(res.Skipped)),
		zap.Int("invites_failed", res.Dispatch.Failed),
	)
	return res, nil
}

func (b *RoundBuilder) processInTx(ctx context.Context, tx repository.Tx, round *model.Round, campaign *model.Campaign) (*ProcessResult, error) {
	res := &ProcessResult{RoundID: round.ID, Processed: []string{}, Skipped: []string{}}

	drivers, err := tx.Catalog().ActiveDrivers(ctx, campaign.CompanyID)
	if err != nil {
		return nil, err
	}
	items, err := tx.Catalog().EligibleItems(ctx, campaign.CompanyID)
	if err != nil {
		return nil, err
	}
	items = model.EligibleItems(drivers, items)

	recipients, err := tx.Recipients().ListByCampaign(ctx, campaign.ID)
	if err != nil {
		return nil, err
	}
	existing, err := tx.Results().ListByRound(ctx, round.ID)
	if err != nil {
		return nil, err
	}
	done := make(map[string]bool, len(existing))
	for _, r := range existing {
		done[r.RecipientID] = true
	}

	roundMemory := model.NewItemSet()
	for _, rc := range recipients {
		if done[rc.ID] || rc.Unsubscribe {
			res.Skipped = append(res.Skipped, rc.ID)
			continue
		}

		seen := rc.SurveyItems
		if seen == nil {
			seen = model.NewItemSet()
		}
		picked := b.Selector.Select(drivers, items, seen, roundMemory, campaign.QuestionPerSurvey)
		if len(picked) == 0 {
			res.Skipped = append(res.Skipped, rc.ID)
			continue
		}

		if err := tx.Recipients().UpdateSurveyItems(ctx, rc.ID, seen); err != nil {
			return nil, err
		}
		now := b.Now()
		result := &model.RoundResult{
			RoundID:           round.ID,
			RecipientID:       rc.ID,
			Token:             uuid.NewString(),
			SurveyItems:       picked,
			InviteEmailSendAt: &now,
		}
		if err := tx.Results().Create(ctx, result); err != nil {
			return nil, err
		}

		msg, err := stage(ctx, tx, model.MessageKindInvite, campaign.ID, round.ID, rc.ID, rc.Address(), map[string]any{
			"campaign_id":  campaign.ID,
			"survey_id":    campaign.SurveyID,
			"round_number": round.Number,
			"name":         rc.Name,
			"email":        rc.Email,
			"token":        result.Token,
			"item_count":   len(picked),
		})
		if err != nil {
			return nil, err
		}
		res.messages = append(res.messages, msg)
		res.Processed = append(res.Processed, rc.ID)
	}
	return res, nil
}
