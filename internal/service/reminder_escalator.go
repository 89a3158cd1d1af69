package service

import (
	"context"
	crand "crypto/rand"
	"encoding/binary"
	"math/rand"
	"sync"

	"go.uber.org/zap"

	appErrors "github.com/unclebandit/pulse-scheduler/internal/errors"
	"github.com/unclebandit/pulse-scheduler/internal/model"
	"github.com/unclebandit/pulse-scheduler/internal/repository"
)

const VariantAfterFirstInvitation = "after_first_invitation"

var laterRoundVariants = []string{"later_round_1", "later_round_2", "later_round_3"}

// ReminderEscalator nudges the recipients of an active round.
type ReminderEscalator struct {
	Store      repository.Store
	Dispatcher *Dispatcher
	Logger     *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewReminderEscalator uses rng to pick later-round variants. A nil rng is
// seeded from crypto/rand.
func NewReminderEscalator(store repository.Store, dispatcher *Dispatcher, logger *zap.Logger, rng *rand.Rand) *ReminderEscalator {
	if rng == nil {
		var b [8]byte
		_, _ = crand.Read(b[:])
		rng = rand.New(rand.NewSource(int64(binary.LittleEndian.Uint64(b[:]))))
	}
	return &ReminderEscalator{Store: store, Dispatcher: dispatcher, Logger: logger, rng: rng}
}

type ReminderResult struct {
	RoundID  string          `json:"round_id"`
	Variant  string          `json:"variant"`
	Targeted int             `json:"targeted"`
	Notified int             `json:"notified"`
	Failed   int             `json:"failed"`
	Dispatch *DispatchReport `json:"dispatch,omitempty"`
}

// Remind sends one reminder per subscribed recipient of the round. With
// participationOnly, recipients who already started the round are left out.
// The round's reminder counter ends up at the number actually notified.
func (e *ReminderEscalator) Remind(ctx context.Context, roundID string, participationOnly bool) (*ReminderResult, error) {
	var (
		res  *ReminderResult
		msgs []*model.OutboundMessage
	)
	err := e.Store.WithTx(ctx, func(tx repository.Tx) error {
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
		recipients, err := tx.Recipients().ListByCampaign(ctx, campaign.ID)
		if err != nil {
			return err
		}
		results, err := tx.Results().ListByRound(ctx, round.ID)
		if err != nil {
			return err
		}
		byRecipient := make(map[string]*model.RoundResult, len(results))
		for _, r := range results {
			byRecipient[r.RecipientID] = r
		}

		res = &ReminderResult{RoundID: round.ID, Variant: e.variant(round.Number)}
		msgs = nil
		for _, rc := range recipients {
			result := byRecipient[rc.ID]
			if rc.Unsubscribe || (participationOnly && result != nil && result.Started()) {
				continue
			}
			data := map[string]any{
				"campaign_id":  campaign.ID,
				"survey_id":    campaign.SurveyID,
				"round_number": round.Number,
				"variant":      res.Variant,
				"name":         rc.Name,
				"email":        rc.Email,
			}
			if result != nil {
				data["token"] = result.Token
			}
			msg, err := stage(ctx, tx, model.MessageKindReminder, campaign.ID, round.ID, rc.ID, rc.Address(), data)
			if err != nil {
				return err
			}
			msgs = append(msgs, msg)
		}
		res.Targeted = len(msgs)
		return nil
	})
	if err != nil {
		return nil, appErrors.Persistence("stage reminders", err)
	}

	res.Dispatch = e.Dispatcher.Dispatch(ctx, msgs)
	res.Notified = res.Dispatch.Sent
	res.Failed = res.Dispatch.Failed

	if err := e.Store.Rounds().UpdateRemindersCounter(ctx, roundID, res.Notified); err != nil {
		return res, appErrors.Persistence("update reminders counter", err)
	}
	e.Logger.Info("reminders sent",
		zap.String("round_id", roundID),
		zap.String("variant", res.Variant),
		zap.Int("notified", res.Notified),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}

func (e *ReminderEscalator) variant(roundNumber int) string {
	if roundNumber <= 1 {
		return VariantAfterFirstInvitation
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return laterRoundVariants[e.rng.Intn(len(laterRoundVariants))]
}
