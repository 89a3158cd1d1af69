package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/unclebandit/pulse-scheduler/internal/model"
	"github.com/unclebandit/pulse-scheduler/internal/repository"
)

// stage persists the decision to notify inside tx. The caller dispatches the
// returned row once tx has committed.
func stage(ctx context.Context, tx repository.Tx, kind model.MessageKind, campaignID, roundID, recipientID, address string, data map[string]any) (*model.OutboundMessage, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", kind, err)
	}
	msg := &model.OutboundMessage{
		CampaignID:  campaignID,
		RoundID:     roundID,
		RecipientID: recipientID,
		Kind:        kind,
		Address:     address,
		Payload:     payload,
		Status:      model.MessageStatusPending,
	}
	if err := tx.Outbox().Create(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}
