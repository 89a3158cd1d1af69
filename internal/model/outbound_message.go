// internal/model/outbound_message.go
package model

import (
	"encoding/json"
	"time"
)

type MessageKind string

const (
	MessageKindInvite       MessageKind = "invite"
	MessageKindReminder     MessageKind = "reminder"
	MessageKindReport       MessageKind = "report"
	MessageKindQuotaWarning MessageKind = "quota_warning"
)

const (
	MessageStatusPending = "pending"
	MessageStatusSent    = "sent"
	MessageStatusFailed  = "failed"
)

// OutboundMessage is an outbox row: the persisted decision to notify someone.
type OutboundMessage struct {
	ID          string          `db:"id" json:"id"`
	CampaignID  string          `db:"campaign_id" json:"campaign_id"`
	RoundID     string          `db:"round_id" json:"round_id,omitempty"`
	RecipientID string          `db:"recipient_id" json:"recipient_id,omitempty"`
	Kind        MessageKind     `db:"kind" json:"kind"`
	Address     string          `db:"address" json:"address"`
	Payload     json.RawMessage `db:"payload" json:"payload"`
	Status      string          `db:"status" json:"status"` // pending, sent, failed
	LastError   string          `db:"last_error,omitempty" json:"last_error,omitempty"`
	RetryCount  int             `db:"retry_count" json:"retry_count"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// Data decodes the payload into template data for the gateway.
func (m *OutboundMessage) Data() (map[string]any, error) {
	data := map[string]any{}
	if len(m.Payload) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(m.Payload, &data); err != nil {
		return nil, err
	}
	return data, nil
}
