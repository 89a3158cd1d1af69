package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/unclebandit/pulse-scheduler/internal/model"
)

type OutboundMessageRepository struct {
	DB querier
}

// Create inserts a new outbox row. An empty ID is filled with a fresh UUID.
func (r *OutboundMessageRepository) Create(ctx context.Context, msg *model.OutboundMessage) error {
	now := time.Now().UTC()
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Status == "" {
		msg.Status = model.MessageStatusPending
	}
	msg.CreatedAt = now
	msg.UpdatedAt = now

	query := `
        INSERT INTO outbound_messages
        (id, campaign_id, round_id, recipient_id, kind, address, payload, status, last_error, retry_count, created_at, updated_at)
        VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7, $8, $9, $10, $11, $12)
    `
	_, err := r.DB.ExecContext(ctx, query,
		msg.ID,
		msg.CampaignID,
		msg.RoundID,
		msg.RecipientID,
		msg.Kind,
		msg.Address,
		[]byte(msg.Payload),
		msg.Status,
		msg.LastError,
		msg.RetryCount,
		msg.CreatedAt,
		msg.UpdatedAt,
	)
	return err
}

const outboundColumns = `
    id, campaign_id, COALESCE(round_id::text, ''), COALESCE(recipient_id::text, ''),
    kind, address, payload, status, last_error, retry_count, created_at, updated_at`

func (r *OutboundMessageRepository) GetByID(ctx context.Context, id string) (*model.OutboundMessage, error) {
	query := `SELECT` + outboundColumns + ` FROM outbound_messages WHERE id=$1`
	rows, err := r.DB.QueryContext(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("outbound message %s: %w", id, sql.ErrNoRows)
	}
	return scanOutbound(rows)
}

// UpdateStatus records a delivery attempt. Every call counts as one attempt.
func (r *OutboundMessageRepository) UpdateStatus(ctx context.Context, id string, status, lastError string) error {
	query := `
        UPDATE outbound_messages
        SET status=$1, last_error=$2, retry_count=retry_count+1, updated_at=$3
        WHERE id=$4
    `
	_, err := r.DB.ExecContext(ctx, query, status, lastError, time.Now().UTC(), id)
	return err
}

// ListRetryable returns rows created before the cutoff that are still pending,
// or that failed fewer than maxAttempts times.
func (r *OutboundMessageRepository) ListRetryable(ctx context.Context, before time.Time, maxAttempts, limit int) ([]*model.OutboundMessage, error) {
	query := `SELECT` + outboundColumns + `
        FROM outbound_messages
        WHERE created_at < $1
          AND (status='pending' OR (status='failed' AND retry_count < $2))
        ORDER BY created_at ASC
        LIMIT $3
    `
	rows, err := r.DB.QueryContext(ctx, query, before, maxAttempts, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*model.OutboundMessage{}
	for rows.Next() {
		msg, err := scanOutbound(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

// GetCampaignStats counts outbox rows of a campaign per status.
func (r *OutboundMessageRepository) GetCampaignStats(ctx context.Context, campaignID string) (map[string]int, error) {
	stats := map[string]int{
		"total":                   0,
		model.MessageStatusPending: 0,
		model.MessageStatusSent:    0,
		model.MessageStatusFailed:  0,
	}

	rows, err := r.DB.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM outbound_messages WHERE campaign_id=$1 GROUP BY status`,
		campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		stats[status] = n
		stats["total"] += n
	}
	return stats, rows.Err()
}

func scanOutbound(rows *sql.Rows) (*model.OutboundMessage, error) {
	var msg model.OutboundMessage
	var payload []byte
	err := rows.Scan(
		&msg.ID,
		&msg.CampaignID,
		&msg.RoundID,
		&msg.RecipientID,
		&msg.Kind,
		&msg.Address,
		&payload,
		&msg.Status,
		&msg.LastError,
		&msg.RetryCount,
		&msg.CreatedAt,
		&msg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	msg.Payload = payload
	return &msg, nil
}

var _ OutboundMessageRepositoryInterface = (*OutboundMessageRepository)(nil)
