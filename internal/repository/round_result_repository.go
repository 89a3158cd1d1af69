package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/unclebandit/pulse-scheduler/internal/model"
)

type RoundResultRepository struct {
	DB querier
}

func (r *RoundResultRepository) ListByRound(ctx context.Context, roundID string) ([]*model.RoundResult, error) {
	query := `
        SELECT id, round_id, recipient_id, token, survey_items, invite_email_send_at, started_at, created_at
        FROM round_results
        WHERE round_id=$1
        ORDER BY created_at ASC, id ASC
    `
	rows, err := r.DB.QueryContext(ctx, query, roundID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*model.RoundResult{}
	for rows.Next() {
		var res model.RoundResult
		var items pq.StringArray
		err := rows.Scan(&res.ID, &res.RoundID, &res.RecipientID, &res.Token, &items,
			&res.InviteEmailSendAt, &res.StartedAt, &res.CreatedAt)
		if err != nil {
			return nil, err
		}
		res.SurveyItems = []string(items)
		out = append(out, &res)
	}
	return out, rows.Err()
}

// Create inserts an assignment. (round_id, recipient_id) is unique, so a
// concurrent duplicate fails the surrounding transaction.
func (r *RoundResultRepository) Create(ctx context.Context, res *model.RoundResult) error {
	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	if res.Token == "" {
		res.Token = uuid.NewString()
	}
	res.CreatedAt = time.Now().UTC()

	query := `
        INSERT INTO round_results
        (id, round_id, recipient_id, token, survey_items, invite_email_send_at, started_at, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `
	_, err := r.DB.ExecContext(ctx, query,
		res.ID, res.RoundID, res.RecipientID, res.Token, pq.Array(res.SurveyItems),
		res.InviteEmailSendAt, res.StartedAt, res.CreatedAt,
	)
	return err
}

// CountStartedBetween counts results of the survey started in [from, to).
func (r *RoundResultRepository) CountStartedBetween(ctx context.Context, surveyID string, from, to time.Time) (int, error) {
	query := `
        SELECT COUNT(*)
        FROM round_results rr
        JOIN rounds r ON r.id = rr.round_id
        JOIN campaigns c ON c.id = r.campaign_id
        WHERE c.survey_id=$1 AND rr.started_at >= $2 AND rr.started_at < $3
    `
	var n int
	err := r.DB.QueryRowContext(ctx, query, surveyID, from, to).Scan(&n)
	return n, err
}

var _ RoundResultRepositoryInterface = (*RoundResultRepository)(nil)
