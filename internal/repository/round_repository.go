package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	appErrors "github.com/unclebandit/pulse-scheduler/internal/errors"
	"github.com/unclebandit/pulse-scheduler/internal/model"
)

type RoundRepository struct {
	DB querier
}

const roundColumns = `
    id, campaign_id, number, start_date, end_date, day_of_week, status, reminders_counter, created_at`

func (r *RoundRepository) GetByID(ctx context.Context, id string) (*model.Round, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT`+roundColumns+` FROM rounds WHERE id=$1`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, appErrors.NewRoundNotFound(id)
	}
	return scanRound(rows)
}

// Create inserts a round. The partial unique index on (campaign_id) WHERE
// status='active' rejects a second active round for the same campaign.
func (r *RoundRepository) Create(ctx context.Context, round *model.Round) error {
	if round.ID == "" {
		round.ID = uuid.NewString()
	}
	if round.Status == "" {
		round.Status = model.RoundStatusActive
	}
	round.CreatedAt = time.Now().UTC()

	var dayOfWeek sql.NullInt16
	if round.DayOfWeek != nil {
		dayOfWeek = sql.NullInt16{Int16: int16(*round.DayOfWeek), Valid: true}
	}

	query := `
        INSERT INTO rounds
        (id, campaign_id, number, start_date, end_date, day_of_week, status, reminders_counter, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `
	_, err := r.DB.ExecContext(ctx, query,
		round.ID, round.CampaignID, round.Number, round.StartDate, round.EndDate,
		dayOfWeek, round.Status, round.RemindersCounter, round.CreatedAt,
	)
	return err
}

func (r *RoundRepository) ListActive(ctx context.Context, campaignID string) ([]*model.Round, error) {
	query := `SELECT` + roundColumns + `
        FROM rounds
        WHERE campaign_id=$1 AND status='active'
        ORDER BY number ASC
    `
	rows, err := r.DB.QueryContext(ctx, query, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*model.Round{}
	for rows.Next() {
		round, err := scanRound(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, round)
	}
	return out, rows.Err()
}

// LastNumber returns the highest round number of the campaign, 0 when none.
func (r *RoundRepository) LastNumber(ctx context.Context, campaignID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(number), 0) FROM rounds WHERE campaign_id=$1`, campaignID).Scan(&n)
	return n, err
}

func (r *RoundRepository) UpdateStatus(ctx context.Context, id string, status model.RoundStatus) error {
	return r.exec(ctx, id, `UPDATE rounds SET status=$1 WHERE id=$2`, status, id)
}

func (r *RoundRepository) UpdateRemindersCounter(ctx context.Context, id string, counter int) error {
	return r.exec(ctx, id, `UPDATE rounds SET reminders_counter=$1 WHERE id=$2`, counter, id)
}

func (r *RoundRepository) exec(ctx context.Context, id, query string, args ...any) error {
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return appErrors.NewRoundNotFound(id)
	}
	return nil
}

func scanRound(rows *sql.Rows) (*model.Round, error) {
	var round model.Round
	var dayOfWeek sql.NullInt16
	err := rows.Scan(
		&round.ID, &round.CampaignID, &round.Number, &round.StartDate, &round.EndDate,
		&dayOfWeek, &round.Status, &round.RemindersCounter, &round.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if dayOfWeek.Valid {
		d := time.Weekday(dayOfWeek.Int16)
		round.DayOfWeek = &d
	}
	round.StartDate = round.StartDate.UTC()
	round.EndDate = round.EndDate.UTC()
	return &round, nil
}

var _ RoundRepositoryInterface = (*RoundRepository)(nil)
