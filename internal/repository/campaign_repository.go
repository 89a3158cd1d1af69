package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	appErrors "github.com/unclebandit/pulse-scheduler/internal/errors"
	"github.com/unclebandit/pulse-scheduler/internal/model"
)

type CampaignRepository struct {
	DB querier
}

const campaignColumns = `
    id, company_id, survey_id, name, kind, frequency, fire_time,
    start_date, end_date, survey_start_date, survey_end_date, status,
    question_per_survey, day_of_week, invites_data, report_address,
    suppress_empty_reports, created_at, updated_at`

func (r *CampaignRepository) GetByID(ctx context.Context, id string) (*model.Campaign, error) {
	query := `SELECT` + campaignColumns + ` FROM campaigns WHERE id=$1`
	return r.get(ctx, query, id)
}

func (r *CampaignRepository) GetForUpdate(ctx context.Context, id string) (*model.Campaign, error) {
	query := `SELECT` + campaignColumns + ` FROM campaigns WHERE id=$1 FOR UPDATE`
	return r.get(ctx, query, id)
}

func (r *CampaignRepository) get(ctx context.Context, query, id string) (*model.Campaign, error) {
	c, err := scanCampaign(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, err
	}
	return c, nil
}

// UpdateSchedule persists the fields owned by the scheduler.
func (r *CampaignRepository) UpdateSchedule(ctx context.Context, c *model.Campaign) error {
	now := time.Now().UTC()
	query := `
        UPDATE campaigns
        SET frequency=$1, fire_time=$2, status=$3, updated_at=$4
        WHERE id=$5
    `
	res, err := r.DB.ExecContext(ctx, query, c.Frequency, c.FireTime, c.Status, now, c.ID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return appErrors.NewCampaignNotFound(c.ID)
	}
	c.UpdatedAt = &now
	return nil
}

// ListDue returns ids of active campaigns whose fire time has passed, oldest first.
func (r *CampaignRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]string, error) {
	query := `
        SELECT id FROM campaigns
        WHERE status='active' AND fire_time <= $1
        ORDER BY fire_time ASC
        LIMIT $2
    `
	rows, err := r.DB.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanCampaign(row *sql.Row) (*model.Campaign, error) {
	var (
		c         model.Campaign
		dayOfWeek sql.NullInt16
		invites   []byte
	)
	err := row.Scan(
		&c.ID, &c.CompanyID, &c.SurveyID, &c.Name, &c.Kind, &c.Frequency, &c.FireTime,
		&c.StartDate, &c.EndDate, &c.SurveyStartDate, &c.SurveyEndDate, &c.Status,
		&c.QuestionPerSurvey, &dayOfWeek, &invites, &c.ReportAddress,
		&c.SuppressEmptyReports, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if dayOfWeek.Valid {
		d := time.Weekday(dayOfWeek.Int16)
		c.DayOfWeek = &d
	}
	if len(invites) > 0 {
		if err := json.Unmarshal(invites, &c.InvitesData); err != nil {
			return nil, fmt.Errorf("decode invites_data of campaign %s: %w", c.ID, err)
		}
	}
	c.FireTime = c.FireTime.UTC()
	return &c, nil
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
