// internal/model/round.go
package model

import "time"

type RoundStatus string

const (
	RoundStatusActive    RoundStatus = "active"
	RoundStatusCompleted RoundStatus = "completed"
)

type Round struct {
	ID               string        `db:"id" json:"id"`
	CampaignID       string        `db:"campaign_id" json:"campaign_id"`
	Number           int           `db:"number" json:"number"`
	StartDate        time.Time     `db:"start_date" json:"start_date"`
	EndDate          time.Time     `db:"end_date" json:"end_date"`
	DayOfWeek        *time.Weekday `db:"day_of_week" json:"day_of_week,omitempty"`
	Status           RoundStatus   `db:"status" json:"status"`
	RemindersCounter int           `db:"reminders_counter" json:"reminders_counter"`
	CreatedAt        time.Time     `db:"created_at" json:"created_at"`
}

// RoundResult is the assignment of one recipient for one round.
type RoundResult struct {
	ID                string     `db:"id" json:"id"`
	RoundID           string     `db:"round_id" json:"round_id"`
	RecipientID       string     `db:"recipient_id" json:"recipient_id"`
	Token             string     `db:"token" json:"token"`
	SurveyItems       []string   `db:"survey_items" json:"survey_items"`
	InviteEmailSendAt *time.Time `db:"invite_email_send_at" json:"invite_email_send_at,omitempty"`
	StartedAt         *time.Time `db:"started_at" json:"started_at,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
}

func (r *RoundResult) Started() bool {
	return r.StartedAt != nil
}
