// internal/model/campaign.go
package model

import "time"

type CampaignKind string

const (
	CampaignKindPulse  CampaignKind = "pulse"
	CampaignKindInvite CampaignKind = "invite"
	CampaignKindReport CampaignKind = "report"
)

type CampaignStatus string

const (
	CampaignStatusPaused   CampaignStatus = "paused"
	CampaignStatusActive   CampaignStatus = "active"
	CampaignStatusFinished CampaignStatus = "finished"
)

// InviteData is one resolved recipient of a non-pulse campaign.
type InviteData struct {
	Email string   `json:"email"`
	Name  string   `json:"name,omitempty"`
	Phone string   `json:"phone,omitempty"`
	Tags  []string `json:"tags,omitempty"`
}

type Campaign struct {
	ID                   string         `db:"id" json:"id"`
	CompanyID            string         `db:"company_id" json:"company_id"`
	SurveyID             string         `db:"survey_id" json:"survey_id"`
	Name                 string         `db:"name" json:"name"`
	Kind                 CampaignKind   `db:"kind" json:"kind"`
	Frequency            Frequency      `db:"frequency" json:"frequency"`
	FireTime             time.Time      `db:"fire_time" json:"fire_time"`
	StartDate            *time.Time     `db:"start_date" json:"start_date,omitempty"`
	EndDate              *time.Time     `db:"end_date" json:"end_date,omitempty"`
	SurveyStartDate      *time.Time     `db:"survey_start_date" json:"survey_start_date,omitempty"`
	SurveyEndDate        *time.Time     `db:"survey_end_date" json:"survey_end_date,omitempty"`
	Status               CampaignStatus `db:"status" json:"status"`
	QuestionPerSurvey    int            `db:"question_per_survey" json:"question_per_survey"`
	DayOfWeek            *time.Weekday  `db:"day_of_week" json:"day_of_week,omitempty"`
	InvitesData          []InviteData   `db:"invites_data" json:"invites_data,omitempty"`
	ReportAddress        string         `db:"report_address" json:"report_address,omitempty"`
	SuppressEmptyReports bool           `db:"suppress_empty_reports" json:"suppress_empty_reports"`
	CreatedAt            time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt            *time.Time     `db:"updated_at" json:"updated_at,omitempty"`
}

// NotStartedAt reports whether t precedes the campaign or survey start.
func (c *Campaign) NotStartedAt(t time.Time) bool {
	return (c.StartDate != nil && t.Before(*c.StartDate)) ||
		(c.SurveyStartDate != nil && t.Before(*c.SurveyStartDate))
}

// EndedAt reports whether t is past the campaign or survey end.
func (c *Campaign) EndedAt(t time.Time) bool {
	return (c.EndDate != nil && t.After(*c.EndDate)) ||
		(c.SurveyEndDate != nil && t.After(*c.SurveyEndDate))
}
