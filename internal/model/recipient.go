// internal/model/recipient.go
package model

type Recipient struct {
	ID          string   `db:"id" json:"id"`
	CampaignID  string   `db:"campaign_id" json:"campaign_id"`
	Email       string   `db:"email" json:"email"`
	Name        string   `db:"name" json:"name"`
	Phone       string   `db:"phone" json:"phone,omitempty"`
	Tags        []string `db:"tags" json:"tags,omitempty"`
	Unsubscribe bool     `db:"unsubscribe" json:"unsubscribe"`
	SurveyItems ItemSet  `db:"survey_items" json:"-"`
}

// Address is the destination used for notifications: email, else phone.
func (r *Recipient) Address() string {
	if r.Email != "" {
		return r.Email
	}
	return r.Phone
}
