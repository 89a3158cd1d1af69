package repository

import (
	"context"

	"github.com/lib/pq"

	"github.com/unclebandit/pulse-scheduler/internal/model"
)

type RecipientRepository struct {
	DB querier
}

// ListByCampaign returns the campaign's recipients in a stable order,
// unsubscribed ones included.
func (r *RecipientRepository) ListByCampaign(ctx context.Context, campaignID string) ([]*model.Recipient, error) {
	query := `
        SELECT id, campaign_id, email, name, COALESCE(phone, ''), tags, unsubscribe, survey_items
        FROM recipients
        WHERE campaign_id=$1
        ORDER BY id ASC
    `
	rows, err := r.DB.QueryContext(ctx, query, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*model.Recipient{}
	for rows.Next() {
		var rc model.Recipient
		var tags, items pq.StringArray
		if err := rows.Scan(&rc.ID, &rc.CampaignID, &rc.Email, &rc.Name, &rc.Phone, &tags, &rc.Unsubscribe, &items); err != nil {
			return nil, err
		}
		rc.Tags = []string(tags)
		rc.SurveyItems = model.NewItemSet(items...)
		out = append(out, &rc)
	}
	return out, rows.Err()
}

// UpdateSurveyItems replaces the recipient's rotation memory.
func (r *RecipientRepository) UpdateSurveyItems(ctx context.Context, id string, items model.ItemSet) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE recipients SET survey_items=$1 WHERE id=$2`,
		pq.Array(items.Sorted()), id)
	return err
}

var _ RecipientRepositoryInterface = (*RecipientRepository)(nil)
