package repository

import (
	"context"

	"github.com/unclebandit/pulse-scheduler/internal/model"
)

// CatalogRepository reads the drivers and items a company rotates through.
type CatalogRepository struct {
	DB querier
}

func (r *CatalogRepository) ActiveDrivers(ctx context.Context, companyID string) ([]model.Driver, error) {
	query := `
        SELECT id, company_id, name, weight, active
        FROM drivers
        WHERE company_id=$1 AND active
        ORDER BY id ASC
    `
	rows, err := r.DB.QueryContext(ctx, query, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Driver{}
	for rows.Next() {
		var d model.Driver
		if err := rows.Scan(&d.ID, &d.CompanyID, &d.Name, &d.Weight, &d.Active); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// EligibleItems returns active items whose driver is active.
func (r *CatalogRepository) EligibleItems(ctx context.Context, companyID string) ([]model.Item, error) {
	query := `
        SELECT i.id, i.driver_id, i.text, i.status
        FROM items i
        JOIN drivers d ON d.id = i.driver_id
        WHERE d.company_id=$1 AND d.active AND i.status='active'
        ORDER BY i.id ASC
    `
	rows, err := r.DB.QueryContext(ctx, query, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Item{}
	for rows.Next() {
		var it model.Item
		if err := rows.Scan(&it.ID, &it.DriverID, &it.Text, &it.Status); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

var _ CatalogRepositoryInterface = (*CatalogRepository)(nil)
