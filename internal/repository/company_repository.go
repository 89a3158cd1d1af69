package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/unclebandit/pulse-scheduler/internal/model"
)

type CompanyRepository struct {
	DB querier
}

// GetForUpdate loads the company and locks its row, serialising quota spending.
func (r *CompanyRepository) GetForUpdate(ctx context.Context, id string) (*model.Company, error) {
	query := `
        SELECT id, name, admin_email, invite_quota
        FROM companies
        WHERE id=$1
        FOR UPDATE
    `
	var c model.Company
	err := r.DB.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.Name, &c.AdminEmail, &c.InviteQuota)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("company %s: %w", id, err)
		}
		return nil, err
	}
	return &c, nil
}

func (r *CompanyRepository) UpdateInviteQuota(ctx context.Context, id string, quota int) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE companies SET invite_quota=$1 WHERE id=$2`, quota, id)
	return err
}

var _ CompanyRepositoryInterface = (*CompanyRepository)(nil)
