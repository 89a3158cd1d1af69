package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStore is the lib/pq backed Store.
type PostgresStore struct {
	DB *sql.DB
	pgRepos
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{DB: db, pgRepos: pgRepos{q: db}}
}

func (s *PostgresStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(pgRepos{q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type pgRepos struct {
	q querier
}

func (r pgRepos) Campaigns() CampaignRepositoryInterface   { return &CampaignRepository{DB: r.q} }
func (r pgRepos) Rounds() RoundRepositoryInterface         { return &RoundRepository{DB: r.q} }
func (r pgRepos) Recipients() RecipientRepositoryInterface { return &RecipientRepository{DB: r.q} }
func (r pgRepos) Results() RoundResultRepositoryInterface  { return &RoundResultRepository{DB: r.q} }
func (r pgRepos) Catalog() CatalogRepositoryInterface      { return &CatalogRepository{DB: r.q} }
func (r pgRepos) Companies() CompanyRepositoryInterface    { return &CompanyRepository{DB: r.q} }
func (r pgRepos) Outbox() OutboundMessageRepositoryInterface {
	return &OutboundMessageRepository{DB: r.q}
}

var _ Store = (*PostgresStore)(nil)
