package repository

import (
	"context"
	"time"

	"github.com/unclebandit/pulse-scheduler/internal/model"
)

// Store gives access to the repositories, either directly or inside a
// transaction. Everything written through the Tx handed to fn commits
// together or not at all.
type Store interface {
	Tx
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx groups the repositories bound to one unit of work.
type Tx interface {
	Campaigns() CampaignRepositoryInterface
	Rounds() RoundRepositoryInterface
	Recipients() RecipientRepositoryInterface
	Results() RoundResultRepositoryInterface
	Catalog() CatalogRepositoryInterface
	Companies() CompanyRepositoryInterface
	Outbox() OutboundMessageRepositoryInterface
}

type CampaignRepositoryInterface interface {
	GetByID(ctx context.Context, id string) (*model.Campaign, error)
	// GetForUpdate loads the campaign and locks it until the transaction ends.
	GetForUpdate(ctx context.Context, id string) (*model.Campaign, error)
	UpdateSchedule(ctx context.Context, c *model.Campaign) error
	ListDue(ctx context.Context, now time.Time, limit int) ([]string, error)
}

type RoundRepositoryInterface interface {
	GetByID(ctx context.Context, id string) (*model.Round, error)
	Create(ctx context.Context, r *model.Round) error
	ListActive(ctx context.Context, campaignID string) ([]*model.Round, error)
	LastNumber(ctx context.Context, campaignID string) (int, error)
	UpdateStatus(ctx context.Context, id string, status model.RoundStatus) error
	UpdateRemindersCounter(ctx context.Context, id string, counter int) error
}

type RecipientRepositoryInterface interface {
	ListByCampaign(ctx context.Context, campaignID string) ([]*model.Recipient, error)
	UpdateSurveyItems(ctx context.Context, id string, items model.ItemSet) error
}

type RoundResultRepositoryInterface interface {
	ListByRound(ctx context.Context, roundID string) ([]*model.RoundResult, error)
	Create(ctx context.Context, r *model.RoundResult) error
	CountStartedBetween(ctx context.Context, surveyID string, from, to time.Time) (int, error)
}

type CatalogRepositoryInterface interface {
	ActiveDrivers(ctx context.Context, companyID string) ([]model.Driver, error)
	EligibleItems(ctx context.Context, companyID string) ([]model.Item, error)
}

type CompanyRepositoryInterface interface {
	GetForUpdate(ctx context.Context, id string) (*model.Company, error)
	UpdateInviteQuota(ctx context.Context, id string, quota int) error
}

type OutboundMessageRepositoryInterface interface {
	Create(ctx context.Context, msg *model.OutboundMessage) error
	GetByID(ctx context.Context, id string) (*model.OutboundMessage, error)
	UpdateStatus(ctx context.Context, id string, status, lastError string) error
	ListRetryable(ctx context.Context, before time.Time, maxAttempts, limit int) ([]*model.OutboundMessage, error)
	GetCampaignStats(ctx context.Context, campaignID string) (map[string]int, error)
}
