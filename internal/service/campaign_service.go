// internal/service/campaign_service.go
package service

import (
	"context"

	"go.uber.org/zap"

	appErrors "github.com/unclebandit/pulse-scheduler/internal/errors"
	"github.com/unclebandit/pulse-scheduler/internal/model"
	"github.com/unclebandit/pulse-scheduler/internal/repository"
)

// CampaignService serves read-only views of a campaign's schedule.
type CampaignService struct {
	Store  repository.Store
	Logger *zap.Logger
}

type CampaignDetails struct {
	Campaign    *model.Campaign `json:"campaign"`
	ActiveRound *model.Round    `json:"active_round,omitempty"`
	LastRound   int             `json:"last_round"`
	Stats       map[string]int  `json:"stats"`
}

// GetCampaignDetailsWithStats returns the campaign with its open round and
// outbox counts per delivery status.
func (s *CampaignService) GetCampaignDetailsWithStats(ctx context.Context, campaignID string) (*CampaignDetails, error) {
	campaign, err := s.Store.Campaigns().GetByID(ctx, campaignID)
	if err != nil {
		return nil, appErrors.Persistence("load campaign", err)
	}

	details := &CampaignDetails{Campaign: campaign}

	active, err := s.Store.Rounds().ListActive(ctx, campaignID)
	if err != nil {
		return nil, appErrors.Persistence("load active round", err)
	}
	if len(active) > 0 {
		details.ActiveRound = active[0]
	}
	if details.LastRound, err = s.Store.Rounds().LastNumber(ctx, campaignID); err != nil {
		return nil, appErrors.Persistence("load last round", err)
	}

	if details.Stats, err = s.Store.Outbox().GetCampaignStats(ctx, campaignID); err != nil {
		s.Logger.Warn("failed to load outbox stats", zap.String("campaign_id", campaignID), zap.Error(err))
		return nil, appErrors.Persistence("load outbox stats", err)
	}
	return details, nil
}
