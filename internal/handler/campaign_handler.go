// internal/handler/campaign_handler.go
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/unclebandit/pulse-scheduler/internal/service"
)

// CampaignHandler serves the read side of the ops API.
type CampaignHandler struct {
	Service *service.CampaignService
	Logger  *zap.Logger
}

func NewCampaignHandler(svc *service.CampaignService, logger *zap.Logger) *CampaignHandler {
	return &CampaignHandler{Service: svc, Logger: logger}
}

func (h *CampaignHandler) Mount(r chi.Router) {
	r.Get("/healthz", h.Health)
	r.Get("/campaigns/{id}", h.GetCampaignHandlerWithStats)
}

func (h *CampaignHandler) Health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetCampaignHandlerWithStats returns the campaign schedule with its open
// round and outbox delivery counts.
func (h *CampaignHandler) GetCampaignHandlerWithStats(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	details, err := h.Service.GetCampaignDetailsWithStats(r.Context(), id)
	if err != nil {
		h.Logger.Warn("failed to fetch campaign", zap.String("campaign_id", id), zap.Error(err))
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, details)
}
