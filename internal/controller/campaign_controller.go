// internal/controller/campaign_controller.go
package controller

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/unclebandit/pulse-scheduler/internal/handler"
	"github.com/unclebandit/pulse-scheduler/internal/model"
	"github.com/unclebandit/pulse-scheduler/internal/service"
)

// CampaignController exposes the scheduling commands to operators.
type CampaignController struct {
	Clock     *service.CampaignClock
	Builder   *service.RoundBuilder
	Reminders *service.ReminderEscalator
	Logger    *zap.Logger
}

func (c *CampaignController) Mount(r chi.Router) {
	r.Post("/campaigns/{id}/tick", c.Tick)
	r.Post("/campaigns/{id}/pause", c.Pause)
	r.Post("/campaigns/{id}/resume", c.Resume)
	r.Put("/campaigns/{id}/frequency", c.ChangeFrequency)
	r.Post("/rounds/{id}/process", c.ProcessRound)
	r.Post("/rounds/{id}/reminders", c.SendReminders)
}

func (c *CampaignController) Tick(w http.ResponseWriter, r *http.Request) {
	res, err := c.Clock.Tick(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		c.fail(w, "tick", err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, res)
}

func (c *CampaignController) Pause(w http.ResponseWriter, r *http.Request) {
	campaign, err := c.Clock.Pause(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		c.fail(w, "pause", err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, campaign)
}

func (c *CampaignController) Resume(w http.ResponseWriter, r *http.Request) {
	campaign, err := c.Clock.Resume(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		c.fail(w, "resume", err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, campaign)
}

func (c *CampaignController) ChangeFrequency(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Frequency model.Frequency `json:"frequency"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	campaign, err := c.Clock.ChangeFrequency(r.Context(), chi.URLParam(r, "id"), body.Frequency)
	if err != nil {
		c.fail(w, "change frequency", err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, campaign)
}

func (c *CampaignController) ProcessRound(w http.ResponseWriter, r *http.Request) {
	res, err := c.Builder.Process(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		c.fail(w, "process round", err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, res)
}

// SendReminders accepts ?participation_only=true to remind only recipients
// who have not started the round.
func (c *CampaignController) SendReminders(w http.ResponseWriter, r *http.Request) {
	participationOnly := false
	if v := r.URL.Query().Get("participation_only"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			http.Error(w, "invalid participation_only", http.StatusBadRequest)
			return
		}
		participationOnly = parsed
	}

	res, err := c.Reminders.Remind(r.Context(), chi.URLParam(r, "id"), participationOnly)
	if err != nil {
		c.fail(w, "send reminders", err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, res)
}

func (c *CampaignController) fail(w http.ResponseWriter, op string, err error) {
	c.Logger.Warn("command failed", zap.String("op", op), zap.Error(err))
	handler.WriteError(w, err)
}
