package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ignite/campaign-engine/internal/pkg/httputil"
	"github.com/ignite/campaign-engine/internal/service/campaign"
)

func campaignID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.BadRequest(w, "invalid campaign id")
		return uuid.Nil, false
	}
	return id, true
}

func writeCampaignError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, campaign.ErrNotFound):
		httputil.NotFound(w, err.Error())
	case errors.Is(err, campaign.ErrInvalidTransition), errors.Is(err, campaign.ErrNotEditable):
		httputil.Conflict(w, err.Error())
	case errors.Is(err, campaign.ErrMissingTemplate), errors.Is(err, campaign.ErrMissingSegments):
		httputil.BadRequest(w, err.Error())
	default:
		httputil.InternalError(w, err)
	}
}

func (s *Server) createCampaign(w http.ResponseWriter, r *http.Request) {
	var input campaign.CreateInput
	if !httputil.Decode(w, r, &input) {
		return
	}
	c, err := s.campaigns.Create(r.Context(), input)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	httputil.Created(w, c)
}

func (s *Server) getCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignID(w, r)
	if !ok {
		return
	}
	c, err := s.campaigns.Get(r.Context(), id)
	if err != nil {
		writeCampaignError(w, err)
		return
	}
	httputil.OK(w, c)
}

func (s *Server) updateCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignID(w, r)
	if !ok {
		return
	}
	var body struct {
		Name       *string      `json:"name"`
		Subject    *string      `json:"subject"`
		TemplateID *uuid.UUID   `json:"template_id"`
		SegmentIDs *[]uuid.UUID `json:"segment_ids"`
	}
	if !httputil.Decode(w, r, &body) {
		return
	}
	err := s.campaigns.Update(r.Context(), id, campaign.UpdateFields{
		Name:       body.Name,
		Subject:    body.Subject,
		TemplateID: body.TemplateID,
		SegmentIDs: body.SegmentIDs,
	})
	if err != nil {
		writeCampaignError(w, err)
		return
	}
	c, err := s.campaigns.Get(r.Context(), id)
	if err != nil {
		writeCampaignError(w, err)
		return
	}
	httputil.OK(w, c)
}

func (s *Server) scheduleCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignID(w, r)
	if !ok {
		return
	}
	var body struct {
		ScheduledAt time.Time `json:"scheduled_at"`
	}
	if !httputil.Decode(w, r, &body) {
		return
	}
	if body.ScheduledAt.IsZero() {
		httputil.BadRequest(w, "scheduled_at is required")
		return
	}
	if err := s.campaigns.Schedule(r.Context(), id, body.ScheduledAt); err != nil {
		writeCampaignError(w, err)
		return
	}
	httputil.OK(w, map[string]string{"status": "scheduled"})
}

func (s *Server) cancelCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignID(w, r)
	if !ok {
		return
	}
	if err := s.campaigns.Cancel(r.Context(), id); err != nil {
		writeCampaignError(w, err)
		return
	}
	httputil.OK(w, map[string]string{"status": "draft"})
}

func (s *Server) sendCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignID(w, r)
	if !ok {
		return
	}
	result, err := s.dispatcher.SendNow(r.Context(), id)
	if err != nil {
		writeCampaignError(w, err)
		return
	}
	if result == nil {
		// Another pass claimed it between our checks.
		httputil.Conflict(w, "campaign is already being sent")
		return
	}
	httputil.OK(w, result)
}

func (s *Server) runAggregation(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Date string `json:"date"` // YYYY-MM-DD, defaults to yesterday UTC
	}
	if !httputil.Decode(w, r, &body) {
		return
	}

	date := time.Now().UTC().AddDate(0, 0, -1)
	if body.Date != "" {
		parsed, err := time.Parse("2006-01-02", body.Date)
		if err != nil {
			httputil.BadRequest(w, "date must be YYYY-MM-DD")
			return
		}
		date = parsed
	}

	if err := s.aggregator.RunForDate(r.Context(), date); err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]string{"date": date.Format("2006-01-02"), "status": "aggregated"})
}
