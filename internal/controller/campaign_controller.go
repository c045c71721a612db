// internal/controller/campaign_controller.go
package controller

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	appErrors "github.com/wablast/wablast-backend/internal/errors"
	"github.com/wablast/wablast-backend/internal/model"
	"github.com/wablast/wablast-backend/internal/repository"
	"github.com/wablast/wablast-backend/internal/service"
)

type CampaignController struct {
	CampaignService  *service.CampaignService
	IngestService    *service.IngestService
	VariationService *service.VariationService
	Variations       repository.VariationRepositoryInterface
}

func writeError(w http.ResponseWriter, err error) {
	var notFound *appErrors.ErrCampaignNotFound
	var validation *appErrors.ValidationError
	switch {
	case errors.As(err, &notFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.As(err, &validation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func campaignID(r *http.Request) (int, error) {
	return strconv.Atoi(chi.URLParam(r, "id"))
}

func (c *CampaignController) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name              string        `json:"name"`
		Template          string        `json:"template"`
		FixedParams       model.Params  `json:"fixed_params"`
		Buttons           model.Buttons `json:"buttons"`
		IncludeStopOption bool          `json:"include_stop_option"`
		ScheduledAt       *string       `json:"scheduled_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	campaign, err := c.CampaignService.CreateCampaign(body.Name, body.Template, body.FixedParams, body.Buttons, body.IncludeStopOption, body.ScheduledAt)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(campaign)
}

func (c *CampaignController) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	status := r.URL.Query().Get("status")

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	campaigns, pagination, err := c.CampaignService.ListCampaigns(page, pageSize, status)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"data":       campaigns,
		"pagination": pagination,
	})
}

func (c *CampaignController) GetCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	details, err := c.CampaignService.GetCampaignWithStats(id)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(details)
}

// IngestContacts stores an uploaded contact batch for the campaign.
func (c *CampaignController) IngestContacts(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	var body struct {
		Rows []service.IngestRow `json:"rows"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if len(body.Rows) == 0 {
		http.Error(w, "no rows provided", http.StatusBadRequest)
		return
	}

	result, err := c.IngestService.Ingest(id, body.Rows)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// Preview renders the campaign message for one example contact.
func (c *CampaignController) Preview(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	var body struct {
		Contact          service.IngestRow `json:"contact"`
		OverrideTemplate *string           `json:"override_template"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	rendered, err := c.CampaignService.RenderPreview(id, body.Contact, body.OverrideTemplate)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"rendered_message": rendered,
	})
}

// GenerateVariation produces one new variation on demand.
func (c *CampaignController) GenerateVariation(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	var body struct {
		Hint string `json:"hint"`
	}
	// body is optional
	_ = json.NewDecoder(r.Body).Decode(&body)

	details, err := c.CampaignService.GetCampaignWithStats(id)
	if err != nil {
		writeError(w, err)
		return
	}

	template := details.SelectedVariation
	if template == "" {
		template = details.Template
	}

	variation, err := c.VariationService.Generate(r.Context(), id, template, details.FixedParams, body.Hint)
	if err != nil {
		var genErr *appErrors.GenerationFailed
		if errors.As(err, &genErr) {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(variation)
}

func (c *CampaignController) ListVariations(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	variations, err := c.Variations.ListByCampaign(id)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"data": variations})
}

// PreWarmVariations generates a few variations ahead of dispatch.
func (c *CampaignController) PreWarmVariations(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	var body struct {
		Count int `json:"count"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	if body.Count < 1 {
		body.Count = 3
	}

	details, err := c.CampaignService.GetCampaignWithStats(id)
	if err != nil {
		writeError(w, err)
		return
	}

	template := details.SelectedVariation
	if template == "" {
		template = details.Template
	}

	succeeded := c.VariationService.PreWarm(r.Context(), id, template, details.FixedParams, body.Count, 500*time.Millisecond)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"requested": body.Count,
		"generated": succeeded,
	})
}

func (c *CampaignController) SelectVariation(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}
	number, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil {
		http.Error(w, "invalid variation number", http.StatusBadRequest)
		return
	}

	variation, err := c.CampaignService.SelectVariation(id, number)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(variation)
}
