// internal/service/campaign_service.go
package service

import (
	"fmt"
	"strings"
	"time"

	appErrors "github.com/wablast/wablast-backend/internal/errors"
	"github.com/wablast/wablast-backend/internal/model"
	"github.com/wablast/wablast-backend/internal/repository"
)

type CampaignService struct {
	Campaigns  repository.CampaignRepositoryInterface
	Recipients repository.RecipientRepositoryInterface
	Variations repository.VariationRepositoryInterface
}

type CampaignDetails struct {
	*model.Campaign
	Stats map[string]int `json:"stats"`
}

func (s *CampaignService) CreateCampaign(name, template string, fixed model.Params, buttons model.Buttons, includeStopOption bool, scheduledAt *string) (*model.Campaign, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("campaign name cannot be empty")
	}
	if strings.TrimSpace(template) == "" {
		return nil, fmt.Errorf("campaign template cannot be empty")
	}

	c := &model.Campaign{
		Name:              name,
		Template:          template,
		FixedParams:       fixed,
		Buttons:           buttons,
		IncludeStopOption: includeStopOption,
		Status:            model.CampaignStatusDraft,
	}

	if scheduledAt != nil && strings.TrimSpace(*scheduledAt) != "" {
		t, err := time.Parse(time.RFC3339, *scheduledAt)
		if err != nil {
			return nil, fmt.Errorf("invalid scheduled_at: %w", err)
		}
		c.ScheduledAt = &t
	}

	if err := s.Campaigns.Create(c); err != nil {
		return nil, err
	}
	return c, nil
}

// ListCampaigns fetches campaigns with pagination
func (s *CampaignService) ListCampaigns(page, pageSize int, status string) ([]model.Campaign, map[string]int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	ptrs, total, err := s.Campaigns.ListCampaigns(offset, pageSize, status)
	if err != nil {
		return nil, nil, err
	}

	campaigns := make([]model.Campaign, len(ptrs))
	for i, c := range ptrs {
		campaigns[i] = *c
	}

	totalPages := (total + pageSize - 1) / pageSize
	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": totalPages,
	}

	return campaigns, pagination, nil
}

func (s *CampaignService) GetCampaignWithStats(campaignID int) (*CampaignDetails, error) {
	campaign, err := s.Campaigns.GetByID(campaignID)
	if err != nil {
		return nil, err
	}

	stats, err := s.Recipients.CountByStatus(campaignID)
	if err != nil {
		return nil, err
	}
	total := 0
	for _, n := range stats {
		total += n
	}
	stats["total"] = total

	return &CampaignDetails{Campaign: campaign, Stats: stats}, nil
}

// SelectVariation makes an existing variation the campaign's active message.
func (s *CampaignService) SelectVariation(campaignID, number int) (*model.Variation, error) {
	v, err := s.Variations.GetByNumber(campaignID, number)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, fmt.Errorf("variation %d not found for campaign %d", number, campaignID)
	}
	if err := s.Campaigns.SetSelectedVariation(campaignID, v.Text); err != nil {
		return nil, err
	}
	return v, nil
}

// RenderPreview personalizes the campaign's message for one example contact.
func (s *CampaignService) RenderPreview(campaignID int, row IngestRow, overrideTemplate *string) (string, error) {
	campaign, err := s.Campaigns.GetByID(campaignID)
	if err != nil {
		return "", err
	}
	if campaign == nil {
		return "", appErrors.NewCampaignNotFound(campaignID)
	}

	template := campaign.SelectedVariation
	if template == "" {
		template = campaign.Template
	}
	if overrideTemplate != nil && strings.TrimSpace(*overrideTemplate) != "" {
		template = *overrideTemplate
	}
	if strings.TrimSpace(template) == "" {
		return "", fmt.Errorf("template cannot be empty")
	}

	recipient := &model.Recipient{
		Name:  row.Name,
		Phone: model.CanonicalPhone(row.Phone),
		Extra: row.Extra,
	}
	text := Personalize(template, recipient, campaign.FixedParams)
	if campaign.IncludeStopOption {
		text = WithStopOption(text)
	}
	return text, nil
}
