// internal/service/ingest_service.go
package service

import (
	"strings"

	"github.com/rs/zerolog/log"

	appErrors "github.com/wablast/wablast-backend/internal/errors"
	"github.com/wablast/wablast-backend/internal/model"
	"github.com/wablast/wablast-backend/internal/repository"
)

// IngestRow is one uploaded contact row, in upload order.
type IngestRow struct {
	Name  string       `json:"name"`
	Phone string       `json:"phone"`
	Extra model.Params `json:"extra,omitempty"`
}

type IngestResult struct {
	Stored  int                `json:"stored"`
	Dropped int                `json:"dropped"`
	Sample  []*model.Recipient `json:"sample"`
}

type IngestService struct {
	Campaigns  repository.CampaignRepositoryInterface
	Recipients repository.RecipientRepositoryInterface
}

const sampleSize = 5

// Ingest validates, canonicalizes and dedups the batch, then stores it. Any
// row missing name or phone rejects the whole batch; nothing is partially
// stored. Duplicate canonical phones collapse to the first occurrence.
func (s *IngestService) Ingest(campaignID int, rows []IngestRow) (*IngestResult, error) {
	campaign, err := s.Campaigns.GetByID(campaignID)
	if err != nil {
		return nil, err
	}
	if campaign == nil {
		return nil, appErrors.NewCampaignNotFound(campaignID)
	}

	seen := map[string]bool{}
	recipients := []*model.Recipient{}
	dropped := 0

	for i, row := range rows {
		if strings.TrimSpace(row.Name) == "" {
			return nil, appErrors.NewValidation(i, "missing name")
		}
		phone := model.CanonicalPhone(row.Phone)
		if phone == "" {
			return nil, appErrors.NewValidation(i, "missing phone")
		}

		if seen[phone] {
			dropped++
			continue
		}
		seen[phone] = true

		recipients = append(recipients, &model.Recipient{
			CampaignID: campaignID,
			Name:       strings.TrimSpace(row.Name),
			Phone:      phone,
			Extra:      row.Extra,
			Status:     model.StatusPending,
		})
	}

	stored, err := s.Recipients.BulkInsert(campaignID, recipients)
	if err != nil {
		return nil, err
	}

	if err := s.Campaigns.SetTotalRecipients(campaignID, stored); err != nil {
		return nil, err
	}

	if dropped > 0 {
		log.Info().Int("campaign_id", campaignID).Int("dropped", dropped).
			Msg("duplicate phones dropped during ingestion")
	}

	sample := recipients
	if len(sample) > sampleSize {
		sample = sample[:sampleSize]
	}
	return &IngestResult{Stored: stored, Dropped: dropped, Sample: sample}, nil
}
