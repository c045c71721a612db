// internal/service/variation_service.go
package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	appErrors "github.com/wablast/wablast-backend/internal/errors"
	"github.com/wablast/wablast-backend/internal/model"
	"github.com/wablast/wablast-backend/internal/repository"
	"github.com/wablast/wablast-backend/internal/retry"
	"github.com/wablast/wablast-backend/internal/rewrite"
)

// Rewriter is the opaque text-transform collaborator.
type Rewriter interface {
	Rewrite(ctx context.Context, req rewrite.Request) (string, error)
}

// historyCap bounds how many prior variations go into the prompt. Older ones
// drop out of the novelty context but still count for numbering.
const historyCap = 20

// VariationService produces numbered, contextually unique rewrites of a
// campaign's message. Creation for a given campaign is serialized so numbers
// are gapless and strictly increasing even when generations race.
type VariationService struct {
	Variations repository.VariationRepositoryInterface
	Rewriter   Rewriter
	Retry      retry.Config

	mu    sync.Mutex
	locks map[int]*sync.Mutex
}

func NewVariationService(variations repository.VariationRepositoryInterface, rewriter Rewriter) *VariationService {
	return &VariationService{
		Variations: variations,
		Rewriter:   rewriter,
		Retry:      retry.DefaultConfig(),
		locks:      map[int]*sync.Mutex{},
	}
}

func (s *VariationService) campaignLock(campaignID int) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[campaignID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[campaignID] = lock
	}
	return lock
}

// Generate produces variation #(priorCount+1) for the campaign. A failed or
// empty rewrite returns a GenerationFailed error and persists nothing; the
// caller decides fallback.
func (s *VariationService) Generate(ctx context.Context, campaignID int, template string, fixed model.Params, hint string) (*model.Variation, error) {
	lock := s.campaignLock(campaignID)
	lock.Lock()
	defer lock.Unlock()

	priorCount, err := retry.DoValue(ctx, "variations.count", s.Retry, func() (int, error) {
		return s.Variations.CountByCampaign(campaignID)
	})
	if err != nil {
		return nil, err
	}

	recent, err := retry.DoValue(ctx, "variations.list_recent", s.Retry, func() ([]*model.Variation, error) {
		return s.Variations.ListRecent(campaignID, historyCap)
	})
	if err != nil {
		return nil, err
	}

	// ListRecent is newest-first; prompt history reads oldest-first.
	history := make([]string, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		history = append(history, recent[i].Text)
	}

	text, err := s.Rewriter.Rewrite(ctx, rewrite.Request{
		Template:      template,
		FixedParams:   fixed,
		History:       history,
		RecipientHint: hint,
	})
	if err != nil {
		return nil, appErrors.NewGenerationFailed(campaignID, err.Error())
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, appErrors.NewGenerationFailed(campaignID, "rewrite service returned empty text")
	}

	v := &model.Variation{
		CampaignID:     campaignID,
		Text:           text,
		SourceTemplate: template,
		Number:         priorCount + 1,
		ParamsSnapshot: fixed,
	}
	err = retry.Do(ctx, "variations.create", s.Retry, func() error {
		return s.Variations.Create(v)
	})
	if err != nil {
		return nil, err
	}

	log.Debug().Int("campaign_id", campaignID).Int("number", v.Number).Msg("variation generated")
	return v, nil
}

// PreWarm generates count variations serially with a small delay between
// calls, purely to reduce first-message latency and provider burstiness.
// Failures are logged, not fatal. Returns how many succeeded.
func (s *VariationService) PreWarm(ctx context.Context, campaignID int, template string, fixed model.Params, count int, delay time.Duration) int {
	succeeded := 0
	for i := 0; i < count; i++ {
		if ctx.Err() != nil {
			break
		}
		if _, err := s.Generate(ctx, campaignID, template, fixed, ""); err != nil {
			log.Warn().Int("campaign_id", campaignID).Err(err).Msg("pre-warm generation failed")
		} else {
			succeeded++
		}

		if i < count-1 && delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return succeeded
			case <-timer.C:
			}
		}
	}
	return succeeded
}
