// Package progress keeps live counters for running dispatches in redis so a
// dashboard can poll a run without touching the recipient store.
package progress

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"

	"github.com/wablast/wablast-backend/internal/model"
	"github.com/wablast/wablast-backend/internal/service"
)

// RunProgress is the snapshot stored per dispatch run.
type RunProgress struct {
	RunID      string    `json:"run_id"`
	CampaignID int       `json:"campaign_id"`
	Total      int       `json:"total"`
	Sent       int       `json:"sent"`
	Failed     int       `json:"failed"`
	LastPhone  string    `json:"last_phone,omitempty"`
	LastStatus string    `json:"last_status,omitempty"`
	LastReason string    `json:"last_reason,omitempty"`
	Done       bool      `json:"done"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Store persists run progress. A nil Store (or nil client) is a no-op, so
// redis stays optional.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStore(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{client: client, ttl: ttl}
}

func key(runID string) string { return "dispatch:run:" + runID }

func (s *Store) set(ctx context.Context, p *RunProgress) {
	if s == nil || s.client == nil {
		return
	}
	p.UpdatedAt = time.Now()
	data, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := s.client.SetEX(ctx, key(p.RunID), data, s.ttl).Err(); err != nil {
		log.Warn().Str("run_id", p.RunID).Err(err).Msg("could not store run progress")
	}
}

// Start records a fresh run snapshot.
func (s *Store) Start(ctx context.Context, runID string, campaignID, total int) {
	s.set(ctx, &RunProgress{RunID: runID, CampaignID: campaignID, Total: total})
}

func (p *RunProgress) apply(outcome service.RecipientOutcome) {
	p.Total = outcome.Total
	if outcome.Status == model.StatusSent {
		p.Sent++
	} else {
		p.Failed++
	}
	p.LastPhone = outcome.Phone
	p.LastStatus = outcome.Status
	p.LastReason = outcome.Reason
}

// Consume drains recipient outcomes into the snapshot until the channel
// closes, then marks the run done. Run it in its own goroutine.
func (s *Store) Consume(ctx context.Context, runID string, campaignID int, outcomes <-chan service.RecipientOutcome) {
	p := &RunProgress{RunID: runID, CampaignID: campaignID}
	for outcome := range outcomes {
		p.apply(outcome)
		s.set(ctx, p)
	}
	p.Done = true
	s.set(ctx, p)
}

// Get fetches a run snapshot. The second return is false when unknown.
func (s *Store) Get(ctx context.Context, runID string) (*RunProgress, bool, error) {
	if s == nil || s.client == nil {
		return nil, false, nil
	}
	data, err := s.client.Get(ctx, key(runID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var p RunProgress
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, false, err
	}
	return &p, true, nil
}
