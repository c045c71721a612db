// Package scheduler turns scheduled campaigns into dispatch-run jobs when
// their time arrives.
package scheduler

import (
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/wablast/wablast-backend/internal/model"
	"github.com/wablast/wablast-backend/internal/queue"
	"github.com/wablast/wablast-backend/internal/repository"
)

type Scheduler struct {
	Campaigns repository.CampaignRepositoryInterface
	Queue     queue.Queue

	cron *cron.Cron
}

func New(campaigns repository.CampaignRepositoryInterface, q queue.Queue) *Scheduler {
	return &Scheduler{
		Campaigns: campaigns,
		Queue:     q,
		cron:      cron.New(),
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("@every 1m", s.tick); err != nil {
		return err
	}
	s.cron.Start()
	log.Info().Msg("campaign scheduler started")
	return nil
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
}

func (s *Scheduler) tick() {
	due, err := s.Campaigns.ListDue(time.Now())
	if err != nil {
		log.Error().Err(err).Msg("scheduler could not list due campaigns")
		return
	}

	for _, campaign := range due {
		// Flip status before publishing so the next tick doesn't queue the
		// same campaign twice.
		if err := s.Campaigns.UpdateStatus(campaign.ID, model.CampaignStatusSending); err != nil {
			log.Error().Int("campaign_id", campaign.ID).Err(err).Msg("could not claim scheduled campaign")
			continue
		}

		job := queue.RunJob{RunID: uuid.NewString(), CampaignID: campaign.ID}
		if err := s.Queue.Publish(queue.DispatchTopic, job); err != nil {
			log.Error().Int("campaign_id", campaign.ID).Err(err).Msg("could not enqueue scheduled run")
			continue
		}
		log.Info().Int("campaign_id", campaign.ID).Str("run_id", job.RunID).Msg("scheduled campaign queued for dispatch")
	}
}
