// internal/service/dispatcher.go
package service

import (
	"context"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	appErrors "github.com/wablast/wablast-backend/internal/errors"
	"github.com/wablast/wablast-backend/internal/model"
	"github.com/wablast/wablast-backend/internal/repository"
	"github.com/wablast/wablast-backend/internal/retry"
	"github.com/wablast/wablast-backend/internal/transport"
)

const suppressedReason = "recipient suppressed"

// DispatchConfig controls pacing and pre-warm behaviour for a run.
type DispatchConfig struct {
	PacingMin     time.Duration // lower bound of the inter-recipient window
	PacingMax     time.Duration // upper bound of the inter-recipient window
	RecoveryDelay time.Duration // shorter delay after a failed step
	PreWarmCount  int
	PreWarmDelay  time.Duration
}

func DefaultDispatchConfig() DispatchConfig {
	return DispatchConfig{
		PacingMin:     60 * time.Second,
		PacingMax:     90 * time.Second,
		RecoveryDelay: 10 * time.Second,
		PreWarmCount:  3,
		PreWarmDelay:  500 * time.Millisecond,
	}
}

// DispatchConfigFromEnv reads the pacing knobs, falling back to defaults.
func DispatchConfigFromEnv() DispatchConfig {
	cfg := DefaultDispatchConfig()
	if v := envSeconds("PACING_MIN_SECONDS"); v > 0 {
		cfg.PacingMin = v
	}
	if v := envSeconds("PACING_MAX_SECONDS"); v > 0 {
		cfg.PacingMax = v
	}
	if v := envSeconds("RECOVERY_DELAY_SECONDS"); v > 0 {
		cfg.RecoveryDelay = v
	}
	if raw := os.Getenv("PREWARM_COUNT"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			cfg.PreWarmCount = n
		}
	}
	return cfg
}

func envSeconds(key string) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}

// FailedRecipient is one entry of a run's failure list.
type FailedRecipient struct {
	Phone  string `json:"phone"`
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// RunResult is the externally observable outcome of a full dispatch run.
type RunResult struct {
	Total      int               `json:"total"`
	Sent       int               `json:"sent"`
	Failed     int               `json:"failed"`
	FailedList []FailedRecipient `json:"failed_list"`
}

// RecipientOutcome is one per-recipient progress event, pushed to Outcomes as
// the loop advances so callers can follow a live run.
type RecipientOutcome struct {
	CampaignID int       `json:"campaign_id"`
	Index      int       `json:"index"`
	Total      int       `json:"total"`
	Phone      string    `json:"phone"`
	Name       string    `json:"name"`
	Status     string    `json:"status"`
	Reason     string    `json:"reason,omitempty"`
	At         time.Time `json:"at"`
}

// Dispatcher runs one campaign pass: suppression filtering, per-recipient
// variation generation, personalization, paced sequential sends and status
// bookkeeping. All collaborators are injected; the dispatcher owns no
// globals and separate campaigns can run as independent instances.
type Dispatcher struct {
	Campaigns    repository.CampaignRepositoryInterface
	Recipients   repository.RecipientRepositoryInterface
	Suppressions repository.SuppressionRepositoryInterface
	Variations   *VariationService
	Transport    transport.Transport
	Retry        retry.Config
	Config       DispatchConfig

	// Outcomes, when set, receives one event per recipient. Sends are
	// non-blocking; a slow consumer loses events, never stalls the run.
	Outcomes chan<- RecipientOutcome
}

// RunStream is Run with a per-run outcome channel, for callers following a
// live run. The channel is not closed here; the caller owns it.
func (d *Dispatcher) RunStream(ctx context.Context, campaignID int, seedText string, outcomes chan<- RecipientOutcome) (*RunResult, error) {
	run := *d
	run.Outcomes = outcomes
	return run.Run(ctx, campaignID, seedText)
}

// Run executes one full dispatch pass for the campaign. Per-recipient errors
// never abort the run; only setup failures return an error.
func (d *Dispatcher) Run(ctx context.Context, campaignID int, seedText string) (*RunResult, error) {
	campaign, err := retry.DoValue(ctx, "campaigns.get", d.Retry, func() (*model.Campaign, error) {
		return d.Campaigns.GetByID(campaignID)
	})
	if err != nil {
		return nil, err
	}
	if campaign == nil {
		return nil, appErrors.NewCampaignNotFound(campaignID)
	}

	if !d.Transport.Connected() {
		return nil, appErrors.ErrNoActiveSession
	}

	template := strings.TrimSpace(seedText)
	if template == "" {
		template = campaign.SelectedVariation
	}
	if template == "" {
		template = campaign.Template
	}

	recipients, err := retry.DoValue(ctx, "recipients.list_pending", d.Retry, func() ([]*model.Recipient, error) {
		return d.Recipients.ListPending(campaignID)
	})
	if err != nil {
		return nil, err
	}
	if len(recipients) == 0 {
		return nil, appErrors.NewNoPendingRecipients(campaignID)
	}

	if err := retry.Do(ctx, "campaigns.update_status", d.Retry, func() error {
		return d.Campaigns.UpdateStatus(campaignID, model.CampaignStatusSending)
	}); err != nil {
		log.Warn().Int("campaign_id", campaignID).Err(err).Msg("could not mark campaign sending")
	}

	log.Info().Int("campaign_id", campaignID).Int("total", len(recipients)).Msg("🚀 dispatch run started")

	if d.Config.PreWarmCount > 0 {
		d.Variations.PreWarm(ctx, campaignID, template, campaign.FixedParams, d.Config.PreWarmCount, d.Config.PreWarmDelay)
	}

	result := &RunResult{Total: len(recipients), FailedList: []FailedRecipient{}}
	cancelled := false

	for i, recipient := range recipients {
		// Cancellation check before any per-recipient work. Untouched
		// recipients stay pending.
		select {
		case <-ctx.Done():
			cancelled = true
		default:
		}
		if cancelled {
			log.Info().Int("campaign_id", campaignID).Int("remaining", len(recipients)-i).
				Msg("dispatch run cancelled")
			break
		}

		failReason := d.step(ctx, campaign, recipient, template)
		if failReason == "" {
			result.Sent++
		} else {
			result.Failed++
			result.FailedList = append(result.FailedList, FailedRecipient{
				Phone:  recipient.Phone,
				Name:   recipient.Name,
				Reason: failReason,
			})
		}
		d.emit(campaign.ID, i, len(recipients), recipient, failReason)

		if i < len(recipients)-1 {
			delay := d.pacingDelay(failReason != "")
			if !sleepCtx(ctx, delay) {
				cancelled = true
			}
		}
	}

	if !cancelled {
		if err := retry.Do(ctx, "campaigns.update_status", d.Retry, func() error {
			return d.Campaigns.UpdateStatus(campaignID, model.CampaignStatusDone)
		}); err != nil {
			log.Warn().Int("campaign_id", campaignID).Err(err).Msg("could not mark campaign done")
		}
	}

	log.Info().Int("campaign_id", campaignID).
		Int("sent", result.Sent).Int("failed", result.Failed).
		Msg("dispatch run finished")
	return result, nil
}

// step handles one recipient and returns the failure reason, or "" on a
// successful send.
func (d *Dispatcher) step(ctx context.Context, campaign *model.Campaign, recipient *model.Recipient, template string) string {
	suppressed, err := retry.DoValue(ctx, "suppressions.check", d.Retry, func() (bool, error) {
		return d.Suppressions.IsSuppressed(recipient.Phone)
	})
	if err != nil {
		// When the blocklist cannot be read, not sending is the safe side.
		reason := "suppression check failed: " + err.Error()
		d.markFailed(ctx, campaign.ID, recipient.Phone, reason)
		return reason
	}
	if suppressed {
		log.Info().Int("campaign_id", campaign.ID).Str("phone", recipient.Phone).Msg("recipient suppressed, skipping send")
		d.markFailed(ctx, campaign.ID, recipient.Phone, suppressedReason)
		return suppressedReason
	}

	variation, err := d.Variations.Generate(ctx, campaign.ID, template, campaign.FixedParams, recipient.Name)
	if err != nil {
		reason := err.Error()
		d.markFailed(ctx, campaign.ID, recipient.Phone, reason)
		return reason
	}

	text := Personalize(variation.Text, recipient, campaign.FixedParams)
	if campaign.IncludeStopOption {
		text = WithStopOption(text)
	}

	if len(campaign.Buttons) > 0 {
		_, err = d.Transport.SendButtons(ctx, recipient.Phone, text, campaign.Buttons)
	} else {
		_, err = d.Transport.SendText(ctx, recipient.Phone, text)
	}
	if err != nil {
		// Sends are not retried within a run; the campaign continues.
		reason := err.Error()
		d.markFailed(ctx, campaign.ID, recipient.Phone, reason)
		return reason
	}

	d.markSent(ctx, campaign.ID, recipient.Phone)
	return ""
}

func (d *Dispatcher) markSent(ctx context.Context, campaignID int, phone string) {
	err := retry.Do(ctx, "recipients.mark_sent", d.Retry, func() error {
		return d.Recipients.UpdateStatus(campaignID, phone, model.StatusSent, "")
	})
	if err != nil {
		log.Error().Int("campaign_id", campaignID).Str("phone", phone).Err(err).
			Msg("could not record sent status")
	}
}

func (d *Dispatcher) markFailed(ctx context.Context, campaignID int, phone, reason string) {
	err := retry.Do(ctx, "recipients.mark_failed", d.Retry, func() error {
		return d.Recipients.UpdateStatus(campaignID, phone, model.StatusFailed, reason)
	})
	if err != nil {
		log.Error().Int("campaign_id", campaignID).Str("phone", phone).Err(err).
			Msg("could not record failed status")
	}
}

func (d *Dispatcher) emit(campaignID, index, total int, recipient *model.Recipient, failReason string) {
	if d.Outcomes == nil {
		return
	}
	status := model.StatusSent
	if failReason != "" {
		status = model.StatusFailed
	}
	outcome := RecipientOutcome{
		CampaignID: campaignID,
		Index:      index,
		Total:      total,
		Phone:      recipient.Phone,
		Name:       recipient.Name,
		Status:     status,
		Reason:     failReason,
		At:         time.Now(),
	}
	select {
	case d.Outcomes <- outcome:
	default:
	}
}

// pacingDelay picks the wait before the next recipient: a uniform draw from
// the pacing window after a success, the fixed recovery delay after a
// failure so failures don't stall the run as long as successes would.
func (d *Dispatcher) pacingDelay(failed bool) time.Duration {
	if failed {
		return d.Config.RecoveryDelay
	}
	min, max := d.Config.PacingMin, d.Config.PacingMax
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)))
}

// sleepCtx waits for d or until ctx is cancelled. Returns false on cancel.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
