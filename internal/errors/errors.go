// internal/errors/errors.go
package appErrors

import (
	"errors"
	"fmt"
)

// ErrNoActiveSession is returned when a dispatch run is requested while the
// transport has no authenticated session.
var ErrNoActiveSession = errors.New("no active messaging session")

// ErrCampaignNotFound is a sentinel error
type ErrCampaignNotFound struct {
	CampaignID int
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign with ID %d not found", e.CampaignID)
}

// Helper constructor
func NewCampaignNotFound(id int) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

// ValidationError rejects a whole ingestion batch; nothing is partially stored.
type ValidationError struct {
	Row    int
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid contact row %d: %s", e.Row, e.Reason)
}

func NewValidation(row int, reason string) error {
	return &ValidationError{Row: row, Reason: reason}
}

// GenerationFailed means the rewrite service produced nothing usable. It is a
// normal per-recipient outcome, not a run-level failure.
type GenerationFailed struct {
	CampaignID int
	Reason     string
}

func (e *GenerationFailed) Error() string {
	return fmt.Sprintf("variation generation failed for campaign %d: %s", e.CampaignID, e.Reason)
}

func NewGenerationFailed(campaignID int, reason string) error {
	return &GenerationFailed{CampaignID: campaignID, Reason: reason}
}

// ErrNoPendingRecipients aborts a run before the loop starts.
type ErrNoPendingRecipients struct {
	CampaignID int
}

func (e *ErrNoPendingRecipients) Error() string {
	return fmt.Sprintf("campaign %d has no pending recipients", e.CampaignID)
}

func NewNoPendingRecipients(id int) error {
	return &ErrNoPendingRecipients{CampaignID: id}
}
