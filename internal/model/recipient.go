// internal/model/recipient.go
package model

import "time"

const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

type Recipient struct {
	ID            int        `db:"id" json:"id"`
	CampaignID    int        `db:"campaign_id" json:"campaign_id"`
	Name          string     `db:"name" json:"name"`
	Phone         string     `db:"phone" json:"phone"` // digits only
	Extra         Params     `db:"extra" json:"extra,omitempty"`
	Status        string     `db:"status" json:"status"`
	SentAt        *time.Time `db:"sent_at" json:"sent_at,omitempty"`
	FailureReason string     `db:"failure_reason" json:"failure_reason,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}
