// internal/model/variation.go
package model

import "time"

// Variation is one rewritten instance of a campaign's message. Rows are
// append-only; Number is 1-based and gapless per campaign.
type Variation struct {
	ID             int       `db:"id" json:"id"`
	CampaignID     int       `db:"campaign_id" json:"campaign_id"`
	Text           string    `db:"text" json:"text"`
	SourceTemplate string    `db:"source_template" json:"source_template"`
	Number         int       `db:"variation_number" json:"variation_number"`
	ParamsSnapshot Params    `db:"params_snapshot" json:"params_snapshot,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
