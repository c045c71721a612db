// internal/model/campaign.go
package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

const (
	CampaignStatusDraft     = "draft"
	CampaignStatusScheduled = "scheduled"
	CampaignStatusSending   = "sending"
	CampaignStatusDone      = "done"
)

type Campaign struct {
	ID                int        `db:"id" json:"id"`
	Name              string     `db:"name" json:"name"`
	Template          string     `db:"template" json:"template"`
	FixedParams       Params     `db:"fixed_params" json:"fixed_params"`
	Buttons           Buttons    `db:"buttons" json:"buttons,omitempty"`
	IncludeStopOption bool       `db:"include_stop_option" json:"include_stop_option"`
	SelectedVariation string     `db:"selected_variation" json:"selected_variation,omitempty"`
	Status            string     `db:"status" json:"status"`
	ScheduledAt       *time.Time `db:"scheduled_at" json:"scheduled_at,omitempty"`
	TotalRecipients   int        `db:"total_recipients" json:"total_recipients"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// Button is one quick-reply affordance attached to every message of a campaign.
type Button struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

type Buttons []Button

func (b Buttons) Value() (driver.Value, error) {
	if len(b) == 0 {
		return "[]", nil
	}
	out, err := json.Marshal(b)
	if err != nil {
		return nil, err
	}
	return string(out), nil
}

func (b *Buttons) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*b = nil
		return nil
	case []byte:
		return json.Unmarshal(v, b)
	case string:
		return json.Unmarshal([]byte(v), b)
	default:
		return fmt.Errorf("buttons: cannot scan %T", src)
	}
}
