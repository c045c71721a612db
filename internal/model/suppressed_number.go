// internal/model/suppressed_number.go
package model

import "time"

// SuppressedNumber is one blocklisted phone. A recipient whose canonical
// phone matches an entry is never handed to the transport.
type SuppressedNumber struct {
	Phone     string    `db:"phone" json:"phone"`
	Reason    string    `db:"reason" json:"reason"`
	BlockedAt time.Time `db:"blocked_at" json:"blocked_at"`
}
