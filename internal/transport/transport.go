// Package transport abstracts the messaging network the dispatch loop
// delivers through.
package transport

import (
	"context"
	"time"

	"github.com/wablast/wablast-backend/internal/model"
)

// Receipt is the network's acknowledgement of an accepted outbound message.
type Receipt struct {
	MessageID string
	Timestamp time.Time
}

// Transport is the external send collaborator. Connected lets the dispatch
// loop fail fast before touching any recipient when no session is active.
type Transport interface {
	SendText(ctx context.Context, phone, text string) (*Receipt, error)
	SendButtons(ctx context.Context, phone, text string, buttons []model.Button) (*Receipt, error)
	Connected() bool
}
