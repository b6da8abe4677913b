package history

import (
	"context"
	"errors"

	"github.com/virtualdj/server/backend/model"
)

var ErrUnavailable = errors.New("history store unavailable")

// Store persists the chat log of a room across room restarts. Writes are
// fire-and-forget from the caller's perspective: a persistence failure
// must never fail the chat broadcast that triggered it.
type Store interface {
	Append(ctx context.Context, roomID string, msg model.ChatMessage) error
	ReadRecent(ctx context.Context, roomID string, limit int) ([]model.ChatMessage, error)
}
