package history

import (
	"context"
	"sync"

	"github.com/virtualdj/server/backend/model"
)

const defaultMaxPerRoom = 500

// MemStore keeps chat history in memory. Default backend and the test
// double for the redis store.
type MemStore struct {
	mx     *sync.Mutex
	maxLen int
	byRoom map[string][]model.ChatMessage
}

func NewMemStore(maxLen int) *MemStore {
	if maxLen <= 0 {
		maxLen = defaultMaxPerRoom
	}
	return &MemStore{
		mx:     &sync.Mutex{},
		maxLen: maxLen,
		byRoom: make(map[string][]model.ChatMessage),
	}
}

func (ms *MemStore) Append(_ context.Context, roomID string, msg model.ChatMessage) error {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	log := append(ms.byRoom[roomID], msg)
	if len(log) > ms.maxLen {
		log = log[len(log)-ms.maxLen:]
	}
	ms.byRoom[roomID] = log
	return nil
}

func (ms *MemStore) ReadRecent(_ context.Context, roomID string, limit int) ([]model.ChatMessage, error) {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	log := ms.byRoom[roomID]
	if limit > 0 && len(log) > limit {
		log = log[len(log)-limit:]
	}
	out := make([]model.ChatMessage, len(log))
	copy(out, log)
	return out, nil
}
