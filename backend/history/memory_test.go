package history

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/virtualdj/server/backend/model"
)

func TestMemStoreAppendAndRead(t *testing.T) {
	ms := NewMemStore(10)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := ms.Append(ctx, "ROOM1", model.ChatMessage{
			ID:     strconv.Itoa(i),
			User:   "Alice",
			Text:   "msg " + strconv.Itoa(i),
			SentAt: time.Unix(1700000000+int64(i), 0),
		})
		require.NoError(t, err)
	}

	msgs, err := ms.ReadRecent(ctx, "ROOM1", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "0", msgs[0].ID)
	assert.Equal(t, "2", msgs[2].ID)
}

func TestMemStoreReadLimitKeepsNewest(t *testing.T) {
	ms := NewMemStore(10)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, ms.Append(ctx, "ROOM1", model.ChatMessage{ID: strconv.Itoa(i)}))
	}

	msgs, err := ms.ReadRecent(ctx, "ROOM1", 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "3", msgs[0].ID)
	assert.Equal(t, "4", msgs[1].ID)
}

func TestMemStoreTrimsToMaxLen(t *testing.T) {
	ms := NewMemStore(3)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		require.NoError(t, ms.Append(ctx, "ROOM1", model.ChatMessage{ID: strconv.Itoa(i)}))
	}

	msgs, err := ms.ReadRecent(ctx, "ROOM1", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "3", msgs[0].ID)
}

func TestMemStoreRoomsAreIsolated(t *testing.T) {
	ms := NewMemStore(10)
	ctx := context.Background()

	require.NoError(t, ms.Append(ctx, "ROOM1", model.ChatMessage{ID: "a"}))
	require.NoError(t, ms.Append(ctx, "ROOM2", model.ChatMessage{ID: "b"}))

	msgs, err := ms.ReadRecent(ctx, "ROOM1", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "a", msgs[0].ID)

	msgs, err = ms.ReadRecent(ctx, "EMPTY", 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}
