package history

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/virtualdj/server/backend/model"
)

const chatKeyPrefix = "chat:"

// RedisStore keeps each room's chat log in a redis list, trimmed to a
// fixed length. Values are JSON-encoded ChatMessages.
type RedisStore struct {
	client *redis.Client
	maxLen int64
}

func NewRedisStore(client *redis.Client, maxLen int) *RedisStore {
	if maxLen <= 0 {
		maxLen = defaultMaxPerRoom
	}
	return &RedisStore{
		client: client,
		maxLen: int64(maxLen),
	}
}

func (rs *RedisStore) Append(ctx context.Context, roomID string, msg model.ChatMessage) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	key := chatKeyPrefix + roomID
	pipe := rs.client.TxPipeline()
	pipe.RPush(ctx, key, b)
	pipe.LTrim(ctx, key, -rs.maxLen, -1)
	if _, err = pipe.Exec(ctx); err != nil {
		return errors.Join(ErrUnavailable, err)
	}
	return nil
}

func (rs *RedisStore) ReadRecent(ctx context.Context, roomID string, limit int) ([]model.ChatMessage, error) {
	if limit <= 0 {
		limit = int(rs.maxLen)
	}
	vals, err := rs.client.LRange(ctx, chatKeyPrefix+roomID, int64(-limit), -1).Result()
	if err != nil {
		return nil, errors.Join(ErrUnavailable, err)
	}

	out := make([]model.ChatMessage, 0, len(vals))
	for _, v := range vals {
		var msg model.ChatMessage
		if err := json.Unmarshal([]byte(v), &msg); err != nil {
			continue // skip records written by an incompatible version
		}
		out = append(out, msg)
	}
	return out, nil
}
