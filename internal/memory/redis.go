package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/otto-ai/otto/internal/errors"
	"github.com/otto-ai/otto/pkg/logx"
	"github.com/otto-ai/otto/pkg/protocol"
)

// RedisStore keeps each caller's turns in a redis list with a rolling
// TTL, for deployments where context is shared across instances.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// OpenRedis connects to the redis instance at url. A zero ttl keeps
// conversations forever.
func OpenRedis(url string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeConfigInvalid,
			"parse redis url", errors.CategoryUser)
	}
	client := redis.NewClient(opts)

	// A short retry covers redis still coming up when we start.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = errors.Do(ctx, errors.FastPolicy(), func() error {
		return client.Ping(ctx).Err()
	})
	if err != nil {
		client.Close()
		return nil, errors.Wrap(err, errors.CodeStoreUnavailable,
			"connect to redis", errors.CategoryTemporary)
	}

	return &RedisStore{rdb: client, ttl: ttl}, nil
}

func turnsKey(callerID string) string {
	return fmt.Sprintf("otto:conversation:%s:turns", callerID)
}

// GetContext returns the caller's most recent turns, oldest first.
func (r *RedisStore) GetContext(ctx context.Context, callerID string, limit int) ([]protocol.Turn, error) {
	if limit <= 0 {
		limit = defaultContextTurns
	}

	rows, err := r.rdb.LRange(ctx, turnsKey(callerID), int64(-limit), -1).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, errors.Wrap(err, errors.CodeStoreRetrieveFailed,
			"load conversation context", errors.CategoryTemporary)
	}

	turns := make([]protocol.Turn, 0, len(rows))
	for _, row := range rows {
		var turn protocol.Turn
		if err := json.Unmarshal([]byte(row), &turn); err != nil {
			// One corrupt entry shouldn't cost the whole context.
			logx.Warn().Err(err).Str("caller_id", callerID).Msg("skipping malformed stored turn")
			continue
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

// Append records one turn and refreshes the conversation's TTL.
func (r *RedisStore) Append(ctx context.Context, callerID string, turn protocol.Turn) error {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}

	encoded, err := json.Marshal(turn)
	if err != nil {
		return errors.Wrap(err, errors.CodeStoreAppendFailed,
			"marshal conversation turn", errors.CategoryPermanent)
	}

	key := turnsKey(callerID)
	if err := r.rdb.RPush(ctx, key, encoded).Err(); err != nil {
		return errors.Wrap(err, errors.CodeStoreAppendFailed,
			"append conversation turn", errors.CategoryTemporary)
	}
	if r.ttl > 0 {
		if err := r.rdb.Expire(ctx, key, r.ttl).Err(); err != nil {
			logx.Warn().Err(err).Str("key", key).Msg("failed to refresh conversation ttl")
		}
	}
	return nil
}

// Close closes the redis connection.
func (r *RedisStore) Close() error {
	return r.rdb.Close()
}

var _ Store = (*RedisStore)(nil)
