package checkpointstore

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/ryansmccoy/feedspine"
)

// RedisStore persists checkpoints as JSON strings in Redis, one key per
// collection id, so multiple Orchestrator processes can share resume
// state without a shared filesystem (no direct teacher precedent; wired
// in from the rest of the example pack's go-redis usage as the
// distributed-scheduler answer the file-backed store can't provide).
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
	incompleteSet string
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithKeyPrefix namespaces every key this store touches. Default
// "feedspine:checkpoint:".
func WithKeyPrefix(prefix string) RedisOption {
	return func(r *RedisStore) { r.keyPrefix = prefix }
}

// NewRedisStore wraps an already-connected redis client.
func NewRedisStore(client redis.UniversalClient, opts ...RedisOption) *RedisStore {
	r := &RedisStore{client: client, keyPrefix: "feedspine:checkpoint:"}
	for _, opt := range opts {
		opt(r)
	}
	r.incompleteSet = r.keyPrefix + "incomplete"
	return r
}

func (r *RedisStore) key(collectionID string) string {
	return r.keyPrefix + collectionID
}

func (r *RedisStore) Save(ctx context.Context, checkpoint feedspine.Checkpoint) error {
	data, err := json.Marshal(checkpoint)
	if err != nil {
		return &feedspine.CheckpointError{Op: "Save", Cause: err}
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.key(checkpoint.CollectionID), data, 0)
	if checkpoint.IsComplete {
		pipe.SRem(ctx, r.incompleteSet, checkpoint.CollectionID)
	} else {
		pipe.SAdd(ctx, r.incompleteSet, checkpoint.CollectionID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return &feedspine.CheckpointError{Op: "Save", Cause: err}
	}
	return nil
}

func (r *RedisStore) Load(ctx context.Context, collectionID string) (*feedspine.Checkpoint, error) {
	data, err := r.client.Get(ctx, r.key(collectionID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, &feedspine.CheckpointError{Op: "Load", Cause: err}
	}

	var cp feedspine.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, &feedspine.CheckpointError{Op: "Load", Cause: err}
	}
	return &cp, nil
}

func (r *RedisStore) Delete(ctx context.Context, collectionID string) (bool, error) {
	pipe := r.client.TxPipeline()
	delCmd := pipe.Del(ctx, r.key(collectionID))
	pipe.SRem(ctx, r.incompleteSet, collectionID)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, &feedspine.CheckpointError{Op: "Delete", Cause: err}
	}
	return delCmd.Val() > 0, nil
}

func (r *RedisStore) ListIncomplete(ctx context.Context, feedName string) ([]feedspine.Checkpoint, error) {
	ids, err := r.client.SMembers(ctx, r.incompleteSet).Result()
	if err != nil {
		return nil, &feedspine.CheckpointError{Op: "ListIncomplete", Cause: err}
	}

	var out []feedspine.Checkpoint
	for _, id := range ids {
		cp, err := r.Load(ctx, id)
		if err != nil || cp == nil {
			continue
		}
		if feedName != "" && cp.FeedName != feedName {
			continue
		}
		out = append(out, *cp)
	}
	return out, nil
}
