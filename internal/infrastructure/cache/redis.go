package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"

	"card_pricer/internal/domain/entity"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary //nolint:gochecknoglobals // skip

const keyPrefix = "card_pricer:valuation:"

// Redis: кэш оценок, общий для всех воркеров.
type Redis struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedis(client redis.UniversalClient, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func (r *Redis) Get(ctx context.Context, key string) (entity.FairValueResult, bool, error) {
	raw, err := r.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return entity.FairValueResult{}, false, nil
		}
		return entity.FairValueResult{}, false, fmt.Errorf("redis get: %w", err)
	}

	var result entity.FairValueResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return entity.FairValueResult{}, false, fmt.Errorf("decode cached valuation: %w", err)
	}

	return result, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, result entity.FairValueResult) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode valuation: %w", err)
	}

	if err := r.client.Set(ctx, keyPrefix+key, raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}

	return nil
}
