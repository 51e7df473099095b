package cache

import (
	"context"

	"card_pricer/internal/domain/entity"
	"card_pricer/pkg/logx"
)

type store interface {
	Get(ctx context.Context, key string) (entity.FairValueResult, bool, error)
	Set(ctx context.Context, key string, result entity.FairValueResult) error
}

// Layered читает сначала из front, затем из back и прогревает front.
// Ошибка чтения back считается промахом.
type Layered struct {
	front store
	back  store
}

func NewLayered(front, back store) *Layered {
	return &Layered{front: front, back: back}
}

func (l *Layered) Get(ctx context.Context, key string) (entity.FairValueResult, bool, error) {
	if r, ok, err := l.front.Get(ctx, key); err == nil && ok {
		return r, true, nil
	}

	r, ok, err := l.back.Get(ctx, key)
	if err != nil {
		logger(ctx).Warn("shared cache read failed", logx.Error(err))
		return entity.FairValueResult{}, false, nil
	}
	if !ok {
		return entity.FairValueResult{}, false, nil
	}

	if err := l.front.Set(ctx, key, r); err != nil {
		return r, true, err
	}
	return r, true, nil
}

func (l *Layered) Set(ctx context.Context, key string, result entity.FairValueResult) error {
	if err := l.front.Set(ctx, key, result); err != nil {
		return err
	}
	return l.back.Set(ctx, key, result)
}
