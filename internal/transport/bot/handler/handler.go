package handler

import (
	"context"

	"github.com/google/uuid"

	"card_pricer/internal/domain/entity"
	"card_pricer/internal/worker"
)

type Status interface {
	IsRunning() bool
	Progress() worker.Progress
}

type CardReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Card, error)
}

type ValuationReader interface {
	History(ctx context.Context, cardID uuid.UUID, limit int) ([]entity.Valuation, error)
}

type RefreshEnqueuer interface {
	EnqueueRefresh(ctx context.Context, ids []uuid.UUID) (string, error)
}

type Handler struct {
	status     Status
	cards      CardReader
	valuations ValuationReader
	enqueuer   RefreshEnqueuer
}

func New(status Status, cards CardReader, valuations ValuationReader, enqueuer RefreshEnqueuer) *Handler {
	return &Handler{
		status:     status,
		cards:      cards,
		valuations: valuations,
		enqueuer:   enqueuer,
	}
}
