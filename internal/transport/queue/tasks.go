package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	jsoniter "github.com/json-iterator/go"

	"card_pricer/internal/domain/service/refresh"
	"card_pricer/pkg/application/modules"
	"card_pricer/pkg/logx"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary //nolint:gochecknoglobals // skip

const (
	TypeRefresh  = "valuation:refresh"
	QueueDefault = "default"

	refreshTimeout = 6 * time.Hour
)

// ErrAlreadyQueued: такая же задача уже стоит в очереди.
var ErrAlreadyQueued = errors.New("refresh is already queued")

// RefreshPayload: пустой CardIDs означает обновление всех устаревших карточек.
type RefreshPayload struct {
	CardIDs []uuid.UUID `json:"card_ids,omitempty"`
}

func NewRefreshTask(p RefreshPayload) (*asynq.Task, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode refresh payload: %w", err)
	}

	return asynq.NewTask(TypeRefresh, raw,
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(1),
		asynq.Timeout(refreshTimeout),
		asynq.Unique(time.Hour),
	), nil
}

type Refresher interface {
	RefreshStale(ctx context.Context) (refresh.Summary, error)
	RefreshByIDs(ctx context.Context, ids []uuid.UUID) (refresh.Summary, error)
}

type RefreshHandler struct {
	svc Refresher
}

func NewRefreshHandler(svc Refresher) *RefreshHandler {
	return &RefreshHandler{svc: svc}
}

func (h *RefreshHandler) Handler() modules.AsynqHandler {
	return modules.AsynqHandler{
		Pattern: TypeRefresh,
		Handle:  h.Handle,
	}
}

func (h *RefreshHandler) Handle(ctx context.Context, t *asynq.Task) error {
	var p RefreshPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode refresh payload: %v: %w", err, asynq.SkipRetry)
	}

	taskID, _ := asynq.GetTaskID(ctx)
	log := logger(ctx).With(logx.FieldTaskID, taskID)
	log.Info("refresh task started", "cards", len(p.CardIDs))

	var (
		summary refresh.Summary
		err     error
	)
	if len(p.CardIDs) == 0 {
		summary, err = h.svc.RefreshStale(ctx)
	} else {
		summary, err = h.svc.RefreshByIDs(ctx, p.CardIDs)
	}
	if err != nil {
		return fmt.Errorf("refresh: %w", err)
	}

	log.Info("refresh task finished",
		"refreshed", summary.Refreshed,
		"failed", summary.Failed,
		logx.Duration(summary.Duration),
	)

	return nil
}

type taskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Enqueuer ставит задачи обновления в очередь.
type Enqueuer struct {
	client taskEnqueuer
}

func NewEnqueuer(client *asynq.Client) *Enqueuer {
	return &Enqueuer{client: client}
}

// EnqueueRefresh ставит обновление в очередь и возвращает id задачи.
func (e *Enqueuer) EnqueueRefresh(ctx context.Context, ids []uuid.UUID) (string, error) {
	task, err := NewRefreshTask(RefreshPayload{CardIDs: ids})
	if err != nil {
		return "", err
	}

	info, err := e.client.EnqueueContext(ctx, task)
	if err != nil {
		if errors.Is(err, asynq.ErrDuplicateTask) {
			return "", ErrAlreadyQueued
		}
		return "", fmt.Errorf("enqueue refresh: %w", err)
	}

	logger(ctx).Info("refresh enqueued", logx.FieldTaskID, info.ID, "cards", len(ids))

	return info.ID, nil
}
