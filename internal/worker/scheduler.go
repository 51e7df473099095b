package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"card_pricer/internal/domain"
	"card_pricer/internal/domain/entity"
	"card_pricer/internal/domain/service/valuation"
	"card_pricer/internal/infrastructure/browser"
	"card_pricer/pkg/contextx"
	"card_pricer/pkg/errcodes"
	"card_pricer/pkg/logx"
)

type Estimator interface {
	Estimate(ctx context.Context, f valuation.Fetcher, card entity.CardQuery) (entity.FairValueResult, error)
}

type SessionPool interface {
	Acquire(ctx context.Context) (*browser.Lease, error)
	Release(ctx context.Context, l *browser.Lease, healthy bool)
}

type Recorder interface {
	ObserveOutcome(o entity.Outcome)
	SetActiveTasks(n int)
}

type Config struct {
	Workers     int
	TaskTimeout time.Duration
	TaskRetries int
}

// Progress: счётчики пакета, обновляются по мере завершения задач.
type Progress struct {
	Total    int `json:"total"`
	Done     int `json:"done"`
	Found    int `json:"found"`
	NotFound int `json:"not_found"`
	Errors   int `json:"errors"`
}

type counters struct {
	total, done, found, notFound, errors atomic.Int32
}

func (c *counters) reset(total int) {
	c.total.Store(int32(total)) //nolint:gosec
	c.done.Store(0)
	c.found.Store(0)
	c.notFound.Store(0)
	c.errors.Store(0)
}

func (c *counters) snapshot() Progress {
	return Progress{
		Total:    int(c.total.Load()),
		Done:     int(c.done.Load()),
		Found:    int(c.found.Load()),
		NotFound: int(c.notFound.Load()),
		Errors:   int(c.errors.Load()),
	}
}

// Scheduler раздаёт карточки пакета N воркерам. Каждый воркер на время
// задачи берёт одну сессию из пула и возвращает её при любом исходе.
type Scheduler struct {
	cfg       Config
	estimator Estimator
	pool      SessionPool
	validate  *validator.Validate
	recorder  Recorder

	onProgress func(Progress)

	mu        sync.Mutex
	isRunning bool
	progress  counters
	active    atomic.Int32
}

func NewScheduler(cfg Config, estimator Estimator, pool SessionPool) *Scheduler {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.TaskRetries < 0 {
		cfg.TaskRetries = 0
	}

	return &Scheduler{
		cfg:       cfg,
		estimator: estimator,
		pool:      pool,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		recorder:  nopRecorder{},
	}
}

func (s *Scheduler) WithRecorder(r Recorder) *Scheduler {
	s.recorder = r
	return s
}

// WithProgress задаёт колбэк, вызываемый после каждой завершённой задачи.
// Колбэк может вызываться из нескольких горутин одновременно.
func (s *Scheduler) WithProgress(fn func(Progress)) *Scheduler {
	s.onProgress = fn
	return s
}

// IsRunning возвращает текущий статус
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

func (s *Scheduler) Progress() Progress {
	return s.progress.snapshot()
}

// Run оценивает пакет карточек и возвращает по одному Outcome на карточку,
// в порядке завершения. Отмена ctx останавливает выдачу новых задач, уже
// запущенные доходят до конца; не запущенные получают TaskCanceled.
// Ошибка возвращается только если планировщик уже занят другим пакетом.
func (s *Scheduler) Run(ctx context.Context, cards []entity.CardQuery) ([]entity.Outcome, error) {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil, errors.New("scheduler is already running")
	}
	s.isRunning = true
	s.progress.reset(len(cards))
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
	}()

	var (
		mu       sync.Mutex
		outcomes = make([]entity.Outcome, 0, len(cards))
	)
	collect := func(o entity.Outcome) {
		mu.Lock()
		outcomes = append(outcomes, o)
		mu.Unlock()

		s.account(o)
	}

	workers := min(s.cfg.Workers, len(cards))
	jobs := make(chan int)

	logger(ctx).Info("batch started", "cards", len(cards), logx.FieldWorker, workers)
	started := time.Now()

	var eg errgroup.Group

	for w := range workers {
		eg.Go(func() error {
			for i := range jobs {
				collect(s.runTask(ctx, w, i, cards[i]))
			}
			return nil
		})
	}

	dispatched := 0
dispatch:
	for ; dispatched < len(cards); dispatched++ {
		// Уже отменённый пакет не должен выдать ещё одну задачу.
		if ctx.Err() != nil {
			break
		}

		select {
		case jobs <- dispatched:
		case <-ctx.Done():
			break dispatch
		}
	}
	close(jobs)

	for i := dispatched; i < len(cards); i++ {
		collect(entity.Outcome{
			Index: i,
			Card:  cards[i],
			Err:   domain.WrapError(ctx.Err(), errcodes.TaskCanceled, "batch canceled before dispatch"),
		})
	}

	_ = eg.Wait()

	p := s.Progress()
	logger(ctx).Info("batch finished",
		"done", p.Done,
		"found", p.Found,
		"not_found", p.NotFound,
		"errors", p.Errors,
		logx.Duration(time.Since(started)),
	)

	return outcomes, nil
}

func (s *Scheduler) runTask(ctx context.Context, worker, index int, card entity.CardQuery) entity.Outcome {
	traceID := contextx.NewTraceID()
	started := time.Now()

	log := logger(ctx).With(
		logx.FieldTraceID, traceID.String(),
		logx.FieldWorker, worker,
		logx.FieldCard, card.String(),
	)

	// Задача не прерывается отменой пакета, только своим таймаутом.
	taskCtx := contextx.WithTraceID(context.WithoutCancel(ctx), traceID)
	taskCtx = contextx.WithLogger(taskCtx, log)
	taskCtx, cancel := context.WithTimeout(taskCtx, s.cfg.TaskTimeout)
	defer cancel()

	out := entity.Outcome{
		Index:   index,
		Card:    card,
		TraceID: traceID.String(),
	}

	if err := s.validate.Struct(card); err != nil {
		out.Err = domain.WrapError(err, errcodes.InvalidCard, "invalid card query")
		out.Duration = time.Since(started)
		return out
	}

	s.recorder.SetActiveTasks(int(s.active.Add(1)))
	defer func() { s.recorder.SetActiveTasks(int(s.active.Add(-1))) }()

	maxAttempts := s.cfg.TaskRetries + 1
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		out.Attempts = attempt

		result, err := s.attempt(taskCtx, card)
		if err == nil {
			out.Result = result
			out.Err = nil
			break
		}

		out.Err = s.classify(taskCtx, err)

		if !domain.HasCode(err, errcodes.SessionUnusable) || taskCtx.Err() != nil {
			break
		}

		if attempt < maxAttempts {
			log.Warn("session unusable, retrying card on a fresh session",
				logx.FieldAttempt, attempt,
				logx.Error(err),
			)
		}
	}

	out.Duration = time.Since(started)

	if out.Err != nil {
		log.Error("card failed",
			logx.FieldAttempt, out.Attempts,
			logx.Error(out.Err),
			logx.Duration(out.Duration),
		)
	} else {
		log.Info("card valued",
			logx.FieldValue, out.Result.EstimatedValue,
			logx.FieldConfidence, out.Result.Confidence,
			logx.Duration(out.Duration),
		)
	}

	return out
}

func (s *Scheduler) attempt(ctx context.Context, card entity.CardQuery) (result entity.FairValueResult, err error) {
	lease, err := s.pool.Acquire(ctx)
	if err != nil {
		return entity.FairValueResult{}, err
	}

	healthy := true
	defer func() {
		s.pool.Release(ctx, lease, healthy)
	}()

	defer func() {
		if r := recover(); r != nil {
			healthy = false
			logger(ctx).Error("task panicked", logx.FieldStack, string(debug.Stack()))
			err = domain.NewError(errcodes.TaskPanicked, fmt.Sprintf("panic: %v", r))
		}
	}()

	logger(ctx).Debug("session acquired", logx.FieldSession, lease.Slot())

	result, err = s.estimator.Estimate(ctx, lease.Session(), card)
	if domain.HasCode(err, errcodes.SessionUnusable) {
		healthy = false
	}

	return result, err
}

func (s *Scheduler) classify(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		if domain.HasCode(err, errcodes.TaskTimeout) {
			return err
		}
		return domain.WrapError(err, errcodes.TaskTimeout, fmt.Sprintf("card exceeded %s budget", s.cfg.TaskTimeout))
	default:
		return err
	}
}

func (s *Scheduler) account(o entity.Outcome) {
	s.progress.done.Add(1)

	switch {
	case o.Err != nil:
		s.progress.errors.Add(1)
	case o.Result.Found():
		s.progress.found.Add(1)
	default:
		s.progress.notFound.Add(1)
	}

	s.recorder.ObserveOutcome(o)

	if s.onProgress != nil {
		s.onProgress(s.progress.snapshot())
	}
}

type nopRecorder struct{}

func (nopRecorder) ObserveOutcome(entity.Outcome) {}
func (nopRecorder) SetActiveTasks(int)            {}
