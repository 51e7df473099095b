package browser

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"card_pricer/internal/domain"
	"card_pricer/pkg/errcodes"
	"card_pricer/pkg/logx"
)

// Recorder получает число занятых сессий при каждом изменении.
type Recorder interface {
	SetSessionsInUse(n int)
	IncSessionRecreated()
}

type slot struct {
	id      int
	session Session
}

// Lease: сессия, выданная одной задаче. Возвращается через Pool.Release.
type Lease struct {
	slot     *slot
	released atomic.Bool
}

func (l *Lease) Session() Session {
	return l.slot.session
}

func (l *Lease) Slot() int {
	return l.slot.id
}

// Pool держит не больше size сессий и выдаёт каждую одной задаче за раз.
// Сессии создаются лениво при первой выдаче и пересоздаются, если
// перестали отвечать на Ping.
type Pool struct {
	factory  Factory
	size     int
	idle     chan *slot
	recorder Recorder

	mu     sync.Mutex
	closed bool
	all    []*slot

	inUse atomic.Int32
	peak  atomic.Int32
}

func NewPool(size int, factory Factory) (*Pool, error) {
	if size <= 0 {
		return nil, domain.NewError(errcodes.ValidationError, fmt.Sprintf("pool size must be positive, got %d", size))
	}

	p := &Pool{
		factory:  factory,
		size:     size,
		idle:     make(chan *slot, size),
		recorder: nopRecorder{},
		all:      make([]*slot, 0, size),
	}

	for i := range size {
		s := &slot{id: i}
		p.all = append(p.all, s)
		p.idle <- s
	}

	return p, nil
}

func (p *Pool) WithRecorder(r Recorder) *Pool {
	p.recorder = r
	return p
}

func (p *Pool) Size() int {
	return p.size
}

// InUse: число выданных сейчас сессий.
func (p *Pool) InUse() int {
	return int(p.inUse.Load())
}

// Peak: максимальное число одновременно выданных сессий.
func (p *Pool) Peak() int {
	return int(p.peak.Load())
}

// Acquire ждёт свободный слот и возвращает живую сессию.
func (p *Pool) Acquire(ctx context.Context) (*Lease, error) {
	if p.Closed() {
		return nil, domain.NewError(errcodes.PoolClosed, "browser pool is closed")
	}

	var s *slot
	select {
	case s = <-p.idle:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if p.Closed() {
		p.idle <- s
		return nil, domain.NewError(errcodes.PoolClosed, "browser pool is closed")
	}

	if err := p.ensure(ctx, s); err != nil {
		p.idle <- s
		return nil, err
	}

	n := p.inUse.Add(1)
	for {
		peak := p.peak.Load()
		if n <= peak || p.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	p.recorder.SetSessionsInUse(int(n))

	return &Lease{slot: s}, nil
}

// Release возвращает сессию в пул. Нездоровая сессия закрывается, и слот
// получит новую при следующей выдаче.
func (p *Pool) Release(ctx context.Context, l *Lease, healthy bool) {
	if l == nil || !l.released.CompareAndSwap(false, true) {
		return
	}

	s := l.slot
	if !healthy || p.Closed() {
		p.drop(ctx, s)
	}

	n := p.inUse.Add(-1)
	p.recorder.SetSessionsInUse(int(n))

	p.idle <- s
}

// Warmup заранее запускает все сессии пула.
func (p *Pool) Warmup(ctx context.Context) error {
	eg, egCtx := errgroup.WithContext(ctx)

	for range p.size {
		eg.Go(func() error {
			l, err := p.Acquire(egCtx)
			if err != nil {
				return err
			}
			defer p.Release(egCtx, l, true)

			logger(ctx).Debug("session ready", logx.FieldSession, l.Slot())
			return nil
		})
	}

	return eg.Wait()
}

// Close закрывает все простаивающие сессии. Выданные закроются при Release.
func (p *Pool) Close(ctx context.Context) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	drained := make([]*slot, 0, p.size)
	for len(drained) < p.size {
		select {
		case s := <-p.idle:
			p.drop(ctx, s)
			drained = append(drained, s)
		default:
			for _, s := range drained {
				p.idle <- s
			}
			return
		}
	}

	for _, s := range drained {
		p.idle <- s
	}
}

func (p *Pool) ensure(ctx context.Context, s *slot) error {
	if s.session != nil {
		err := s.session.Ping(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		logger(ctx).Warn("session failed health check, recreating",
			logx.FieldSession, s.id,
			logx.Error(err),
		)
		p.drop(ctx, s)
		p.recorder.IncSessionRecreated()
	}

	session, err := p.factory(ctx, s.id)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if domain.IsAppError(err) {
			return err
		}
		return domain.WrapError(err, errcodes.SessionUnusable, fmt.Sprintf("create session %d", s.id))
	}

	s.session = session
	return nil
}

func (p *Pool) drop(ctx context.Context, s *slot) {
	if s.session == nil {
		return
	}

	if err := s.session.Close(); err != nil {
		logger(ctx).Warn("close session", logx.FieldSession, s.id, logx.Error(err))
	}
	s.session = nil
}

func (p *Pool) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

type nopRecorder struct{}

func (nopRecorder) SetSessionsInUse(int) {}
func (nopRecorder) IncSessionRecreated() {}
