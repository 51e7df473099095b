package refresh

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"card_pricer/internal/domain"
	"card_pricer/internal/domain/entity"
	"card_pricer/pkg/errcodes"
	"card_pricer/pkg/logx"
)

type CardRepository interface {
	ListStale(ctx context.Context, olderThan time.Time, limit int) ([]entity.Card, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]entity.Card, error)
}

type ValuationRepository interface {
	Latest(ctx context.Context, cardID uuid.UUID) (*entity.Valuation, error)
	Append(ctx context.Context, cardID uuid.UUID, result entity.FairValueResult) (entity.Valuation, error)
}

// Runner оценивает пакет карточек, см. worker.Scheduler.
type Runner interface {
	Run(ctx context.Context, cards []entity.CardQuery) ([]entity.Outcome, error)
}

// ResultCache: кэш свежих оценок по ключу запроса. Кэшем владеет сервис,
// оценщик о нём не знает.
type ResultCache interface {
	Get(ctx context.Context, key string) (entity.FairValueResult, bool, error)
	Set(ctx context.Context, key string, result entity.FairValueResult) error
}

type Notifier interface {
	NotifyRefresh(ctx context.Context, s Summary) error
}

type Config struct {
	StaleAge time.Duration
	Limit    int
	Movers   int
}

// Mover: карточка с заметным изменением оценки.
type Mover struct {
	Name       string            `json:"name"`
	Old        float64           `json:"old"`
	New        float64           `json:"new"`
	Confidence entity.Confidence `json:"confidence"`
}

func (m Mover) Percent() float64 {
	if m.Old == 0 {
		return 0
	}
	return (m.New - m.Old) / m.Old * 100
}

type Summary struct {
	Cards     int           `json:"cards"`
	Refreshed int           `json:"refreshed"`
	FromCache int           `json:"from_cache"`
	NotFound  int           `json:"not_found"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
	Movers    []Mover       `json:"movers,omitempty"`
}

type Service struct {
	cfg        Config
	cards      CardRepository
	valuations ValuationRepository
	runner     Runner
	cache      ResultCache
	notifier   Notifier
	now        func() time.Time
}

func NewService(cfg Config, cards CardRepository, valuations ValuationRepository, runner Runner) *Service {
	if cfg.Limit <= 0 {
		cfg.Limit = 500
	}
	if cfg.Movers <= 0 {
		cfg.Movers = 5
	}

	return &Service{
		cfg:        cfg,
		cards:      cards,
		valuations: valuations,
		runner:     runner,
		cache:      nopCache{},
		notifier:   nopNotifier{},
		now:        time.Now,
	}
}

func (s *Service) WithCache(c ResultCache) *Service {
	if c != nil {
		s.cache = c
	}
	return s
}

func (s *Service) WithNotifier(n Notifier) *Service {
	if n != nil {
		s.notifier = n
	}
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// RefreshStale переоценивает карточки, не обновлявшиеся дольше StaleAge.
func (s *Service) RefreshStale(ctx context.Context) (Summary, error) {
	cards, err := s.cards.ListStale(ctx, s.now().Add(-s.cfg.StaleAge), s.cfg.Limit)
	if err != nil {
		return Summary{}, fmt.Errorf("list stale cards: %w", err)
	}

	return s.RefreshCards(ctx, cards)
}

// RefreshByIDs переоценивает указанные карточки.
func (s *Service) RefreshByIDs(ctx context.Context, ids []uuid.UUID) (Summary, error) {
	cards, err := s.cards.GetByIDs(ctx, ids)
	if err != nil {
		return Summary{}, fmt.Errorf("get cards: %w", err)
	}

	if len(cards) < len(ids) {
		logger(ctx).Warn("some cards were not found", "requested", len(ids), "found", len(cards))
	}

	return s.RefreshCards(ctx, cards)
}

// RefreshCards оценивает карточки и дописывает успешные результаты в
// историю. Карточка с ошибкой остаётся с прежним значением.
func (s *Service) RefreshCards(ctx context.Context, cards []entity.Card) (Summary, error) {
	started := s.now()
	summary := Summary{Cards: len(cards)}

	if len(cards) == 0 {
		return summary, nil
	}

	pending := make([]entity.Card, 0, len(cards))
	for _, card := range cards {
		cached, ok, err := s.cache.Get(ctx, card.Query.Key())
		if err != nil {
			logger(ctx).Warn("result cache get", logx.FieldCardID, card.ID, logx.Error(err))
		}
		if !ok {
			pending = append(pending, card)
			continue
		}

		if mover, err := s.store(ctx, card, cached); err != nil {
			logger(ctx).Error("store cached valuation", logx.FieldCardID, card.ID, logx.Error(err))
			summary.Failed++
		} else {
			summary.FromCache++
			summary.Movers = append(summary.Movers, mover...)
		}
	}

	if len(pending) > 0 {
		outcomes, err := s.runner.Run(ctx, lo.Map(pending, func(c entity.Card, _ int) entity.CardQuery {
			return c.Query
		}))
		if err != nil {
			return summary, fmt.Errorf("run batch: %w", err)
		}

		for _, o := range outcomes {
			card := pending[o.Index]

			if o.Err != nil {
				summary.Failed++
				continue
			}

			if err := s.cache.Set(ctx, card.Query.Key(), o.Result); err != nil {
				logger(ctx).Warn("result cache set", logx.FieldCardID, card.ID, logx.Error(err))
			}

			mover, err := s.store(ctx, card, o.Result)
			if err != nil {
				logger(ctx).Error("store valuation", logx.FieldCardID, card.ID, logx.Error(err))
				summary.Failed++
				continue
			}

			summary.Refreshed++
			if !o.Result.Found() {
				summary.NotFound++
			}
			summary.Movers = append(summary.Movers, mover...)
		}
	}

	summary.Movers = topMovers(summary.Movers, s.cfg.Movers)
	summary.Duration = s.now().Sub(started)

	logger(ctx).Info("refresh finished",
		"cards", summary.Cards,
		"refreshed", summary.Refreshed,
		"from_cache", summary.FromCache,
		"not_found", summary.NotFound,
		"failed", summary.Failed,
		logx.Duration(summary.Duration),
	)

	if err := s.notifier.NotifyRefresh(ctx, summary); err != nil {
		logger(ctx).Warn("refresh summary was not sent", logx.Error(err))
	}

	return summary, nil
}

// store дописывает результат в историю и возвращает изменение относительно
// предыдущей оценки, если она была.
func (s *Service) store(ctx context.Context, card entity.Card, result entity.FairValueResult) ([]Mover, error) {
	prev, err := s.valuations.Latest(ctx, card.ID)
	if err != nil && !domain.HasCode(err, errcodes.NotFound) {
		return nil, fmt.Errorf("latest valuation: %w", err)
	}

	v, err := s.valuations.Append(ctx, card.ID, result)
	if err != nil {
		return nil, fmt.Errorf("append valuation: %w", err)
	}

	if prev == nil || v.Change(prev) == 0 {
		return nil, nil
	}

	logger(ctx).Debug("valuation changed",
		logx.FieldCardID, card.ID,
		"old", prev.Result.EstimatedValue,
		"new", v.Result.EstimatedValue,
	)

	return []Mover{{
		Name:       lo.CoalesceOrEmpty(card.Name, card.Query.String()),
		Old:        prev.Result.EstimatedValue,
		New:        v.Result.EstimatedValue,
		Confidence: v.Result.Confidence,
	}}, nil
}

func topMovers(movers []Mover, n int) []Mover {
	slices.SortStableFunc(movers, func(a, b Mover) int {
		return cmp.Compare(math.Abs(b.Percent()), math.Abs(a.Percent()))
	})

	if len(movers) > n {
		movers = movers[:n]
	}
	return movers
}

type nopCache struct{}

func (nopCache) Get(context.Context, string) (entity.FairValueResult, bool, error) {
	return entity.FairValueResult{}, false, nil
}

func (nopCache) Set(context.Context, string, entity.FairValueResult) error { return nil }

type nopNotifier struct{}

func (nopNotifier) NotifyRefresh(context.Context, Summary) error { return nil }
