package valuation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"card_pricer/internal/domain"
	"card_pricer/internal/domain/entity"
	"card_pricer/internal/domain/service/confidence"
	"card_pricer/internal/domain/service/normalize"
	"card_pricer/internal/domain/service/pricing"
	"card_pricer/internal/domain/service/query"
	"card_pricer/internal/domain/service/serial"
	"card_pricer/pkg/errcodes"
	"card_pricer/pkg/logx"
)

// Fetcher: сессия маркетплейса, закреплённая за одной задачей.
type Fetcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]entity.Listing, error)
	SearchURL(query string) string
}

// Recorder собирает метрики запросов и нормализации.
type Recorder interface {
	ObserveFetch(stage entity.Stage, d time.Duration, err error)
	ObserveDiagnostics(stage entity.Stage, diag entity.Diagnostics)
	ObserveResult(result entity.FairValueResult)
}

type Config struct {
	MaxResults   int
	DefaultPrice float64

	// Повторы одного запроса при временной ошибке, сверх первой попытки.
	FetchRetries   int
	BackoffInitial time.Duration
	BackoffMax     time.Duration

	RequestsPerSecond float64
	JitterMin         time.Duration
	JitterMax         time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxResults:        240,
		DefaultPrice:      5.00,
		FetchRetries:      2,
		BackoffInitial:    2 * time.Second,
		BackoffMax:        20 * time.Second,
		RequestsPerSecond: 1,
		JitterMin:         500 * time.Millisecond,
		JitterMax:         1500 * time.Millisecond,
	}
}

type Estimator struct {
	cfg          Config
	builder      *query.Builder
	normalizer   *normalize.Normalizer
	calculator   *pricing.Calculator
	extrapolator *serial.Extrapolator
	limiter      *rate.Limiter
	recorder     Recorder
	now          func() time.Time
}

func NewEstimator(
	cfg Config,
	builder *query.Builder,
	normalizer *normalize.Normalizer,
	calculator *pricing.Calculator,
	extrapolator *serial.Extrapolator,
) *Estimator {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultConfig().MaxResults
	}

	return &Estimator{
		cfg:          cfg,
		builder:      builder,
		normalizer:   normalizer,
		calculator:   calculator,
		extrapolator: extrapolator,
		limiter:      rate.NewLimiter(limit, 1),
		recorder:     nopRecorder{},
		now:          time.Now,
	}
}

func (e *Estimator) WithRecorder(r Recorder) *Estimator {
	if r != nil {
		e.recorder = r
	}
	return e
}

func (e *Estimator) WithClock(now func() time.Time) *Estimator {
	e.now = now
	return e
}

// Estimate прогоняет стадии поиска от точной к широкой и останавливается на
// первой, давшей продажи. Отсутствие продаж, не ошибка: результат получает
// уровень none и цену по умолчанию. Ошибка возвращается, только если
// маркетплейс так и не ответил.
func (e *Estimator) Estimate(ctx context.Context, f Fetcher, card entity.CardQuery) (entity.FairValueResult, error) {
	staged := e.builder.Build(card)
	fetched := make(map[string][]entity.Listing, len(staged))
	exhausted := make(map[string]bool, len(staged))

	result := entity.FairValueResult{
		Confidence: entity.ConfidenceNone,
		Stats:      entity.PriceStats{Trend: entity.TrendStable},
		SearchURL:  f.SearchURL(staged[0].Text),
		ScrapedAt:  e.now(),
	}

	machine := confidence.NewMachine()
	for !machine.Done() {
		sq := staged[machine.Stage()-1]

		if sq.Stage == entity.StageCompProbe && !card.IsNumbered() {
			machine.Observe(false)
			continue
		}

		// Stages 1-3 share one acceptance rule, so a repeated query text
		// that already yielded nothing cannot yield anything now.
		if sq.Stage != entity.StageCompProbe && exhausted[sq.Text] {
			machine.Observe(false)
			continue
		}

		listings, err := e.fetch(ctx, f, sq, fetched)
		if err != nil {
			return entity.FairValueResult{}, fmt.Errorf("stage %s: %w", sq.Stage, err)
		}

		sales, diag := e.normalizer.Normalize(card, sq.Stage, listings)
		result.Diagnostics = result.Diagnostics.Add(diag)
		e.recorder.ObserveDiagnostics(sq.Stage, diag)

		var found bool
		if sq.Stage == entity.StageCompProbe {
			found = e.applyComp(&result, card, sales)
		} else {
			found = e.applyStats(&result, sales)
		}

		if found {
			result.Stage = sq.Stage
			result.SearchURL = f.SearchURL(sq.Text)
		} else {
			exhausted[sq.Text] = true
		}

		machine.Observe(found)
	}

	result.Confidence = machine.State()
	if result.Confidence == entity.ConfidenceNone {
		result.EstimatedValue = e.cfg.DefaultPrice
	}

	logger(ctx).Debug("card valued",
		slog.String(logx.FieldCard, card.String()),
		slog.String(logx.FieldConfidence, string(result.Confidence)),
		slog.Float64(logx.FieldValue, result.EstimatedValue),
	)
	e.recorder.ObserveResult(result)

	return result, nil
}

func (e *Estimator) applyStats(result *entity.FairValueResult, sales []entity.Sale) bool {
	stats, ok := e.calculator.Stats(sales)
	if !ok {
		return false
	}

	result.EstimatedValue = stats.FairPrice
	result.Stats = stats
	result.RawSales = sales
	result.ImageURL = firstImage(sales)
	return true
}

// applyComp выбирает самый ликвидный другой тираж той же карточки и
// переносит его статистику на тираж карточки.
func (e *Estimator) applyComp(result *entity.FairValueResult, card entity.CardQuery, sales []entity.Sale) bool {
	groups := make(map[int][]entity.Sale)
	for _, s := range sales {
		if s.Serial > 0 && s.Serial != card.Serial {
			groups[s.Serial] = append(groups[s.Serial], s)
		}
	}

	best := 0
	for run, group := range groups {
		if best == 0 || betterComp(run, len(group), best, len(groups[best]), card.Serial) {
			best = run
		}
	}
	if best == 0 {
		return false
	}

	stats, ok := e.calculator.Stats(groups[best])
	if !ok {
		return false
	}

	fair, err := e.extrapolator.Extrapolate(stats.FairPrice, best, card.Serial)
	if err != nil {
		return false
	}
	multiplier := fair / stats.FairPrice

	scaled := pricing.Scale(stats, multiplier)

	result.EstimatedValue = scaled.FairPrice
	result.Stats = scaled
	result.RawSales = groups[best]
	result.ImageURL = firstImage(groups[best])
	result.Comp = &entity.Comp{
		SourceSerial: best,
		SourcePrice:  stats.FairPrice,
		Multiplier:   multiplier,
		NumSales:     stats.NumSales,
	}
	return true
}

// betterComp: больше продаж лучше; при равенстве, тираж ближе к целевому
// в логарифмической шкале, затем меньший.
func betterComp(run, n, bestRun, bestN, target int) bool {
	if n != bestN {
		return n > bestN
	}

	d := math.Abs(math.Log(float64(run)) - math.Log(float64(target)))
	bestD := math.Abs(math.Log(float64(bestRun)) - math.Log(float64(target)))
	if d != bestD {
		return d < bestD
	}
	return run < bestRun
}

// fetch выполняет запрос стадии с темпом и экспоненциальными повторами.
// Одинаковый текст запроса в пределах одной оценки не запрашивается дважды.
func (e *Estimator) fetch(
	ctx context.Context,
	f Fetcher,
	sq entity.StagedQuery,
	fetched map[string][]entity.Listing,
) ([]entity.Listing, error) {
	if listings, ok := fetched[sq.Text]; ok {
		return listings, nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.cfg.BackoffInitial
	b.MaxInterval = e.cfg.BackoffMax
	b.MaxElapsedTime = 0

	var listings []entity.Listing
	attempt := 0

	op := func() error {
		attempt++
		if err := e.pace(ctx); err != nil {
			return backoff.Permanent(err)
		}

		start := time.Now()
		res, err := f.Search(ctx, sq.Text, e.cfg.MaxResults)
		e.recorder.ObserveFetch(sq.Stage, time.Since(start), err)

		switch {
		case err == nil:
			listings = res
			return nil
		case ctx.Err() != nil:
			return backoff.Permanent(ctx.Err())
		case domain.HasCode(err, errcodes.FetchTransient):
			return err
		default:
			return backoff.Permanent(err)
		}
	}

	notify := func(err error, wait time.Duration) {
		logger(ctx).Warn("transient fetch error, retrying",
			slog.String(logx.FieldStage, sq.Stage.String()),
			slog.Int(logx.FieldAttempt, attempt),
			slog.Duration("wait", wait),
			logx.Error(err),
		)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(max(e.cfg.FetchRetries, 0))), ctx)
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		if domain.HasCode(err, errcodes.FetchTransient) {
			return nil, domain.WrapError(err, errcodes.FetchTransient, fmt.Sprintf("retries exhausted after %d attempts", attempt))
		}
		return nil, err
	}

	fetched[sq.Text] = listings
	return listings, nil
}

// pace держит общий для всех сессий темп запросов и добавляет случайную
// паузу, чтобы запросы разных воркеров не шли залпом.
func (e *Estimator) pace(ctx context.Context) error {
	if err := e.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		// Лимитер отказывает сразу, если следующий слот позже дедлайна.
		if _, ok := ctx.Deadline(); ok {
			return fmt.Errorf("limiter.Wait: %w: %w", context.DeadlineExceeded, err)
		}
		return fmt.Errorf("limiter.Wait: %w", err)
	}

	jitter := e.cfg.JitterMin
	if spread := e.cfg.JitterMax - e.cfg.JitterMin; spread > 0 {
		jitter += rand.N(spread) //nolint:gosec // timing jitter
	}
	if jitter <= 0 {
		return nil
	}

	timer := time.NewTimer(jitter)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func firstImage(sales []entity.Sale) string {
	for _, s := range sales {
		if s.ImageURL != "" {
			return s.ImageURL
		}
	}
	return ""
}

type nopRecorder struct{}

func (nopRecorder) ObserveFetch(entity.Stage, time.Duration, error)     {}
func (nopRecorder) ObserveDiagnostics(entity.Stage, entity.Diagnostics) {}
func (nopRecorder) ObserveResult(entity.FairValueResult)                {}
