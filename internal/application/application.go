package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"card_pricer/internal/config"
	"card_pricer/internal/domain"
	"card_pricer/internal/domain/entity"
	"card_pricer/internal/domain/service/normalize"
	"card_pricer/internal/domain/service/pricing"
	"card_pricer/internal/domain/service/query"
	"card_pricer/internal/domain/service/refresh"
	"card_pricer/internal/domain/service/serial"
	"card_pricer/internal/domain/service/valuation"
	"card_pricer/internal/domain/value"
	"card_pricer/internal/infrastructure/browser"
	"card_pricer/internal/infrastructure/cache"
	"card_pricer/internal/infrastructure/metrics"
	"card_pricer/internal/infrastructure/notifier"
	"card_pricer/internal/infrastructure/persistence"
	"card_pricer/internal/transport/bot"
	"card_pricer/internal/transport/bot/handler"
	"card_pricer/internal/transport/queue"
	"card_pricer/internal/worker"
	"card_pricer/pkg/application/connectors"
	"card_pricer/pkg/application/modules"
	"card_pricer/pkg/errcodes"
	"card_pricer/pkg/logx"
	"card_pricer/pkg/probe"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary //nolint:gochecknoglobals // skip

// App собирает движок оценки и его окружение из конфигурации.
type App struct {
	cfg config.Config

	registry  *prometheus.Registry
	recorder  *metrics.Recorder
	estimator *valuation.Estimator
	pool      *browser.Pool
	scheduler *worker.Scheduler

	postgres *connectors.Postgres
	redis    *connectors.Redis
}

func New(cfg config.Config) (*App, error) {
	return NewWithFactory(cfg, browser.NewChromeFactory(cfg.Browser))
}

// NewWithFactory позволяет подменить источник браузерных сессий.
func NewWithFactory(cfg config.Config, factory browser.Factory) (*App, error) {
	terms := value.DefaultTerms()
	if cfg.Scraper.TermsFile != "" {
		var err error
		if terms, err = value.LoadTerms(cfg.Scraper.TermsFile); err != nil {
			return nil, fmt.Errorf("load terms: %w", err)
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewRecorder(registry)

	estimator := valuation.NewEstimator(
		valuation.Config{
			MaxResults:        cfg.Scraper.MaxResults,
			DefaultPrice:      cfg.Scraper.DefaultPrice,
			FetchRetries:      cfg.Scraper.FetchRetries,
			BackoffInitial:    cfg.Scraper.BackoffInitial,
			BackoffMax:        cfg.Scraper.BackoffMax,
			RequestsPerSecond: cfg.Scraper.RequestsPerSecond,
			JitterMin:         cfg.Scraper.JitterMin,
			JitterMax:         cfg.Scraper.JitterMax,
		},
		query.NewBuilder(terms),
		normalize.New(),
		pricing.NewCalculator(pricing.Config{
			OutlierFactor:     cfg.Pricing.OutlierFactor,
			OutlierMinSamples: cfg.Pricing.OutlierMinSamples,
			TrendThreshold:    cfg.Pricing.TrendThreshold,
			Window:            cfg.Pricing.TrendWindow,
		}),
		serial.New(),
	).WithRecorder(recorder)

	pool, err := browser.NewPool(cfg.Scraper.Workers, factory)
	if err != nil {
		return nil, fmt.Errorf("create browser pool: %w", err)
	}
	pool.WithRecorder(recorder)

	scheduler := worker.NewScheduler(worker.Config{
		Workers:     cfg.Scraper.Workers,
		TaskTimeout: cfg.Scraper.TaskTimeout,
		TaskRetries: cfg.Scraper.TaskRetries,
	}, estimator, pool).WithRecorder(recorder)

	return &App{
		cfg:       cfg,
		registry:  registry,
		recorder:  recorder,
		estimator: estimator,
		pool:      pool,
		scheduler: scheduler,
		postgres: &connectors.Postgres{
			DSN:             cfg.Postgres.DSN,
			MaxOpenConns:    cfg.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.Postgres.MaxIdleConns,
			ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
		},
		redis: &connectors.Redis{
			Address:            cfg.Redis.Address,
			Username:           cfg.Redis.Username,
			Password:           cfg.Redis.Password,
			DatabaseNumber:     cfg.Redis.DatabaseNumber,
			PoolSize:           cfg.Redis.PoolSize,
			MinIdleConnections: cfg.Redis.MinIdleConnections,
			MaxIdleConnections: cfg.Redis.MaxIdleConnections,
		},
	}, nil
}

func (a *App) Scheduler() *worker.Scheduler {
	return a.scheduler
}

// LogConfig пишет действующую конфигурацию, скрывая секреты.
func (a *App) LogConfig(ctx context.Context) {
	raw, err := json.Marshal(a.cfg)
	if err != nil {
		return
	}

	logger(ctx).Debug("effective config", "config", string(logx.NewSensitiveDataMasker().Mask(raw)))
}

// Scrape оценивает пакет карточек без хранилища.
func (a *App) Scrape(ctx context.Context, cards []entity.CardQuery) ([]entity.Outcome, error) {
	return a.scheduler.Run(ctx, cards)
}

// ProbeGrades оценивает одну карточку по ступеням грейдов на одной сессии.
func (a *App) ProbeGrades(ctx context.Context, card entity.CardQuery, companies ...value.Company) ([]valuation.GradeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Scraper.TaskTimeout*time.Duration(max(1, 3*len(companies))))
	defer cancel()

	lease, err := a.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	results, err := a.estimator.ProbeGrades(ctx, lease.Session(), card, companies...)
	a.pool.Release(ctx, lease, !domain.HasCode(err, errcodes.SessionUnusable))

	return results, err
}

// SaveResults сохраняет карточки и их оценки, пропуская неудачные.
func (a *App) SaveResults(ctx context.Context, outcomes []entity.Outcome) (int, error) {
	db, err := a.postgres.Client(ctx)
	if err != nil {
		return 0, err
	}

	cards := persistence.NewCardRepository(db)
	valuations := persistence.NewValuationRepository(db)

	saved := 0
	for _, o := range outcomes {
		if !o.OK() {
			continue
		}

		card := &entity.Card{Name: o.Card.String(), Query: o.Card}
		if err := cards.Upsert(ctx, card); err != nil {
			return saved, fmt.Errorf("save card %q: %w", card.Name, err)
		}

		if _, err := valuations.Append(ctx, card.ID, o.Result); err != nil {
			return saved, fmt.Errorf("save valuation %q: %w", card.Name, err)
		}
		saved++
	}

	return saved, nil
}

// RunWorker обрабатывает задачи обновления из очереди до отмены ctx.
func (a *App) RunWorker(ctx context.Context) error {
	db, err := a.postgres.Client(ctx)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}

	rdb, err := a.redis.Client(ctx)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	cards := persistence.NewCardRepository(db)
	valuations := persistence.NewValuationRepository(db)

	svc := refresh.NewService(refresh.Config{
		StaleAge: a.cfg.App.RefreshStaleAge,
		Limit:    a.cfg.App.RefreshLimit,
	}, cards, valuations, a.scheduler).
		WithCache(cache.NewLayered(cache.NewMemory(a.cfg.App.CacheTTL), cache.NewRedis(rdb, a.cfg.App.CacheTTL)))

	var adminBot *bot.Bot
	if a.cfg.Bot.Enabled() {
		tgBot, err := notifier.NewTelegramBot(a.cfg.Bot.Token, a.cfg.Bot.ChatID)
		if err != nil {
			return fmt.Errorf("notifier bot: %w", err)
		}
		svc.WithNotifier(tgBot)

		if a.cfg.Bot.AdminID != 0 {
			client := asynq.NewClient(a.redis.AsynqOpt())
			defer client.Close()

			h := handler.New(a.scheduler, cards, valuations, queue.NewEnqueuer(client))
			if adminBot, err = bot.New(a.cfg.Bot, h); err != nil {
				return fmt.Errorf("admin bot: %w", err)
			}
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	a.runServers(ctx, g, true)

	modules.AsynqServer{
		Redis:       a.redis.AsynqOpt(),
		Concurrency: 1,
	}.Run(ctx, g, modules.AsynqQueues{queue.QueueDefault: 1}, queue.NewRefreshHandler(svc).Handler())

	if adminBot != nil {
		g.Go(func() error { return adminBot.Run(ctx) })
	}

	return g.Wait()
}

// RunSchedule ставит ежедневное обновление в очередь по cron до отмены ctx.
func (a *App) RunSchedule(ctx context.Context) error {
	task, err := queue.NewRefreshTask(queue.RefreshPayload{})
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	err = modules.AsynqScheduler{
		Redis:    a.redis.AsynqOpt(),
		Location: time.UTC,
	}.Run(ctx, g, modules.AsynqEntry{Cron: a.cfg.App.RefreshCron, Task: task})
	if err != nil {
		return err
	}

	return g.Wait()
}

// Enqueue ставит обновление карточек в очередь.
func (a *App) Enqueue(ctx context.Context, ids []string) (string, error) {
	parsed, err := parseIDs(ids)
	if err != nil {
		return "", err
	}

	client := asynq.NewClient(a.redis.AsynqOpt())
	defer client.Close()

	return queue.NewEnqueuer(client).EnqueueRefresh(ctx, parsed)
}

// ServeMetrics поднимает серверы метрик и проб на время работы fn.
func (a *App) ServeMetrics(ctx context.Context, fn func(ctx context.Context) error) error {
	g, ctx := errgroup.WithContext(ctx)
	ctx, cancel := context.WithCancel(ctx)

	a.runServers(ctx, g, false)

	g.Go(func() error {
		defer cancel()
		return fn(ctx)
	})

	return g.Wait()
}

func (a *App) runServers(ctx context.Context, g *errgroup.Group, withRedis bool) {
	modules.MetricServer{
		ListenAddress: a.cfg.App.MetricsAddress,
		Gatherer:      a.registry,
	}.Run(ctx, g)

	modules.ProbeServer{
		Name:          a.cfg.App.Name,
		Version:       a.cfg.App.Version,
		ListenAddress: a.cfg.App.ProbeAddress,
		Checks:        a.checks(withRedis),
	}.Run(ctx, g)
}

func (a *App) checks(withRedis bool) []probe.Check {
	checks := []probe.Check{{
		Name: "browser-pool",
		Check: func(context.Context) error {
			if a.pool.Closed() {
				return errors.New("browser pool is closed")
			}
			return nil
		},
	}}

	if a.cfg.Postgres.DSN != "" {
		checks = append(checks, probe.Check{Name: "postgres", Check: a.postgres.Ping})
	}
	if withRedis {
		checks = append(checks, probe.Check{Name: "redis", Check: a.redis.Ping})
	}

	return checks
}

func (a *App) Close(ctx context.Context) {
	a.pool.Close(ctx)
	a.postgres.Close(ctx)
	a.redis.Close(ctx)
}
