package application_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"card_pricer/internal/application"
	"card_pricer/internal/config"
	"card_pricer/internal/domain"
	"card_pricer/internal/domain/entity"
	"card_pricer/internal/domain/value"
	"card_pricer/internal/infrastructure/browser"
	"card_pricer/pkg/errcodes"
)

type emptySession struct{}

func (emptySession) Search(context.Context, string, int) ([]entity.Listing, error) { return nil, nil }
func (emptySession) SearchURL(q string) string                                     { return "https://market.test/?q=" + q }
func (emptySession) Ping(context.Context) error                                    { return nil }
func (emptySession) Close() error                                                  { return nil }

type failingSession struct {
	emptySession
	err error
}

func (s failingSession) Search(context.Context, string, int) ([]entity.Listing, error) {
	return nil, s.err
}

func testConfig() config.Config {
	return config.Config{
		App: config.App{Name: "card-pricer", Version: "test"},
		Scraper: config.Scraper{
			Workers:        2,
			MaxResults:     50,
			TaskTimeout:    time.Second,
			TaskRetries:    1,
			FetchRetries:   0,
			BackoffInitial: time.Millisecond,
			BackoffMax:     time.Millisecond,
			DefaultPrice:   5,
		},
		Pricing: config.Pricing{
			OutlierFactor:     3,
			OutlierMinSamples: 3,
			TrendThreshold:    0.1,
			TrendWindow:       3,
		},
	}
}

func newApp(t *testing.T) *application.App {
	t.Helper()

	factory := func(context.Context, int) (browser.Session, error) { return emptySession{}, nil }

	app, err := application.NewWithFactory(testConfig(), factory)
	require.NoError(t, err)
	t.Cleanup(func() { app.Close(context.Background()) })

	return app
}

func TestApp_ScrapeWithoutSales(t *testing.T) {
	rq := require.New(t)
	app := newApp(t)

	cards := []entity.CardQuery{
		{Player: "Connor Bedard", Year: "2023-24", Brand: "Upper Deck"},
		{Player: "Macklin Celebrini", Year: "2024-25", Brand: "Upper Deck", Serial: 99},
	}

	outcomes, err := app.Scrape(context.Background(), cards)
	rq.NoError(err)
	rq.Len(outcomes, 2)

	for _, o := range outcomes {
		rq.True(o.OK())
		rq.Equal(entity.ConfidenceNone, o.Result.Confidence)
		rq.InDelta(5.0, o.Result.EstimatedValue, 1e-9)
	}
	rq.False(app.Scheduler().IsRunning())
}

func TestApp_ProbeGradesStopsAtEmptyTopGrade(t *testing.T) {
	rq := require.New(t)
	app := newApp(t)

	card := entity.CardQuery{Player: "Connor Bedard", Year: "2023-24", Brand: "Upper Deck"}

	results, err := app.ProbeGrades(context.Background(), card, value.CompanyPSA, value.CompanyBGS)
	rq.NoError(err)
	rq.Len(results, 2)
	rq.Equal(value.CompanyPSA, results[0].Grade.Company)
	rq.Equal(value.CompanyBGS, results[1].Grade.Company)
}

func TestApp_EnqueueRejectsBadIDs(t *testing.T) {
	rq := require.New(t)
	app := newApp(t)

	_, err := app.Enqueue(context.Background(), []string{"not-a-uuid"})
	rq.Error(err)
}

func TestNew_BadTermsFile(t *testing.T) {
	cfg := testConfig()
	cfg.Scraper.TermsFile = "/does/not/exist.json"

	_, err := application.New(cfg)
	require.Error(t, err)
}

func TestApp_ProbeGradesKeepsSessionOnFetchError(t *testing.T) {
	testCases := []struct {
		name        string
		err         error
		wantCreated int32
	}{
		{name: "Transient fetch error", err: domain.NewError(errcodes.FetchTransient, "net::ERR_TIMED_OUT"), wantCreated: 1},
		{name: "Session unusable", err: domain.NewError(errcodes.SessionUnusable, "target closed"), wantCreated: 2},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rq := require.New(t)

			cfg := testConfig()
			cfg.Scraper.Workers = 1

			var created atomic.Int32
			factory := func(context.Context, int) (browser.Session, error) {
				created.Add(1)
				return failingSession{err: tc.err}, nil
			}

			app, err := application.NewWithFactory(cfg, factory)
			rq.NoError(err)
			t.Cleanup(func() { app.Close(context.Background()) })

			card := entity.CardQuery{Player: "Connor Bedard", Year: "2023-24", Brand: "Upper Deck"}

			for range 2 {
				_, err := app.ProbeGrades(context.Background(), card, value.CompanyPSA)
				rq.Error(err)
			}

			rq.Equal(tc.wantCreated, created.Load())
		})
	}
}
