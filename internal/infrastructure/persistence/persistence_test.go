package persistence_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"card_pricer/internal/domain"
	"card_pricer/internal/domain/entity"
	"card_pricer/internal/domain/value"
	"card_pricer/internal/infrastructure/persistence"
	"card_pricer/pkg/dbtest"
	"card_pricer/pkg/errcodes"
)

func openDB(t *testing.T) *sqlx.DB {
	t.Helper()

	return dbtest.Open(t, "PG_TEST_DSN",
		`DROP TABLE IF EXISTS valuations; DROP TABLE IF EXISTS cards;`,
		"../../../migrations/001_init.sql",
	)
}

func testCard(player string) *entity.Card {
	return &entity.Card{
		Name: player + " Young Guns",
		Query: entity.CardQuery{
			Player:     player,
			Year:       "2023-24",
			Brand:      "Upper Deck",
			Subset:     "Young Guns",
			CardNumber: "201",
			Serial:     99,
			Grade:      value.Grade{Company: value.CompanyPSA, Score: "10"},
		},
	}
}

func TestCardRepository(t *testing.T) {
	rq := require.New(t)
	ctx := context.Background()
	repo := persistence.NewCardRepository(openDB(t))

	card := testCard("Connor Bedard")
	rq.NoError(repo.Upsert(ctx, card))
	rq.NotEqual(uuid.Nil, card.ID)

	// Тот же запрос под другим именем не создаёт новую карточку.
	dup := testCard("Connor Bedard")
	dup.Name = "Bedard YG PSA 10"
	rq.NoError(repo.Upsert(ctx, dup))
	rq.Equal(card.ID, dup.ID)

	got, err := repo.GetByID(ctx, card.ID)
	rq.NoError(err)
	rq.Equal("Bedard YG PSA 10", got.Name)
	rq.Equal(card.Query, got.Query)
	rq.Nil(got.RefreshedAt)

	other := testCard("Macklin Celebrini")
	rq.NoError(repo.Upsert(ctx, other))

	cards, err := repo.GetByIDs(ctx, []uuid.UUID{card.ID, other.ID, uuid.New()})
	rq.NoError(err)
	rq.Len(cards, 2)

	stale, err := repo.ListStale(ctx, time.Now(), 10)
	rq.NoError(err)
	rq.Len(stale, 2)

	_, err = repo.GetByID(ctx, uuid.New())
	rq.True(domain.HasCode(err, errcodes.CardNotFound))
}

func TestValuationRepository(t *testing.T) {
	rq := require.New(t)
	ctx := context.Background()
	db := openDB(t)

	cards := persistence.NewCardRepository(db)
	valuations := persistence.NewValuationRepository(db)

	card := testCard("Connor Bedard")
	rq.NoError(cards.Upsert(ctx, card))

	_, err := valuations.Latest(ctx, card.ID)
	rq.True(domain.HasCode(err, errcodes.NotFound))

	first := entity.FairValueResult{
		EstimatedValue: 41.5,
		Confidence:     entity.ConfidenceHigh,
		Stage:          entity.StageExact,
		Stats:          entity.PriceStats{FairPrice: 41.5, NumSales: 4, Min: 40, Max: 45, Trend: entity.TrendStable},
		SearchURL:      "https://market.test/?q=bedard",
		ScrapedAt:      time.Now().UTC().Truncate(time.Second),
	}
	_, err = valuations.Append(ctx, card.ID, first)
	rq.NoError(err)

	second := first
	second.EstimatedValue = 44.999
	second.Confidence = entity.ConfidenceMedium
	second.Stage = entity.StageSet
	_, err = valuations.Append(ctx, card.ID, second)
	rq.NoError(err)

	latest, err := valuations.Latest(ctx, card.ID)
	rq.NoError(err)
	rq.InDelta(45.0, latest.Result.EstimatedValue, 1e-9)
	rq.Equal(entity.ConfidenceMedium, latest.Result.Confidence)

	history, err := valuations.History(ctx, card.ID, 10)
	rq.NoError(err)
	rq.Len(history, 2)
	rq.InDelta(3.5, history[0].Change(&history[1]), 1e-9)

	refreshed, err := cards.GetByID(ctx, card.ID)
	rq.NoError(err)
	rq.NotNil(refreshed.RefreshedAt)

	stale, err := cards.ListStale(ctx, time.Now().Add(-time.Hour), 10)
	rq.NoError(err)
	rq.Empty(stale)

	_, err = valuations.Append(ctx, uuid.New(), first)
	rq.True(domain.HasCode(err, errcodes.CardNotFound))
}

func TestValuationRepository_AppendBatch(t *testing.T) {
	rq := require.New(t)
	ctx := context.Background()
	db := openDB(t)

	cards := persistence.NewCardRepository(db)
	valuations := persistence.NewValuationRepository(db)

	a, b := testCard("Connor Bedard"), testCard("Macklin Celebrini")
	rq.NoError(cards.Upsert(ctx, a))
	rq.NoError(cards.Upsert(ctx, b))

	res := entity.FairValueResult{EstimatedValue: 5, Confidence: entity.ConfidenceNone}

	out, err := valuations.AppendBatch(ctx, map[uuid.UUID]entity.FairValueResult{a.ID: res, b.ID: res})
	rq.NoError(err)
	rq.Len(out, 2)

	// Одна неизвестная карточка откатывает весь пакет.
	_, err = valuations.AppendBatch(ctx, map[uuid.UUID]entity.FairValueResult{a.ID: res, uuid.New(): res})
	rq.Error(err)

	history, err := valuations.History(ctx, a.ID, 10)
	rq.NoError(err)
	rq.Len(history, 1)
}
