package view_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"card_pricer/internal/domain/entity"
	"card_pricer/internal/transport/bot/view"
	"card_pricer/internal/worker"
)

func TestParseIDs(t *testing.T) {
	rq := require.New(t)

	id := uuid.New()

	testCases := []struct {
		name    string
		args    []string
		wantIDs []uuid.UUID
		wantBad []string
	}{
		{name: "no args"},
		{name: "valid", args: []string{id.String()}, wantIDs: []uuid.UUID{id}},
		{name: "mixed", args: []string{"42", id.String()}, wantIDs: []uuid.UUID{id}, wantBad: []string{"42"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(*testing.T) {
			ids, bad := view.ParseIDs(tc.args)
			rq.Equal(tc.wantIDs, ids)
			rq.Equal(tc.wantBad, bad)
		})
	}
}

func TestFormatStatus(t *testing.T) {
	rq := require.New(t)

	text := view.FormatStatus(true, worker.Progress{Total: 10, Done: 4, Found: 3, NotFound: 1})
	rq.Contains(text, "🟢")
	rq.Contains(text, "Пакет: 4/10")
	rq.Contains(text, "Найдено: 3, без продаж: 1, ошибок: 0")
}

func TestFormatCard(t *testing.T) {
	rq := require.New(t)

	card := entity.Card{Name: "Bedard <YG> /10"}

	rq.Contains(view.FormatCard(card, nil), "Оценок ещё нет")

	history := []entity.Valuation{
		{
			CreatedAt: time.Date(2025, time.March, 10, 6, 0, 0, 0, time.UTC),
			Result: entity.FairValueResult{
				EstimatedValue: 176.47,
				Confidence:     entity.ConfidenceEstimated,
				Stats:          entity.PriceStats{NumSales: 2, Trend: entity.TrendUp},
				Comp:           &entity.Comp{SourceSerial: 99, SourcePrice: 30, Multiplier: 5.88},
				SearchURL:      "https://market.test/?q=a&b",
			},
		},
		{
			CreatedAt: time.Date(2025, time.March, 9, 6, 0, 0, 0, time.UTC),
			Result:    entity.FairValueResult{EstimatedValue: 5, Confidence: entity.ConfidenceNone},
		},
	}

	text := view.FormatCard(card, history)
	rq.Contains(text, "Bedard &lt;YG&gt; /10")
	rq.Contains(text, "$176.47</b> (estimated, продаж: 2, тренд: 📈)")
	rq.Contains(text, "Оценено по /99: $30.00 × 5.88")
	rq.Contains(text, `href="https://market.test/?q=a&amp;b"`)
	rq.Contains(text, "2025-03-09  $5.00  none")
}
