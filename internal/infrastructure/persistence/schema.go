package persistence

import (
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"

	"card_pricer/internal/domain/entity"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary //nolint:gochecknoglobals // skip

// cardSchema: строка таблицы cards.
type cardSchema struct {
	ID          uuid.UUID  `db:"id"`
	Name        string     `db:"name"`
	QueryKey    string     `db:"query_key"`
	Query       []byte     `db:"query"`
	CreatedAt   time.Time  `db:"created_at"`
	RefreshedAt *time.Time `db:"refreshed_at"`
}

func fromCard(c *entity.Card) (*cardSchema, error) {
	q, err := json.Marshal(c.Query)
	if err != nil {
		return nil, err
	}

	return &cardSchema{
		ID:          c.ID,
		Name:        c.Name,
		QueryKey:    c.Query.Key(),
		Query:       q,
		CreatedAt:   c.CreatedAt,
		RefreshedAt: c.RefreshedAt,
	}, nil
}

func (s *cardSchema) toDomain() (entity.Card, error) {
	var q entity.CardQuery
	if err := json.Unmarshal(s.Query, &q); err != nil {
		return entity.Card{}, err
	}

	return entity.Card{
		ID:          s.ID,
		Name:        s.Name,
		Query:       q,
		CreatedAt:   s.CreatedAt,
		RefreshedAt: s.RefreshedAt,
	}, nil
}

// valuationSchema: строка таблицы valuations. Полный результат лежит в
// result, остальные колонки продублированы для выборок и отчётов.
type valuationSchema struct {
	ID             uuid.UUID       `db:"id"`
	CardID         uuid.UUID       `db:"card_id"`
	EstimatedValue decimal.Decimal `db:"estimated_value"`
	Confidence     string          `db:"confidence"`
	Stage          int             `db:"stage"`
	NumSales       int             `db:"num_sales"`
	SearchURL      string          `db:"search_url"`
	ImageURL       string          `db:"image_url"`
	Result         []byte          `db:"result"`
	ScrapedAt      time.Time       `db:"scraped_at"`
	CreatedAt      time.Time       `db:"created_at"`
}

func fromResult(id, cardID uuid.UUID, r entity.FairValueResult, now time.Time) (*valuationSchema, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}

	scrapedAt := r.ScrapedAt
	if scrapedAt.IsZero() {
		scrapedAt = now
	}

	return &valuationSchema{
		ID:             id,
		CardID:         cardID,
		EstimatedValue: decimal.NewFromFloat(r.EstimatedValue).Round(2),
		Confidence:     string(r.Confidence),
		Stage:          int(r.Stage),
		NumSales:       r.Stats.NumSales,
		SearchURL:      r.SearchURL,
		ImageURL:       r.ImageURL,
		Result:         raw,
		ScrapedAt:      scrapedAt,
		CreatedAt:      now,
	}, nil
}

func (s *valuationSchema) toDomain() (entity.Valuation, error) {
	var r entity.FairValueResult
	if err := json.Unmarshal(s.Result, &r); err != nil {
		return entity.Valuation{}, err
	}

	// Колонка: источник истины для суммы.
	r.EstimatedValue = s.EstimatedValue.InexactFloat64()

	return entity.Valuation{
		ID:        s.ID,
		CardID:    s.CardID,
		Result:    r,
		CreatedAt: s.CreatedAt,
	}, nil
}
