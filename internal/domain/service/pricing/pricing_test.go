package pricing_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"card_pricer/internal/domain/entity"
	"card_pricer/internal/domain/service/pricing"
	"card_pricer/pkg/tests"
)

var day0 = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

// salesOldestFirst датирует продажи по порядку: первая, самая старая.
func salesOldestFirst(prices ...float64) []entity.Sale {
	sales := make([]entity.Sale, 0, len(prices))
	for i, p := range prices {
		sales = append(sales, entity.Sale{Price: p, SoldDate: day0.AddDate(0, 0, i)})
	}
	return sales
}

func TestStatsDropsOutlierAndUsesRecentMedian(t *testing.T) {
	rq := require.New(t)

	calc := pricing.NewCalculator(pricing.DefaultConfig())

	stats, ok := calc.Stats(salesOldestFirst(40, 42, 45, 41, 500))
	rq.True(ok)

	rq.Equal(1, stats.OutliersRemoved)
	rq.Equal(4, stats.NumSales)
	rq.InDelta(42, stats.FairPrice, 1e-9)
	rq.Equal([]float64{41, 45, 42}, stats.Top3Prices)
	rq.InDelta(41.5, stats.MedianAll, 1e-9)
	rq.InDelta(40, stats.Min, 1e-9)
	rq.InDelta(45, stats.Max, 1e-9)
	rq.Equal(entity.TrendStable, stats.Trend)
}

func TestStatsFewSales(t *testing.T) {
	rq := require.New(t)

	calc := pricing.NewCalculator(pricing.DefaultConfig())

	testCases := []struct {
		name   string
		prices []float64
		fair   float64
	}{
		{name: "Single sale", prices: []float64{12.5}, fair: 12.5},
		{name: "Two sales keep wide spread", prices: []float64{10, 90}, fair: 50},
		{name: "Three sales", prices: []float64{10, 11, 30}, fair: 11},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(*testing.T) {
			stats, ok := calc.Stats(salesOldestFirst(tc.prices...))
			rq.True(ok)
			rq.InDelta(tc.fair, stats.FairPrice, 1e-9)
			rq.Equal(0, stats.OutliersRemoved)
		})
	}

	_, ok := calc.Stats(nil)
	rq.False(ok)
}

func TestTrend(t *testing.T) {
	rq := require.New(t)

	calc := pricing.NewCalculator(pricing.DefaultConfig())

	testCases := []struct {
		name   string
		prices []float64
		trend  entity.Trend
	}{
		{name: "Rising", prices: []float64{40, 40, 40, 50, 50, 50}, trend: entity.TrendUp},
		{name: "Falling", prices: []float64{50, 50, 50, 40, 40, 40}, trend: entity.TrendDown},
		{name: "Within threshold", prices: []float64{40, 40, 40, 42, 43, 41}, trend: entity.TrendStable},
		{name: "Fewer than six", prices: []float64{10, 10, 20, 20, 20}, trend: entity.TrendStable},
		{name: "Outliers removed before trend", prices: []float64{5, 5, 5, 40, 40, 40, 40, 40, 40}, trend: entity.TrendStable},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(*testing.T) {
			stats, ok := calc.Stats(salesOldestFirst(tc.prices...))
			rq.True(ok)
			rq.Equal(tc.trend, stats.Trend)
		})
	}
}

func TestConfigurableBounds(t *testing.T) {
	rq := require.New(t)

	calc := pricing.NewCalculator(pricing.Config{
		OutlierFactor:     1.5,
		OutlierMinSamples: 3,
		TrendThreshold:    0.5,
		Window:            3,
	})

	kept, removed := calc.FilterOutliers(salesOldestFirst(40, 42, 45, 41, 70))
	rq.Len(kept, 4)
	rq.Equal(1, removed)

	stats, ok := calc.Stats(salesOldestFirst(40, 40, 40, 50, 50, 50))
	rq.True(ok)
	rq.Equal(entity.TrendStable, stats.Trend)
}

func TestFilterOutliersIsIdempotent(t *testing.T) {
	rq := require.New(t)

	calc := pricing.NewCalculator(pricing.DefaultConfig())
	random := tests.NewRandomizer()

	for i := 0; i < 500; i++ {
		n := random.Intn(20)
		prices := make([]float64, n)
		for j := range prices {
			prices[j] = random.Between(1, 100)
			if random.Intn(5) == 0 {
				prices[j] *= random.Between(2, 50)
			}
		}

		once, _ := calc.FilterOutliers(salesOldestFirst(prices...))
		twice, removed := calc.FilterOutliers(once)

		rq.Equal(once, twice, "seed %d", random.Seed)
		rq.Equal(0, removed, "seed %d", random.Seed)
	}
}

func TestStatsInvariants(t *testing.T) {
	rq := require.New(t)

	calc := pricing.NewCalculator(pricing.DefaultConfig())
	random := tests.NewRandomizer()

	for i := 0; i < 500; i++ {
		n := 1 + random.Intn(25)
		prices := make([]float64, n)
		for j := range prices {
			prices[j] = random.Between(0.5, 1000)
		}

		stats, ok := calc.Stats(salesOldestFirst(prices...))
		rq.True(ok)
		rq.LessOrEqual(stats.Min, stats.MedianAll, "seed %d", random.Seed)
		rq.LessOrEqual(stats.MedianAll, stats.Max, "seed %d", random.Seed)
		rq.LessOrEqual(stats.Min, stats.FairPrice, "seed %d", random.Seed)
		rq.LessOrEqual(stats.FairPrice, stats.Max, "seed %d", random.Seed)
		rq.LessOrEqual(stats.OutliersRemoved, n)
		rq.Equal(n, stats.NumSales+stats.OutliersRemoved)
	}
}

func TestScale(t *testing.T) {
	rq := require.New(t)

	stats := entity.PriceStats{FairPrice: 30, MedianAll: 31, Min: 25, Max: 40, Top3Prices: []float64{30, 29, 31}, NumSales: 5}
	scaled := pricing.Scale(stats, 2)

	rq.InDelta(60, scaled.FairPrice, 1e-9)
	rq.InDelta(50, scaled.Min, 1e-9)
	rq.InDelta(80, scaled.Max, 1e-9)
	rq.Equal([]float64{60, 58, 62}, scaled.Top3Prices)
	rq.Equal(5, scaled.NumSales)
	rq.InDelta(30, stats.FairPrice, 1e-9)
}
