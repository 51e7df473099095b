package pricing

import (
	"sort"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"card_pricer/internal/domain/entity"
)

type Config struct {
	// Продажа дороже Factor×медианы или дешевле медианы/Factor, выброс.
	OutlierFactor float64
	// Меньшие выборки не фильтруются.
	OutlierMinSamples int
	// Относительное изменение среднего, после которого тренд не stable.
	TrendThreshold float64
	// Размер окна последних продаж для справедливой цены и тренда.
	Window int
}

func DefaultConfig() Config {
	return Config{
		OutlierFactor:     3,
		OutlierMinSamples: 3,
		TrendThreshold:    0.10,
		Window:            3,
	}
}

type Calculator struct {
	cfg Config
}

func NewCalculator(cfg Config) *Calculator {
	if cfg.OutlierFactor <= 1 {
		cfg.OutlierFactor = DefaultConfig().OutlierFactor
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultConfig().Window
	}
	return &Calculator{cfg: cfg}
}

// FilterOutliers повторяет отсечение по медиане, пока оно что-то удаляет,
// поэтому повторный вызов на результате ничего не меняет.
func (c *Calculator) FilterOutliers(sales []entity.Sale) ([]entity.Sale, int) {
	kept := append([]entity.Sale(nil), sales...)

	for len(kept) >= c.cfg.OutlierMinSamples && len(kept) > 0 {
		median := Median(prices(kept))
		lower, upper := median/c.cfg.OutlierFactor, median*c.cfg.OutlierFactor

		next := lo.Filter(kept, func(s entity.Sale, _ int) bool {
			return s.Price >= lower && s.Price <= upper
		})
		if len(next) == len(kept) {
			break
		}
		kept = next
	}

	return kept, len(sales) - len(kept)
}

// Stats считает статистику по продажам. ok == false, если продаж нет.
func (c *Calculator) Stats(sales []entity.Sale) (entity.PriceStats, bool) {
	if len(sales) == 0 {
		return entity.PriceStats{Trend: entity.TrendStable}, false
	}

	kept, removed := c.FilterOutliers(sales)
	SortByRecency(kept)

	all := prices(kept)
	recent := all[:min(c.cfg.Window, len(all))]

	return entity.PriceStats{
		FairPrice:       round(Median(recent)),
		Trend:           c.Trend(all),
		Top3Prices:      lo.Map(recent, func(p float64, _ int) float64 { return round(p) }),
		MedianAll:       round(Median(all)),
		NumSales:        len(kept),
		OutliersRemoved: removed,
		Min:             round(lo.Min(all)),
		Max:             round(lo.Max(all)),
	}, true
}

// Trend сравнивает среднее последних Window продаж со средним Window
// продаж перед ними. Цены упорядочены от новых к старым.
func (c *Calculator) Trend(recentFirst []float64) entity.Trend {
	w := c.cfg.Window
	if len(recentFirst) < 2*w {
		return entity.TrendStable
	}

	recent := lo.Mean(recentFirst[:w])
	prior := lo.Mean(recentFirst[w : 2*w])
	if prior <= 0 {
		return entity.TrendStable
	}

	change := (recent - prior) / prior
	switch {
	case change > c.cfg.TrendThreshold:
		return entity.TrendUp
	case change < -c.cfg.TrendThreshold:
		return entity.TrendDown
	default:
		return entity.TrendStable
	}
}

// SortByRecency упорядочивает продажи от новых к старым, сохраняя исходный
// порядок продаж одного дня.
func SortByRecency(sales []entity.Sale) {
	sort.SliceStable(sales, func(i, j int) bool {
		return sales[i].SoldDate.After(sales[j].SoldDate)
	})
}

func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// Scale умножает ценовые поля статистики на коэффициент.
func Scale(stats entity.PriceStats, multiplier float64) entity.PriceStats {
	scaled := stats
	scaled.FairPrice = round(stats.FairPrice * multiplier)
	scaled.MedianAll = round(stats.MedianAll * multiplier)
	scaled.Min = round(stats.Min * multiplier)
	scaled.Max = round(stats.Max * multiplier)
	scaled.Top3Prices = lo.Map(stats.Top3Prices, func(p float64, _ int) float64 { return round(p * multiplier) })
	return scaled
}

func prices(sales []entity.Sale) []float64 {
	return lo.Map(sales, func(s entity.Sale, _ int) float64 { return s.Price })
}

func round(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
