package entity

import (
	"strconv"
	"time"
)

type Confidence string

const (
	ConfidenceHigh      Confidence = "high"
	ConfidenceMedium    Confidence = "medium"
	ConfidenceLow       Confidence = "low"
	ConfidenceEstimated Confidence = "estimated"
	ConfidenceNone      Confidence = "none"
)

// Rank задаёт строгий порядок high > medium > low > estimated > none.
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceHigh:
		return 4
	case ConfidenceMedium:
		return 3
	case ConfidenceLow:
		return 2
	case ConfidenceEstimated:
		return 1
	default:
		return 0
	}
}

type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

type Stage int

const (
	StageExact Stage = iota + 1
	StageSet
	StageBroad
	StageCompProbe
)

// Confidence: уровень доверия, который даёт успех на этой стадии.
func (s Stage) Confidence() Confidence {
	switch s {
	case StageExact:
		return ConfidenceHigh
	case StageSet:
		return ConfidenceMedium
	case StageBroad:
		return ConfidenceLow
	case StageCompProbe:
		return ConfidenceEstimated
	default:
		return ConfidenceNone
	}
}

func (s Stage) String() string {
	switch s {
	case StageExact:
		return "exact"
	case StageSet:
		return "set"
	case StageBroad:
		return "broad"
	case StageCompProbe:
		return "comp"
	default:
		return "stage-" + strconv.Itoa(int(s))
	}
}

type StagedQuery struct {
	Stage      Stage      `json:"stage"`
	Text       string     `json:"text"`
	Confidence Confidence `json:"confidence"`
}

type PriceStats struct {
	FairPrice       float64   `json:"fair_price"`
	Trend           Trend     `json:"trend"`
	Top3Prices      []float64 `json:"top_3_prices"`
	MedianAll       float64   `json:"median_all"`
	NumSales        int       `json:"num_sales"`
	OutliersRemoved int       `json:"outliers_removed"`
	Min             float64   `json:"min"`
	Max             float64   `json:"max"`
}

// Comp описывает продажи другого тиража, по которым экстраполирована цена.
type Comp struct {
	SourceSerial int     `json:"source_serial"`
	SourcePrice  float64 `json:"source_price"`
	Multiplier   float64 `json:"multiplier"`
	NumSales     int     `json:"num_sales"`
}

type FairValueResult struct {
	EstimatedValue float64     `json:"estimated_value"`
	Confidence     Confidence  `json:"confidence"`
	Stage          Stage       `json:"stage,omitempty"`
	Stats          PriceStats  `json:"stats"`
	RawSales       []Sale      `json:"raw_sales"`
	SearchURL      string      `json:"search_url"`
	ImageURL       string      `json:"image_url,omitempty"`
	Comp           *Comp       `json:"comp,omitempty"`
	Diagnostics    Diagnostics `json:"diagnostics"`
	ScrapedAt      time.Time   `json:"scraped_at"`
}

func (r FairValueResult) Found() bool {
	return r.Confidence != ConfidenceNone
}
