package entity

import (
	"time"

	"github.com/google/uuid"
)

// Valuation: запись истории оценок карточки. Записи только добавляются.
type Valuation struct {
	ID        uuid.UUID       `json:"id"`
	CardID    uuid.UUID       `json:"card_id"`
	Result    FairValueResult `json:"result"`
	CreatedAt time.Time       `json:"created_at"`
}

// Change: разница между новой оценкой и предыдущей.
func (v Valuation) Change(prev *Valuation) float64 {
	if prev == nil {
		return 0
	}
	return v.Result.EstimatedValue - prev.Result.EstimatedValue
}
