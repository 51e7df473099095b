package entity

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"card_pricer/internal/domain/value"
)

// CardQuery: структурированная идентичность карточки. Значение неизменяемо:
// передаётся по значению, модификаторы возвращают копию.
type CardQuery struct {
	Player     string      `json:"player" validate:"required"`
	Year       string      `json:"year,omitempty" validate:"omitempty,max=9"`
	Brand      string      `json:"brand,omitempty"`
	Subset     string      `json:"subset,omitempty"`
	Parallel   string      `json:"parallel,omitempty"`
	CardNumber string      `json:"card_number,omitempty" validate:"omitempty,max=16"`
	Serial     int         `json:"serial,omitempty" validate:"gte=0"`
	Grade      value.Grade `json:"grade"`
}

func (q CardQuery) IsNumbered() bool {
	return q.Serial > 0
}

func (q CardQuery) IsGraded() bool {
	return !q.Grade.IsZero()
}

func (q CardQuery) WithGrade(g value.Grade) CardQuery {
	q.Grade = g
	return q
}

func (q CardQuery) WithSerial(serial int) CardQuery {
	q.Serial = serial
	return q
}

// LastName: фамилия игрока, используется как защита от чужих карточек.
func (q CardQuery) LastName() string {
	parts := strings.Fields(q.Player)
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}

// Key: стабильный ключ карточки для кэшей и логов.
func (q CardQuery) Key() string {
	parts := []string{q.Year, q.Brand, q.Subset, q.Player, q.Parallel, q.CardNumber}
	if q.Serial > 0 {
		parts = append(parts, "/"+strconv.Itoa(q.Serial))
	}
	parts = append(parts, q.Grade.String())

	return strings.ToLower(strings.Join(parts, "|"))
}

func (q CardQuery) String() string {
	parts := make([]string, 0, 8)
	for _, p := range []string{q.Year, q.Brand, q.Subset, q.Player, q.Parallel} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if q.CardNumber != "" {
		parts = append(parts, "#"+q.CardNumber)
	}
	if q.Serial > 0 {
		parts = append(parts, "/"+strconv.Itoa(q.Serial))
	}
	if q.IsGraded() {
		parts = append(parts, q.Grade.String())
	}
	return strings.Join(parts, " ")
}

// Card: карточка коллекции, которую хранит слой персистентности.
type Card struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Query       CardQuery  `json:"query"`
	CreatedAt   time.Time  `json:"created_at"`
	RefreshedAt *time.Time `json:"refreshed_at,omitempty"`
}
