package serial

import (
	"fmt"
	"math"
	"sort"

	"card_pricer/internal/domain"
	"card_pricer/pkg/errcodes"
)

// DefaultTable задаёт относительную ценность типичных тиражей: чем
// меньше тираж, тем дороже экземпляр.
var DefaultTable = map[int]float64{ //nolint:gochecknoglobals
	1:   100,
	5:   40,
	10:  20,
	25:  10,
	50:  6,
	99:  3.4,
	199: 2.2,
	249: 1.8,
	499: 1.3,
	999: 1.0,
}

type point struct {
	run   int
	value float64
}

// Extrapolator переносит цену между тиражами одной и той же карточки.
// Между строками таблицы ценность интерполируется в логарифмических
// координатах, за её пределами берётся ближайший край.
type Extrapolator struct {
	table []point
}

func New() *Extrapolator {
	e, err := NewWithTable(DefaultTable)
	if err != nil {
		panic(err)
	}
	return e
}

func NewWithTable(table map[int]float64) (*Extrapolator, error) {
	if len(table) == 0 {
		return nil, fmt.Errorf("empty serial table")
	}

	points := make([]point, 0, len(table))
	for run, v := range table {
		if run <= 0 || v <= 0 {
			return nil, fmt.Errorf("invalid serial table row %d: %v", run, v)
		}
		points = append(points, point{run: run, value: v})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].run < points[j].run })

	return &Extrapolator{table: points}, nil
}

// Value: относительная ценность тиража.
func (e *Extrapolator) Value(run int) (float64, error) {
	if run <= 0 {
		return 0, domain.NewError(errcodes.ExtrapolationUnavailable, fmt.Sprintf("invalid print run %d", run))
	}

	first, last := e.table[0], e.table[len(e.table)-1]
	switch {
	case run <= first.run:
		return first.value, nil
	case run >= last.run:
		return last.value, nil
	}

	i := sort.Search(len(e.table), func(i int) bool { return e.table[i].run >= run })
	hi := e.table[i]
	if hi.run == run {
		return hi.value, nil
	}
	lo := e.table[i-1]

	t := (math.Log(float64(run)) - math.Log(float64(lo.run))) / (math.Log(float64(hi.run)) - math.Log(float64(lo.run)))
	return math.Exp(math.Log(lo.value) + t*(math.Log(hi.value)-math.Log(lo.value))), nil
}

// Multiplier: во сколько раз экземпляр тиража target дороже экземпляра
// тиража source.
func (e *Extrapolator) Multiplier(source, target int) (float64, error) {
	sv, err := e.Value(source)
	if err != nil {
		return 0, err
	}
	tv, err := e.Value(target)
	if err != nil {
		return 0, err
	}
	return tv / sv, nil
}

// Extrapolate оценивает цену тиража target по цене тиража source.
func (e *Extrapolator) Extrapolate(price float64, source, target int) (float64, error) {
	if price <= 0 {
		return 0, domain.NewError(errcodes.ExtrapolationUnavailable, "non-positive source price")
	}

	m, err := e.Multiplier(source, target)
	if err != nil {
		return 0, err
	}
	return price * m, nil
}
