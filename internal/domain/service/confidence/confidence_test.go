package confidence_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"card_pricer/internal/domain/entity"
	"card_pricer/internal/domain/service/confidence"
	"card_pricer/pkg/tests"
)

func TestMachineWalk(t *testing.T) {
	rq := require.New(t)

	m := confidence.NewMachine()
	rq.Equal(entity.ConfidenceHigh, m.State())
	rq.Equal(entity.StageExact, m.Stage())

	rq.Equal(entity.ConfidenceMedium, m.Observe(false))
	rq.Equal(entity.StageSet, m.Stage())
	rq.Equal(entity.ConfidenceLow, m.Observe(false))
	rq.Equal(entity.ConfidenceEstimated, m.Observe(false))
	rq.Equal(entity.StageCompProbe, m.Stage())
	rq.Equal(entity.ConfidenceNone, m.Observe(false))
	rq.True(m.Done())
	rq.Equal(entity.Stage(0), m.Stage())

	rq.Equal(entity.ConfidenceNone, m.Observe(true), "terminal state does not move")
}

func TestMachineShortCircuits(t *testing.T) {
	rq := require.New(t)

	m := confidence.NewMachine()
	m.Observe(false)
	rq.Equal(entity.ConfidenceMedium, m.Observe(true))
	rq.True(m.Done())
	rq.Equal(entity.ConfidenceMedium, m.Observe(false), "first success wins")
}

// score прогоняет автомат по числу продаж на стадиях 1-3 и успеху
// экстраполяции, как это делает оценщик.
func score(stageSales [3]int, extrapolated bool) entity.Confidence {
	m := confidence.NewMachine()
	for !m.Done() {
		switch stage := m.Stage(); stage {
		case entity.StageCompProbe:
			m.Observe(extrapolated)
		default:
			m.Observe(stageSales[stage-1] > 0)
		}
	}
	return m.State()
}

func TestScore(t *testing.T) {
	rq := require.New(t)

	testCases := []struct {
		name         string
		sales        [3]int
		extrapolated bool
		confidence   entity.Confidence
	}{
		{name: "Exact hit", sales: [3]int{4, 9, 20}, confidence: entity.ConfidenceHigh},
		{name: "Set hit", sales: [3]int{0, 2, 20}, confidence: entity.ConfidenceMedium},
		{name: "Broad hit", sales: [3]int{0, 0, 1}, confidence: entity.ConfidenceLow},
		{name: "Extrapolated", sales: [3]int{0, 0, 0}, extrapolated: true, confidence: entity.ConfidenceEstimated},
		{name: "Nothing", sales: [3]int{0, 0, 0}, confidence: entity.ConfidenceNone},
		{name: "Extrapolation ignored after a hit", sales: [3]int{0, 1, 0}, extrapolated: true, confidence: entity.ConfidenceMedium},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(*testing.T) {
			rq.Equal(tc.confidence, score(tc.sales, tc.extrapolated))
		})
	}
}

func TestScoreIsMonotonic(t *testing.T) {
	rq := require.New(t)

	random := tests.NewRandomizer()

	for i := 0; i < 1000; i++ {
		var sales [3]int
		for j := range sales {
			if random.Bool() {
				sales[j] = random.Intn(10)
			}
		}
		extrapolated := random.Bool()

		got := score(sales, extrapolated)

		rq.Equal(sales[0] > 0, got == entity.ConfidenceHigh, "seed %d", random.Seed)
		rq.Equal(
			sales[0] == 0 && sales[1] == 0 && sales[2] == 0 && extrapolated,
			got == entity.ConfidenceEstimated,
			"seed %d", random.Seed,
		)
		rq.Equal(
			sales[0] == 0 && sales[1] == 0 && sales[2] == 0 && !extrapolated,
			got == entity.ConfidenceNone,
			"seed %d", random.Seed,
		)
	}
}
