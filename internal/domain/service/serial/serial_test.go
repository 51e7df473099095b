package serial_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"card_pricer/internal/domain"
	"card_pricer/internal/domain/service/serial"
	"card_pricer/pkg/errcodes"
	"card_pricer/pkg/tests"
)

func TestMultiplier(t *testing.T) {
	rq := require.New(t)

	ex := serial.New()

	testCases := []struct {
		name       string
		source     int
		target     int
		multiplier float64
	}{
		{name: "Ninety-nine to ten", source: 99, target: 10, multiplier: 20 / 3.4},
		{name: "Ten to ninety-nine", source: 10, target: 99, multiplier: 3.4 / 20},
		{name: "Same run", source: 25, target: 25, multiplier: 1},
		{name: "One of one", source: 999, target: 1, multiplier: 100},
		{name: "Above table clamps", source: 5000, target: 999, multiplier: 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(*testing.T) {
			m, err := ex.Multiplier(tc.source, tc.target)
			rq.NoError(err)
			rq.InDelta(tc.multiplier, m, 1e-9)
		})
	}
}

func TestValueInterpolates(t *testing.T) {
	rq := require.New(t)

	ex := serial.New()

	v75, err := ex.Value(75)
	rq.NoError(err)
	rq.Less(v75, 6.0)
	rq.Greater(v75, 3.4)

	v15, err := ex.Value(15)
	rq.NoError(err)
	rq.Less(v15, 20.0)
	rq.Greater(v15, 10.0)

	// Monotonic: a smaller run is never worth less.
	prev, err := ex.Value(1)
	rq.NoError(err)
	for run := 2; run <= 1200; run++ {
		v, err := ex.Value(run)
		rq.NoError(err)
		rq.LessOrEqual(v, prev, "run %d", run)
		prev = v
	}
}

func TestExtrapolateScenario(t *testing.T) {
	rq := require.New(t)

	estimate, err := serial.New().Extrapolate(30, 99, 10)
	rq.NoError(err)
	rq.InDelta(176.47, estimate, 0.01)
}

func TestExtrapolateRoundTrip(t *testing.T) {
	rq := require.New(t)

	ex := serial.New()
	random := tests.NewRandomizer()

	for i := 0; i < 1000; i++ {
		price := random.Between(0.5, 5000)
		a := 1 + random.Intn(1500)
		b := 1 + random.Intn(1500)

		there, err := ex.Extrapolate(price, a, b)
		rq.NoError(err)
		back, err := ex.Extrapolate(there, b, a)
		rq.NoError(err)

		rq.InDelta(price, back, 1e-6*price, "seed %d: %v /%d -> /%d", random.Seed, price, a, b)
	}
}

func TestExtrapolateErrors(t *testing.T) {
	rq := require.New(t)

	ex := serial.New()

	_, err := ex.Extrapolate(30, 0, 10)
	rq.True(domain.HasCode(err, errcodes.ExtrapolationUnavailable))

	_, err = ex.Extrapolate(0, 99, 10)
	rq.True(domain.HasCode(err, errcodes.ExtrapolationUnavailable))

	_, err = serial.NewWithTable(map[int]float64{10: -1})
	rq.Error(err)
}
