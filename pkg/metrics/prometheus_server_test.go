package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"card_pricer/pkg/metrics"
)

func TestPrometheusServer(t *testing.T) {
	rq := require.New(t)

	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Add(3)

	testCases := []struct {
		name       string
		endpoint   string
		statusCode int
		contains   string
	}{
		{
			name:       "Metrics handler",
			endpoint:   "/metrics",
			statusCode: http.StatusOK,
			contains:   "test_total 3",
		},
		{
			name:       "Invalid endpoint",
			endpoint:   "/invalid",
			statusCode: http.StatusNotFound,
		},
	}

	srv := httptest.NewServer(metrics.NewPrometheusServer(":0", reg).Handler())
	defer srv.Close()

	for _, tc := range testCases {
		t.Run(tc.name, func(*testing.T) {
			resp, err := http.Get(srv.URL + tc.endpoint) //nolint:noctx
			rq.NoError(err)

			defer resp.Body.Close()

			rq.Equal(tc.statusCode, resp.StatusCode)

			if tc.contains != "" {
				body, err := io.ReadAll(resp.Body)
				rq.NoError(err)
				rq.Contains(string(body), tc.contains)
			}
		})
	}
}
