package middlewarex

import (
	"log/slog"
	"net/http"
	"time"

	"card_pricer/pkg/contextx"
	"card_pricer/pkg/logx"
)

var logger = contextx.LoggerFromContextOrDefault //nolint:gochecknoglobals // skip

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Logger кладёт в контекст логгер с trace id и адресом запроса и пишет
// строку access-лога на уровне Debug.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		start := time.Now()

		traceID, _ := contextx.TraceIDFromContext(ctx) //nolint:errcheck // пусто без TraceID

		log := logger(ctx).With(
			slog.String(logx.FieldTraceID, traceID.String()),
			logx.Stringer(logx.FieldURL, r.URL),
			slog.String(logx.FieldHTTPMethod, r.Method),
		)

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r.WithContext(contextx.WithLogger(ctx, log)))

		log.Debug("http request", slog.Int(logx.FieldHTTPStatus, sw.status), logx.Duration(time.Since(start)))
	})
}

// Chain оборачивает h так, что первый middleware выполняется первым.
func Chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// Default: набор для служебных HTTP-серверов.
func Default(h http.Handler) http.Handler {
	return Chain(h, TraceID, Logger, Recovery)
}
