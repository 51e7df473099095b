package middlewarex

import (
	"net/http"

	"card_pricer/pkg/contextx"
)

const HeaderTraceID = "X-Trace-Id"

// TraceID берёт trace id из заголовка запроса или выдаёт новый и
// возвращает его в ответе.
func TraceID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := contextx.TraceID(r.Header.Get(HeaderTraceID))
		if traceID == "" {
			traceID = contextx.NewTraceID()
		}

		w.Header().Set(HeaderTraceID, traceID.String())

		next.ServeHTTP(w, r.WithContext(contextx.WithTraceID(r.Context(), traceID)))
	})
}
