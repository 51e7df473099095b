package logx

const (
	FieldAppName    = "app-name"
	FieldAppVersion = "app-version"
	FieldAttempt    = "attempt"
	FieldCard       = "card"
	FieldCardID     = "card-id"
	FieldConfidence = "confidence"
	FieldDurationMs = "duration-ms"
	FieldError      = "error"
	FieldHTTPMethod = "http-method"
	FieldHTTPStatus = "http-status"
	FieldQuery      = "query"
	FieldSession    = "session"
	FieldStage      = "stage"
	FieldStack      = "stack"
	FieldTaskID     = "task-id"
	FieldTraceID    = "trace-id"
	FieldURL        = "url"
	FieldValue      = "value"
	FieldWorker     = "worker"
)
