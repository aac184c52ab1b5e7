package constant

const (
	ContextKeyRequestID = "requestId"

	RequestIDHeaderKey = "X-Riftstats-Request-ID"
)
