package utils

// ContextKey is the type for request-scoped context values.
type ContextKey string

// Request-scoped context keys set by handlers and read by flows for logging.
const (
	RequestIDKey ContextKey = "request_id"
	UserAgentKey ContextKey = "user_agent"
	IPAddressKey ContextKey = "ip_address"
	EndpointKey  ContextKey = "endpoint"
)
