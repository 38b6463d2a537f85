package apperror

// Code represents a unique error code for the application
type Code string

// General error codes
const (
	// General validation
	CodeRequiredField   Code = "REQUIRED_FIELD"
	CodeInvalidInput    Code = "INVALID_INPUT"
	CodeInvalidFormat   Code = "INVALID_FORMAT"
	CodeInvalidState    Code = "INVALID_STATE"
	CodeNotFound        Code = "NOT_FOUND"
	CodeValidationError Code = "VALIDATION_ERROR"

	// Configuration
	CodeConfigurationError Code = "CONFIGURATION_ERROR"

	// External service errors
	CodeExternalServiceError Code = "EXTERNAL_SERVICE_ERROR"
	CodeServiceTimeout       Code = "SERVICE_TIMEOUT"
	CodeServiceUnavailable   Code = "SERVICE_UNAVAILABLE"
	CodeRateLimitExceeded    Code = "RATE_LIMIT_EXCEEDED"

	// System errors
	CodeInternalError Code = "INTERNAL_ERROR"
	CodeUnknownError  Code = "UNKNOWN_ERROR"
)

// Aggregator-specific error codes
const (
	// Upstream exchange session errors
	CodeUpstreamUnavailable Code = "UPSTREAM_UNAVAILABLE"
	CodeHandshakeFailed     Code = "HANDSHAKE_FAILED"
	CodeUpstreamClosed      Code = "UPSTREAM_CLOSED"
	CodeUpstreamProtocol    Code = "UPSTREAM_PROTOCOL"

	// WebSocket transport errors
	CodeWebSocketConnectionError Code = "WEBSOCKET_CONNECTION_ERROR"
	CodeWebSocketReconnecting    Code = "WEBSOCKET_RECONNECTING"
	CodeWebSocketClosed          Code = "WEBSOCKET_CLOSED"
	CodeWebSocketSendError       Code = "WEBSOCKET_SEND_ERROR"

	// Book ingestion errors
	CodeParseSkip        Code = "PARSE_SKIP"
	CodeInvalidOrderbook Code = "INVALID_ORDERBOOK"
	CodeSnapshotFailed   Code = "SNAPSHOT_FAILED"

	// Fan-out errors
	CodeSubscriberOverflow Code = "SUBSCRIBER_OVERFLOW"
	CodeSubscriberClosed   Code = "SUBSCRIBER_CLOSED"

	// Circuit breaker errors
	CodeCircuitOpen     Code = "CIRCUIT_OPEN"
	CodeCircuitHalfOpen Code = "CIRCUIT_HALF_OPEN"
)
