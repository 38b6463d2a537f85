package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	// General validation
	CodeRequiredField:   "Required field is missing",
	CodeInvalidInput:    "Invalid input provided",
	CodeInvalidFormat:   "Invalid data format",
	CodeInvalidState:    "Invalid state for this operation",
	CodeNotFound:        "Resource not found",
	CodeValidationError: "Validation error",

	// Configuration
	CodeConfigurationError: "Configuration error",

	// External service errors
	CodeExternalServiceError: "External service error",
	CodeServiceTimeout:       "Service request timeout",
	CodeServiceUnavailable:   "Service temporarily unavailable",
	CodeRateLimitExceeded:    "Rate limit exceeded",

	// System errors
	CodeInternalError: "Internal server error",
	CodeUnknownError:  "An unknown error occurred",

	// Upstream exchange session errors
	CodeUpstreamUnavailable: "Upstream exchange is unavailable",
	CodeHandshakeFailed:     "Upstream subscription handshake failed",
	CodeUpstreamClosed:      "Upstream connection closed",
	CodeUpstreamProtocol:    "Upstream protocol error",

	// WebSocket transport errors
	CodeWebSocketConnectionError: "WebSocket connection error",
	CodeWebSocketReconnecting:    "WebSocket reconnecting",
	CodeWebSocketClosed:          "WebSocket connection closed",
	CodeWebSocketSendError:       "Failed to send WebSocket message",

	// Book ingestion errors
	CodeParseSkip:        "Frame skipped by parser",
	CodeInvalidOrderbook: "Invalid orderbook data",
	CodeSnapshotFailed:   "Failed to fetch orderbook snapshot",

	// Fan-out errors
	CodeSubscriberOverflow: "Subscriber queue full, snapshot dropped",
	CodeSubscriberClosed:   "Subscriber stream closed",

	// Circuit breaker errors
	CodeCircuitOpen:     "Circuit breaker is open",
	CodeCircuitHalfOpen: "Circuit breaker is half-open",
}
