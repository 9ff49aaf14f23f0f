package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Feed errors delivered through a cursor's result channel.
const (
	// ErrCodeTransport indicates a connection-level failure between the cursor and its source.
	ErrCodeTransport ErrorCode = "TRANSPORT"
	// ErrCodeFeedAborted indicates the watched resource became unavailable.
	ErrCodeFeedAborted ErrorCode = "FEED_ABORTED"
	// ErrCodeNoMoreElements indicates the source ended the stream.
	ErrCodeNoMoreElements ErrorCode = "NO_MORE_ELEMENTS"
	// ErrCodeCursorClosed indicates the cursor was closed before or during a read.
	ErrCodeCursorClosed ErrorCode = "CURSOR_CLOSED"
	// ErrCodeMalformedPayload indicates the source sent a payload that could not be decoded.
	ErrCodeMalformedPayload ErrorCode = "MALFORMED_PAYLOAD"
)

// Caller errors raised synchronously at the call site.
const (
	// ErrCodeProtocolMisuse indicates overlapping reads or consumption modes on one cursor.
	ErrCodeProtocolMisuse ErrorCode = "PROTOCOL_MISUSE"
	// ErrCodeCapabilityUnavailable indicates an operation the cursor kind does not support.
	ErrCodeCapabilityUnavailable ErrorCode = "CAPABILITY_UNAVAILABLE"
)

// Availability errors (retryable)
const (
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrCodeTimeout            ErrorCode = "TIMEOUT"
)

// Resource errors
const (
	ErrCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrCodeAlreadyExists ErrorCode = "ALREADY_EXISTS"
)

// Validation errors
const (
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	ErrCodeMissingField ErrorCode = "MISSING_FIELD"
)

// Authentication errors
const (
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeInvalidToken ErrorCode = "INVALID_TOKEN"
)

// Internal errors
const (
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeTransport:          true,
	ErrCodeFeedAborted:        true,
	ErrCodeServiceUnavailable: true,
	ErrCodeTimeout:            true,
	ErrCodeInternal:           false,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
