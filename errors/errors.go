package errors

import (
	"fmt"
	"net/http"
	"strings"
)

// AbortedPrefix starts the message of every FEED_ABORTED error.
const AbortedPrefix = "Changefeed aborted"

// AppError is the unified error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// HTTPStatus is the recommended HTTP status code for this error.
	HTTPStatus int `json:"-"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the message, followed by the cause when one is set.
// The code is deliberately left out so messages can be matched literally.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Retryable:  IsRetryableCode(code),
	}
}

// --- Feed errors ---

// Transport creates a connection-level error.
func Transport(cause error) *AppError {
	return &AppError{
		Code: ErrCodeTransport, Message: "Connection to the change source failed",
		HTTPStatus: http.StatusBadGateway, Retryable: true, Cause: cause,
	}
}

// FeedAborted creates the error reported when the watched resource becomes
// unavailable. The message is "Changefeed aborted (<reason>)."
func FeedAborted(reason string) *AppError {
	return Aborted(fmt.Sprintf("%s (%s).", AbortedPrefix, reason))
}

// Aborted creates a FEED_ABORTED error from a message received over the wire,
// prefixing it when the sender did not.
func Aborted(message string) *AppError {
	if !strings.HasPrefix(message, AbortedPrefix) {
		message = fmt.Sprintf("%s (%s).", AbortedPrefix, strings.TrimSuffix(message, "."))
	}
	return &AppError{
		Code: ErrCodeFeedAborted, Message: message,
		HTTPStatus: http.StatusServiceUnavailable, Retryable: true,
	}
}

// NoMoreElements creates the error a pull reader sees once the source ended the stream.
func NoMoreElements() *AppError {
	return &AppError{
		Code: ErrCodeNoMoreElements, Message: "No more rows in the cursor.",
		HTTPStatus: http.StatusGone,
	}
}

// CursorClosed creates the error returned by reads on a closed cursor.
func CursorClosed() *AppError {
	return &AppError{
		Code: ErrCodeCursorClosed, Message: "Cursor is closed.",
		HTTPStatus: http.StatusGone,
	}
}

// MalformedPayload creates the error for a payload that could not be decoded.
func MalformedPayload(cause error) *AppError {
	return &AppError{
		Code: ErrCodeMalformedPayload, Message: "Received a malformed change payload",
		HTTPStatus: http.StatusBadGateway, Cause: cause,
	}
}

// ProtocolMisuse creates the error for overlapping reads or consumption modes.
func ProtocolMisuse(reason string) *AppError {
	return &AppError{
		Code: ErrCodeProtocolMisuse, Message: reason,
		HTTPStatus: http.StatusConflict,
	}
}

// Unavailable creates the error for an operation a feed does not support.
// The message is exactly "`<op>` is not available for feeds."
func Unavailable(op string) *AppError {
	return &AppError{
		Code: ErrCodeCapabilityUnavailable, Message: fmt.Sprintf("`%s` is not available for feeds.", op),
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"operation": op},
	}
}

// --- Common Error Constructors ---

// ServiceUnavailable creates a new AppError for a service that is temporarily unavailable.
func ServiceUnavailable(service string) *AppError {
	return &AppError{
		Code: ErrCodeServiceUnavailable, Message: fmt.Sprintf("The %s is temporarily unavailable. Please try again.", service),
		HTTPStatus: http.StatusServiceUnavailable, Retryable: true,
		Details: map[string]any{"service": service},
	}
}

// Timeout creates a new AppError for an operation that timed out.
func Timeout(operation string) *AppError {
	return &AppError{
		Code: ErrCodeTimeout, Message: "The request took too long. Please try again.",
		HTTPStatus: http.StatusGatewayTimeout, Retryable: true,
		Details: map[string]any{"operation": operation},
	}
}

// NotFound creates a new AppError for a resource that was not found.
func NotFound(resource, id string) *AppError {
	details := map[string]any{"resource": resource}
	msg := fmt.Sprintf("The requested %s was not found.", resource)
	if id != "" {
		details["id"] = id
		msg = fmt.Sprintf("The requested %s %q was not found.", resource, id)
	}
	return &AppError{
		Code: ErrCodeNotFound, Message: msg,
		HTTPStatus: http.StatusNotFound, Details: details,
	}
}

// AlreadyExists creates a new AppError for a resource that already exists.
func AlreadyExists(resource, id string) *AppError {
	return &AppError{
		Code: ErrCodeAlreadyExists, Message: fmt.Sprintf("A %s %q already exists.", resource, id),
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"resource": resource, "id": id},
	}
}

// InvalidInput creates a new AppError for invalid input.
func InvalidInput(field, reason string) *AppError {
	details := make(map[string]any)
	if field != "" {
		details["field"] = field
	}
	return &AppError{
		Code: ErrCodeInvalidInput, Message: fmt.Sprintf("Invalid input: %s", reason),
		HTTPStatus: http.StatusBadRequest, Details: details,
	}
}

// Validation creates a new AppError for validation errors.
func Validation(message string) *AppError {
	return &AppError{
		Code: ErrCodeInvalidInput, Message: message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// MissingField creates a new AppError for a missing required field.
func MissingField(field string) *AppError {
	return &AppError{
		Code: ErrCodeMissingField, Message: fmt.Sprintf("Missing required field: %s", field),
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"field": field},
	}
}

// Unauthorized creates a new AppError for unauthorized access.
func Unauthorized(reason string) *AppError {
	if reason == "" {
		reason = "Authentication required."
	}
	return &AppError{
		Code: ErrCodeUnauthorized, Message: reason,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// InvalidToken creates a new AppError for an invalid authentication token.
func InvalidToken() *AppError {
	return &AppError{
		Code: ErrCodeInvalidToken, Message: "Invalid authentication token.",
		HTTPStatus: http.StatusUnauthorized,
	}
}

// Internal creates a new AppError for an internal error.
func Internal(cause error) *AppError {
	return &AppError{
		Code: ErrCodeInternal, Message: "An unexpected error occurred.",
		HTTPStatus: http.StatusInternalServerError, Cause: cause,
	}
}
