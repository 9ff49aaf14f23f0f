package errors

import (
	"net/http"
)

// ErrorResponse is the JSON structure returned to clients following RFC 7807.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody contains the error details sent to clients.
type ErrorBody struct {
	Code      ErrorCode      `json:"code"`
	Message   string         `json:"message"`
	Retryable bool           `json:"retryable"`
	Details   map[string]any `json:"details,omitempty"`
}

// ToResponse converts an AppError to an ErrorResponse for JSON serialization.
func (e *AppError) ToResponse() ErrorResponse {
	return ErrorResponse{Error: e.ToBody()}
}

// ToBody returns the wire form of the error.
func (e *AppError) ToBody() ErrorBody {
	return ErrorBody{
		Code:      e.Code,
		Message:   e.Message,
		Retryable: e.Retryable,
		Details:   e.Details,
	}
}

// FromBody rebuilds an AppError received over the wire. Aborts keep their
// recognizable prefix; unknown codes are kept as-is.
func FromBody(b ErrorBody) *AppError {
	if b.Code == ErrCodeFeedAborted {
		return Aborted(b.Message)
	}
	e := New(b.Code, b.Message, statusForCode(b.Code))
	if b.Retryable {
		e.Retryable = true
	}
	if len(b.Details) > 0 {
		e.Details = b.Details
	}
	return e
}

func statusForCode(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeAlreadyExists, ErrCodeProtocolMisuse:
		return http.StatusConflict
	case ErrCodeInvalidInput, ErrCodeMissingField, ErrCodeCapabilityUnavailable:
		return http.StatusBadRequest
	case ErrCodeUnauthorized, ErrCodeInvalidToken:
		return http.StatusUnauthorized
	case ErrCodeTransport, ErrCodeMalformedPayload:
		return http.StatusBadGateway
	case ErrCodeFeedAborted, ErrCodeServiceUnavailable:
		return http.StatusServiceUnavailable
	case ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case ErrCodeNoMoreElements, ErrCodeCursorClosed:
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}
