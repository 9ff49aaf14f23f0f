package errors

import (
	stderrors "errors"
)

// IsAppError checks if an error is an AppError.
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// AsAppError converts an error to an AppError if possible.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err is an AppError with the given code.
func HasCode(err error, code ErrorCode) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == code
}

// IsAborted reports whether err is a FEED_ABORTED error.
func IsAborted(err error) bool { return HasCode(err, ErrCodeFeedAborted) }

// IsTransport reports whether err is a TRANSPORT error.
func IsTransport(err error) bool { return HasCode(err, ErrCodeTransport) }

// IsCursorClosed reports whether err is a CURSOR_CLOSED error.
func IsCursorClosed(err error) bool { return HasCode(err, ErrCodeCursorClosed) }

// IsNoMoreElements reports whether err is a NO_MORE_ELEMENTS error.
func IsNoMoreElements(err error) bool { return HasCode(err, ErrCodeNoMoreElements) }

// IsRetryable reports whether err is an AppError marked retryable.
func IsRetryable(err error) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Retryable
}
