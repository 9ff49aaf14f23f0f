package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"regexp"
	"testing"
)

func TestAppError_New_Retryable(t *testing.T) {
	err := New(ErrCodeTransport, "lost", http.StatusBadGateway)
	if !err.Retryable {
		t.Error("TRANSPORT should be retryable")
	}
	if New(ErrCodeNotFound, "nope", http.StatusNotFound).Retryable {
		t.Error("NOT_FOUND should not be retryable")
	}
}

func TestAppError_Error_IsMessageOnly(t *testing.T) {
	err := NotFound("table", "")
	if err.Error() != "The requested table was not found." {
		t.Errorf("unexpected message %q", err.Error())
	}

	cause := fmt.Errorf("connection reset")
	wrapped := Transport(cause)
	if wrapped.Error() != "Connection to the change source failed: connection reset" {
		t.Errorf("unexpected message %q", wrapped.Error())
	}
	if !stderrors.Is(wrapped, cause) {
		t.Error("expected Unwrap to expose the cause")
	}
}

func TestFeedAborted_Message(t *testing.T) {
	err := FeedAborted("table unavailable")
	if err.Error() != "Changefeed aborted (table unavailable)." {
		t.Errorf("unexpected message %q", err.Error())
	}
	if !regexp.MustCompile(`^Changefeed aborted \(table unavailable`).MatchString(err.Error()) {
		t.Error("abort message must be pattern-matchable")
	}
	if !err.Retryable {
		t.Error("aborts are transient")
	}
}

func TestAborted_PrefixesForeignMessages(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Changefeed aborted (table unavailable).", "Changefeed aborted (table unavailable)."},
		{"primary replica lost.", "Changefeed aborted (primary replica lost)."},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			if got := Aborted(tc.in).Message; got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestUnavailable_LiteralMessages(t *testing.T) {
	if got := Unavailable("hasNext").Error(); got != "`hasNext` is not available for feeds." {
		t.Errorf("got %q", got)
	}
	if got := Unavailable("toArray").Error(); got != "`toArray` is not available for feeds." {
		t.Errorf("got %q", got)
	}
}

func TestPredicates(t *testing.T) {
	wrapped := fmt.Errorf("poll: %w", FeedAborted("table unavailable"))
	if !IsAborted(wrapped) {
		t.Error("expected IsAborted through wrapping")
	}
	if IsTransport(wrapped) {
		t.Error("abort is not a transport error")
	}
	if !IsCursorClosed(CursorClosed()) {
		t.Error("expected IsCursorClosed")
	}
	if !IsNoMoreElements(NoMoreElements()) {
		t.Error("expected IsNoMoreElements")
	}
	if IsRetryable(fmt.Errorf("plain")) {
		t.Error("plain errors are not retryable")
	}
	if !IsRetryable(Transport(nil)) {
		t.Error("transport errors are retryable")
	}
}

func TestFromBody_RoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		err    *AppError
		status int
	}{
		{"aborted", FeedAborted("table unavailable"), http.StatusServiceUnavailable},
		{"not found", NotFound("table", "test"), http.StatusNotFound},
		{"exists", AlreadyExists("table", "test"), http.StatusConflict},
		{"transport", Transport(nil), http.StatusBadGateway},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := FromBody(tc.err.ToResponse().Error)
			if got.Code != tc.err.Code {
				t.Errorf("code = %s, want %s", got.Code, tc.err.Code)
			}
			if got.Message != tc.err.Message {
				t.Errorf("message = %q, want %q", got.Message, tc.err.Message)
			}
			if got.HTTPStatus != tc.status {
				t.Errorf("status = %d, want %d", got.HTTPStatus, tc.status)
			}
		})
	}
}

func TestAsAppError(t *testing.T) {
	if _, ok := AsAppError(fmt.Errorf("plain")); ok {
		t.Error("expected false for plain error")
	}
	appErr, ok := AsAppError(fmt.Errorf("wrap: %w", InvalidInput("id", "missing")))
	if !ok {
		t.Fatal("expected AppError")
	}
	if appErr.Details["field"] != "id" {
		t.Errorf("expected field detail, got %v", appErr.Details)
	}
}
