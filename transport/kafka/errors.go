package kafka

import (
	"errors"
	"strings"

	kafkago "github.com/segmentio/kafka-go"

	apperrors "github.com/kbukum/changefeed/errors"
)

var connectionPatterns = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"i/o timeout",
	"no route to host",
	"network is unreachable",
	"connection closed",
	"dial tcp",
}

// isConnectionError reports whether err is a network-level failure.
func isConnectionError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, p := range connectionPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// classify maps a kafka-go error onto the feed error space. A missing
// topic is NOT_FOUND; everything else is TRANSPORT.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperrors.AsAppError(err); ok {
		return err
	}
	var kerr kafkago.Error
	if errors.As(err, &kerr) && kerr == kafkago.UnknownTopicOrPartition {
		return apperrors.NotFound("topic", "").WithCause(err)
	}
	e := apperrors.Transport(err)
	if !isConnectionError(err) {
		if errors.As(err, &kerr) && !kerr.Temporary() {
			e.Retryable = false
		}
	}
	return e
}
