package client

import (
	"bufio"
	"io"
	"strings"
)

// Change stream event names, as sent by the server package.
const (
	eventConnected = "connected"
	eventChange    = "change"
	eventError     = "error"
	eventEnd       = "end"
)

const maxEventSize = 1 << 20

// event is a single server-sent event.
type event struct {
	Event string
	Data  string
	ID    string
}

// eventReader reads server-sent events from a response body.
type eventReader struct {
	scanner *bufio.Scanner
	body    io.ReadCloser
}

func newEventReader(body io.ReadCloser) *eventReader {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventSize)
	return &eventReader{scanner: scanner, body: body}
}

// Next returns the next event, or io.EOF when the stream ends.
//
// It follows the text/event-stream rules: a blank line dispatches the
// buffered event, lines starting with ':' are comments (the server's
// keep-alives), "field: value" loses one leading space, repeated data lines
// join with '\n', and an event without data is dropped. A trailing event
// cut off by EOF is still returned.
func (r *eventReader) Next() (*event, error) {
	var (
		ev   event
		data []string
	)
	for r.scanner.Scan() {
		line := r.scanner.Text()
		switch {
		case line == "" && data != nil:
			ev.Data = strings.Join(data, "\n")
			return &ev, nil
		case line == "":
			ev = event{}
		case line[0] == ':':
		default:
			name, value, _ := strings.Cut(line, ":")
			value = strings.TrimPrefix(value, " ")
			switch name {
			case "data":
				data = append(data, value)
			case "event":
				ev.Event = value
			case "id":
				ev.ID = value
			}
		}
	}
	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	if data != nil {
		ev.Data = strings.Join(data, "\n")
		return &ev, nil
	}
	return nil, io.EOF
}

// Close releases the body, unblocking a pending Next.
func (r *eventReader) Close() error {
	return r.body.Close()
}
