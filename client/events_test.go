package client

import (
	"io"
	"strings"
	"testing"
)

func TestEventReader(t *testing.T) {
	body := io.NopCloser(strings.NewReader(
		": keepalive 1\n\n" +
			"event: connected\ndata: {}\n\n" +
			"id: 1\nevent: change\ndata: line one\ndata: line two\n\n" +
			"event: end\ndata: {}",
	))
	r := newEventReader(body)
	defer r.Close()

	want := []event{
		{Event: eventConnected, Data: "{}"},
		{Event: eventChange, Data: "line one\nline two", ID: "1"},
		{Event: eventEnd, Data: "{}"},
	}
	for i, w := range want {
		got, err := r.Next()
		if err != nil {
			t.Fatalf("event %d: %v", i, err)
		}
		if *got != w {
			t.Errorf("event %d = %+v, want %+v", i, *got, w)
		}
	}
	if _, err := r.Next(); err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestEventReaderFieldRules(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  event
	}{
		{"no space after colon", "data:x\n\n", event{Data: "x"}},
		{"only one space trimmed", "data:  x\n\n", event{Data: " x"}},
		{"empty data line", "data\n\n", event{Data: ""}},
		{"event without data dropped", "event: error\n\nevent: change\ndata: y\n\n", event{Event: eventChange, Data: "y"}},
		{"unknown fields ignored", "retry: 10\ndata: z\n\n", event{Data: "z"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newEventReader(io.NopCloser(strings.NewReader(tt.input)))
			got, err := r.Next()
			if err != nil {
				t.Fatalf("Next: %v", err)
			}
			if *got != tt.want {
				t.Errorf("got %+v, want %+v", *got, tt.want)
			}
		})
	}
}
