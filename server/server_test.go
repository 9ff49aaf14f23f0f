package server_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kbukum/changefeed/component"
	apperrors "github.com/kbukum/changefeed/errors"
	"github.com/kbukum/changefeed/feed"
	"github.com/kbukum/changefeed/logger"
	"github.com/kbukum/changefeed/memtable"
	"github.com/kbukum/changefeed/server"
)

const testSecret = "0123456789abcdef0123"

func newTestServer(t *testing.T, cfg server.Config) (*httptest.Server, *memtable.Store) {
	t.Helper()
	cfg.ApplyDefaults()
	store := memtable.New(nil)
	health := func(ctx context.Context) []component.Health {
		return []component.Health{store.Health(ctx)}
	}
	srv := server.New(cfg, store, health, logger.Nop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		_ = store.Close()
		ts.CloseClientConnections()
		ts.Close()
	})
	return ts, store
}

func call(t *testing.T, method, url string, body any, header http.Header) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, data
}

func errorCode(t *testing.T, body []byte) apperrors.ErrorCode {
	t.Helper()
	var er apperrors.ErrorResponse
	if err := json.Unmarshal(body, &er); err != nil {
		t.Fatalf("error body is not JSON: %v (%s)", err, body)
	}
	return er.Error.Code
}

func dataOf[T any](t *testing.T, body []byte) T {
	t.Helper()
	var env struct {
		Data T `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		t.Fatalf("body is not a data envelope: %v (%s)", err, body)
	}
	return env.Data
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t, server.Config{})

	resp, body := call(t, http.MethodGet, ts.URL+"/health", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var got struct {
		Status     component.HealthStatus `json:"status"`
		Version    string                 `json:"version"`
		Components []component.Health     `json:"components"`
	}
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Status != component.StatusHealthy || got.Version == "" || len(got.Components) != 1 {
		t.Errorf("unexpected health %+v", got)
	}
}

func TestTableAndDocumentRoutes(t *testing.T) {
	ts, _ := newTestServer(t, server.Config{})
	base := ts.URL + "/tables"

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   apperrors.ErrorCode
	}{
		{"create table", http.MethodPost, "/test", nil, http.StatusCreated, ""},
		{"create duplicate", http.MethodPost, "/test", nil, http.StatusConflict, apperrors.ErrCodeAlreadyExists},
		{"invalid table name", http.MethodPost, "/bad-name", nil, http.StatusBadRequest, apperrors.ErrCodeInvalidInput},
		{"insert", http.MethodPost, "/test/docs", map[string]any{"id": 7, "value": "insert"}, http.StatusCreated, ""},
		{"insert duplicate", http.MethodPost, "/test/docs", map[string]any{"id": 7}, http.StatusConflict, apperrors.ErrCodeAlreadyExists},
		{"insert without body", http.MethodPost, "/test/docs", nil, http.StatusBadRequest, apperrors.ErrCodeInvalidInput},
		{"update", http.MethodPatch, "/test/docs/7", map[string]any{"value": "update"}, http.StatusOK, ""},
		{"replace", http.MethodPut, "/test/docs/7", map[string]any{"id": 7, "value": "replace"}, http.StatusOK, ""},
		{"replace mismatched id", http.MethodPut, "/test/docs/7", map[string]any{"id": 8}, http.StatusBadRequest, apperrors.ErrCodeInvalidInput},
		{"get", http.MethodGet, "/test/docs/7", nil, http.StatusOK, ""},
		{"scan", http.MethodGet, "/test/docs", nil, http.StatusOK, ""},
		{"delete", http.MethodDelete, "/test/docs/7", nil, http.StatusOK, ""},
		{"get deleted", http.MethodGet, "/test/docs/7", nil, http.StatusNotFound, apperrors.ErrCodeNotFound},
		{"unknown table", http.MethodGet, "/missing/docs", nil, http.StatusNotFound, apperrors.ErrCodeNotFound},
		{"drop table", http.MethodDelete, "/test", nil, http.StatusNoContent, ""},
		{"drop missing table", http.MethodDelete, "/test", nil, http.StatusNotFound, apperrors.ErrCodeNotFound},
	}

	for _, tt := range tests {
		resp, body := call(t, tt.method, base+tt.path, tt.body, nil)
		if resp.StatusCode != tt.status {
			t.Fatalf("%s: expected %d, got %d (%s)", tt.name, tt.status, resp.StatusCode, body)
		}
		if tt.code != "" {
			if got := errorCode(t, body); got != tt.code {
				t.Fatalf("%s: expected code %s, got %s", tt.name, tt.code, got)
			}
		}
	}
}

func TestDocumentBodies(t *testing.T) {
	ts, _ := newTestServer(t, server.Config{})
	base := ts.URL + "/tables/test"
	call(t, http.MethodPost, base, nil, nil)
	call(t, http.MethodPost, base+"/docs", map[string]any{"id": 2, "n": 2}, nil)
	call(t, http.MethodPost, base+"/docs", map[string]any{"id": 1, "n": 1}, nil)

	_, body := call(t, http.MethodPatch, base+"/docs/1", map[string]any{"extra": true}, nil)
	doc := dataOf[feed.Document](t, body)
	if doc["n"] != float64(1) || doc["extra"] != true {
		t.Errorf("expected merged document, got %v", doc)
	}

	_, body = call(t, http.MethodGet, base+"/docs", nil, nil)
	docs := dataOf[[]feed.Document](t, body)
	if len(docs) != 2 || docs[0].Key() != "1" || docs[1].Key() != "2" {
		t.Errorf("expected documents ordered by id, got %v", docs)
	}

	_, body = call(t, http.MethodGet, ts.URL+"/tables", nil, nil)
	if names := dataOf[[]string](t, body); len(names) != 1 || names[0] != "test" {
		t.Errorf("unexpected tables %v", names)
	}
}

func TestUnknownRoute(t *testing.T) {
	ts, _ := newTestServer(t, server.Config{})

	resp, body := call(t, http.MethodGet, ts.URL+"/nope", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	if code := errorCode(t, body); code != apperrors.ErrCodeNotFound {
		t.Errorf("expected NOT_FOUND, got %s", code)
	}
}

func TestAuth(t *testing.T) {
	cfg := server.Config{}
	cfg.Auth.Enabled = true
	cfg.Auth.Secret = testSecret
	cfg.Auth.Issuer = "feedcheck"
	ts, _ := newTestServer(t, cfg)

	resp, body := call(t, http.MethodGet, ts.URL+"/tables", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}
	if code := errorCode(t, body); code != apperrors.ErrCodeUnauthorized {
		t.Errorf("expected UNAUTHORIZED, got %s", code)
	}

	if resp, _ := call(t, http.MethodGet, ts.URL+"/health", nil, nil); resp.StatusCode != http.StatusOK {
		t.Errorf("expected /health to skip auth, got %d", resp.StatusCode)
	}

	claims := jwt.RegisteredClaims{
		Issuer:    "feedcheck",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	header := http.Header{"Authorization": {"Bearer " + token}}
	if resp, body := call(t, http.MethodGet, ts.URL+"/tables", nil, header); resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 with token, got %d (%s)", resp.StatusCode, body)
	}

	bad := http.Header{"Authorization": {"Bearer " + token + "x"}}
	resp, body = call(t, http.MethodGet, ts.URL+"/tables", nil, bad)
	if resp.StatusCode != http.StatusUnauthorized || errorCode(t, body) != apperrors.ErrCodeInvalidToken {
		t.Errorf("expected INVALID_TOKEN, got %d (%s)", resp.StatusCode, body)
	}
}

// sseEvent is one parsed server-sent event.
type sseEvent struct {
	name string
	data string
}

// readEvents parses the stream into a channel, skipping comments.
func readEvents(body io.Reader) <-chan sseEvent {
	out := make(chan sseEvent, 16)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(body)
		var ev sseEvent
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case line == "":
				if ev.name != "" || ev.data != "" {
					out <- ev
				}
				ev = sseEvent{}
			case strings.HasPrefix(line, "event: "):
				ev.name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				ev.data = strings.TrimPrefix(line, "data: ")
			}
		}
	}()
	return out
}

func nextEvent(t *testing.T, events <-chan sseEvent) sseEvent {
	t.Helper()
	select {
	case ev, ok := <-events:
		if !ok {
			t.Fatal("stream ended early")
		}
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return sseEvent{}
}

func openStream(t *testing.T, url string) (*http.Response, <-chan sseEvent) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp, readEvents(resp.Body)
}

func TestChangesStream(t *testing.T) {
	ts, store := newTestServer(t, server.Config{})
	ctx := context.Background()
	if err := store.CreateTable(ctx, "test"); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}

	resp, events := openStream(t, ts.URL+"/tables/test/changes")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("unexpected content type %q", ct)
	}

	ev := nextEvent(t, events)
	var connected server.ConnectedEvent
	if ev.name != server.EventConnected || json.Unmarshal([]byte(ev.data), &connected) != nil {
		t.Fatalf("expected connected event, got %+v", ev)
	}
	if connected.Table != "test" || connected.FeedID == "" {
		t.Errorf("unexpected connected event %+v", connected)
	}

	if _, err := store.Insert(ctx, "test", feed.Document{"id": 7, "value": "insert"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	ev = nextEvent(t, events)
	if ev.name != server.EventChange {
		t.Fatalf("expected change event, got %+v", ev)
	}
	p, err := feed.DecodePayload([]byte(ev.data))
	if err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	rec, err := p.Record()
	if err != nil || rec.Kind() != feed.KindInsert || rec.NewVal["value"] != "insert" {
		t.Fatalf("unexpected record %+v, %v", rec, err)
	}

	if err := store.DropTable(ctx, "test"); err != nil {
		t.Fatalf("DropTable: %v", err)
	}
	ev = nextEvent(t, events)
	if ev.name != server.EventError {
		t.Fatalf("expected error event, got %+v", ev)
	}
	p, err = feed.DecodePayload([]byte(ev.data))
	if err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if appErr := p.Err(); !apperrors.IsAborted(appErr) || appErr.Message != "Changefeed aborted (table unavailable)." {
		t.Fatalf("expected abort, got %v", appErr)
	}

	_ = store.Close()
	if ev = nextEvent(t, events); ev.name != server.EventEnd {
		t.Fatalf("expected end event, got %+v", ev)
	}
}

func TestChangesUnknownTable(t *testing.T) {
	ts, _ := newTestServer(t, server.Config{})

	resp, body := call(t, http.MethodGet, ts.URL+"/tables/missing/changes", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	if code := errorCode(t, body); code != apperrors.ErrCodeNotFound {
		t.Errorf("expected NOT_FOUND, got %s", code)
	}
}

func TestChangesKeepAlive(t *testing.T) {
	ts, store := newTestServer(t, server.Config{KeepAlive: 20 * time.Millisecond})
	if err := store.CreateTable(context.Background(), "test"); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}

	resp, err := http.Get(ts.URL + "/tables/test/changes")
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	deadline := time.After(5 * time.Second)
	found := make(chan struct{})
	go func() {
		for scanner.Scan() {
			if strings.HasPrefix(scanner.Text(), ": keepalive") {
				close(found)
				return
			}
		}
	}()
	select {
	case <-found:
	case <-deadline:
		t.Fatal("no keep-alive comment received")
	}
}

func TestServerLifecycle(t *testing.T) {
	cfg := server.Config{Host: "127.0.0.1"}
	cfg.ApplyDefaults()
	cfg.Port = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	srv := server.New(cfg, memtable.New(nil), nil, logger.Nop())
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if resp, _ := call(t, http.MethodGet, "http://"+srv.Addr()+"/health", nil, nil); resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 from started server, got %d", resp.StatusCode)
	}
	if h := srv.Health(context.Background()); h.Status != component.StatusHealthy {
		t.Errorf("expected healthy server, got %+v", h)
	}
	if err := srv.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := server.Config{}
	cfg.ApplyDefaults()
	cfg.Auth.Enabled = true
	cfg.Auth.Secret = "short"
	if err := cfg.Validate(); err == nil {
		t.Error("expected short secret to be rejected")
	}
	cfg.Auth.Secret = testSecret
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
