package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/changefeed/errors"
	"github.com/kbukum/changefeed/feed"
	"github.com/kbukum/changefeed/logger"
	"github.com/kbukum/changefeed/server/middleware"
)

// Change stream event names.
const (
	EventConnected = "connected"
	EventChange    = string(feed.PayloadChange)
	EventError     = string(feed.PayloadError)
	EventEnd       = "end"
)

// ConnectedEvent is the first event of every change stream. Writes issued
// after a client has seen it are delivered on the stream.
type ConnectedEvent struct {
	FeedID string `json:"feed_id"`
	Table  string `json:"table"`
}

// changes streams a table's changefeed as server-sent events. Each change
// or error is one event whose data is the payload envelope.
func (s *Server) changes(c *gin.Context) {
	table := c.Param("table")

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	stop := context.AfterFunc(s.streams, cancel)
	defer stop()

	opts := []feed.Option{feed.WithLogger(s.log)}
	if id := middleware.RequestIDFrom(ctx); id != "" {
		opts = append(opts, feed.WithID(id))
	}
	f, err := feed.Open(ctx, s.backend, feed.Request{Table: table}, opts...)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	defer f.Close()

	log := s.log.WithFields(logger.Fields(logger.FieldFeedID, f.ID(), logger.FieldTable, table))

	w := c.Writer
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		log.Warn("could not disable write deadline", logger.Fields(logger.FieldError, err.Error()))
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	connected, _ := json.Marshal(ConnectedEvent{FeedID: f.ID(), Table: table})
	if err := writeEvent(w, "", EventConnected, connected); err != nil {
		return
	}
	w.Flush()
	log.Debug("change stream connected")

	var seq uint64
	for {
		pctx, pcancel := context.WithTimeout(ctx, s.config.KeepAlive)
		rec, err := f.Next(pctx)
		pcancel()

		var p feed.Payload
		switch {
		case err == nil:
			if p, err = feed.ChangePayload(*rec); err != nil {
				p = feed.ErrorPayload(err)
			}
		case ctx.Err() != nil:
			log.Debug("change stream closed by client")
			return
		case errors.Is(err, context.DeadlineExceeded):
			if _, err := fmt.Fprintf(w, ": keepalive %d\n\n", time.Now().Unix()); err != nil {
				return
			}
			w.Flush()
			continue
		case apperrors.IsNoMoreElements(err), apperrors.IsCursorClosed(err):
			_ = writeEvent(w, "", EventEnd, []byte("{}"))
			w.Flush()
			log.Debug("change stream ended")
			return
		default:
			p = feed.ErrorPayload(err)
		}

		data, err := feed.EncodePayload(p)
		if err != nil {
			log.Error("encoding payload failed", logger.Fields(logger.FieldError, err.Error()))
			continue
		}
		seq++
		if err := writeEvent(w, strconv.FormatUint(seq, 10), string(p.Type), data); err != nil {
			return
		}
		w.Flush()
	}
}

// writeEvent writes one SSE event. data must not contain newlines.
func writeEvent(w io.Writer, id, event string, data []byte) error {
	if id != "" {
		if _, err := fmt.Fprintf(w, "id: %s\n", id); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
