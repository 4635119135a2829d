package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/0x-mperego/unimec-display/internal/broadcast"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	wsWriteWait      = 10 * time.Second
	wsMaxMessageSize = 512
)

var (
	sseHeartbeat = []byte(": heartbeat\n\n")
	sseDataStart = []byte("data: ")
	sseDataEnd   = []byte("\n\n")
)

// handleSSE streams playlist snapshots as server-sent events. Keep-alive
// frames are written as comments so clients ignore them.
func (s *Server) handleSSE(c echo.Context) error {
	ctx := c.Request().Context()

	sub, err := s.hub.Subscribe(ctx)
	if err != nil {
		return err
	}
	defer s.hub.Unsubscribe(sub)
	defer s.streamMetrics.Track("sse")()

	flusher, ok := c.Response().Writer.(http.Flusher)
	if !ok {
		return errors.New("streaming unsupported by response writer")
	}

	h := c.Response().Header()
	h.Set(echo.HeaderContentType, "text/event-stream")
	h.Set(echo.HeaderCacheControl, "no-cache")
	h.Set(echo.HeaderConnection, "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)
	flusher.Flush()

	slog.DebugContext(ctx, "SSE stream opened", "subscriber_id", sub.ID())

	w := c.Response().Writer
	for {
		select {
		case <-ctx.Done():
			slog.DebugContext(ctx, "SSE stream closed by client", "subscriber_id", sub.ID())
			return nil
		case <-sub.Done():
			slog.DebugContext(ctx, "SSE stream dropped by hub", "subscriber_id", sub.ID())
			return nil
		case frame := <-sub.Frames():
			if err := writeSSEFrame(w, frame); err != nil {
				slog.DebugContext(ctx, "SSE write failed", "subscriber_id", sub.ID(), "error", err)
				return nil
			}
			flusher.Flush()
		}
	}
}

func writeSSEFrame(w http.ResponseWriter, frame broadcast.Frame) error {
	if frame.Kind == broadcast.FrameKeepAlive {
		_, err := w.Write(sseHeartbeat)
		return err
	}
	for _, part := range [][]byte{sseDataStart, frame.Data, sseDataEnd} {
		if _, err := w.Write(part); err != nil {
			return err
		}
	}
	return nil
}

// handleWebSocket streams playlist snapshots as text messages. Keep-alive
// frames become websocket pings; the read deadline is refreshed by pongs.
func (s *Server) handleWebSocket(c echo.Context) error {
	sub, err := s.hub.Subscribe(c.Request().Context())
	if err != nil {
		return err
	}
	defer s.hub.Unsubscribe(sub)

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader has already written the error response.
		slog.WarnContext(c.Request().Context(), "WebSocket upgrade failed", "error", err)
		return nil
	}
	defer func() { _ = conn.Close() }()
	defer s.streamMetrics.Track("websocket")()

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	conn.SetReadLimit(wsMaxMessageSize)
	if pongWait := s.config.HubPulseInterval * 5 / 2; pongWait > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
	}

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	slog.DebugContext(ctx, "WebSocket stream opened", "subscriber_id", sub.ID())
	s.writeWebSocketFrames(ctx, conn, sub)

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	_ = conn.Close()
	<-readDone

	slog.DebugContext(ctx, "WebSocket stream closed", "subscriber_id", sub.ID())
	return nil
}

func (s *Server) writeWebSocketFrames(ctx context.Context, conn *websocket.Conn, sub *broadcast.Subscriber) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Done():
			return
		case frame := <-sub.Frames():
			var err error
			if frame.Kind == broadcast.FrameKeepAlive {
				err = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
			} else {
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				err = conn.WriteMessage(websocket.TextMessage, frame.Data)
			}
			if err != nil {
				slog.DebugContext(ctx, "WebSocket write failed", "subscriber_id", sub.ID(), "error", err)
				return
			}
		}
	}
}
