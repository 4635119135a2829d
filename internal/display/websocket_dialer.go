package display

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/0x-mperego/unimec-display/internal/domain"
	"github.com/0x-mperego/unimec-display/internal/platform/version"
	"github.com/gorilla/websocket"
)

const (
	streamPath       = "/ws/contents"
	handshakeTimeout = 10 * time.Second
	pongWriteWait    = 5 * time.Second
)

// WebsocketDialer opens the server's websocket playlist stream. The server
// pings once per pulse interval; a stream that stays silent for 2.5 pulse
// intervals counts as dead.
type WebsocketDialer struct {
	url         string
	header      http.Header
	dialer      *websocket.Dialer
	readTimeout time.Duration
}

func NewWebsocketDialer(serverURL string, pulseInterval time.Duration) (*WebsocketDialer, error) {
	u, err := endpoint(serverURL, streamPath)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}

	return &WebsocketDialer{
		url:    u.String(),
		header: http.Header{"User-Agent": []string{version.UserAgent("display")}},
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
		readTimeout: pulseInterval * 5 / 2,
	}, nil
}

func (d *WebsocketDialer) Dial(ctx context.Context) (Stream, error) {
	conn, resp, err := d.dialer.DialContext(ctx, d.url, d.header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to open playlist stream: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("failed to open playlist stream: %w", err)
	}

	s := &wsStream{conn: conn, readTimeout: d.readTimeout}
	s.extendDeadline()
	conn.SetPingHandler(func(data string) error {
		s.extendDeadline()
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(pongWriteWait))
		if err == websocket.ErrCloseSent {
			return nil
		}
		return err
	})
	return s, nil
}

type wsStream struct {
	conn        *websocket.Conn
	readTimeout time.Duration
}

func (s *wsStream) Recv() (domain.Snapshot, error) {
	for {
		kind, data, err := s.conn.ReadMessage()
		if err != nil {
			return domain.Snapshot{}, fmt.Errorf("failed to read playlist stream: %w", err)
		}
		s.extendDeadline()
		if kind != websocket.TextMessage {
			continue
		}

		var snap domain.Snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return domain.Snapshot{}, fmt.Errorf("failed to decode snapshot: %w", err)
		}
		if snap.Kind != domain.SnapshotKind {
			continue
		}
		return snap, nil
	}
}

func (s *wsStream) Close() error {
	return s.conn.Close()
}

func (s *wsStream) extendDeadline() {
	if s.readTimeout > 0 {
		_ = s.conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	}
}

// endpoint resolves path against the server base URL.
func endpoint(serverURL, path string) (*url.URL, error) {
	base, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL %q: %w", serverURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid server URL %q: scheme and host are required", serverURL)
	}
	return base.JoinPath(path), nil
}
