package client

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/example/date-booking/internal/wire"
)

// StreamConfig configures a Stream.
type StreamConfig struct {
	URL          string
	UserID       string
	Topics       []string
	Dialer       *websocket.Dialer
	InitialDelay time.Duration
	MaxDelay     time.Duration

	// ReadTimeout bounds the silence between frames or pings before the
	// connection is treated as dead. The server pings every 54 seconds.
	ReadTimeout time.Duration
	Logger      *slog.Logger
}

const pongWriteWait = 10 * time.Second

// Stream keeps a websocket open to the realtime endpoint, reconnecting with
// exponential backoff.
type Stream struct {
	cfg StreamConfig
}

// NewStream applies defaults to cfg.
func NewStream(cfg StreamConfig) *Stream {
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = 500 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 60 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Stream{cfg: cfg}
}

// Run delivers frames to handle until ctx is done. onConnect runs after every
// successful (re)subscription with reconnect set for all but the first.
func (s *Stream) Run(ctx context.Context, handle func(wire.Frame), onConnect func(reconnect bool)) error {
	logger := s.cfg.Logger.With("component", "client.Stream", "user_id", s.cfg.UserID)
	delay := s.cfg.InitialDelay
	connected := false

	for {
		err := s.session(ctx, handle, func() {
			delay = s.cfg.InitialDelay
			if onConnect != nil {
				onConnect(connected)
			}
			connected = true
		})
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.WarnContext(ctx, "realtime connection lost", "error", err, "retry_in", delay)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > s.cfg.MaxDelay {
			delay = s.cfg.MaxDelay
		}
	}
}

func (s *Stream) session(ctx context.Context, handle func(wire.Frame), connected func()) error {
	header := http.Header{}
	header.Set("X-User-ID", s.cfg.UserID)
	conn, _, err := s.cfg.Dialer.DialContext(ctx, s.cfg.URL, header)
	if err != nil {
		return err
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for _, topic := range s.cfg.Topics {
		if err := conn.WriteJSON(wire.Frame{Type: wire.FrameSubscribe, Topic: topic}); err != nil {
			return err
		}
	}
	connected()

	extend := func() error { return conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout)) }
	if err := extend(); err != nil {
		return err
	}
	conn.SetPingHandler(func(appData string) error {
		if err := extend(); err != nil {
			return err
		}
		err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(pongWriteWait))
		if err == websocket.ErrCloseSent {
			return nil
		}
		return err
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if err := extend(); err != nil {
			return err
		}
		var frame wire.Frame
		if err := json.Unmarshal(data, &frame); err != nil || frame.Type == "" {
			s.cfg.Logger.Warn("dropping malformed realtime frame", "user_id", s.cfg.UserID, "error", err)
			continue
		}
		handle(frame)
	}
}
