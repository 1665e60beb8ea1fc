package plot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/raykavin/nsechart/pkg/core"
	"github.com/raykavin/nsechart/pkg/feed"
	"github.com/raykavin/nsechart/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	loadWait   = 30 * time.Second
)

// Message types exchanged over the websocket
const (
	MessageLoad    = "load"
	MessageToggles = "toggles"
	MessageResize  = "resize"
	MessageChart   = "chart"
	MessageDispose = "dispose"
	MessageError   = "error"
)

// WebSocketMessage represents a message sent over WebSocket
type WebSocketMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// ClientMessage is a request sent by the browser client
type ClientMessage struct {
	Type     string `json:"type"`
	Ticker   string `json:"ticker,omitempty"`
	Period   string `json:"period,omitempty"`
	Interval string `json:"interval,omitempty"`
	Toggles  string `json:"toggles,omitempty"`
	Theme    string `json:"theme,omitempty"`
	Compare  string `json:"compare,omitempty"`
	Width    int    `json:"width,omitempty"`
	Viewport int    `json:"viewport,omitempty"`
}

type resizePayload struct {
	ID    uint64 `json:"id"`
	Width int    `json:"width"`
}

type disposePayload struct {
	ID uint64 `json:"id"`
}

// session is one browser chart: the websocket is its container and the sink of
// its manager. Everything but reading happens on the goroutine running run.
type session struct {
	id      int64
	conn    *websocket.Conn
	server  *Server
	log     logger.Logger
	manager *Manager

	width     int
	viewport  int
	listeners map[int]func()
	nextID    int

	ticker  string
	bars    []core.Bar
	compare *core.Comparison
}

func newSession(id int64, conn *websocket.Conn, server *Server) *session {
	s := &session{
		id:        id,
		conn:      conn,
		server:    server,
		log:       server.log.WithField("session", id),
		width:     server.width,
		viewport:  server.width,
		listeners: make(map[int]func()),
	}
	s.manager = NewManager(s, WithLogger(s.log), WithSink(s), WithEMASeed(server.seed))
	return s
}

func (s *session) Width() int         { return s.width }
func (s *session) ViewportWidth() int { return s.viewport }

func (s *session) OnResize(fn func()) func() {
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() { delete(s.listeners, id) }
}

func (s *session) Mounted(instance *Instance) {
	s.send(MessageChart, instance.Snapshot())
}

func (s *session) Resized(instance *Instance) {
	s.send(MessageResize, resizePayload{ID: instance.ID(), Width: instance.Width()})
}

func (s *session) Disposed(id uint64) {
	s.send(MessageDispose, disposePayload{ID: id})
}

func (s *session) send(kind string, payload any) {
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		s.log.WithError(err).Debug("failed to set write deadline")
	}
	if err := s.conn.WriteJSON(WebSocketMessage{Type: kind, Payload: payload}); err != nil {
		s.log.WithError(err).Debug("failed to send websocket message")
	}
}

// run serves the session until the client leaves or ctx is done
func (s *session) run(ctx context.Context) {
	defer s.conn.Close()
	defer s.manager.Close()

	messages := make(chan ClientMessage)
	go s.read(ctx, messages)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deadline := time.Now().Add(writeWait)
			if err := s.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				s.log.WithError(err).Debug("ping failed")
				return
			}
		case msg, ok := <-messages:
			if !ok {
				return
			}
			if err := s.handle(ctx, msg); err != nil {
				s.log.WithError(err).Warn("websocket request failed")
				s.send(MessageError, err.Error())
			}
		}
	}
}

func (s *session) read(ctx context.Context, messages chan<- ClientMessage) {
	defer close(messages)

	s.conn.SetReadLimit(64 * 1024)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg ClientMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.WithError(err).Debug("websocket read error")
			}
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))

		select {
		case messages <- msg:
		case <-ctx.Done():
			return
		}
	}
}

func (s *session) handle(ctx context.Context, msg ClientMessage) error {
	switch msg.Type {
	case MessageLoad:
		return s.load(ctx, msg)
	case MessageToggles:
		toggles, err := s.server.parseToggles(msg.Toggles, msg.Theme)
		if err != nil {
			return err
		}
		s.update(toggles)
		return nil
	case MessageResize:
		s.resize(msg.Width, msg.Viewport)
		return nil
	default:
		return fmt.Errorf("unknown message type %q", msg.Type)
	}
}

func (s *session) load(ctx context.Context, msg ClientMessage) error {
	toggles, err := s.server.parseToggles(msg.Toggles, msg.Theme)
	if err != nil {
		return err
	}

	ticker, err := feed.NormalizeTicker(msg.Ticker)
	if err != nil {
		return err
	}

	period, interval := s.server.window(msg.Period, msg.Interval)

	ctx, cancel := context.WithTimeout(ctx, loadWait)
	defer cancel()

	bars, err := s.server.source.History(ctx, ticker, period, interval)
	if err != nil {
		return err
	}

	var compare *core.Comparison
	if msg.Compare != "" {
		compare, err = feed.Comparison(ctx, s.server.source, msg.Compare, period, interval)
		if err != nil {
			return err
		}
	}

	if msg.Width > 0 {
		s.width = msg.Width
	}
	if msg.Viewport > 0 {
		s.viewport = msg.Viewport
	}

	s.ticker, s.bars, s.compare = ticker, bars, compare
	s.log.WithFields(map[string]any{
		"ticker": ticker,
		"bars":   len(bars),
		"period": period,
	}).Info("history loaded")

	s.update(toggles)
	if len(bars) == 0 {
		return fmt.Errorf("%w: %s", errNoHistory, ticker)
	}
	return nil
}

func (s *session) update(toggles core.ToggleSet) {
	toggles.Comparison = s.compare
	s.manager.Update(Inputs{Bars: s.bars, Toggles: toggles})
}

func (s *session) resize(width, viewport int) {
	if width > 0 {
		s.width = width
	}
	if viewport > 0 {
		s.viewport = viewport
	}

	for _, fn := range s.listeners {
		fn()
	}
}

var errNoHistory = errors.New("no history")
