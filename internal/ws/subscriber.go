package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/gorilla/websocket"

	"github.com/maticvigil/vigil-go/internal/logger"
)

// Payload types pushed by the gateway.
const (
	TypeEvent       = "event"
	TypeContractMon = "contractmon"
	TypeOTM         = "otm"
)

const (
	commandRegister    = "register"
	commandRegisterAck = "register:ack"
)

var ErrNotAcknowledged = errors.New("websocket registration was not acknowledged")

// Payload is one update pushed over the websocket: an event emitted by a
// contract, or a transaction confirmation.
type Payload struct {
	Type      string          `json:"type"`
	TxHash    string          `json:"txHash"`
	Contract  string          `json:"contract,omitempty"`
	EventName string          `json:"event_name,omitempty"`
	EventData json.RawMessage `json:"event_data,omitempty"`
	Ctime     json.Number     `json:"ctime,omitempty"`

	// Raw is the message as received.
	Raw json.RawMessage `json:"-"`
}

// IsConfirmation reports whether p confirms a transaction or deployment.
func (p *Payload) IsConfirmation() bool {
	return p.Type == TypeContractMon || p.Type == TypeOTM
}

type Config struct {
	// HandshakeTimeout bounds the websocket handshake.
	HandshakeTimeout time.Duration
	// AckTimeout bounds the wait for register:ack.
	AckTimeout time.Duration
	// PingInterval is how often a ping is sent. The connection is dropped when
	// no pong arrives within two intervals.
	PingInterval time.Duration
	// ReconnectDelay is the base of the reconnect backoff, MaxReconnectDelay
	// its cap.
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
}

var DefaultConfig = Config{
	HandshakeTimeout:  10 * time.Second,
	AckTimeout:        10 * time.Second,
	PingInterval:      20 * time.Second,
	ReconnectDelay:    time.Second,
	MaxReconnectDelay: 60 * time.Second,
}

// Handler receives every payload in arrival order.
type Handler func(Payload)

// Subscriber keeps a registered websocket session open and hands payloads to
// a Handler.
type Subscriber struct {
	url     string
	readKey string
	handler Handler
	cfg     Config
	lggr    logger.Logger
}

func NewSubscriber(url, readKey string, handler Handler, lggr logger.Logger, cfg Config) *Subscriber {
	return &Subscriber{
		url:     url,
		readKey: readKey,
		handler: handler,
		cfg:     cfg,
		lggr:    lggr.Named("ws"),
	}
}

// Run connects and reconnects until ctx is done.
func (s *Subscriber) Run(ctx context.Context) error {
	err := retry.Do(
		func() error { return s.session(ctx) },
		retry.Context(ctx),
		retry.Attempts(0),
		retry.Delay(s.cfg.ReconnectDelay),
		retry.MaxDelay(s.cfg.MaxReconnectDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			s.lggr.Warnw("Websocket session ended, reconnecting", "attempt", n+1, "err", err)
		}),
	)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// session runs a single connection. It returns nil only when ctx is done.
func (s *Subscriber) session(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: s.cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("error dialing %s: %w", s.url, err)
	}
	defer conn.Close()

	if err := s.register(conn); err != nil {
		return err
	}
	s.lggr.Infow("Websocket registered", "url", s.url)

	pongWait := 2 * s.cfg.PingInterval
	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return fmt.Errorf("error setting read deadline: %w", err)
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	sessCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.keepAlive(sessCtx, conn)
	}()
	defer func() {
		cancel()
		wg.Wait()
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return fmt.Errorf("error reading from websocket: %w", err)
		}
		if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			return fmt.Errorf("error setting read deadline: %w", err)
		}
		s.dispatch(msg)
	}
}

func (s *Subscriber) register(conn *websocket.Conn) error {
	if err := conn.WriteJSON(map[string]string{"command": commandRegister, "key": s.readKey}); err != nil {
		return fmt.Errorf("error sending registration: %w", err)
	}

	if err := conn.SetReadDeadline(time.Now().Add(s.cfg.AckTimeout)); err != nil {
		return fmt.Errorf("error setting read deadline: %w", err)
	}
	var ack struct {
		Command string `json:"command"`
	}
	if err := conn.ReadJSON(&ack); err != nil {
		return fmt.Errorf("error reading registration ack: %w", err)
	}
	if ack.Command != commandRegisterAck {
		return fmt.Errorf("%w: got %q", ErrNotAcknowledged, ack.Command)
	}
	return nil
}

// keepAlive pings until ctx is done, then closes the connection so that the
// read loop returns.
func (s *Subscriber) keepAlive(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			deadline := time.Now().Add(time.Second)
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			_ = conn.Close()
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.cfg.PingInterval)); err != nil {
				s.lggr.Debugw("Ping failed", "err", err)
			}
		}
	}
}

func (s *Subscriber) dispatch(msg []byte) {
	var control struct {
		Command string `json:"command"`
	}
	if err := json.Unmarshal(msg, &control); err != nil {
		s.lggr.Warnw("Malformed websocket message", "message", string(msg), "err", err)
		return
	}
	if control.Command != "" {
		s.lggr.Debugw("Websocket control message", "command", control.Command)
		return
	}

	var p Payload
	if err := json.Unmarshal(msg, &p); err != nil {
		s.lggr.Warnw("Malformed websocket payload", "message", string(msg), "err", err)
		return
	}
	p.Raw = msg
	s.handler(p)
}
