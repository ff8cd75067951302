// Package transport owns the websocket connection to the estimation server:
// dialing, the read/write pumps, and the bounded redial loop.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/sethvargo/go-retry"

	"github.com/dkeye/pocketscrum/internal/core"
	"github.com/dkeye/pocketscrum/internal/protocol"
)

var (
	ErrBackpressure     = errors.New("backpressure")
	ErrRetriesExhausted = errors.New("connection lost and retries exhausted")
)

const (
	writeWait     = 5 * time.Second
	sendQueueSize = 32
)

// Options carries the connection constants from config.
type Options struct {
	URL         string
	DialTimeout time.Duration
	RetryDelay  time.Duration
	MaxRetries  uint64
}

// Conn implements core.Transport over a single websocket. On an unexpected
// read failure it redials with a fixed delay up to MaxRetries times, replaying
// only the join handshake; re-establishing room membership is the caller's job.
type Conn struct {
	opts Options

	mu      sync.Mutex
	ws      *websocket.Conn
	send    chan []byte
	open    bool
	dialing bool
	closing bool
	name    string

	hmu      sync.RWMutex
	handlers map[string]core.EventHandler
	upFns    []func()
	downFns  []func(error)
}

func New(opts Options) *Conn {
	return &Conn{
		opts:     opts,
		handlers: make(map[string]core.EventHandler),
	}
}

func (c *Conn) OnEvent(event string, h core.EventHandler) {
	c.hmu.Lock()
	defer c.hmu.Unlock()
	c.handlers[event] = h
}

func (c *Conn) OnUp(fn func()) {
	c.hmu.Lock()
	defer c.hmu.Unlock()
	c.upFns = append(c.upFns, fn)
}

func (c *Conn) OnDown(fn func(err error)) {
	c.hmu.Lock()
	defer c.hmu.Unlock()
	c.downFns = append(c.downFns, fn)
}

func (c *Conn) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// Open dials the server and sends the join handshake for name. It returns
// once the websocket handshake has completed; no-op when already connected
// or when a dial is in flight.
func (c *Conn) Open(ctx context.Context, name string) error {
	c.mu.Lock()
	if c.open || c.dialing {
		c.mu.Unlock()
		return nil
	}
	c.dialing = true
	c.closing = false
	c.name = name
	c.mu.Unlock()

	ws, err := c.dial(ctx)
	if err != nil {
		c.mu.Lock()
		c.dialing = false
		c.mu.Unlock()
		return fmt.Errorf("dial %s: %w", c.opts.URL, err)
	}
	c.start(ctx, ws)
	return nil
}

// Close tears the connection down and suppresses the redial loop. Idempotent.
func (c *Conn) Close() {
	c.mu.Lock()
	c.closing = true
	if !c.open {
		c.mu.Unlock()
		return
	}
	c.open = false
	ws := c.ws
	c.ws = nil
	close(c.send)
	c.mu.Unlock()

	_ = ws.Close()
	log.Info().Str("module", "transport").Msg("connection closed")
}

// Send frames payload in an envelope and queues it for the write pump.
func (c *Conn) Send(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", event, err)
	}
	frame, err := json.Marshal(protocol.Envelope{Event: event, Data: data})
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", event, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return core.ErrNotConnected
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return ErrBackpressure
	}
}

func (c *Conn) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: c.opts.DialTimeout}
	ws, _, err := dialer.DialContext(ctx, c.opts.URL, nil)
	return ws, err
}

// start installs a fresh websocket, spins up the pumps and replays the join
// handshake before notifying up-subscribers, so the handshake is always first
// in the outbound queue. Returns false when a Close issued while the dial was
// in flight won the race; the socket is then discarded instead of installed.
func (c *Conn) start(ctx context.Context, ws *websocket.Conn) bool {
	c.mu.Lock()
	if c.closing {
		c.dialing = false
		c.mu.Unlock()
		_ = ws.Close()
		log.Info().Str("module", "transport").Msg("dial result discarded after close")
		return false
	}
	c.ws = ws
	c.send = make(chan []byte, sendQueueSize)
	c.open = true
	c.dialing = false
	name := c.name
	send := c.send
	c.mu.Unlock()

	go c.writePump(ws, send)
	go c.readPump(ctx, ws)

	if err := c.Send(protocol.MsgJoin, protocol.JoinRequest{Username: name}); err != nil {
		log.Error().Err(err).Str("module", "transport").Msg("join handshake send")
	}
	log.Info().Str("module", "transport").Str("url", c.opts.URL).Msg("connection established")

	c.hmu.RLock()
	ups := append([]func(){}, c.upFns...)
	c.hmu.RUnlock()
	for _, fn := range ups {
		fn()
	}
	return true
}

func (c *Conn) writePump(ws *websocket.Conn, send <-chan []byte) {
	for data := range send {
		if err := ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			log.Error().Err(err).Str("module", "transport").Msg("writePump set deadline")
			return
		}
		if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Error().Err(err).Str("module", "transport").Msg("writePump write error")
			return
		}
	}
}

func (c *Conn) readPump(ctx context.Context, ws *websocket.Conn) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			c.onReadError(ctx, ws, err)
			return
		}
		c.dispatch(data)
	}
}

func (c *Conn) dispatch(data []byte) {
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "transport").Msg("bad json frame")
		return
	}
	c.hmu.RLock()
	h := c.handlers[env.Event]
	c.hmu.RUnlock()
	if h == nil {
		log.Warn().Str("module", "transport").Str("event", env.Event).Msg("unhandled event")
		return
	}
	h(env.Data)
}

func (c *Conn) onReadError(ctx context.Context, ws *websocket.Conn, err error) {
	c.mu.Lock()
	if c.ws != ws {
		// A stale pump from a connection already torn down.
		c.mu.Unlock()
		return
	}
	c.open = false
	c.ws = nil
	close(c.send)
	closing := c.closing
	c.mu.Unlock()
	_ = ws.Close()

	if closing {
		return
	}
	log.Warn().Err(err).Str("module", "transport").Msg("connection lost, redialing")
	go c.redial(ctx)
}

// redial retries with a fixed delay up to MaxRetries attempts. Success walks
// the normal start path (join handshake, up-callbacks); exhaustion is reported
// through the down-callbacks and requires explicit user action to recover.
func (c *Conn) redial(ctx context.Context) {
	b := retry.WithMaxRetries(c.opts.MaxRetries, retry.NewConstant(c.opts.RetryDelay))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		c.mu.Lock()
		if c.closing {
			c.mu.Unlock()
			return nil
		}
		c.mu.Unlock()

		ws, err := c.dial(ctx)
		if err != nil {
			log.Warn().Err(err).Str("module", "transport").Msg("redial attempt failed")
			return retry.RetryableError(err)
		}
		c.start(ctx, ws)
		return nil
	})
	if err == nil {
		return
	}
	log.Error().Err(err).Str("module", "transport").Msg("redial gave up")

	c.hmu.RLock()
	downs := append([]func(error){}, c.downFns...)
	c.hmu.RUnlock()
	for _, fn := range downs {
		fn(fmt.Errorf("%w: %w", ErrRetriesExhausted, err))
	}
}
