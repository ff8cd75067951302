// Package core declares the ports shared between the engine packages.
package core

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrNotConnected is returned by Transport.Send while no connection is up.
// Callers decide whether to queue the message or drop the intent.
var ErrNotConnected = errors.New("not connected")

// EventHandler consumes the raw JSON payload of one named inbound event.
type EventHandler func(data json.RawMessage)

// Transport owns the realtime connection to the estimation server.
// Implementations must be safe for concurrent use.
type Transport interface {
	// Open establishes the connection if none is active and sends the join
	// handshake carrying name. It returns only once the handshake completed,
	// so a Send issued after a successful Open cannot race the dial.
	// No-op when already connected.
	Open(ctx context.Context, name string) error
	// Close tears the connection down and suppresses any redial.
	Close()
	IsOpen() bool
	// Send transmits one named message; ErrNotConnected while down.
	Send(event string, payload any) error
	// OnEvent registers the handler for a named inbound event.
	// One handler per name; a later call replaces the earlier one.
	OnEvent(event string, h EventHandler)
	// OnUp registers a callback fired after every successful (re)connect,
	// after the join handshake has been queued.
	OnUp(fn func())
	// OnDown registers a callback fired when the connection is lost for good
	// (redial attempts exhausted or the dial context canceled).
	OnDown(fn func(err error))
}
