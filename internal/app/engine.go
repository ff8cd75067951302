package app

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/pocketscrum/internal/core"
	"github.com/dkeye/pocketscrum/internal/domain"
	"github.com/dkeye/pocketscrum/internal/protocol"
	"github.com/dkeye/pocketscrum/internal/storage"
)

// Engine wires transport events through the translator into the session,
// results and error feeds. Events are translated and applied on the transport
// read goroutine, so deltas land in strict arrival order.
type Engine struct {
	Store   *Store
	Results *Feed[*domain.ResultSet]
	Errors  *Feed[*SessionError]
	Gateway *Gateway
	Resumer *Resumer

	conn core.Transport
	kv   storage.KV
	now  func() time.Time
}

// NewEngine assembles the engine around a transport and a persistence store.
// resumeWindow bounds how old a persisted session may be and still be rejoined.
func NewEngine(conn core.Transport, kv storage.KV, resumeWindow time.Duration) *Engine {
	e := &Engine{
		Store:   NewStore(),
		Results: NewFeed[*domain.ResultSet](nil),
		Errors:  NewFeed[*SessionError](nil),
		conn:    conn,
		kv:      kv,
		now:     time.Now,
	}
	e.Gateway = NewGateway(conn, e.Store, e.Results, e.Errors, kv)
	e.Resumer = NewResumer(e.Gateway, e.Store, kv, resumeWindow)

	for _, evt := range protocol.InboundEvents {
		event := evt
		conn.OnEvent(event, func(data json.RawMessage) {
			e.handle(event, data)
		})
	}
	// A working connection supersedes any transport error on display.
	conn.OnUp(func() {
		if cur := e.Errors.Get(); cur != nil && cur.Kind == KindTransport {
			e.Errors.Publish(nil)
		}
	})
	conn.OnDown(func(err error) {
		e.Errors.Publish(transportError("connection to server lost", err))
	})
	return e
}

// ClearError dismisses the currently displayed error, if any.
func (e *Engine) ClearError() {
	e.Errors.Publish(nil)
}

// SetSelf injects the identity directly, bypassing the server. Used by
// name-change flows before a fresh join round-trips.
func (e *Engine) SetSelf(id domain.Identity) {
	e.Store.Apply(domain.Delta{Self: &id, SetSelf: true})
}

// Close shuts the transport down. The session state is left as-is; a client
// closing with intent calls Gateway.ForceLeave first.
func (e *Engine) Close() {
	e.conn.Close()
}

func (e *Engine) handle(event string, data json.RawMessage) {
	upd, err := protocol.Translate(event, data)
	if err != nil {
		log.Warn().Err(err).Str("module", "app.engine").Str("event", event).Msg("dropped event")
		return
	}
	if upd.Delta != nil {
		e.Store.Apply(*upd.Delta)
	}
	if upd.ClearResults {
		e.Results.Publish(nil)
	}
	if upd.Results != nil {
		e.Results.Publish(upd.Results)
	}
	if upd.ErrMessage != "" {
		e.Errors.Publish(protocolError(upd.ErrMessage))
	}
	e.persist(event)
}

// persist keeps the resumption record in step with membership
// acknowledgements: saved on entering a room, dropped on leaving it.
func (e *Engine) persist(event string) {
	switch event {
	case protocol.EvtRoomCreated, protocol.EvtRoomJoined:
		st := e.Store.Current()
		if st.Room == nil || st.Self == nil {
			return
		}
		if err := storage.SaveRecord(e.kv, st.Room.Code, st.Self.ID, e.now()); err != nil {
			log.Warn().Err(err).Str("module", "app.engine").Msg("persist room record")
		}
	case protocol.EvtLeftRoom:
		if e.Store.Current().Room == nil {
			storage.ClearRecord(e.kv)
		}
	}
}
