package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/pocketscrum/internal/core"
	"github.com/dkeye/pocketscrum/internal/domain"
	"github.com/dkeye/pocketscrum/internal/protocol"
	"github.com/dkeye/pocketscrum/internal/storage"
)

// ErrFailedToConnect is the user-facing message for a dial that never got a
// connection up, as opposed to a server-reported protocol error.
var ErrFailedToConnect = errors.New("failed to connect to server, please try again")

// Gateway turns user intents into protocol messages. It is the only component
// allowed to open the connection; intents issued while a redial is in flight
// are queued and flushed, in order, once the connection is back.
type Gateway struct {
	conn    core.Transport
	store   *Store
	results *Feed[*domain.ResultSet]
	errs    *Feed[*SessionError]
	kv      storage.KV

	mu      sync.Mutex
	pending []outgoing
}

type outgoing struct {
	event   string
	payload any
}

func NewGateway(conn core.Transport, store *Store, results *Feed[*domain.ResultSet], errs *Feed[*SessionError], kv storage.KV) *Gateway {
	g := &Gateway{conn: conn, store: store, results: results, errs: errs, kv: kv}
	conn.OnUp(g.flush)
	return g
}

// CreateRoom validates the name, connects if needed and requests a new room.
// The room itself arrives asynchronously via the event stream.
func (g *Gateway) CreateRoom(ctx context.Context, rawName string) error {
	name, err := domain.NormalizeName(rawName)
	if err != nil {
		return g.reject(err)
	}
	if err := g.ensureOpen(ctx, name); err != nil {
		return err
	}
	g.remember(name)
	g.dispatch(protocol.MsgCreateRoom, struct{}{})
	return nil
}

// JoinRoom normalizes the code, connects if needed and requests membership.
func (g *Gateway) JoinRoom(ctx context.Context, rawCode, rawName string) error {
	name, err := domain.NormalizeName(rawName)
	if err != nil {
		return g.reject(err)
	}
	code, err := domain.NormalizeRoomCode(rawCode)
	if err != nil {
		return g.reject(err)
	}
	if err := g.ensureOpen(ctx, name); err != nil {
		return err
	}
	g.remember(name)
	g.dispatch(protocol.MsgJoinRoom, protocol.RoomRequest{RoomCode: string(code)})
	return nil
}

// CastVote sends the selection for the current round. No-op without a room.
func (g *Gateway) CastVote(card int) error {
	if !domain.ValidCard(card) {
		return g.reject(errors.New("card value is not on the estimation scale"))
	}
	room := g.store.Current().Room
	if room == nil {
		return nil
	}
	g.dispatch(protocol.MsgSelectCard, protocol.SelectCardRequest{RoomCode: string(room.Code), Card: card})
	return nil
}

// RequestReveal asks the server to flip the round to Revealed. Whether every
// user has voted is the server's call, not checked here.
func (g *Gateway) RequestReveal() {
	g.roomIntent(protocol.MsgRevealCards)
}

// RequestReset asks the server to start a fresh round.
func (g *Gateway) RequestReset() {
	g.roomIntent(protocol.MsgResetGame)
}

// LeaveRoom asks the server to drop our membership. Local state is cleared
// only when the leftRoom acknowledgement arrives, so a failed leave never
// leaves the UI claiming we are out of a room we are still in.
func (g *Gateway) LeaveRoom() {
	g.roomIntent(protocol.MsgLeaveRoom)
}

// ForceLeave clears local state unconditionally, without waiting for the
// server. Used when abandoning the identity entirely.
func (g *Gateway) ForceLeave() {
	g.store.Reset()
	g.results.Publish(nil)
	storage.ClearRecord(g.kv)
	log.Info().Str("module", "app.gateway").Msg("forced local leave")
}

func (g *Gateway) roomIntent(event string) {
	room := g.store.Current().Room
	if room == nil {
		return
	}
	g.dispatch(event, protocol.RoomRequest{RoomCode: string(room.Code)})
}

func (g *Gateway) ensureOpen(ctx context.Context, name string) error {
	if g.conn.IsOpen() {
		return nil
	}
	if err := g.conn.Open(ctx, name); err != nil {
		log.Error().Err(err).Str("module", "app.gateway").Msg("open failed")
		se := transportError(ErrFailedToConnect.Error(), err)
		g.errs.Publish(se)
		return se
	}
	return nil
}

func (g *Gateway) dispatch(event string, payload any) {
	err := g.conn.Send(event, payload)
	if err == nil {
		return
	}
	if errors.Is(err, core.ErrNotConnected) {
		g.mu.Lock()
		g.pending = append(g.pending, outgoing{event: event, payload: payload})
		g.mu.Unlock()
		log.Debug().Str("module", "app.gateway").Str("event", event).Msg("queued until reconnect")
		return
	}
	log.Error().Err(err).Str("module", "app.gateway").Str("event", event).Msg("send failed")
	g.errs.Publish(transportError(fmt.Sprintf("could not send %s, please retry", event), err))
}

// flush re-sends intents queued while the connection was down, in FIFO order.
func (g *Gateway) flush() {
	g.mu.Lock()
	queued := g.pending
	g.pending = nil
	g.mu.Unlock()
	for _, m := range queued {
		g.dispatch(m.event, m.payload)
	}
}

func (g *Gateway) remember(name string) {
	if err := storage.SaveName(g.kv, name); err != nil {
		log.Warn().Err(err).Str("module", "app.gateway").Msg("persist name")
	}
}

func (g *Gateway) reject(cause error) error {
	se := validationError(cause)
	g.errs.Publish(se)
	return se
}
