package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/pocketscrum/internal/core"
	"github.com/dkeye/pocketscrum/internal/protocol"
)

// fixture is a minimal estimation server: it accepts websocket upgrades,
// answers the join handshake with a joined event and records every frame.
type fixture struct {
	t        *testing.T
	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu       sync.Mutex
	frames   chan protocol.Envelope
	accepted chan *websocket.Conn
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fx := &fixture{
		t:        t,
		frames:   make(chan protocol.Envelope, 16),
		accepted: make(chan *websocket.Conn, 4),
	}
	fx.srv = httptest.NewServer(http.HandlerFunc(fx.handle))
	t.Cleanup(fx.srv.Close)
	return fx
}

func (fx *fixture) url() string {
	return "ws" + strings.TrimPrefix(fx.srv.URL, "http")
}

func (fx *fixture) handle(w http.ResponseWriter, r *http.Request) {
	ws, err := fx.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	fx.accepted <- ws
	for {
		var env protocol.Envelope
		if err := ws.ReadJSON(&env); err != nil {
			return
		}
		if env.Event == protocol.MsgJoin {
			var req protocol.JoinRequest
			_ = json.Unmarshal(env.Data, &req)
			fx.push(ws, protocol.EvtJoined, protocol.JoinedPayload{
				User: protocol.WireUser{ID: uuid.NewString(), Name: req.Username},
			})
		}
		fx.frames <- env
	}
}

func (fx *fixture) push(ws *websocket.Conn, event string, payload any) {
	data, err := json.Marshal(payload)
	require.NoError(fx.t, err)
	fx.mu.Lock()
	defer fx.mu.Unlock()
	_ = ws.WriteJSON(protocol.Envelope{Event: event, Data: data})
}

func (fx *fixture) nextFrame(t *testing.T) protocol.Envelope {
	t.Helper()
	select {
	case env := <-fx.frames:
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a frame")
		return protocol.Envelope{}
	}
}

func (fx *fixture) nextConn(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case ws := <-fx.accepted:
		return ws
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a connection")
		return nil
	}
}

func testOptions(url string) Options {
	return Options{
		URL:         url,
		DialTimeout: 2 * time.Second,
		RetryDelay:  20 * time.Millisecond,
		MaxRetries:  3,
	}
}

func TestOpenPerformsJoinHandshake(t *testing.T) {
	fx := newFixture(t)
	conn := New(testOptions(fx.url()))
	t.Cleanup(conn.Close)

	joined := make(chan protocol.JoinedPayload, 1)
	conn.OnEvent(protocol.EvtJoined, func(data json.RawMessage) {
		var p protocol.JoinedPayload
		require.NoError(t, json.Unmarshal(data, &p))
		joined <- p
	})

	require.NoError(t, conn.Open(context.Background(), "Alice"))
	assert.True(t, conn.IsOpen())
	fx.nextConn(t)

	env := fx.nextFrame(t)
	assert.Equal(t, protocol.MsgJoin, env.Event)
	var req protocol.JoinRequest
	require.NoError(t, json.Unmarshal(env.Data, &req))
	assert.Equal(t, "Alice", req.Username)

	select {
	case p := <-joined:
		assert.Equal(t, "Alice", p.User.Name)
		assert.NotEmpty(t, p.User.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("joined event never dispatched")
	}

	// A second Open on a live connection is a no-op.
	require.NoError(t, conn.Open(context.Background(), "Alice"))
}

func TestSendWhileClosed(t *testing.T) {
	conn := New(testOptions("ws://127.0.0.1:0"))
	err := conn.Send(protocol.MsgCreateRoom, struct{}{})
	require.ErrorIs(t, err, core.ErrNotConnected)
}

func TestSendAfterOpenIsDelivered(t *testing.T) {
	fx := newFixture(t)
	conn := New(testOptions(fx.url()))
	t.Cleanup(conn.Close)

	require.NoError(t, conn.Open(context.Background(), "Alice"))
	require.Equal(t, protocol.MsgJoin, fx.nextFrame(t).Event)

	require.NoError(t, conn.Send(protocol.MsgJoinRoom, protocol.RoomRequest{RoomCode: "AB1CD"}))
	env := fx.nextFrame(t)
	assert.Equal(t, protocol.MsgJoinRoom, env.Event)
	var req protocol.RoomRequest
	require.NoError(t, json.Unmarshal(env.Data, &req))
	assert.Equal(t, "AB1CD", req.RoomCode)
}

func TestCloseSuppressesRedial(t *testing.T) {
	fx := newFixture(t)
	conn := New(testOptions(fx.url()))

	require.NoError(t, conn.Open(context.Background(), "Alice"))
	fx.nextConn(t)
	conn.Close()
	conn.Close() // idempotent
	assert.False(t, conn.IsOpen())

	select {
	case <-fx.accepted:
		t.Fatal("intentional close must not redial")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestCloseDuringDialWins(t *testing.T) {
	dialStarted := make(chan struct{})
	release := make(chan struct{})
	accepted := make(chan *websocket.Conn, 1)
	var upgrader websocket.Upgrader
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(dialStarted)
		<-release
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		accepted <- ws
	}))
	t.Cleanup(srv.Close)

	conn := New(testOptions("ws" + strings.TrimPrefix(srv.URL, "http")))
	opened := make(chan error, 1)
	go func() { opened <- conn.Open(context.Background(), "Alice") }()

	// Close lands while the dial is still in flight; the late dial result
	// must be discarded, not installed.
	<-dialStarted
	conn.Close()
	close(release)

	require.NoError(t, <-opened)
	assert.False(t, conn.IsOpen())

	select {
	case ws := <-accepted:
		// The socket dies instead of delivering a join handshake.
		require.NoError(t, ws.SetReadDeadline(time.Now().Add(time.Second)))
		_, _, err := ws.ReadMessage()
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server never finished the upgrade")
	}
}

func TestRedialAfterServerDrop(t *testing.T) {
	fx := newFixture(t)
	conn := New(testOptions(fx.url()))
	t.Cleanup(conn.Close)

	ups := make(chan struct{}, 4)
	conn.OnUp(func() { ups <- struct{}{} })
	downed := make(chan error, 1)
	conn.OnDown(func(err error) { downed <- err })

	require.NoError(t, conn.Open(context.Background(), "Alice"))
	first := fx.nextConn(t)
	<-ups
	require.Equal(t, protocol.MsgJoin, fx.nextFrame(t).Event)

	// Kill the connection server-side; the client must come back on its own.
	require.NoError(t, first.Close())
	fx.nextConn(t)

	select {
	case <-ups:
	case <-time.After(2 * time.Second):
		t.Fatal("no up notification after redial")
	}
	// The join handshake is replayed with the remembered name.
	env := fx.nextFrame(t)
	require.Equal(t, protocol.MsgJoin, env.Event)
	var req protocol.JoinRequest
	require.NoError(t, json.Unmarshal(env.Data, &req))
	assert.Equal(t, "Alice", req.Username)

	select {
	case err := <-downed:
		t.Fatalf("unexpected down notification: %v", err)
	default:
	}
}

func TestRedialExhaustionReportsDown(t *testing.T) {
	fx := newFixture(t)
	conn := New(testOptions(fx.url()))
	t.Cleanup(conn.Close)

	downed := make(chan error, 1)
	conn.OnDown(func(err error) { downed <- err })

	require.NoError(t, conn.Open(context.Background(), "Alice"))
	fx.nextConn(t)

	// Take the whole server away so every redial attempt fails.
	fx.srv.CloseClientConnections()
	fx.srv.Close()

	select {
	case err := <-downed:
		require.ErrorIs(t, err, ErrRetriesExhausted)
	case <-time.After(3 * time.Second):
		t.Fatal("retries exhaustion never reported")
	}
	assert.False(t, conn.IsOpen())
}
