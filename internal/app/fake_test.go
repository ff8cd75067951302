package app

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dkeye/pocketscrum/internal/core"
)

// fakeTransport records opens and sends and lets tests inject inbound events
// and connection lifecycle callbacks.
type fakeTransport struct {
	mu       sync.Mutex
	open     bool
	failOpen error
	sendErr  error
	opens    []string
	sent     []sentMsg
	handlers map[string]core.EventHandler
	ups      []func()
	downs    []func(error)
}

type sentMsg struct {
	event   string
	payload any
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{handlers: make(map[string]core.EventHandler)}
}

func (f *fakeTransport) Open(_ context.Context, name string) error {
	f.mu.Lock()
	f.opens = append(f.opens, name)
	if f.failOpen != nil {
		err := f.failOpen
		f.mu.Unlock()
		return err
	}
	f.open = true
	f.mu.Unlock()
	f.fireUp()
	return nil
}

func (f *fakeTransport) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.open = false
}

func (f *fakeTransport) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

func (f *fakeTransport) Send(event string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	if !f.open {
		return core.ErrNotConnected
	}
	f.sent = append(f.sent, sentMsg{event: event, payload: payload})
	return nil
}

func (f *fakeTransport) OnEvent(event string, h core.EventHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[event] = h
}

func (f *fakeTransport) OnUp(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ups = append(f.ups, fn)
}

func (f *fakeTransport) OnDown(fn func(err error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.downs = append(f.downs, fn)
}

func (f *fakeTransport) fireUp() {
	f.mu.Lock()
	ups := append([]func(){}, f.ups...)
	f.mu.Unlock()
	for _, fn := range ups {
		fn()
	}
}

func (f *fakeTransport) fireDown(err error) {
	f.mu.Lock()
	downs := append([]func(error){}, f.downs...)
	f.mu.Unlock()
	for _, fn := range downs {
		fn(err)
	}
}

func (f *fakeTransport) handler(event string) core.EventHandler {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handlers[event]
}

// emit delivers one inbound event as the read pump would.
func (f *fakeTransport) emit(t *testing.T, event string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	f.mu.Lock()
	h := f.handlers[event]
	f.mu.Unlock()
	require.NotNil(t, h, "no handler for %s", event)
	h(data)
}

func (f *fakeTransport) sentEvents() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, m := range f.sent {
		out = append(out, m.event)
	}
	return out
}
