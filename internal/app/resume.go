package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/pocketscrum/internal/storage"
)

// Resumer rejoins the previously held room once at startup, if the persisted
// record is still inside the freshness window. Safe to invoke more than once:
// a held room short-circuits before any join is issued.
type Resumer struct {
	gateway *Gateway
	store   *Store
	kv      storage.KV
	window  time.Duration
	now     func() time.Time
}

func NewResumer(gateway *Gateway, store *Store, kv storage.KV, window time.Duration) *Resumer {
	return &Resumer{
		gateway: gateway,
		store:   store,
		kv:      kv,
		window:  window,
		now:     time.Now,
	}
}

// Resume inspects persisted identity and room data and issues at most one
// join. Stale records are deleted, not resumed.
func (r *Resumer) Resume(ctx context.Context) error {
	if r.store.Current().Room != nil {
		return nil
	}
	name, ok := storage.LoadName(r.kv)
	if !ok {
		return nil
	}
	rec, ok := storage.LoadRecord(r.kv)
	if !ok {
		return nil
	}
	if !rec.FreshAt(r.now(), r.window) {
		storage.ClearRecord(r.kv)
		log.Info().Str("module", "app.resume").Str("room", rec.RoomCode).Msg("stale session discarded")
		return nil
	}
	log.Info().Str("module", "app.resume").Str("room", rec.RoomCode).Str("name", name).Msg("resuming session")
	return r.gateway.JoinRoom(ctx, rec.RoomCode, name)
}
