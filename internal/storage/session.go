package storage

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/pocketscrum/internal/domain"
)

// Storage keys. The values under them are opaque to the KV itself.
const (
	KeyUserName = "pocketscrum.username"
	KeyRoom     = "pocketscrum.room"
)

// Record remembers the last joined room for resumption after a reload.
type Record struct {
	RoomCode  string `json:"roomCode"`
	UserID    string `json:"userId"`
	Timestamp int64  `json:"timestamp"` // unix milliseconds
}

// FreshAt reports whether the record is still inside the resumption window.
func (r Record) FreshAt(now time.Time, window time.Duration) bool {
	saved := time.UnixMilli(r.Timestamp)
	return now.Sub(saved) < window
}

func SaveName(kv KV, name string) error {
	return kv.Set(KeyUserName, name)
}

func LoadName(kv KV) (string, bool) {
	return kv.Get(KeyUserName)
}

func ClearName(kv KV) {
	kv.Remove(KeyUserName)
}

func SaveRecord(kv KV, code domain.RoomCode, id domain.UserID, now time.Time) error {
	data, err := json.Marshal(Record{
		RoomCode:  string(code),
		UserID:    string(id),
		Timestamp: now.UnixMilli(),
	})
	if err != nil {
		return err
	}
	return kv.Set(KeyRoom, string(data))
}

// LoadRecord reads the persisted room record. A corrupt record is deleted and
// reported as absent.
func LoadRecord(kv KV) (Record, bool) {
	raw, ok := kv.Get(KeyRoom)
	if !ok {
		return Record{}, false
	}
	var r Record
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		log.Warn().Err(err).Str("module", "storage").Msg("corrupt room record dropped")
		kv.Remove(KeyRoom)
		return Record{}, false
	}
	return r, true
}

func ClearRecord(kv KV) {
	kv.Remove(KeyRoom)
}
