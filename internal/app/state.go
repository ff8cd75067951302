package app

import (
	"github.com/dkeye/pocketscrum/internal/domain"
)

// Store owns the session snapshot. Deltas are merged under one lock in
// arrival order; subscribers observe monotonically newer snapshots. Nothing
// outside this type mutates a SessionState.
type Store struct {
	feed *Feed[domain.SessionState]
}

func NewStore() *Store {
	return &Store{feed: NewFeed(domain.EmptySession())}
}

// Apply shallow-merges d into the current state and publishes the result.
func (s *Store) Apply(d domain.Delta) {
	s.feed.Update(func(cur domain.SessionState) domain.SessionState {
		return cur.Merge(d)
	})
}

// Current returns the latest snapshot without subscribing.
func (s *Store) Current() domain.SessionState {
	return s.feed.Get()
}

// Subscribe delivers the current snapshot immediately, then every newer one.
func (s *Store) Subscribe() (<-chan domain.SessionState, func()) {
	return s.feed.Subscribe()
}

// Reset drops the session back to the empty state.
func (s *Store) Reset() {
	s.feed.Publish(domain.EmptySession())
}
