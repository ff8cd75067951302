package domain

import (
	"errors"
	"strings"
)

type Phase string

const (
	PhaseVoting   Phase = "voting"
	PhaseRevealed Phase = "revealed"
)

// Deck is the fixed estimation scale, in display order.
var Deck = []int{1, 2, 3, 5, 8, 13, 21, 34, 55, 89}

// ValidCard reports whether v belongs to the estimation scale.
func ValidCard(v int) bool {
	for _, c := range Deck {
		if c == v {
			return true
		}
	}
	return false
}

const RoomCodeLen = 5

var ErrBadRoomCode = errors.New("room code must be exactly 5 letters or digits")

type RoomCode string

// NormalizeRoomCode upper-cases a raw code and validates its shape.
func NormalizeRoomCode(raw string) (RoomCode, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if len(code) != RoomCodeLen {
		return "", ErrBadRoomCode
	}
	for _, r := range code {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return "", ErrBadRoomCode
		}
	}
	return RoomCode(code), nil
}

// RoomUser is one participant exactly as the server last reported it.
// RevealedValue is non-nil only while the room phase is PhaseRevealed.
type RoomUser struct {
	Identity      Identity
	HasVoted      bool
	RevealedValue *int
}

// Room is the server's full room snapshot. Users keep server order.
type Room struct {
	Code  RoomCode
	Users []RoomUser
	Phase Phase
}
