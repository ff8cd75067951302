// Package domain contains the value types of an estimation session, no transport logic.
package domain

import (
	"errors"
	"strings"
	"unicode/utf8"
)

const (
	MinNameLen = 2
	MaxNameLen = 20
)

var (
	ErrNameTooShort = errors.New("name too short")
	ErrNameTooLong  = errors.New("name too long")
)

type UserID string

// Identity is the server-assigned id plus the user-supplied display name.
// The id is opaque to the client.
type Identity struct {
	ID   UserID `json:"id"`
	Name string `json:"name"`
}

// NormalizeName trims a display name and checks the length bounds.
// Bounds are in characters, not bytes, so non-ASCII names count fairly.
func NormalizeName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	length := utf8.RuneCountInString(name)
	if length < MinNameLen {
		return "", ErrNameTooShort
	}
	if length > MaxNameLen {
		return "", ErrNameTooLong
	}
	return name, nil
}
