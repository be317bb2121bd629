package domain

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

const DefaultMaxRoomNameLength = 64

var (
	ErrInvalidRoomName = errors.New("invalid room name")
	ErrInvalidTargetID = errors.New("invalid target id")
)

// RoomListing is a read-only copy of the registry: room name -> member ids in join order.
type RoomListing map[string][]string

// NormalizeRoomName trims surrounding whitespace and checks the result is usable as a room key.
func NormalizeRoomName(name string, maxLen int) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrInvalidRoomName
	}

	if !utf8.ValidString(name) {
		return "", ErrInvalidRoomName
	}

	if maxLen > 0 && utf8.RuneCountInString(name) > maxLen {
		return "", ErrInvalidRoomName
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return "", ErrInvalidRoomName
		}
	}

	return name, nil
}
