package domain

import (
	"crypto/rand"
	"errors"
	"math/big"
)

// MaxRoomMembers is a fixed property of the full-mesh design: three members
// means at most three links in total.
const MaxRoomMembers = 3

const (
	MaxRoomIDLen       = 128
	generatedRoomIDLen = 26
	roomIDAlphabet     = "0123456789abcdefghijklmnopqrstuvwxyz"
)

var (
	ErrRoomIDEmpty   = errors.New("room id empty")
	ErrRoomIDTooLong = errors.New("room id too long")
)

// RoomID is chosen by the participant that starts a meeting. Knowing it is the
// only thing required to join, so generated ids must be unguessable.
type RoomID string

type Room struct {
	ID RoomID
}

func ValidateRoomID(id string) error {
	if id == "" {
		return ErrRoomIDEmpty
	}
	if len(id) > MaxRoomIDLen {
		return ErrRoomIDTooLong
	}
	return nil
}

// NewRoomID returns a crypto-random base36 identifier.
func NewRoomID() (RoomID, error) {
	max := big.NewInt(int64(len(roomIDAlphabet)))
	b := make([]byte, generatedRoomIDLen)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = roomIDAlphabet[n.Int64()]
	}
	return RoomID(b), nil
}
