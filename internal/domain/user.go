// Package domain contains entity without logic, just meta-data
package domain

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	MaxUserIDLen       = 36
	MaxDisplayNameLen  = 36
	DefaultDisplayName = "Anonymous"
)

// UserID is the coordinator-assigned session identifier of a participant.
// It is opaque to clients and stable for the lifetime of one connection.
type UserID string

type User struct {
	ID          UserID `json:"id"`
	DisplayName string `json:"displayName"`
}

// NewUser assigns a fresh id. The display name is untrusted and is normalised,
// never rejected.
func NewUser(displayName string) *User {
	return &User{
		ID:          UserID(uuid.NewString()),
		DisplayName: NormalizeDisplayName(displayName),
	}
}

// NormalizeDisplayName trims whitespace, substitutes DefaultDisplayName for an
// empty name and truncates to MaxDisplayNameLen runes.
func NormalizeDisplayName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultDisplayName
	}
	if utf8.RuneCountInString(name) <= MaxDisplayNameLen {
		return name
	}
	r := []rune(name)
	return string(r[:MaxDisplayNameLen])
}
