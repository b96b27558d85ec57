package core

import "github.com/dkeye/Trio/internal/domain"

// SessionID identifies one participant connection. It equals the participant's
// domain.UserID.
type SessionID string

// MemberSession binds domain.Member and its transport endpoint.
// This is what a room stores and fans out to.
type MemberSession interface {
	Meta() *domain.Member
	Signal() SignalConnection
}

func SessionOf(u *domain.User) SessionID { return SessionID(u.ID) }
