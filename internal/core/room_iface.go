package core

import (
	"github.com/dkeye/Trio/internal/domain"
)

// PublishResult reports delivery stats/backpressure to the router.
type PublishResult struct {
	SendTo  int
	Dropped []MemberSession
}

// MemberDTO is a read-only view for APIs (no transport fields).
type MemberDTO struct {
	ID          domain.UserID `json:"id"`
	DisplayName string        `json:"displayName"`
}

type AdmitStatus int

const (
	Admitted AdmitStatus = iota
	RejectedFull
	// RejectedClosed means the room emptied and was retired; the caller must
	// look the room up again.
	RejectedClosed
)

// RoomService is the core-facing API of a room.
// It owns the membership set but never touches transport resources.
type RoomService interface {
	Room() *domain.Room
	MemberCount() int
	MembersSnapshot() []MemberDTO
	Sessions() []MemberSession

	// Admit adds sid iff the room is open and below capacity. On success it
	// returns the members present before the admission, in join order.
	Admit(sid SessionID, ms MemberSession) (AdmitStatus, []MemberDTO)
	// RemoveMember is idempotent. Removing the last member retires the room.
	RemoveMember(sid SessionID) (remaining int, removed bool)
	Broadcast(exclude SessionID, data Frame) PublishResult
}

type RoomInfo struct {
	ID          domain.RoomID `json:"id"`
	MemberCount int           `json:"memberCount"`
}

// JoinResult is either admitted (with the pre-admission member list) or
// rejected because the room is full. Rejection leaves state unchanged.
type JoinResult struct {
	Admitted bool
	Existing []MemberDTO
}

type LeaveResult struct {
	Remaining int
	Removed   bool
}

// RoomManager is the room registry: room id to member set.
type RoomManager interface {
	Join(id domain.RoomID, sid SessionID, ms MemberSession) JoinResult
	Leave(id domain.RoomID, sid SessionID) LeaveResult
	MembersOf(id domain.RoomID) []MemberSession
	Get(id domain.RoomID) (RoomService, bool)
	List() []RoomInfo
}
