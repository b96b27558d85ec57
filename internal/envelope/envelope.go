// Package envelope defines the signaling messages exchanged between a
// participant and the coordinator. Envelopes are plain data: a kind plus the
// fields that kind needs. Session descriptions and candidates are carried as
// opaque JSON and are never interpreted by the coordinator.
package envelope

import (
	"encoding/json"
	"fmt"
)

type Kind string

const (
	KindJoin            Kind = "join"
	KindJoined          Kind = "joined"
	KindExistingMembers Kind = "existing-members"
	KindMemberJoined    Kind = "member-joined"
	KindMemberLeft      Kind = "member-left"
	KindRoomFull        Kind = "room-full"
	KindOffer           Kind = "offer"
	KindAnswer          Kind = "answer"
	KindCandidate       Kind = "candidate"
	KindChat            Kind = "chat"
	KindLeave           Kind = "leave"
	KindError           Kind = "error"
)

func (k Kind) Known() bool {
	switch k {
	case KindJoin, KindJoined, KindExistingMembers, KindMemberJoined, KindMemberLeft,
		KindRoomFull, KindOffer, KindAnswer, KindCandidate, KindChat, KindLeave, KindError:
		return true
	}
	return false
}

// Directed reports whether the kind is relayed point-to-point.
func (k Kind) Directed() bool {
	return k == KindOffer || k == KindAnswer || k == KindCandidate
}

// Member is the public view of a participant.
type Member struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// Envelope is the single wire shape for every kind. Only the fields relevant
// to Type are set; the rest are omitted from the JSON.
type Envelope struct {
	Type Kind `json:"type"`

	RoomID      string   `json:"roomId,omitempty"`
	ID          string   `json:"id,omitempty"`
	DisplayName string   `json:"displayName,omitempty"`
	Members     []Member `json:"members,omitempty"`

	Description json.RawMessage `json:"description,omitempty"`
	Candidate   json.RawMessage `json:"candidate,omitempty"`

	Text      string `json:"text,omitempty"`
	SentAt    int64  `json:"sentAt,omitempty"`
	IsPrivate bool   `json:"isPrivate,omitempty"`

	To   string `json:"to,omitempty"`
	From string `json:"from,omitempty"`

	Message string `json:"message,omitempty"`
}

// Decode parses one frame. Unknown kinds are rejected so callers can discard
// them without looking further.
func Decode(data []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if !e.Type.Known() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, e.Type)
	}
	return &e, nil
}

func Encode(e *Envelope) ([]byte, error) {
	return json.Marshal(e)
}

// ForwardedFrom returns the copy of a participant-sent envelope that the
// coordinator delivers to its destination: the target is stripped and the
// sender identity is stamped by the coordinator, never trusted from the client.
func (e *Envelope) ForwardedFrom(sender Member) *Envelope {
	out := &Envelope{
		Type: e.Type,
		From: sender.ID,
	}
	switch e.Type {
	case KindOffer, KindAnswer:
		out.Description = e.Description
		out.DisplayName = sender.DisplayName
	case KindCandidate:
		out.Candidate = e.Candidate
	case KindChat:
		out.Text = e.Text
		out.SentAt = e.SentAt
		out.DisplayName = sender.DisplayName
		out.IsPrivate = e.To != ""
	}
	return out
}
