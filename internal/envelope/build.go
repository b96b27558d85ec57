package envelope

import "encoding/json"

func Join(roomID, displayName string) *Envelope {
	return &Envelope{Type: KindJoin, RoomID: roomID, DisplayName: displayName}
}

func Leave() *Envelope {
	return &Envelope{Type: KindLeave}
}

func Joined(roomID string) *Envelope {
	return &Envelope{Type: KindJoined, RoomID: roomID}
}

func ExistingMembers(members []Member) *Envelope {
	return &Envelope{Type: KindExistingMembers, Members: members}
}

func MemberJoined(m Member) *Envelope {
	return &Envelope{Type: KindMemberJoined, ID: m.ID, DisplayName: m.DisplayName}
}

func MemberLeft(m Member) *Envelope {
	return &Envelope{Type: KindMemberLeft, ID: m.ID, DisplayName: m.DisplayName}
}

func RoomFull() *Envelope {
	return &Envelope{Type: KindRoomFull}
}

func Error(message string) *Envelope {
	return &Envelope{Type: KindError, Message: message}
}

func Offer(to string, description json.RawMessage) *Envelope {
	return &Envelope{Type: KindOffer, To: to, Description: description}
}

func Answer(to string, description json.RawMessage) *Envelope {
	return &Envelope{Type: KindAnswer, To: to, Description: description}
}

func Candidate(to string, candidate json.RawMessage) *Envelope {
	return &Envelope{Type: KindCandidate, To: to, Candidate: candidate}
}

// Chat builds an outbound chat message. An empty to means the whole room.
func Chat(text, to string, sentAt int64) *Envelope {
	return &Envelope{Type: KindChat, Text: text, To: to, SentAt: sentAt}
}

// Subject returns the member a membership notification is about.
func (e *Envelope) Subject() Member {
	return Member{ID: e.ID, DisplayName: e.DisplayName}
}
