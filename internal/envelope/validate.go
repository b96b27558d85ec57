package envelope

import (
	"fmt"

	"github.com/dkeye/Trio/internal/domain"
)

// MaxChatTextLen bounds chat text in bytes.
const MaxChatTextLen = 4096

func missing(field string) error {
	return fmt.Errorf("%w: %s", ErrMissingField, field)
}

func tooLong(field string) error {
	return fmt.Errorf("%w: %s", ErrFieldTooLong, field)
}

// ValidateFromParticipant checks an envelope read by the coordinator.
func (e *Envelope) ValidateFromParticipant() error {
	switch e.Type {
	case KindJoin:
		if err := domain.ValidateRoomID(e.RoomID); err != nil {
			if err == domain.ErrRoomIDEmpty {
				return missing("roomId")
			}
			return tooLong("roomId")
		}
		return nil
	case KindLeave:
		return nil
	case KindOffer, KindAnswer:
		if len(e.Description) == 0 {
			return missing("description")
		}
		return e.validateTarget(true)
	case KindCandidate:
		if len(e.Candidate) == 0 {
			return missing("candidate")
		}
		return e.validateTarget(true)
	case KindChat:
		if e.Text == "" {
			return missing("text")
		}
		if len(e.Text) > MaxChatTextLen {
			return tooLong("text")
		}
		return e.validateTarget(false)
	}
	return fmt.Errorf("%w: %s", ErrWrongDirection, e.Type)
}

func (e *Envelope) validateTarget(required bool) error {
	if e.To == "" {
		if required {
			return missing("to")
		}
		return nil
	}
	if len(e.To) > domain.MaxUserIDLen {
		return tooLong("to")
	}
	return nil
}

// ValidateFromCoordinator checks an envelope read by a participant.
func (e *Envelope) ValidateFromCoordinator() error {
	switch e.Type {
	case KindJoined:
		if e.RoomID == "" {
			return missing("roomId")
		}
	case KindExistingMembers:
		for _, m := range e.Members {
			if m.ID == "" {
				return missing("members.id")
			}
		}
	case KindMemberJoined, KindMemberLeft:
		if e.ID == "" {
			return missing("id")
		}
	case KindRoomFull, KindError:
	case KindOffer, KindAnswer:
		if len(e.Description) == 0 {
			return missing("description")
		}
		if e.From == "" {
			return missing("from")
		}
	case KindCandidate:
		if len(e.Candidate) == 0 {
			return missing("candidate")
		}
		if e.From == "" {
			return missing("from")
		}
	case KindChat:
		if e.From == "" {
			return missing("from")
		}
	default:
		return fmt.Errorf("%w: %s", ErrWrongDirection, e.Type)
	}
	return nil
}
