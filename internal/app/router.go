package app

import (
	"context"
	"errors"
	"time"

	"github.com/dkeye/Trio/internal/core"
	"github.com/dkeye/Trio/internal/domain"
	"github.com/dkeye/Trio/internal/envelope"
	"github.com/rs/zerolog/log"
)

const presenceTimeout = time.Second

// Router relays envelopes between connected participants. It keeps no state
// of its own: membership lives in Rooms, connections in Registry.
type Router struct {
	Registry *Registry
	Rooms    core.RoomManager
	Policy   Policy
	Presence Presence

	Now func() time.Time
}

func NewRouter(reg *Registry, rooms core.RoomManager) *Router {
	return &Router{
		Registry: reg,
		Rooms:    rooms,
		Policy:   SimplePolicy{},
		Presence: NopPresence{},
		Now:      time.Now,
	}
}

// Dispatch routes one validated participant envelope.
func (o *Router) Dispatch(sid core.SessionID, env *envelope.Envelope) {
	switch env.Type {
	case envelope.KindJoin:
		o.Join(sid, domain.RoomID(env.RoomID), env.DisplayName)
	case envelope.KindLeave:
		o.Leave(sid)
	case envelope.KindOffer, envelope.KindAnswer, envelope.KindCandidate:
		o.Relay(sid, env)
	case envelope.KindChat:
		o.Chat(sid, env)
	default:
		log.Warn().Str("module", "app.router").Str("sid", string(sid)).Str("kind", string(env.Type)).Msg("unroutable envelope")
	}
}

// Join admits sid into the room, leaving any previous room first. A full room
// answers room-full to the requester only.
func (o *Router) Join(sid core.SessionID, id domain.RoomID, displayName string) core.JoinResult {
	if _, _, ok := o.Registry.RoomOf(sid); ok {
		o.Leave(sid)
	}
	sess, ok := o.Registry.Rename(sid, domain.NormalizeDisplayName(displayName))
	if !ok {
		return core.JoinResult{}
	}
	user := sess.Meta().User

	res := o.Rooms.Join(id, sid, sess)
	if !res.Admitted {
		log.Info().Str("module", "app.router").Str("sid", string(sid)).Str("room", string(id)).Msg("join rejected: room full")
		o.send(nil, sess, envelope.RoomFull())
		return res
	}
	o.Registry.UpdateRoom(sid, id)
	log.Info().Str("module", "app.router").Str("sid", string(sid)).Str("room", string(id)).Str("name", user.DisplayName).Int("existing", len(res.Existing)).Msg("joined room")

	room, _ := o.Rooms.Get(id)
	o.send(room, sess, envelope.Joined(string(id)))
	o.send(room, sess, envelope.ExistingMembers(toMembers(res.Existing)))
	o.broadcast(room, sid, envelope.MemberJoined(memberOf(sess)))
	o.publishPresence(id)
	return res
}

// Leave is idempotent: only the call that actually removes sid notifies the
// rest of the room.
func (o *Router) Leave(sid core.SessionID) bool {
	id, sess, ok := o.Registry.RoomOf(sid)
	if !ok {
		return false
	}
	res := o.Rooms.Leave(id, sid)
	o.Registry.RemoveRoom(sid)
	if !res.Removed {
		return false
	}
	log.Info().Str("module", "app.router").Str("sid", string(sid)).Str("room", string(id)).Int("remaining", res.Remaining).Msg("left room")
	if res.Remaining > 0 {
		if room, ok := o.Rooms.Get(id); ok {
			o.broadcast(room, sid, envelope.MemberLeft(memberOf(sess)))
		}
	}
	o.publishPresence(id)
	return true
}

// Disconnect runs when the connection is gone for good.
func (o *Router) Disconnect(sid core.SessionID) {
	o.Leave(sid)
	o.Registry.Unbind(sid)
}

// Relay forwards offer, answer and candidate envelopes to env.To. Targets that
// are not connected or not in the sender's room are dropped silently.
func (o *Router) Relay(sid core.SessionID, env *envelope.Envelope) {
	id, sender, ok := o.Registry.RoomOf(sid)
	if !ok {
		log.Debug().Str("module", "app.router").Str("sid", string(sid)).Str("kind", string(env.Type)).Msg("relay dropped: sender not in a room")
		return
	}
	target, ok := o.roomMate(id, core.SessionID(env.To))
	if !ok {
		log.Debug().Str("module", "app.router").Str("sid", string(sid)).Str("to", env.To).Str("kind", string(env.Type)).Msg("relay dropped: target unreachable")
		return
	}
	room, _ := o.Rooms.Get(id)
	o.send(room, target, env.ForwardedFrom(memberOf(sender)))
}

// Chat delivers to the whole room (sender included) or, with a target, to the
// target plus a loopback copy for the sender.
func (o *Router) Chat(sid core.SessionID, env *envelope.Envelope) {
	id, sender, ok := o.Registry.RoomOf(sid)
	if !ok {
		return
	}
	if env.SentAt == 0 {
		env.SentAt = o.Now().UnixMilli()
	}
	out := env.ForwardedFrom(memberOf(sender))
	room, _ := o.Rooms.Get(id)

	if env.To == "" {
		o.broadcast(room, "", out)
		return
	}
	if core.SessionID(env.To) != sid {
		if target, ok := o.roomMate(id, core.SessionID(env.To)); ok {
			o.send(room, target, out)
		} else {
			log.Debug().Str("module", "app.router").Str("sid", string(sid)).Str("to", env.To).Msg("private chat target unreachable")
		}
	}
	o.send(room, sender, out)
}

func (o *Router) roomMate(id domain.RoomID, target core.SessionID) (core.MemberSession, bool) {
	tid, sess, ok := o.Registry.RoomOf(target)
	if !ok || tid != id {
		return nil, false
	}
	return sess, true
}

func (o *Router) send(room core.RoomService, to core.MemberSession, env *envelope.Envelope) {
	frame, err := envelope.Encode(env)
	if err != nil {
		log.Error().Err(err).Str("module", "app.router").Str("kind", string(env.Type)).Msg("encode envelope")
		return
	}
	if err := to.Signal().TrySend(frame); err != nil {
		o.onDropped(room, []core.MemberSession{to}, err)
	}
}

func (o *Router) broadcast(room core.RoomService, exclude core.SessionID, env *envelope.Envelope) {
	if room == nil {
		return
	}
	frame, err := envelope.Encode(env)
	if err != nil {
		log.Error().Err(err).Str("module", "app.router").Str("kind", string(env.Type)).Msg("encode envelope")
		return
	}
	res := room.Broadcast(exclude, frame)
	if len(res.Dropped) > 0 {
		o.onDropped(room, res.Dropped, core.ErrBackpressure)
	}
}

func (o *Router) onDropped(room core.RoomService, dropped []core.MemberSession, cause error) {
	for _, slow := range dropped {
		sid := core.SessionOf(slow.Meta().User)
		log.Warn().Err(cause).Str("module", "app.router").Str("sid", string(sid)).Msg("delivery failed")
		if o.Policy == nil || errors.Is(cause, core.ErrConnectionClosed) {
			continue
		}
		switch o.Policy.OnBackPressure(room, slow) {
		case KickMember:
			o.Registry.Cancel(sid)
		case NoAction:
		}
	}
}

func (o *Router) publishPresence(id domain.RoomID) {
	if o.Presence == nil {
		return
	}
	var members []core.MemberDTO
	if room, ok := o.Rooms.Get(id); ok {
		members = room.MembersSnapshot()
	}
	ctx, cancel := context.WithTimeout(context.Background(), presenceTimeout)
	defer cancel()
	if err := o.Presence.Update(ctx, id, members); err != nil {
		log.Warn().Err(err).Str("module", "app.router").Str("room", string(id)).Msg("presence update failed")
	}
}

func memberOf(sess core.MemberSession) envelope.Member {
	u := sess.Meta().User
	return envelope.Member{ID: string(u.ID), DisplayName: u.DisplayName}
}

func toMembers(in []core.MemberDTO) []envelope.Member {
	out := make([]envelope.Member, 0, len(in))
	for _, m := range in {
		out = append(out, envelope.Member{ID: string(m.ID), DisplayName: m.DisplayName})
	}
	return out
}
