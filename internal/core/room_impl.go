package core

import (
	"slices"
	"sync"

	"github.com/dkeye/Trio/internal/domain"
	"github.com/rs/zerolog/log"
)

// roomImpl is a threadsafe in-memory room.
// It never closes adapter-owned resources.
type roomImpl struct {
	room     *domain.Room
	capacity int

	mu     sync.RWMutex
	bySID  map[SessionID]MemberSession
	order  []SessionID
	closed bool
}

func NewRoomService(room *domain.Room, capacity int) RoomService {
	return &roomImpl{
		room:     room,
		capacity: capacity,
		bySID:    make(map[SessionID]MemberSession),
	}
}

func (r *roomImpl) Room() *domain.Room { return r.room }

func (r *roomImpl) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bySID)
}

func (r *roomImpl) Admit(sid SessionID, ms MemberSession) (AdmitStatus, []MemberDTO) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return RejectedClosed, nil
	}
	if _, ok := r.bySID[sid]; ok {
		return Admitted, r.snapshotLocked(sid)
	}
	if len(r.bySID) >= r.capacity {
		log.Debug().Str("module", "core.room").Str("room", string(r.room.ID)).Str("sid", string(sid)).Msg("room full")
		return RejectedFull, nil
	}
	existing := r.snapshotLocked("")
	r.bySID[sid] = ms
	r.order = append(r.order, sid)
	log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).Str("sid", string(sid)).Int("members", len(r.bySID)).Msg("member added")
	return Admitted, existing
}

func (r *roomImpl) RemoveMember(sid SessionID) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bySID[sid]; !ok {
		return len(r.bySID), false
	}
	delete(r.bySID, sid)
	r.order = slices.DeleteFunc(r.order, func(s SessionID) bool { return s == sid })
	if len(r.bySID) == 0 {
		r.closed = true
	}
	log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).Str("sid", string(sid)).Int("members", len(r.bySID)).Msg("member removed")
	return len(r.bySID), true
}

func (r *roomImpl) Broadcast(exclude SessionID, data Frame) PublishResult {
	sessions := r.Sessions()
	res := PublishResult{}
	for _, m := range sessions {
		if SessionOf(m.Meta().User) == exclude {
			continue
		}
		if err := m.Signal().TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, m)
			continue
		}
		res.SendTo++
	}
	log.Debug().Str("module", "core.room").Str("room", string(r.room.ID)).Str("exclude", string(exclude)).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

func (r *roomImpl) Sessions() []MemberSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]MemberSession, 0, len(r.order))
	for _, sid := range r.order {
		out = append(out, r.bySID[sid])
	}
	return out
}

func (r *roomImpl) MembersSnapshot() []MemberDTO {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked("")
}

func (r *roomImpl) snapshotLocked(skip SessionID) []MemberDTO {
	out := make([]MemberDTO, 0, len(r.order))
	for _, sid := range r.order {
		if sid == skip {
			continue
		}
		u := r.bySID[sid].Meta().User
		out = append(out, MemberDTO{ID: u.ID, DisplayName: u.DisplayName})
	}
	return out
}
