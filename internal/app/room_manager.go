package app

import (
	"sync"

	"github.com/dkeye/Trio/internal/core"
	"github.com/dkeye/Trio/internal/domain"
	"github.com/rs/zerolog/log"
)

// RoomManagerImpl maps room ids to member sets. Rooms are created lazily on
// first join and retired when their last member leaves. Admission runs under
// the room's own lock, so joins to different rooms never contend.
type RoomManagerImpl struct {
	capacity int

	mu    sync.RWMutex
	rooms map[domain.RoomID]core.RoomService
}

func NewRoomManager() *RoomManagerImpl {
	return &RoomManagerImpl{
		capacity: domain.MaxRoomMembers,
		rooms:    make(map[domain.RoomID]core.RoomService),
	}
}

func (f *RoomManagerImpl) Join(id domain.RoomID, sid core.SessionID, ms core.MemberSession) core.JoinResult {
	for {
		room := f.getOrCreate(id)
		status, existing := room.Admit(sid, ms)
		switch status {
		case core.Admitted:
			return core.JoinResult{Admitted: true, Existing: existing}
		case core.RejectedFull:
			return core.JoinResult{}
		}
		// Lost a race with the last member leaving; the retired room must not
		// be reused.
		f.retire(id, room)
	}
}

func (f *RoomManagerImpl) Leave(id domain.RoomID, sid core.SessionID) core.LeaveResult {
	room, ok := f.Get(id)
	if !ok {
		return core.LeaveResult{}
	}
	remaining, removed := room.RemoveMember(sid)
	if removed && remaining == 0 {
		f.retire(id, room)
	}
	return core.LeaveResult{Remaining: remaining, Removed: removed}
}

func (f *RoomManagerImpl) MembersOf(id domain.RoomID) []core.MemberSession {
	room, ok := f.Get(id)
	if !ok {
		return nil
	}
	return room.Sessions()
}

func (f *RoomManagerImpl) Get(id domain.RoomID) (core.RoomService, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	room, ok := f.rooms[id]
	return room, ok
}

func (f *RoomManagerImpl) List() []core.RoomInfo {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]core.RoomInfo, 0, len(f.rooms))
	for id, r := range f.rooms {
		out = append(out, core.RoomInfo{ID: id, MemberCount: r.MemberCount()})
	}
	return out
}

func (f *RoomManagerImpl) getOrCreate(id domain.RoomID) core.RoomService {
	f.mu.RLock()
	room, ok := f.rooms[id]
	f.mu.RUnlock()
	if ok {
		return room
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if room, ok = f.rooms[id]; ok {
		return room
	}
	room = core.NewRoomService(&domain.Room{ID: id}, f.capacity)
	f.rooms[id] = room
	log.Info().Str("module", "app.rooms").Str("room", string(id)).Msg("room created")
	return room
}

func (f *RoomManagerImpl) retire(id domain.RoomID, room core.RoomService) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rooms[id] == room {
		delete(f.rooms, id)
		log.Info().Str("module", "app.rooms").Str("room", string(id)).Msg("room deleted (empty)")
	}
}
