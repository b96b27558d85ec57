package core

import (
	"testing"

	"github.com/dkeye/Trio/internal/domain"
)

type recordingConn struct {
	frames [][]byte
	full   bool
}

func (c *recordingConn) TrySend(f Frame) error {
	if c.full {
		return ErrBackpressure
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *recordingConn) Close() {}

func newSession(id string) (MemberSession, *recordingConn) {
	conn := &recordingConn{}
	u := &domain.User{ID: domain.UserID(id), DisplayName: id}
	return NewMemberSession(domain.NewMember(u), conn), conn
}

func TestRoomAdmitCapacity(t *testing.T) {
	r := NewRoomService(&domain.Room{ID: "r"}, domain.MaxRoomMembers)

	for i, id := range []string{"a", "b", "c"} {
		ms, _ := newSession(id)
		status, existing := r.Admit(SessionID(id), ms)
		if status != Admitted {
			t.Fatalf("%s: status %v", id, status)
		}
		if len(existing) != i {
			t.Fatalf("%s: %d existing members, want %d", id, len(existing), i)
		}
	}

	ms, _ := newSession("d")
	status, existing := r.Admit("d", ms)
	if status != RejectedFull || existing != nil {
		t.Fatalf("fourth admit: status %v existing %v", status, existing)
	}
	if r.MemberCount() != 3 {
		t.Fatalf("member count %d after rejection", r.MemberCount())
	}
}

func TestRoomExistingMembersInJoinOrder(t *testing.T) {
	r := NewRoomService(&domain.Room{ID: "r"}, domain.MaxRoomMembers)
	for _, id := range []string{"b", "a"} {
		ms, _ := newSession(id)
		r.Admit(SessionID(id), ms)
	}
	ms, _ := newSession("c")
	_, existing := r.Admit("c", ms)
	if len(existing) != 2 || existing[0].ID != "b" || existing[1].ID != "a" {
		t.Fatalf("existing = %+v", existing)
	}
}

func TestRoomAdmitTwiceIsIdempotent(t *testing.T) {
	r := NewRoomService(&domain.Room{ID: "r"}, domain.MaxRoomMembers)
	a, _ := newSession("a")
	b, _ := newSession("b")
	r.Admit("a", a)
	r.Admit("b", b)
	status, existing := r.Admit("a", a)
	if status != Admitted || len(existing) != 1 || existing[0].ID != "b" {
		t.Fatalf("re-admit: %v %+v", status, existing)
	}
	if r.MemberCount() != 2 {
		t.Fatalf("member count %d", r.MemberCount())
	}
}

func TestRoomRemoveMemberRetiresEmptyRoom(t *testing.T) {
	r := NewRoomService(&domain.Room{ID: "r"}, domain.MaxRoomMembers)
	a, _ := newSession("a")
	r.Admit("a", a)

	if remaining, removed := r.RemoveMember("ghost"); removed || remaining != 1 {
		t.Fatalf("remove absent: %d %v", remaining, removed)
	}
	if remaining, removed := r.RemoveMember("a"); !removed || remaining != 0 {
		t.Fatalf("remove a: %d %v", remaining, removed)
	}
	if remaining, removed := r.RemoveMember("a"); removed || remaining != 0 {
		t.Fatalf("second remove: %d %v", remaining, removed)
	}
	b, _ := newSession("b")
	if status, _ := r.Admit("b", b); status != RejectedClosed {
		t.Fatalf("admit into retired room: %v", status)
	}
}

func TestRoomBroadcast(t *testing.T) {
	r := NewRoomService(&domain.Room{ID: "r"}, domain.MaxRoomMembers)
	a, ca := newSession("a")
	b, cb := newSession("b")
	c, cc := newSession("c")
	r.Admit("a", a)
	r.Admit("b", b)
	r.Admit("c", c)
	cc.full = true

	res := r.Broadcast("a", Frame("x"))
	if res.SendTo != 1 || len(res.Dropped) != 1 || res.Dropped[0] != c {
		t.Fatalf("broadcast result %+v", res)
	}
	if len(ca.frames) != 0 || len(cb.frames) != 1 {
		t.Fatalf("frames a=%d b=%d", len(ca.frames), len(cb.frames))
	}

	res = r.Broadcast("", Frame("y"))
	if res.SendTo != 2 {
		t.Fatalf("broadcast to all sent to %d", res.SendTo)
	}
}
