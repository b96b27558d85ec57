package app

import (
	"context"
	"sync"
	"testing"

	"github.com/dkeye/Trio/internal/core"
	"github.com/dkeye/Trio/internal/domain"
	"github.com/dkeye/Trio/internal/envelope"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
	full   bool
	closed bool
}

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return core.ErrConnectionClosed
	}
	if c.full {
		return core.ErrBackpressure
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

// envelopes decodes and clears everything received so far.
func (c *fakeConn) envelopes(t *testing.T) []*envelope.Envelope {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*envelope.Envelope, 0, len(c.frames))
	for _, f := range c.frames {
		e, err := envelope.Decode(f)
		if err != nil {
			t.Fatalf("decode %s: %v", f, err)
		}
		out = append(out, e)
	}
	c.frames = nil
	return out
}

func kinds(envs []*envelope.Envelope) []envelope.Kind {
	out := make([]envelope.Kind, 0, len(envs))
	for _, e := range envs {
		out = append(out, e.Type)
	}
	return out
}

type participant struct {
	sid      core.SessionID
	conn     *fakeConn
	sess     core.MemberSession
	canceled bool
}

func newSession(id string) (core.MemberSession, *fakeConn) {
	conn := &fakeConn{}
	u := &domain.User{ID: domain.UserID(id), DisplayName: id}
	return core.NewMemberSession(domain.NewMember(u), conn), conn
}

func connect(router *Router, id string) *participant {
	sess, conn := newSession(id)
	p := &participant{sid: core.SessionID(id), conn: conn, sess: sess}
	_, cancel := context.WithCancel(context.Background())
	router.Registry.Bind(p.sid, sess, func() {
		p.canceled = true
		cancel()
	})
	return p
}

func newTestRouter() *Router {
	return NewRouter(NewRegistry(), NewRoomManager())
}
