package mesh

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Trio/internal/app"
	"github.com/dkeye/Trio/internal/core"
	"github.com/dkeye/Trio/internal/domain"
	"github.com/dkeye/Trio/internal/envelope"
	"github.com/dkeye/Trio/internal/peer"
	"github.com/dkeye/Trio/internal/peer/peertest"
)

// inboxConn decodes every frame the router sends into the participant's inbox.
type inboxConn struct {
	inbox chan *envelope.Envelope
}

func (c *inboxConn) TrySend(f core.Frame) error {
	env, err := envelope.Decode(f)
	if err != nil {
		return err
	}
	select {
	case c.inbox <- env:
		return nil
	default:
		return core.ErrBackpressure
	}
}

func (c *inboxConn) Close() {}

// routerSignaler hands envelopes to the router the way the WebSocket
// controller does, including the wire round trip.
type routerSignaler struct {
	router *app.Router
	sid    core.SessionID
}

func (s routerSignaler) Send(env *envelope.Envelope) error {
	frame, err := envelope.Encode(env)
	if err != nil {
		return err
	}
	decoded, err := envelope.Decode(frame)
	if err != nil {
		return err
	}
	if err := decoded.ValidateFromParticipant(); err != nil {
		return err
	}
	s.router.Dispatch(s.sid, decoded)
	return nil
}

type recordingObserver struct {
	mu       sync.Mutex
	joined   []string
	arrivals []string
	left     []string
	full     int
	chats    []ChatMessage
	errors   []string
}

func (o *recordingObserver) OnJoined(roomID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.joined = append(o.joined, roomID)
}

func (o *recordingObserver) OnMemberJoined(m envelope.Member) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.arrivals = append(o.arrivals, m.ID)
}

func (o *recordingObserver) OnMemberLeft(m envelope.Member) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.left = append(o.left, m.ID)
}

func (o *recordingObserver) OnRoomFull(string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.full++
}

func (o *recordingObserver) OnChat(msg ChatMessage) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.chats = append(o.chats, msg)
}

func (o *recordingObserver) OnError(message string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errors = append(o.errors, message)
}

func (o *recordingObserver) chatLog() []ChatMessage {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]ChatMessage(nil), o.chats...)
}

type recordingRenderer struct {
	mu      sync.Mutex
	removed []string
}

func (r *recordingRenderer) OnRemoteStreamAvailable(string, peer.Stream) {}

func (r *recordingRenderer) OnParticipantRemoved(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, id)
}

type participant struct {
	id       string
	factory  *peertest.Factory
	observer *recordingObserver
	links    *peer.Manager
	coord    *Coordinator
}

type harness struct {
	t      *testing.T
	router *app.Router
}

func newHarness(t *testing.T) *harness {
	return &harness{t: t, router: app.NewRouter(app.NewRegistry(), app.NewRoomManager())}
}

func (h *harness) add(id string) *participant {
	sid := core.SessionID(id)
	conn := &inboxConn{inbox: make(chan *envelope.Envelope, 64)}
	user := &domain.User{ID: domain.UserID(id)}
	ctx, cancel := context.WithCancel(context.Background())
	h.router.Registry.Bind(sid, core.NewMemberSession(domain.NewMember(user), conn), cancel)

	p := &participant{id: id, factory: &peertest.Factory{}, observer: &recordingObserver{}}
	signaler := routerSignaler{router: h.router, sid: sid}
	p.links = peer.NewManager(p.factory.New, signaler, &recordingRenderer{})
	p.coord = NewCoordinator(p.links, signaler, p.observer)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = p.coord.Run(ctx, conn.inbox)
	}()
	h.t.Cleanup(func() {
		cancel()
		<-done
		p.links.Shutdown()
	})
	return p
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func (h *harness) join(p *participant, room string) {
	h.t.Helper()
	if err := p.coord.Join(room, "name-"+p.id); err != nil {
		h.t.Fatal(err)
	}
	eventually(h.t, p.id+" joined", func() bool { return p.coord.Room() == room })
}

func meshSettled(ps ...*participant) bool {
	for _, p := range ps {
		if p.links.Count() != len(ps)-1 {
			return false
		}
		for _, q := range ps {
			if q == p {
				continue
			}
			l, ok := p.links.Get(q.id)
			if !ok || l.State() != peer.StateDescriptionExchanged {
				return false
			}
		}
	}
	return true
}

func buildRoom(t *testing.T) (*harness, *participant, *participant, *participant) {
	h := newHarness(t)
	a, b, c := h.add("a"), h.add("b"), h.add("c")
	for _, p := range []*participant{a, b, c} {
		h.join(p, "room")
	}
	eventually(t, "mesh", func() bool { return meshSettled(a, b, c) })
	return h, a, b, c
}

func TestMeshCompleteness(t *testing.T) {
	_, a, b, c := buildRoom(t)
	ps := []*participant{a, b, c}

	pairs := 0
	for i, p := range ps {
		for _, q := range ps[i+1:] {
			if p.factory.Count(q.id) != 1 || q.factory.Count(p.id) != 1 {
				t.Fatalf("pair %s-%s: %d and %d transports", p.id, q.id, p.factory.Count(q.id), q.factory.Count(p.id))
			}
			pairs++
		}
	}
	if pairs != 3 {
		t.Fatalf("%d pairs", pairs)
	}
	for _, tr := range a.factory.All() {
		if tr.Closed() {
			t.Fatalf("a's transport to %s replaced", tr.RemoteID)
		}
	}
	if got := c.coord.Members(); len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("c's roster %+v", got)
	}
}

func TestMeshLeaveClosesLinks(t *testing.T) {
	_, a, b, c := buildRoom(t)

	if err := c.coord.Leave(); err != nil {
		t.Fatal(err)
	}
	if c.links.Count() != 0 {
		t.Fatalf("c kept %d links", c.links.Count())
	}
	eventually(t, "a and b drop c", func() bool {
		return a.links.Count() == 1 && b.links.Count() == 1
	})
	if _, ok := a.links.Get("c"); ok {
		t.Fatal("a still linked to c")
	}
	a.observer.mu.Lock()
	left := append([]string(nil), a.observer.left...)
	a.observer.mu.Unlock()
	if len(left) != 1 || left[0] != "c" {
		t.Fatalf("a saw departures %v", left)
	}
	if err := c.coord.Leave(); err != nil {
		t.Fatalf("second leave: %v", err)
	}
}

func TestMeshRoomFull(t *testing.T) {
	h, a, b, c := buildRoom(t)
	d := h.add("d")

	if err := d.coord.Join("room", "dave"); err != nil {
		t.Fatal(err)
	}
	eventually(t, "room-full", func() bool {
		d.observer.mu.Lock()
		defer d.observer.mu.Unlock()
		return d.observer.full == 1
	})
	if d.coord.Room() != "" || d.links.Count() != 0 {
		t.Fatalf("d room=%q links=%d", d.coord.Room(), d.links.Count())
	}
	if !meshSettled(a, b, c) {
		t.Fatal("existing mesh disturbed")
	}
}

func TestMeshChat(t *testing.T) {
	_, a, b, c := buildRoom(t)

	if err := a.coord.SendChat("hello", ""); err != nil {
		t.Fatal(err)
	}
	for _, p := range []*participant{a, b, c} {
		eventually(t, p.id+" room chat", func() bool { return len(p.observer.chatLog()) == 1 })
		if msg := p.observer.chatLog()[0]; msg.Private || msg.From != "a" || msg.Text != "hello" || msg.DisplayName != "name-a" {
			t.Fatalf("%s got %+v", p.id, msg)
		}
	}

	a.coord.SendChat("psst", "b")
	a.coord.SendChat("bye", "")
	eventually(t, "c sees bye", func() bool { return len(c.observer.chatLog()) == 2 })
	if got := c.observer.chatLog()[1]; got.Text != "bye" {
		t.Fatalf("c received %+v", got)
	}
	for _, p := range []*participant{a, b} {
		eventually(t, p.id+" private chat", func() bool { return len(p.observer.chatLog()) == 3 })
		if msg := p.observer.chatLog()[1]; !msg.Private || msg.Text != "psst" {
			t.Fatalf("%s got %+v", p.id, msg)
		}
	}
}

func TestHandleDropsCandidateForUnknownLink(t *testing.T) {
	h := newHarness(t)
	a := h.add("a")
	err := a.coord.Handle(&envelope.Envelope{Type: envelope.KindCandidate, From: "ghost", Candidate: []byte(`{}`)})
	if err != nil {
		t.Fatalf("candidate for unknown link: %v", err)
	}
	if err := a.coord.Handle(&envelope.Envelope{Type: envelope.KindJoin}); err == nil {
		t.Fatal("participant-bound kind accepted")
	}
}

func TestSendChatOutsideRoom(t *testing.T) {
	h := newHarness(t)
	a := h.add("a")
	if err := a.coord.SendChat("hi", ""); err != ErrNotInRoom {
		t.Fatalf("err = %v", err)
	}
}

func TestMeshRejoinClosesOldRoomLinks(t *testing.T) {
	h, a, b, c := buildRoom(t)
	d := h.add("d")
	h.join(d, "other")

	h.join(c, "other")
	eventually(t, "c linked to d only", func() bool {
		remotes := c.links.Remotes()
		return len(remotes) == 1 && remotes[0] == "d" && meshSettled(c, d)
	})
	eventually(t, "a and b drop c", func() bool {
		return a.links.Count() == 1 && b.links.Count() == 1
	})
	for _, tr := range c.factory.All() {
		if tr.RemoteID != "d" && !tr.Closed() {
			t.Fatalf("transport to old room member %s left open", tr.RemoteID)
		}
	}
	if got := c.coord.Members(); len(got) != 1 || got[0].ID != "d" {
		t.Fatalf("c's roster %+v", got)
	}
}

func TestHandleDropsNegotiationAfterLeave(t *testing.T) {
	h := newHarness(t)
	a := h.add("a")
	h.join(a, "r1")
	if err := a.coord.Leave(); err != nil {
		t.Fatal(err)
	}

	envs := []*envelope.Envelope{
		{Type: envelope.KindOffer, From: "b", DisplayName: "bob", Description: []byte(`{"type":"offer","sdp":"v=0"}`)},
		{Type: envelope.KindAnswer, From: "b", Description: []byte(`{"type":"answer","sdp":"v=0"}`)},
		{Type: envelope.KindCandidate, From: "b", Candidate: []byte(`{}`)},
		{Type: envelope.KindExistingMembers, Members: []envelope.Member{{ID: "b", DisplayName: "bob"}}},
	}
	for _, env := range envs {
		if err := a.coord.Handle(env); err != nil {
			t.Fatalf("%s after leave: %v", env.Type, err)
		}
	}
	a.links.Wait()
	if a.links.Count() != 0 || a.factory.Count("b") != 0 {
		t.Fatalf("links=%d transports=%d after leave", a.links.Count(), a.factory.Count("b"))
	}
}

func TestHandleDropsOfferFromNonMember(t *testing.T) {
	h := newHarness(t)
	a := h.add("a")
	h.join(a, "r1")

	offer := &envelope.Envelope{Type: envelope.KindOffer, From: "stranger", Description: []byte(`{"type":"offer","sdp":"v=0"}`)}
	if err := a.coord.Handle(offer); err != nil {
		t.Fatal(err)
	}
	a.links.Wait()
	if a.factory.Count("stranger") != 0 {
		t.Fatal("offer from outside the room created a link")
	}
}
