// Package peertest provides in-memory collaborators for peer.Manager.
package peertest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/dkeye/Trio/internal/envelope"
	"github.com/dkeye/Trio/internal/peer"
)

var (
	ErrNoRemoteDescription = errors.New("remote description not set")
	ErrClosed              = errors.New("transport closed")
)

// Transport records every call. Gates, when set, hold CreateOffer or
// SetRemoteDescription until closed.
type Transport struct {
	RemoteID string

	offerGate  chan struct{}
	remoteGate chan struct{}
	events     chan peer.Event

	mu      sync.Mutex
	tracks  bool
	local   json.RawMessage
	remote  json.RawMessage
	sets    int
	applied []json.RawMessage
	closed  bool
}

func NewTransport(remoteID string) *Transport {
	return &Transport{
		RemoteID: remoteID,
		events:   make(chan peer.Event, 32),
	}
}

func wait(ctx context.Context, gate chan struct{}) error {
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Transport) AddLocalTracks(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	t.tracks = true
	return nil
}

func (t *Transport) CreateOffer(ctx context.Context) (json.RawMessage, error) {
	if err := wait(ctx, t.offerGate); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, ErrClosed
	}
	t.local = json.RawMessage(fmt.Sprintf(`{"type":"offer","sdp":"offer to %s"}`, t.RemoteID))
	return t.local, nil
}

func (t *Transport) CreateAnswer(context.Context) (json.RawMessage, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, ErrClosed
	}
	if t.remote == nil {
		return nil, ErrNoRemoteDescription
	}
	t.local = json.RawMessage(fmt.Sprintf(`{"type":"answer","sdp":"answer to %s"}`, t.RemoteID))
	return t.local, nil
}

func (t *Transport) SetRemoteDescription(ctx context.Context, desc json.RawMessage) error {
	if err := wait(ctx, t.remoteGate); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	t.remote = desc
	t.sets++
	return nil
}

func (t *Transport) AddCandidate(c json.RawMessage) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	if t.remote == nil {
		return ErrNoRemoteDescription
	}
	t.applied = append(t.applied, c)
	return nil
}

func (t *Transport) Events() <-chan peer.Event { return t.events }

func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

// Emit pushes a notification as the native transport would.
func (t *Transport) Emit(ev peer.Event) { t.events <- ev }

func (t *Transport) Applied() []json.RawMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]json.RawMessage(nil), t.applied...)
}

func (t *Transport) Remote() json.RawMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remote
}

// RemoteSets counts SetRemoteDescription calls that completed.
func (t *Transport) RemoteSets() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sets
}

func (t *Transport) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *Transport) HasTracks() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tracks
}

// Factory builds Transports and remembers them per remote.
type Factory struct {
	OfferGate  chan struct{}
	RemoteGate chan struct{}
	Err        error

	mu    sync.Mutex
	built map[string][]*Transport
}

func (f *Factory) New(remoteID string) (peer.Transport, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	t := NewTransport(remoteID)
	t.offerGate = f.OfferGate
	t.remoteGate = f.RemoteGate

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.built == nil {
		f.built = make(map[string][]*Transport)
	}
	f.built[remoteID] = append(f.built[remoteID], t)
	return t, nil
}

func (f *Factory) Count(remoteID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.built[remoteID])
}

// Last is the most recent transport built for remoteID.
func (f *Factory) Last(remoteID string) *Transport {
	f.mu.Lock()
	defer f.mu.Unlock()
	ts := f.built[remoteID]
	if len(ts) == 0 {
		return nil
	}
	return ts[len(ts)-1]
}

func (f *Factory) All() []*Transport {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*Transport
	for _, ts := range f.built {
		out = append(out, ts...)
	}
	return out
}

// Signaler records outbound envelopes.
type Signaler struct {
	mu   sync.Mutex
	sent []*envelope.Envelope
}

func (s *Signaler) Send(env *envelope.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, env)
	return nil
}

func (s *Signaler) Sent() []*envelope.Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*envelope.Envelope(nil), s.sent...)
}

// Stream is a bare peer.Stream.
type Stream string

func (s Stream) ID() string { return string(s) }
