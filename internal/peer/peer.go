// Package peer keeps one negotiated media link per remote participant.
package peer

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/dkeye/Trio/internal/envelope"
)

var (
	ErrLinkClosed  = errors.New("peer link closed")
	ErrUnknownLink = errors.New("unknown peer link")
	ErrWrongState  = errors.New("peer link in wrong state")
)

type State int

const (
	StateCreated State = iota
	StateOfferSent
	StateOfferReceived
	StateDescriptionExchanged
	StateConnected
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateOfferSent:
		return "offer-sent"
	case StateOfferReceived:
		return "offer-received"
	case StateDescriptionExchanged:
		return "description-exchanged"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

func (s State) Terminal() bool { return s == StateClosed || s == StateFailed }

// Stream is the inbound media handle of a remote participant.
type Stream interface {
	ID() string
}

type EventKind int

const (
	EventCandidate EventKind = iota
	EventTrack
	EventState
)

type TransportState int

const (
	TransportConnecting TransportState = iota
	TransportConnected
	TransportDisconnected
	TransportFailed
	TransportClosed
)

// Event is one notification pushed by a Transport.
type Event struct {
	Kind      EventKind
	Candidate json.RawMessage
	Stream    Stream
	State     TransportState
}

// Transport is the native peer-to-peer media capability for one remote.
// Descriptions and candidates are opaque JSON produced and consumed by the
// implementation. CreateOffer and CreateAnswer also install the result as the
// local description.
type Transport interface {
	AddLocalTracks(ctx context.Context) error
	CreateOffer(ctx context.Context) (json.RawMessage, error)
	CreateAnswer(ctx context.Context) (json.RawMessage, error)
	SetRemoteDescription(ctx context.Context, desc json.RawMessage) error
	AddCandidate(candidate json.RawMessage) error
	Events() <-chan Event
	Close() error
}

type TransportFactory func(remoteID string) (Transport, error)

// Signaler delivers envelopes to the coordinator.
type Signaler interface {
	Send(env *envelope.Envelope) error
}

// Renderer is told when remote media appears and when a remote is gone.
// Calls arrive from link goroutines.
type Renderer interface {
	OnRemoteStreamAvailable(id string, stream Stream)
	OnParticipantRemoved(id string)
}
