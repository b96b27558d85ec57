package peer

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"
)

// Link is the local side of the connection to one remote participant.
type Link struct {
	RemoteID    string
	DisplayName string

	transport Transport
	ctx       context.Context
	cancel    context.CancelFunc

	mu        sync.Mutex
	state     State
	remoteSet bool
	// an answer is being installed
	answering bool
	// remote candidates received before the remote description
	pending []json.RawMessage
	localSent bool
	// local candidates gathered before our description went out
	outbound []json.RawMessage
	stream   Stream
}

func newLink(parent context.Context, remoteID, displayName string, t Transport) *Link {
	ctx, cancel := context.WithCancel(parent)
	return &Link{
		RemoteID:    remoteID,
		DisplayName: displayName,
		transport:   t,
		ctx:         ctx,
		cancel:      cancel,
		state:       StateCreated,
	}
}

func (l *Link) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Link) Stream() Stream {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stream
}

// Queued is the number of remote candidates waiting for the remote description.
func (l *Link) Queued() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

func (l *Link) transition(from, to State) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state.Terminal() {
		return ErrLinkClosed
	}
	if l.state != from {
		return ErrWrongState
	}
	l.setStateLocked(to)
	return nil
}

func (l *Link) setStateLocked(s State) {
	log.Debug().Str("module", "peer.link").Str("remote", l.RemoteID).Str("from", l.state.String()).Str("to", s.String()).Msg("state")
	l.state = s
}

// claimAnswer admits exactly one answer for an offer we sent.
func (l *Link) claimAnswer() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state.Terminal() {
		return ErrLinkClosed
	}
	if l.state != StateOfferSent || l.answering {
		return ErrWrongState
	}
	l.answering = true
	return nil
}

func (l *Link) addRemoteCandidate(c json.RawMessage) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state.Terminal() {
		return ErrLinkClosed
	}
	if !l.remoteSet {
		l.pending = append(l.pending, c)
		return nil
	}
	return l.transport.AddCandidate(c)
}

// installRemote sets the remote description and then drains the candidate
// queue in arrival order under the same lock that guards enqueueing.
func (l *Link) installRemote(desc json.RawMessage) error {
	if err := l.transport.SetRemoteDescription(l.ctx, desc); err != nil {
		if l.ctx.Err() != nil {
			return ErrLinkClosed
		}
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state.Terminal() {
		return ErrLinkClosed
	}
	l.remoteSet = true
	l.setStateLocked(StateDescriptionExchanged)
	for _, c := range l.pending {
		if err := l.transport.AddCandidate(c); err != nil {
			log.Warn().Err(err).Str("module", "peer.link").Str("remote", l.RemoteID).Msg("apply queued candidate")
		}
	}
	l.pending = nil
	return nil
}

func (l *Link) sendLocalCandidate(c json.RawMessage, send func(json.RawMessage)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state.Terminal() {
		return
	}
	if !l.localSent {
		l.outbound = append(l.outbound, c)
		return
	}
	send(c)
}

func (l *Link) markLocalSent(send func(json.RawMessage)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state.Terminal() {
		return
	}
	l.localSent = true
	for _, c := range l.outbound {
		send(c)
	}
	l.outbound = nil
}

func (l *Link) markConnected() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == StateDescriptionExchanged {
		l.setStateLocked(StateConnected)
	}
}

// recordStream reports whether s is new for this link.
func (l *Link) recordStream(s Stream) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state.Terminal() {
		return false
	}
	if l.stream != nil && l.stream.ID() == s.ID() {
		return false
	}
	l.stream = s
	return true
}

// close releases the transport; only the first call reports true.
func (l *Link) close(terminal State) bool {
	l.mu.Lock()
	if l.state.Terminal() {
		l.mu.Unlock()
		return false
	}
	l.setStateLocked(terminal)
	l.pending = nil
	l.outbound = nil
	l.mu.Unlock()

	l.cancel()
	if err := l.transport.Close(); err != nil {
		log.Warn().Err(err).Str("module", "peer.link").Str("remote", l.RemoteID).Msg("close transport")
	}
	return true
}
