package peer

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"

	"github.com/dkeye/Trio/internal/envelope"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
)

// Manager owns the links of one local session. Each link negotiates on its
// own goroutine; there is no lock spanning links.
type Manager struct {
	newTransport TransportFactory
	signaler     Signaler
	renderer     Renderer

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	links map[string]*Link

	negotiations conc.WaitGroup
	loops        conc.WaitGroup
}

func NewManager(factory TransportFactory, signaler Signaler, renderer Renderer) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		newTransport: factory,
		signaler:     signaler,
		renderer:     renderer,
		ctx:          ctx,
		cancel:       cancel,
		links:        make(map[string]*Link),
	}
}

// Initiate opens a link toward a newly discovered member and sends it an
// offer. A remote that already has a link is left alone.
func (m *Manager) Initiate(remoteID, displayName string) error {
	m.mu.Lock()
	if _, ok := m.links[remoteID]; ok {
		m.mu.Unlock()
		log.Debug().Str("module", "peer.manager").Str("remote", remoteID).Msg("initiate: link exists")
		return nil
	}
	l, err := m.createLocked(remoteID, displayName)
	m.mu.Unlock()
	if err != nil {
		return err
	}

	m.negotiations.Go(func() {
		m.finish(l, m.offer(l))
	})
	return nil
}

// AcceptOffer answers an inbound offer. An existing link for the same remote
// is replaced: its transport is closed and its queue discarded.
func (m *Manager) AcceptOffer(remoteID, displayName string, desc json.RawMessage) error {
	m.mu.Lock()
	old := m.links[remoteID]
	delete(m.links, remoteID)
	l, err := m.createLocked(remoteID, displayName)
	m.mu.Unlock()

	if old != nil {
		log.Info().Str("module", "peer.manager").Str("remote", remoteID).Str("state", old.State().String()).Msg("offer replaces existing link")
		old.close(StateClosed)
	}
	if err != nil {
		if old != nil {
			m.renderer.OnParticipantRemoved(remoteID)
		}
		return err
	}
	if err := l.transition(StateCreated, StateOfferReceived); err != nil {
		return err
	}

	m.negotiations.Go(func() {
		m.finish(l, m.answer(l, desc))
	})
	return nil
}

// CompleteAnswer installs the answer to an offer this side sent.
func (m *Manager) CompleteAnswer(remoteID string, desc json.RawMessage) error {
	l, ok := m.Get(remoteID)
	if !ok {
		return ErrUnknownLink
	}
	if err := l.claimAnswer(); err != nil {
		log.Warn().Err(err).Str("module", "peer.manager").Str("remote", remoteID).Str("state", l.State().String()).Msg("unexpected answer")
		return err
	}

	m.negotiations.Go(func() {
		m.finish(l, l.installRemote(desc))
	})
	return nil
}

// AddCandidate applies a remote candidate, or queues it until the remote
// description is installed.
func (m *Manager) AddCandidate(remoteID string, candidate json.RawMessage) error {
	l, ok := m.Get(remoteID)
	if !ok {
		return ErrUnknownLink
	}
	return l.addRemoteCandidate(candidate)
}

// Close tears down the link to remoteID. Unknown remotes are a no-op.
func (m *Manager) Close(remoteID string) {
	m.mu.Lock()
	l, ok := m.links[remoteID]
	delete(m.links, remoteID)
	m.mu.Unlock()
	if ok {
		m.release(l, StateClosed)
	}
}

// CloseAll closes every link and waits for their goroutines to exit.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	links := make([]*Link, 0, len(m.links))
	for id, l := range m.links {
		links = append(links, l)
		delete(m.links, id)
	}
	m.mu.Unlock()

	for _, l := range links {
		m.release(l, StateClosed)
	}
	m.negotiations.Wait()
	m.loops.Wait()
}

// Shutdown closes every link and stops accepting new work.
func (m *Manager) Shutdown() {
	m.cancel()
	m.CloseAll()
}

// Wait blocks until in-flight negotiations have finished.
func (m *Manager) Wait() {
	m.negotiations.Wait()
}

func (m *Manager) Get(remoteID string) (*Link, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.links[remoteID]
	return l, ok
}

func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.links)
}

func (m *Manager) Remotes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.links))
	for id := range m.links {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (m *Manager) createLocked(remoteID, displayName string) (*Link, error) {
	if m.ctx.Err() != nil {
		return nil, ErrLinkClosed
	}
	t, err := m.newTransport(remoteID)
	if err != nil {
		log.Error().Err(err).Str("module", "peer.manager").Str("remote", remoteID).Msg("create transport")
		return nil, err
	}
	l := newLink(m.ctx, remoteID, displayName, t)
	m.links[remoteID] = l
	m.loops.Go(func() { m.runEvents(l) })
	log.Info().Str("module", "peer.manager").Str("remote", remoteID).Str("name", displayName).Msg("link created")
	return l, nil
}

func (m *Manager) offer(l *Link) error {
	if err := l.transport.AddLocalTracks(l.ctx); err != nil {
		return err
	}
	offer, err := l.transport.CreateOffer(l.ctx)
	if err != nil {
		return err
	}
	if err := l.transition(StateCreated, StateOfferSent); err != nil {
		return err
	}
	if err := m.signaler.Send(envelope.Offer(l.RemoteID, offer)); err != nil {
		return err
	}
	l.markLocalSent(m.candidateSender(l.RemoteID))
	return nil
}

func (m *Manager) answer(l *Link, desc json.RawMessage) error {
	if err := l.transport.AddLocalTracks(l.ctx); err != nil {
		return err
	}
	if err := l.installRemote(desc); err != nil {
		return err
	}
	answer, err := l.transport.CreateAnswer(l.ctx)
	if err != nil {
		return err
	}
	if l.State().Terminal() {
		return ErrLinkClosed
	}
	if err := m.signaler.Send(envelope.Answer(l.RemoteID, answer)); err != nil {
		return err
	}
	l.markLocalSent(m.candidateSender(l.RemoteID))
	return nil
}

// finish turns a negotiation error into a failed link. Errors caused by the
// link being closed underneath the negotiation are expected.
func (m *Manager) finish(l *Link, err error) {
	if err == nil {
		return
	}
	if errors.Is(err, ErrLinkClosed) || l.ctx.Err() != nil {
		log.Debug().Str("module", "peer.manager").Str("remote", l.RemoteID).Msg("negotiation aborted: link closed")
		return
	}
	log.Warn().Err(err).Str("module", "peer.manager").Str("remote", l.RemoteID).Msg("negotiation failed")
	m.drop(l, StateFailed)
}

func (m *Manager) runEvents(l *Link) {
	events := l.transport.Events()
	for {
		select {
		case <-l.ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			m.handleEvent(l, ev)
		}
	}
}

func (m *Manager) handleEvent(l *Link, ev Event) {
	switch ev.Kind {
	case EventCandidate:
		l.sendLocalCandidate(ev.Candidate, m.candidateSender(l.RemoteID))
	case EventTrack:
		if ev.Stream != nil && l.recordStream(ev.Stream) {
			log.Info().Str("module", "peer.manager").Str("remote", l.RemoteID).Str("stream", ev.Stream.ID()).Msg("remote stream available")
			m.renderer.OnRemoteStreamAvailable(l.RemoteID, ev.Stream)
		}
	case EventState:
		switch ev.State {
		case TransportConnected:
			l.markConnected()
		case TransportFailed, TransportDisconnected:
			log.Info().Str("module", "peer.manager").Str("remote", l.RemoteID).Int("state", int(ev.State)).Msg("transport lost")
			m.drop(l, StateFailed)
		case TransportConnecting, TransportClosed:
		}
	}
}

// drop removes l if it is still the current link for its remote.
func (m *Manager) drop(l *Link, terminal State) {
	m.mu.Lock()
	if m.links[l.RemoteID] == l {
		delete(m.links, l.RemoteID)
	}
	m.mu.Unlock()
	m.release(l, terminal)
}

func (m *Manager) release(l *Link, terminal State) {
	if l.close(terminal) {
		log.Info().Str("module", "peer.manager").Str("remote", l.RemoteID).Str("state", terminal.String()).Msg("link removed")
		m.renderer.OnParticipantRemoved(l.RemoteID)
	}
}

func (m *Manager) candidateSender(remoteID string) func(json.RawMessage) {
	return func(c json.RawMessage) {
		if err := m.signaler.Send(envelope.Candidate(remoteID, c)); err != nil {
			log.Warn().Err(err).Str("module", "peer.manager").Str("remote", remoteID).Msg("send candidate")
		}
	}
}
