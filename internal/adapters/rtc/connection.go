package rtc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dkeye/Trio/internal/peer"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// STUN only; there is no relay fallback.
var stunServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
}

func DefaultWebRTCConfig() webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{URLs: stunServers},
		},
	}
}

// RemoteStream is the inbound media of one remote participant. Track is the
// first remote track seen for the stream.
type RemoteStream struct {
	id    string
	Track *webrtc.TrackRemote
}

func (s *RemoteStream) ID() string { return s.id }

// WebRTCConnection implements peer.Transport on a pion PeerConnection.
// Candidates trickle out as events; nothing waits for gathering to complete.
type WebRTCConnection struct {
	pc     *webrtc.PeerConnection
	remote string
	tracks []webrtc.TrackLocal

	events    chan peer.Event
	done      chan struct{}
	closeOnce sync.Once
}

// NewFactory returns a peer.TransportFactory that attaches tracks to every
// connection it builds.
func NewFactory(cfg webrtc.Configuration, tracks ...webrtc.TrackLocal) peer.TransportFactory {
	return func(remoteID string) (peer.Transport, error) {
		return NewWebRTCConnection(cfg, remoteID, tracks)
	}
}

func NewWebRTCConnection(cfg webrtc.Configuration, remoteID string, tracks []webrtc.TrackLocal) (*WebRTCConnection, error) {
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}
	c := &WebRTCConnection{
		pc:     pc,
		remote: remoteID,
		tracks: tracks,
		events: make(chan peer.Event, 64),
		done:   make(chan struct{}),
	}
	c.register()
	return c, nil
}

func (c *WebRTCConnection) register() {
	c.pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		log.Debug().Str("module", "webrtc").Str("remote", c.remote).Str("ice_state", s.String()).Msg("ICE state")
	})

	c.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().Str("module", "webrtc").Str("remote", c.remote).Str("peer_connection_state", s.String()).Msg("Peer state")
		c.emit(peer.Event{Kind: peer.EventState, State: transportState(s)})
	})

	c.pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand == nil {
			return
		}
		b, err := json.Marshal(cand.ToJSON())
		if err != nil {
			log.Error().Err(err).Str("module", "webrtc").Str("remote", c.remote).Msg("marshal candidate")
			return
		}
		c.emit(peer.Event{Kind: peer.EventCandidate, Candidate: b})
	})

	c.pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		log.Info().
			Str("module", "webrtc").
			Str("remote", c.remote).
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Str("stream_id", track.StreamID()).
			Msg("OnTrack received")
		c.emit(peer.Event{Kind: peer.EventTrack, Stream: &RemoteStream{id: track.StreamID(), Track: track}})
	})
}

func transportState(s webrtc.PeerConnectionState) peer.TransportState {
	switch s {
	case webrtc.PeerConnectionStateConnected:
		return peer.TransportConnected
	case webrtc.PeerConnectionStateDisconnected:
		return peer.TransportDisconnected
	case webrtc.PeerConnectionStateFailed:
		return peer.TransportFailed
	case webrtc.PeerConnectionStateClosed:
		return peer.TransportClosed
	default:
		return peer.TransportConnecting
	}
}

func (c *WebRTCConnection) emit(ev peer.Event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

func (c *WebRTCConnection) AddLocalTracks(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, t := range c.tracks {
		sender, err := c.pc.AddTrack(t)
		if err != nil {
			return fmt.Errorf("add track %s: %w", t.ID(), err)
		}
		go drainRTCP(sender)
	}
	return nil
}

// drainRTCP keeps interceptors running; pion needs RTCP to be read.
func drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}

func (c *WebRTCConnection) CreateOffer(ctx context.Context) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return nil, err
	}
	return c.setLocal(offer)
}

func (c *WebRTCConnection) CreateAnswer(ctx context.Context) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return nil, err
	}
	return c.setLocal(answer)
}

func (c *WebRTCConnection) setLocal(desc webrtc.SessionDescription) (json.RawMessage, error) {
	if err := c.pc.SetLocalDescription(desc); err != nil {
		return nil, err
	}
	return json.Marshal(desc)
}

func (c *WebRTCConnection) SetRemoteDescription(ctx context.Context, desc json.RawMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var sd webrtc.SessionDescription
	if err := json.Unmarshal(desc, &sd); err != nil {
		return fmt.Errorf("decode session description: %w", err)
	}
	return c.pc.SetRemoteDescription(sd)
}

func (c *WebRTCConnection) AddCandidate(candidate json.RawMessage) error {
	var ci webrtc.ICECandidateInit
	if err := json.Unmarshal(candidate, &ci); err != nil {
		return fmt.Errorf("decode candidate: %w", err)
	}
	return c.pc.AddICECandidate(ci)
}

func (c *WebRTCConnection) Events() <-chan peer.Event { return c.events }

func (c *WebRTCConnection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.pc.Close()
		if err != nil {
			log.Error().Err(err).Str("module", "webrtc").Str("remote", c.remote).Msg("close error")
		} else {
			log.Info().Str("module", "webrtc").Str("remote", c.remote).Msg("closed")
		}
	})
	return err
}
