// Package mesh keeps the local participant linked to every other member of
// its room.
package mesh

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/dkeye/Trio/internal/envelope"
	"github.com/dkeye/Trio/internal/peer"
	"github.com/rs/zerolog/log"
)

var ErrNotInRoom = errors.New("not in a room")

type ChatMessage struct {
	From        string
	DisplayName string
	Text        string
	SentAt      time.Time
	Private     bool
}

// Observer receives everything the participant's user should see.
type Observer interface {
	OnJoined(roomID string)
	OnMemberJoined(m envelope.Member)
	OnMemberLeft(m envelope.Member)
	OnRoomFull(roomID string)
	OnChat(msg ChatMessage)
	OnError(message string)
}

// Coordinator turns coordinator envelopes into peer link operations. Only
// the newcomer initiates, so each pair of members ends up with one link.
type Coordinator struct {
	links    *peer.Manager
	signaler peer.Signaler
	observer Observer

	mu      sync.Mutex
	roomID  string
	pending string
	members map[string]envelope.Member
}

func NewCoordinator(links *peer.Manager, signaler peer.Signaler, observer Observer) *Coordinator {
	return &Coordinator{
		links:    links,
		signaler: signaler,
		observer: observer,
		members:  make(map[string]envelope.Member),
	}
}

// Join asks for roomID. Links of a room we are already in are closed first,
// matching the leave the coordinator performs on our behalf.
func (c *Coordinator) Join(roomID, displayName string) error {
	if c.Room() != "" {
		c.reset()
	}
	c.mu.Lock()
	c.pending = roomID
	c.mu.Unlock()
	log.Info().Str("module", "mesh").Str("room", roomID).Msg("joining")
	return c.signaler.Send(envelope.Join(roomID, displayName))
}

// Leave closes every link before telling the coordinator.
func (c *Coordinator) Leave() error {
	c.mu.Lock()
	inRoom := c.roomID != ""
	c.mu.Unlock()
	c.reset()
	if !inRoom {
		return nil
	}
	return c.signaler.Send(envelope.Leave())
}

func (c *Coordinator) SendChat(text, to string) error {
	if c.Room() == "" {
		return ErrNotInRoom
	}
	return c.signaler.Send(envelope.Chat(text, to, time.Now().UnixMilli()))
}

func (c *Coordinator) Room() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomID
}

// Members lists the remote members, sorted by id.
func (c *Coordinator) Members() []envelope.Member {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]envelope.Member, 0, len(c.members))
	for _, m := range c.members {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Run handles envelopes until in is closed or ctx is done.
func (c *Coordinator) Run(ctx context.Context, in <-chan *envelope.Envelope) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env, ok := <-in:
			if !ok {
				return nil
			}
			if err := c.Handle(env); err != nil {
				log.Warn().Err(err).Str("module", "mesh").Str("kind", string(env.Type)).Msg("envelope discarded")
			}
		}
	}
}

// Handle processes one envelope from the coordinator.
func (c *Coordinator) Handle(env *envelope.Envelope) error {
	if err := env.ValidateFromCoordinator(); err != nil {
		return err
	}

	switch env.Type {
	case envelope.KindJoined:
		c.mu.Lock()
		c.roomID = env.RoomID
		c.pending = ""
		c.mu.Unlock()
		c.observer.OnJoined(env.RoomID)
	case envelope.KindExistingMembers:
		if c.Room() == "" {
			log.Debug().Str("module", "mesh").Msg("member list outside a room dropped")
			return nil
		}
		for _, m := range env.Members {
			c.remember(m)
			if err := c.links.Initiate(m.ID, m.DisplayName); err != nil {
				log.Warn().Err(err).Str("module", "mesh").Str("remote", m.ID).Msg("initiate")
			}
		}
	case envelope.KindMemberJoined:
		m := env.Subject()
		c.remember(m)
		c.observer.OnMemberJoined(m)
	case envelope.KindMemberLeft:
		m := env.Subject()
		c.mu.Lock()
		delete(c.members, m.ID)
		c.mu.Unlock()
		c.links.Close(m.ID)
		c.observer.OnMemberLeft(m)
	case envelope.KindRoomFull:
		c.mu.Lock()
		room := c.pending
		c.mu.Unlock()
		log.Info().Str("module", "mesh").Str("room", room).Msg("room full")
		c.reset()
		c.observer.OnRoomFull(room)
	case envelope.KindOffer:
		if !c.isMember(env.From) {
			log.Debug().Str("module", "mesh").Str("remote", env.From).Msg("offer from non-member dropped")
			return nil
		}
		return c.links.AcceptOffer(env.From, env.DisplayName, env.Description)
	case envelope.KindAnswer:
		if !c.isMember(env.From) {
			log.Debug().Str("module", "mesh").Str("remote", env.From).Msg("answer from non-member dropped")
			return nil
		}
		err := c.links.CompleteAnswer(env.From, env.Description)
		if errors.Is(err, peer.ErrUnknownLink) {
			log.Debug().Str("module", "mesh").Str("remote", env.From).Msg("answer for closed link dropped")
			return nil
		}
		return err
	case envelope.KindCandidate:
		if !c.isMember(env.From) {
			log.Debug().Str("module", "mesh").Str("remote", env.From).Msg("candidate from non-member dropped")
			return nil
		}
		err := c.links.AddCandidate(env.From, env.Candidate)
		if errors.Is(err, peer.ErrUnknownLink) || errors.Is(err, peer.ErrLinkClosed) {
			log.Debug().Str("module", "mesh").Str("remote", env.From).Msg("candidate for closed link dropped")
			return nil
		}
		return err
	case envelope.KindChat:
		c.observer.OnChat(ChatMessage{
			From:        env.From,
			DisplayName: env.DisplayName,
			Text:        env.Text,
			SentAt:      time.UnixMilli(env.SentAt),
			Private:     env.IsPrivate,
		})
	case envelope.KindError:
		c.observer.OnError(env.Message)
	}
	return nil
}

func (c *Coordinator) remember(m envelope.Member) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.roomID == "" && c.pending == "" {
		return
	}
	c.members[m.ID] = m
}

// isMember reports whether id is a current member of the room we are in.
// Negotiation from anyone else would resurrect a closed link.
func (c *Coordinator) isMember(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.roomID == "" {
		return false
	}
	_, ok := c.members[id]
	return ok
}

func (c *Coordinator) reset() {
	c.links.CloseAll()
	c.mu.Lock()
	c.roomID = ""
	c.pending = ""
	c.members = make(map[string]envelope.Member)
	c.mu.Unlock()
}
