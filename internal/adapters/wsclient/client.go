// Package wsclient is the participant's connection to the coordinator.
package wsclient

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/dkeye/Trio/internal/envelope"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

var ErrClosed = errors.New("signaling connection closed")

// Client carries envelopes between the local participant and the
// coordinator. It implements peer.Signaler.
type Client struct {
	conn      *websocket.Conn
	serverURL string
	incoming  chan *envelope.Envelope
	outgoing  chan *envelope.Envelope
	done      chan struct{}
	closeOnce sync.Once
}

func NewClient(serverURL string) *Client {
	return &Client{
		serverURL: serverURL,
		incoming:  make(chan *envelope.Envelope, 32),
		outgoing:  make(chan *envelope.Envelope, 64),
		done:      make(chan struct{}),
	}
}

// Connect dials the coordinator. Call Run to start moving envelopes.
func (c *Client) Connect(ctx context.Context) error {
	u, err := url.Parse(c.serverURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	c.conn = conn
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	log.Info().Str("module", "wsclient").Str("server", u.String()).Msg("connected")
	return nil
}

// Run pumps envelopes until the connection drops, Close is called, or ctx is
// done. Incoming is closed when Run returns.
func (c *Client) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.readPump() })
	g.Go(func() error { return c.writePump(ctx) })
	err := g.Wait()
	if errors.Is(err, ErrClosed) {
		return nil
	}
	return err
}

func (c *Client) readPump() error {
	defer func() {
		c.Close()
		close(c.incoming)
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return ErrClosed
			default:
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return ErrClosed
			}
			return fmt.Errorf("read: %w", err)
		}
		env, err := envelope.Decode(data)
		if err != nil {
			log.Warn().Err(err).Str("module", "wsclient").Msg("discarding malformed envelope")
			continue
		}
		select {
		case c.incoming <- env:
		case <-c.done:
			return ErrClosed
		}
	}
}

func (c *Client) writePump(ctx context.Context) error {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case env := <-c.outgoing:
			data, err := envelope.Encode(env)
			if err != nil {
				log.Error().Err(err).Str("module", "wsclient").Msg("encode envelope")
				continue
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return fmt.Errorf("write: %w", err)
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return fmt.Errorf("ping: %w", err)
			}
		case <-ctx.Done():
			c.Close()
			c.drain()
			return ErrClosed
		case <-c.done:
			c.drain()
			return ErrClosed
		}
	}
}

// drain flushes what is already queued, such as a final leave, and says
// goodbye.
func (c *Client) drain() {
	for {
		select {
		case env := <-c.outgoing:
			if data, err := envelope.Encode(env); err == nil {
				_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = c.conn.WriteMessage(websocket.TextMessage, data)
			}
		default:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// Send queues env for the coordinator.
func (c *Client) Send(env *envelope.Envelope) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.outgoing <- env:
		return nil
	case <-c.done:
		return ErrClosed
	}
}

func (c *Client) Incoming() <-chan *envelope.Envelope {
	return c.incoming
}

func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}
