package signal

import (
	"context"
	"errors"
	"time"

	"github.com/dkeye/Trio/internal/core"
	"github.com/dkeye/Trio/internal/envelope"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.cfg.WriteWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Warn().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(ctl.cfg.WriteWait)
			if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				log.Warn().Err(err).Str("module", "signal").Msg("writePump ping")
				return
			}
		}
	}
}

// readPump owns the session lifetime: when it returns the participant is
// disconnected exactly once.
func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, sid core.SessionID, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
		cancel()
		c.Close()
		ctl.Router.Disconnect(sid)
		ctl.Limiter.Forget(sid)
	}()

	c.conn.SetReadLimit(ctl.cfg.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(ctl.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(ctl.cfg.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
			}
			return
		}
		ctl.handleSignal(sid, c, data)
	}
}

func (ctl *SignalWSController) handleSignal(sid core.SessionID, c *WsSignalConn, data []byte) {
	env, err := envelope.Decode(data)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("discarding malformed envelope")
		return
	}
	if err := env.ValidateFromParticipant(); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Str("kind", string(env.Type)).Msg("discarding invalid envelope")
		if env.Type == envelope.KindJoin && !errors.Is(err, envelope.ErrWrongDirection) {
			ctl.reply(c, envelope.Error(err.Error()))
		}
		return
	}

	switch env.Type {
	case envelope.KindJoin:
		ctl.handleJoin(sid, c, env)
	default:
		ctl.Router.Dispatch(sid, env)
	}
}

func (ctl *SignalWSController) handleJoin(sid core.SessionID, c *WsSignalConn, env *envelope.Envelope) {
	if !ctl.Limiter.Allow(sid) {
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Str("room", env.RoomID).Msg("join rate limited")
		ctl.reply(c, envelope.Error("too many join attempts"))
		return
	}
	ctl.Router.Dispatch(sid, env)
}

func (ctl *SignalWSController) reply(c *WsSignalConn, env *envelope.Envelope) {
	b, err := envelope.Encode(env)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("reply encode")
		return
	}
	_ = c.TrySend(b)
}
