package signal

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/blogrelay/internal/core"
	"github.com/dkeye/blogrelay/internal/domain"
)

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.opts.PingPeriod)
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
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.opts.WriteWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.opts.WriteWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, sid core.ConnID, c *WsSignalConn) {
	defer func() {
		cancel()
		// The connection context is gone by now; give the relay a bounded
		// window to drop the membership.
		dctx, dcancel := context.WithTimeout(context.Background(), ctl.opts.WriteWait)
		if err := ctl.Relay.Disconnect(dctx, sid); err != nil {
			log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("relay disconnect")
		}
		dcancel()
		if ctl.limiter != nil {
			ctl.limiter.Forget(sid)
		}
		c.Close()
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
	}()

	c.conn.SetReadLimit(ctl.opts.ReadLimit)
	if err := c.conn.SetReadDeadline(time.Now().Add(ctl.opts.PongWait)); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("readPump set deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(ctl.opts.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
			}
			return
		}
		ctl.handleSignal(ctx, sid, c, data)
	}
}

func (ctl *SignalWSController) handleSignal(ctx context.Context, sid core.ConnID, c *WsSignalConn, data []byte) {
	ev, err := domain.DecodeEvent(data)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("bad json")
		ctl.sendError(c, "", "bad_json")
		return
	}

	switch ev.Name {
	case "":
		ctl.sendError(c, "", "missing_event")
	case domain.EventJoinBlog:
		ctl.handleJoin(ctx, sid, c, ev, domain.BlogRoom)
	case domain.EventLeaveBlog:
		ctl.handleLeave(ctx, sid, c, ev, domain.BlogRoom)
	case domain.EventJoinComment:
		ctl.handleJoin(ctx, sid, c, ev, domain.CommentRoom)
	case domain.EventLeaveComment:
		ctl.handleLeave(ctx, sid, c, ev, domain.CommentRoom)
	case domain.EventPing:
		ctl.handlePing(c)
	case domain.EventWhoAmI:
		ctl.handleWhoAmI(ctx, sid, c)
	default:
		ctl.handleEvent(ctx, sid, c, ev)
	}
}

func (ctl *SignalWSController) send(c *WsSignalConn, name domain.EventName, v any) {
	ev, err := domain.NewEvent(name, v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("send marshal")
		return
	}
	frame, err := ev.Encode()
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("send encode")
		return
	}
	_ = c.TrySend(frame)
}

func (ctl *SignalWSController) sendError(c *WsSignalConn, event domain.EventName, reason string) {
	ctl.send(c, domain.EventError, domain.ErrorReply{Event: event, Error: reason})
}
