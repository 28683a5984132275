package signal

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/blogrelay/internal/core"
	"github.com/dkeye/blogrelay/internal/domain"
)

// handleJoin reads the id (string or number) carried by join_blog/join_comment.
func (ctl *SignalWSController) handleJoin(
	ctx context.Context,
	sid core.ConnID,
	conn *WsSignalConn,
	ev domain.Event,
	room func(string) domain.RoomKey,
) {
	id, ok := domain.ScalarID(ev.Data)
	if !ok {
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Str("event", string(ev.Name)).Msg("bad join payload")
		ctl.sendError(conn, ev.Name, "bad_payload")
		return
	}
	key := room(id)
	if err := ctl.Relay.Join(ctx, sid, key); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("relay join")
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room", string(key)).Msg("user join room")
}

// handleLeave leaves one room; the connection itself stays open.
func (ctl *SignalWSController) handleLeave(
	ctx context.Context,
	sid core.ConnID,
	conn *WsSignalConn,
	ev domain.Event,
	room func(string) domain.RoomKey,
) {
	id, ok := domain.ScalarID(ev.Data)
	if !ok {
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Str("event", string(ev.Name)).Msg("bad leave payload")
		ctl.sendError(conn, ev.Name, "bad_payload")
		return
	}
	key := room(id)
	if err := ctl.Relay.Leave(ctx, sid, key); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("relay leave")
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room", string(key)).Msg("user left room")
}

// handleEvent hands a domain event to the relay. Payloads are not validated.
func (ctl *SignalWSController) handleEvent(
	ctx context.Context,
	sid core.ConnID,
	conn *WsSignalConn,
	ev domain.Event,
) {
	if ctl.limiter != nil && !ctl.limiter.Allow(sid) {
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Str("event", string(ev.Name)).Msg("rate limited")
		ctl.sendError(conn, ev.Name, "rate_limited")
		return
	}
	if err := ctl.Relay.Route(ctx, sid, ev); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("relay route")
	}
}
