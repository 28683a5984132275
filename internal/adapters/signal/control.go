package signal

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/blogrelay/internal/core"
	"github.com/dkeye/blogrelay/internal/domain"
)

func (ctl *SignalWSController) handlePing(conn *WsSignalConn) {
	ctl.send(conn, domain.EventPong, nil)
}

// handleWhoAmI reports the connection id and its rooms. The answer reflects
// every command this connection sent before it.
func (ctl *SignalWSController) handleWhoAmI(ctx context.Context, sid core.ConnID, conn *WsSignalConn) {
	rooms, err := ctl.Relay.RoomsOf(ctx, sid)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("whoami")
		return
	}
	if rooms == nil {
		rooms = []domain.RoomKey{}
	}
	ctl.send(conn, domain.EventWhoAmI, domain.WhoAmI{ID: string(sid), Rooms: rooms})
}
