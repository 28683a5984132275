package app

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/blogrelay/internal/core"
	"github.com/dkeye/blogrelay/internal/domain"
	"github.com/dkeye/blogrelay/internal/metrics"
)

const DefaultInboxSize = 1024

type commandKind int

const (
	cmdConnect commandKind = iota
	cmdDisconnect
	cmdJoin
	cmdLeave
	cmdRoute
	cmdQuery
)

type command struct {
	kind  commandKind
	id    core.ConnID
	conn  core.SignalConnection
	key   domain.RoomKey
	event domain.Event
	query func(*core.RoomTable)
	done  chan struct{}
}

// Stats is a point-in-time count of the membership table.
type Stats struct {
	Connections int `json:"connections"`
	Rooms       int `json:"rooms"`
}

// Relay owns the room membership table and routes domain events.
// All state is confined to the Serve goroutine; callers talk to it through
// a single FIFO inbox, so commands are applied one at a time in arrival order.
type Relay struct {
	routes RouteTable
	inbox  chan command
	table  *core.RoomTable
}

func NewRelay(routes RouteTable, inboxSize int) *Relay {
	if inboxSize <= 0 {
		inboxSize = DefaultInboxSize
	}
	return &Relay{
		routes: routes,
		inbox:  make(chan command, inboxSize),
		table:  core.NewRoomTable(),
	}
}

// Serve runs the event loop until ctx is cancelled. It satisfies suture.Service.
func (r *Relay) Serve(ctx context.Context) error {
	log.Info().Str("module", "app.relay").Msg("relay loop started")
	for {
		select {
		case <-ctx.Done():
			conns, rooms := r.table.Counts()
			log.Info().
				Str("module", "app.relay").
				Int("connections", conns).
				Int("rooms", rooms).
				Msg("relay loop stopped")
			return ctx.Err()
		case cmd := <-r.inbox:
			r.handle(cmd)
		}
	}
}

func (r *Relay) String() string { return "relay" }

func (r *Relay) handle(cmd command) {
	switch cmd.kind {
	case cmdConnect:
		r.table.Add(cmd.id, cmd.conn)
		log.Info().Str("module", "app.relay").Str("conn", string(cmd.id)).Msg("connected")
	case cmdDisconnect:
		left := r.table.Remove(cmd.id)
		log.Info().Str("module", "app.relay").Str("conn", string(cmd.id)).Int("rooms_left", len(left)).Msg("disconnected")
	case cmdJoin:
		if r.table.Join(cmd.id, cmd.key) {
			log.Debug().Str("module", "app.relay").Str("conn", string(cmd.id)).Str("room", string(cmd.key)).Msg("joined room")
		}
	case cmdLeave:
		if r.table.Leave(cmd.id, cmd.key) {
			log.Debug().Str("module", "app.relay").Str("conn", string(cmd.id)).Str("room", string(cmd.key)).Msg("left room")
		}
	case cmdRoute:
		r.route(cmd.id, cmd.event)
	case cmdQuery:
		cmd.query(r.table)
		close(cmd.done)
	}
	if cmd.kind != cmdRoute && cmd.kind != cmdQuery {
		metrics.RecordMembership(r.table.Counts())
	}
}

func (r *Relay) route(from core.ConnID, ev domain.Event) {
	rt, ok := r.routes[ev.Name]
	if !ok {
		metrics.UnknownEvents.Inc()
		log.Debug().Str("module", "app.relay").Str("conn", string(from)).Str("event", string(ev.Name)).Msg("no route for event")
		return
	}

	var (
		recipients []core.Recipient
		scope      string
		key        domain.RoomKey
	)
	switch {
	case rt.Global:
		scope = metrics.ScopeGlobal
		recipients = r.table.Everyone("")
	default:
		ok = false
		if rt.Key != nil {
			key, ok = rt.Key(ev.Data)
		}
		if ok {
			scope = metrics.ScopeRoom
			recipients = r.table.Members(key, from)
		} else {
			scope = metrics.ScopeFallback
			recipients = r.table.Everyone(from)
		}
	}
	metrics.EventsRouted.WithLabelValues(string(ev.Name), scope).Inc()

	if len(recipients) == 0 {
		if scope == metrics.ScopeRoom {
			metrics.RoomMisses.WithLabelValues(string(ev.Name)).Inc()
		}
		log.Debug().
			Str("module", "app.relay").
			Str("event", string(ev.Name)).
			Str("room", string(key)).
			Msg("nobody listening")
		return
	}

	frame, err := ev.Encode()
	if err != nil {
		log.Error().Err(err).Str("module", "app.relay").Str("event", string(ev.Name)).Msg("encode event")
		return
	}

	sent := 0
	for _, rc := range recipients {
		if err := rc.Conn.TrySend(frame); err != nil {
			reason := "closed"
			if errors.Is(err, core.ErrBackpressure) {
				reason = "backpressure"
			}
			metrics.DroppedSends.WithLabelValues(reason).Inc()
			log.Debug().Err(err).Str("module", "app.relay").Str("conn", string(rc.ID)).Msg("send dropped")
			continue
		}
		sent++
	}
	metrics.Deliveries.WithLabelValues(string(ev.Name)).Add(float64(sent))
	log.Debug().
		Str("module", "app.relay").
		Str("event", string(ev.Name)).
		Str("scope", scope).
		Str("room", string(key)).
		Int("sent_to", sent).
		Int("dropped", len(recipients)-sent).
		Msg("routed")
}

func (r *Relay) submit(ctx context.Context, cmd command) error {
	select {
	case r.inbox <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Connect registers a connection. No authentication is performed.
func (r *Relay) Connect(ctx context.Context, id core.ConnID, conn core.SignalConnection) error {
	return r.submit(ctx, command{kind: cmdConnect, id: id, conn: conn})
}

// Disconnect removes the connection from every room it joined.
func (r *Relay) Disconnect(ctx context.Context, id core.ConnID) error {
	return r.submit(ctx, command{kind: cmdDisconnect, id: id})
}

// Join is idempotent; joining with an unknown connection is a no-op.
func (r *Relay) Join(ctx context.Context, id core.ConnID, key domain.RoomKey) error {
	return r.submit(ctx, command{kind: cmdJoin, id: id, key: key})
}

// Leave is idempotent; leaving a room that was never joined is a no-op.
func (r *Relay) Leave(ctx context.Context, id core.ConnID, key domain.RoomKey) error {
	return r.submit(ctx, command{kind: cmdLeave, id: id, key: key})
}

// Route forwards ev to its audience. Delivery is best effort and unacknowledged.
func (r *Relay) Route(ctx context.Context, from core.ConnID, ev domain.Event) error {
	return r.submit(ctx, command{kind: cmdRoute, id: from, event: ev})
}

// query runs fn on the loop goroutine and waits for it. Because the inbox is
// FIFO, fn observes every command submitted before it.
func (r *Relay) query(ctx context.Context, fn func(*core.RoomTable)) error {
	done := make(chan struct{})
	if err := r.submit(ctx, command{kind: cmdQuery, query: fn, done: done}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Results are only read once the loop has finished writing them; on error
// the caller gets zero values.
func (r *Relay) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	if err := r.query(ctx, func(t *core.RoomTable) {
		s.Connections, s.Rooms = t.Counts()
	}); err != nil {
		return Stats{}, err
	}
	return s, nil
}

func (r *Relay) Rooms(ctx context.Context) ([]domain.RoomInfo, error) {
	var out []domain.RoomInfo
	if err := r.query(ctx, func(t *core.RoomTable) {
		out = t.Rooms()
	}); err != nil {
		return nil, err
	}
	return out, nil
}

// Room reports a single room; ok is false when nobody is in it.
func (r *Relay) Room(ctx context.Context, key domain.RoomKey) (domain.RoomInfo, bool, error) {
	var (
		info domain.RoomInfo
		ok   bool
	)
	if err := r.query(ctx, func(t *core.RoomTable) {
		if members := t.Members(key, ""); len(members) > 0 {
			info, ok = domain.RoomInfo{Key: key, MemberCount: len(members)}, true
		}
	}); err != nil {
		return domain.RoomInfo{}, false, err
	}
	return info, ok, nil
}

func (r *Relay) RoomsOf(ctx context.Context, id core.ConnID) ([]domain.RoomKey, error) {
	var out []domain.RoomKey
	if err := r.query(ctx, func(t *core.RoomTable) {
		out = t.RoomsOf(id)
	}); err != nil {
		return nil, err
	}
	return out, nil
}
