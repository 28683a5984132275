// Package client is a Go client for the relay: it keeps the room subscriptions
// of the pages a user has open and folds remote events into local views.
package client

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/blogrelay/internal/domain"
)

var ErrNotConnected = errors.New("client: not connected")

// Observer sees every remote event, after the appliers.
type Observer func(domain.Event)

type Session struct {
	url    string
	dialer *websocket.Dialer

	mu        sync.Mutex
	conn      *websocket.Conn
	rooms     map[domain.RoomKey]int
	appliers  []Applier
	observers []Observer
	waiters   map[domain.EventName][]chan domain.Event

	writeMu sync.Mutex
}

// Dial opens a session against a relay socket URL such as ws://host:3005/socket.
func Dial(ctx context.Context, url string) (*Session, error) {
	s := &Session{
		url:     url,
		dialer:  websocket.DefaultDialer,
		rooms:   make(map[domain.RoomKey]int),
		waiters: make(map[domain.EventName][]chan domain.Event),
	}
	conn, err := s.dial(ctx)
	if err != nil {
		return nil, err
	}
	s.conn = conn
	return s, nil
}

func (s *Session) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", s.url, err)
	}
	log.Debug().Str("module", "client").Str("url", s.url).Msg("connected")
	return conn, nil
}

// Attach registers local state that remote events are applied to.
func (s *Session) Attach(a Applier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appliers = append(s.appliers, a)
}

// Detach removes a previously attached applier.
func (s *Session) Detach(a Applier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appliers = slices.DeleteFunc(s.appliers, func(x Applier) bool { return x == a })
}

func (s *Session) Handle(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// Run reads from the current connection until it fails or ctx ends.
// After Reconnect, call Run again.
func (s *Session) Run(ctx context.Context) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read: %w", err)
		}
		ev, err := domain.DecodeEvent(data)
		if err != nil {
			log.Warn().Err(err).Str("module", "client").Msg("bad frame from relay")
			continue
		}
		s.dispatch(ev)
	}
}

// dispatch hands replies to their waiters and everything else to the
// appliers and observers.
func (s *Session) dispatch(ev domain.Event) {
	s.mu.Lock()
	if q := s.waiters[ev.Name]; len(q) > 0 {
		ch := q[0]
		s.waiters[ev.Name] = q[1:]
		s.mu.Unlock()
		ch <- ev
		return
	}
	appliers := slices.Clone(s.appliers)
	observers := slices.Clone(s.observers)
	s.mu.Unlock()

	if ev.Name == domain.EventError {
		log.Warn().Str("module", "client").RawJSON("reply", ev.Data).Msg("relay rejected a frame")
	}
	for _, a := range appliers {
		a.Apply(ev)
	}
	for _, o := range observers {
		o(ev)
	}
}

func (s *Session) write(ctx context.Context, ev domain.Event) error {
	frame, err := ev.Encode()
	if err != nil {
		return err
	}

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(10 * time.Second)
	}
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("write %s: %w", ev.Name, err)
	}
	return nil
}

// Publish emits a domain event to the relay.
func (s *Session) Publish(ctx context.Context, name domain.EventName, v any) error {
	ev, err := domain.NewEvent(name, v)
	if err != nil {
		return err
	}
	return s.write(ctx, ev)
}

// Commit is called once the CRUD API has accepted a mutation. The record is
// applied locally first and then announced; the sender never gets its own
// echo back.
func (s *Session) Commit(ctx context.Context, local Applier, name domain.EventName, record any) error {
	ev, err := domain.NewEvent(name, record)
	if err != nil {
		return err
	}
	if local != nil {
		local.Apply(ev)
	}
	return s.write(ctx, ev)
}

// enter counts nested subscriptions to the same room; only the first one
// reaches the relay. A failed join is not counted, so a retry sends it again.
func (s *Session) enter(ctx context.Context, key domain.RoomKey, name domain.EventName, id string) error {
	s.mu.Lock()
	s.rooms[key]++
	first := s.rooms[key] == 1
	s.mu.Unlock()
	if !first {
		return nil
	}
	if err := s.Publish(ctx, name, id); err != nil {
		s.mu.Lock()
		if s.rooms[key]--; s.rooms[key] <= 0 {
			delete(s.rooms, key)
		}
		s.mu.Unlock()
		return err
	}
	return nil
}

// leave drops one subscription. When the last leave cannot be sent the room
// stays held, matching the relay's view of it.
func (s *Session) leave(ctx context.Context, key domain.RoomKey, name domain.EventName, id string) error {
	s.mu.Lock()
	n, ok := s.rooms[key]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	if n > 1 {
		s.rooms[key] = n - 1
		s.mu.Unlock()
		return nil
	}
	delete(s.rooms, key)
	s.mu.Unlock()
	if err := s.Publish(ctx, name, id); err != nil {
		s.mu.Lock()
		s.rooms[key]++
		s.mu.Unlock()
		return err
	}
	return nil
}

// EnterView subscribes to a post's room while its page is open.
func (s *Session) EnterView(ctx context.Context, postID string) error {
	return s.enter(ctx, domain.BlogRoom(postID), domain.EventJoinBlog, postID)
}

func (s *Session) LeaveView(ctx context.Context, postID string) error {
	return s.leave(ctx, domain.BlogRoom(postID), domain.EventLeaveBlog, postID)
}

// WatchComment subscribes to the like stream of one comment.
func (s *Session) WatchComment(ctx context.Context, commentID string) error {
	return s.enter(ctx, domain.CommentRoom(commentID), domain.EventJoinComment, commentID)
}

func (s *Session) UnwatchComment(ctx context.Context, commentID string) error {
	return s.leave(ctx, domain.CommentRoom(commentID), domain.EventLeaveComment, commentID)
}

// Rooms lists the rooms the session currently holds.
func (s *Session) Rooms() []domain.RoomKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.RoomKey, 0, len(s.rooms))
	for k := range s.rooms {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// request sends a control event and waits for the reply carrying name.
// Run must be active for the reply to arrive.
func (s *Session) request(ctx context.Context, send, reply domain.EventName) (domain.Event, error) {
	ch := make(chan domain.Event, 1)
	s.mu.Lock()
	s.waiters[reply] = append(s.waiters[reply], ch)
	s.mu.Unlock()

	drop := func() {
		s.mu.Lock()
		s.waiters[reply] = slices.DeleteFunc(s.waiters[reply], func(c chan domain.Event) bool { return c == ch })
		s.mu.Unlock()
	}

	if err := s.Publish(ctx, send, nil); err != nil {
		drop()
		return domain.Event{}, err
	}
	select {
	case ev := <-ch:
		return ev, nil
	case <-ctx.Done():
		drop()
		return domain.Event{}, ctx.Err()
	}
}

// WhoAmI asks the relay for this connection's id and rooms. The answer
// reflects every frame this session sent before it.
func (s *Session) WhoAmI(ctx context.Context) (domain.WhoAmI, error) {
	ev, err := s.request(ctx, domain.EventWhoAmI, domain.EventWhoAmI)
	if err != nil {
		return domain.WhoAmI{}, err
	}
	w, ok := decode[domain.WhoAmI](ev)
	if !ok {
		return domain.WhoAmI{}, fmt.Errorf("whoami: bad reply %s", ev.Data)
	}
	return w, nil
}

func (s *Session) Ping(ctx context.Context) error {
	_, err := s.request(ctx, domain.EventPing, domain.EventPong)
	return err
}

// Reconnect replaces the connection and re-issues the join for every room
// the session holds. Nothing missed while disconnected is replayed.
func (s *Session) Reconnect(ctx context.Context) error {
	conn, err := s.dial(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	old := s.conn
	s.conn = conn
	s.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}

	rooms := s.Rooms()
	for _, key := range rooms {
		var err error
		switch {
		case key.IsBlog():
			err = s.Publish(ctx, domain.EventJoinBlog, key.ID())
		case key.IsComment():
			err = s.Publish(ctx, domain.EventJoinComment, key.ID())
		}
		if err != nil {
			return fmt.Errorf("rejoin %s: %w", key, err)
		}
	}
	log.Info().Str("module", "client").Int("rooms", len(rooms)).Msg("reconnected")
	return nil
}

func (s *Session) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn == nil {
		return nil
	}

	s.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	s.writeMu.Unlock()
	return conn.Close()
}
