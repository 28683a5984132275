package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/blogrelay/internal/core"
	"github.com/dkeye/blogrelay/internal/domain"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.Disabled)
	m.Run()
}

type mockConn struct {
	mu       sync.Mutex
	received []domain.Event
	sendErr  error
}

func (m *mockConn) TrySend(f core.Frame) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	ev, err := domain.DecodeEvent(f)
	if err != nil {
		return err
	}
	m.received = append(m.received, ev)
	return nil
}

func (m *mockConn) Close() {}

func (m *mockConn) events() []domain.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Event(nil), m.received...)
}

func (m *mockConn) names() []domain.EventName {
	var out []domain.EventName
	for _, ev := range m.events() {
		out = append(out, ev.Name)
	}
	return out
}

func startRelay(t *testing.T) *Relay {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	r := NewRelay(DefaultRoutes(), 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return r
}

func connect(t *testing.T, r *Relay, id core.ConnID) *mockConn {
	t.Helper()
	c := &mockConn{}
	require.NoError(t, r.Connect(context.Background(), id, c))
	return c
}

// barrier waits until every command submitted so far has been applied.
func barrier(t *testing.T, r *Relay) Stats {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s, err := r.Stats(ctx)
	require.NoError(t, err)
	return s
}

func event(t *testing.T, name domain.EventName, v any) domain.Event {
	t.Helper()
	ev, err := domain.NewEvent(name, v)
	require.NoError(t, err)
	return ev
}

func TestRelay_JoinIsIdempotent(t *testing.T) {
	r := startRelay(t)
	ctx := context.Background()
	connect(t, r, "a")
	room := domain.BlogRoom("42")

	require.NoError(t, r.Join(ctx, "a", room))
	require.NoError(t, r.Join(ctx, "a", room))

	rooms, err := r.Rooms(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.RoomInfo{{Key: room, MemberCount: 1}}, rooms)
}

func TestRelay_LeaveOnDisconnect(t *testing.T) {
	r := startRelay(t)
	ctx := context.Background()
	a := connect(t, r, "a")
	connect(t, r, "b")
	c := connect(t, r, "c")

	for _, id := range []string{"1", "2"} {
		require.NoError(t, r.Join(ctx, "a", domain.BlogRoom(id)))
		require.NoError(t, r.Join(ctx, "c", domain.BlogRoom(id)))
	}
	require.NoError(t, r.Disconnect(ctx, "a"))

	rooms, err := r.RoomsOf(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, rooms)

	for _, id := range []string{"1", "2"} {
		require.NoError(t, r.Route(ctx, "b", event(t, domain.EventNewComment, domain.Comment{ID: domain.ID("x" + id), PostID: domain.ID(id)})))
	}
	s := barrier(t, r)

	assert.Empty(t, a.events())
	assert.Len(t, c.events(), 2)
	assert.Equal(t, Stats{Connections: 2, Rooms: 2}, s)
}

func TestRelay_NoSelfDelivery(t *testing.T) {
	r := startRelay(t)
	ctx := context.Background()
	a := connect(t, r, "a")
	b := connect(t, r, "b")
	room := domain.BlogRoom("42")
	require.NoError(t, r.Join(ctx, "a", room))
	require.NoError(t, r.Join(ctx, "b", room))

	require.NoError(t, r.Route(ctx, "a", event(t, domain.EventBlogLike, domain.Like{ID: "l1", PostID: "42"})))
	barrier(t, r)

	assert.Empty(t, a.events())
	assert.Equal(t, []domain.EventName{domain.EventBlogLike}, b.names())
}

func TestRelay_RoutingKeyIsolation(t *testing.T) {
	r := startRelay(t)
	ctx := context.Background()
	connect(t, r, "sender")
	inA := connect(t, r, "in-a")
	inB := connect(t, r, "in-b")
	require.NoError(t, r.Join(ctx, "in-a", domain.BlogRoom("A")))
	require.NoError(t, r.Join(ctx, "in-b", domain.BlogRoom("B")))

	require.NoError(t, r.Route(ctx, "sender", event(t, domain.EventDeleteComment, domain.Comment{ID: "c1", PostID: "A"})))
	barrier(t, r)

	assert.Len(t, inA.events(), 1)
	assert.Empty(t, inB.events())
}

func TestRelay_FallbackBroadcast(t *testing.T) {
	tests := []struct {
		name    string
		event   domain.EventName
		payload any
	}{
		{"comment without postId", domain.EventNewComment, map[string]string{"id": "c1", "content": "hi"}},
		{"like without commentId", domain.EventLike, map[string]string{"id": "l1"}},
		{"saved post with empty postId", domain.EventSavePost, map[string]string{"id": "s1", "postId": ""}},
		{"non-object payload", domain.EventDeleteComment, "c1"},
		{"no payload", domain.EventBlogUnlike, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := startRelay(t)
			ctx := context.Background()
			sender := connect(t, r, "a")
			b := connect(t, r, "b")
			c := connect(t, r, "c")
			require.NoError(t, r.Join(ctx, "b", domain.BlogRoom("unrelated")))

			require.NoError(t, r.Route(ctx, "a", event(t, tt.event, tt.payload)))
			barrier(t, r)

			assert.Empty(t, sender.events())
			assert.Equal(t, []domain.EventName{tt.event}, b.names())
			assert.Equal(t, []domain.EventName{tt.event}, c.names())
		})
	}
}

func TestRelay_CommentScopedEvents(t *testing.T) {
	r := startRelay(t)
	ctx := context.Background()
	connect(t, r, "a")
	watcher := connect(t, r, "watcher")
	blogOnly := connect(t, r, "blog-only")
	require.NoError(t, r.Join(ctx, "watcher", domain.CommentRoom("c1")))
	require.NoError(t, r.Join(ctx, "blog-only", domain.BlogRoom("42")))

	require.NoError(t, r.Route(ctx, "a", event(t, domain.EventLike, domain.CommentLike{ID: "l1", CommentID: "c1"})))
	require.NoError(t, r.Route(ctx, "a", event(t, domain.EventUnlike, domain.CommentLike{ID: "l1", CommentID: "c1"})))
	barrier(t, r)

	assert.Equal(t, []domain.EventName{domain.EventLike, domain.EventUnlike}, watcher.names())
	assert.Empty(t, blogOnly.events())
}

func TestRelay_GlobalEventsReachEveryone(t *testing.T) {
	r := startRelay(t)
	ctx := context.Background()
	a := connect(t, r, "a")
	b := connect(t, r, "b")
	c := connect(t, r, "c")
	require.NoError(t, r.Join(ctx, "b", domain.BlogRoom("1")))

	require.NoError(t, r.Route(ctx, "a", event(t, domain.EventProfileFollower, domain.Follow{ID: "f1"})))
	barrier(t, r)

	for _, m := range []*mockConn{a, b, c} {
		assert.Equal(t, []domain.EventName{domain.EventProfileFollower}, m.names())
	}
}

func TestRelay_EmptyRoomIsSilentlyDiscarded(t *testing.T) {
	r := startRelay(t)
	ctx := context.Background()
	a := connect(t, r, "a")
	other := connect(t, r, "other")
	require.NoError(t, r.Join(ctx, "a", domain.BlogRoom("42")))

	require.NoError(t, r.Route(ctx, "a", event(t, domain.EventNewComment, domain.Comment{ID: "c1", PostID: "42"})))
	require.NoError(t, r.Route(ctx, "a", event(t, domain.EventNewComment, domain.Comment{ID: "c2", PostID: "nobody"})))
	barrier(t, r)

	assert.Empty(t, a.events())
	assert.Empty(t, other.events())
}

func TestRelay_UnknownEventIgnored(t *testing.T) {
	r := startRelay(t)
	ctx := context.Background()
	connect(t, r, "a")
	b := connect(t, r, "b")

	require.NoError(t, r.Route(ctx, "a", domain.Event{Name: "send_comment", Data: []byte(`"hi"`)}))
	barrier(t, r)

	assert.Empty(t, b.events())
}

func TestRelay_EventNameAndPayloadPreserved(t *testing.T) {
	r := startRelay(t)
	ctx := context.Background()
	connect(t, r, "a")
	b := connect(t, r, "b")
	require.NoError(t, r.Join(ctx, "b", domain.BlogRoom("42")))

	require.NoError(t, r.Route(ctx, "a", domain.Event{
		Name: domain.EventBlogUnlike,
		Data: []byte(`{"id":"l1","postId":42,"extra":true}`),
	}))
	barrier(t, r)

	got := b.events()
	require.Len(t, got, 1)
	assert.Equal(t, domain.EventBlogUnlike, got[0].Name)
	assert.JSONEq(t, `{"id":"l1","postId":42,"extra":true}`, string(got[0].Data))
}

func TestRelay_FailedSendDoesNotAffectOthers(t *testing.T) {
	r := startRelay(t)
	ctx := context.Background()
	connect(t, r, "a")
	slow := connect(t, r, "slow")
	slow.sendErr = core.ErrBackpressure
	fast := connect(t, r, "fast")
	for _, id := range []core.ConnID{"slow", "fast"} {
		require.NoError(t, r.Join(ctx, id, domain.BlogRoom("42")))
	}

	require.NoError(t, r.Route(ctx, "a", event(t, domain.EventNewComment, domain.Comment{ID: "c1", PostID: "42"})))
	s := barrier(t, r)

	assert.Empty(t, slow.events())
	assert.Len(t, fast.events(), 1)
	assert.Equal(t, 3, s.Connections)
}

func TestRelay_JoinAfterDisconnectIsNoop(t *testing.T) {
	r := startRelay(t)
	ctx := context.Background()
	connect(t, r, "a")
	require.NoError(t, r.Disconnect(ctx, "a"))
	require.NoError(t, r.Join(ctx, "a", domain.BlogRoom("1")))
	require.NoError(t, r.Leave(ctx, "a", domain.BlogRoom("1")))

	assert.Equal(t, Stats{}, barrier(t, r))
}

func TestRelay_Room(t *testing.T) {
	r := startRelay(t)
	ctx := context.Background()
	connect(t, r, "a")
	require.NoError(t, r.Join(ctx, "a", domain.BlogRoom("1")))

	info, ok, err := r.Room(ctx, domain.BlogRoom("1"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, info.MemberCount)

	_, ok, err = r.Room(ctx, domain.BlogRoom("2"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRelay_SubmitHonoursContext(t *testing.T) {
	r := NewRelay(DefaultRoutes(), 1) // loop never started
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	require.NoError(t, r.Join(ctx, "a", domain.BlogRoom("1")))
	assert.ErrorIs(t, r.Join(ctx, "a", domain.BlogRoom("2")), context.DeadlineExceeded)
}
