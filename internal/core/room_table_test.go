package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/blogrelay/internal/domain"
)

type nopConn struct{}

func (nopConn) TrySend(Frame) error { return nil }
func (nopConn) Close()              {}

func ids(rs []Recipient) []ConnID {
	out := make([]ConnID, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.ID)
	}
	return out
}

func TestRoomTable_JoinIsIdempotent(t *testing.T) {
	tbl := NewRoomTable()
	tbl.Add("a", nopConn{})
	room := domain.BlogRoom("42")

	assert.True(t, tbl.Join("a", room))
	assert.False(t, tbl.Join("a", room))

	assert.Equal(t, []domain.RoomInfo{{Key: room, MemberCount: 1}}, tbl.Rooms())
	assert.Equal(t, []ConnID{"a"}, ids(tbl.Members(room, "")))
}

func TestRoomTable_JoinUnknownConnection(t *testing.T) {
	tbl := NewRoomTable()
	assert.False(t, tbl.Join("ghost", domain.BlogRoom("1")))
	_, rooms := tbl.Counts()
	assert.Zero(t, rooms)
}

func TestRoomTable_LeaveIsIdempotent(t *testing.T) {
	tbl := NewRoomTable()
	tbl.Add("a", nopConn{})
	tbl.Add("b", nopConn{})
	room := domain.BlogRoom("42")
	tbl.Join("a", room)
	tbl.Join("b", room)

	assert.True(t, tbl.Leave("a", room))
	assert.False(t, tbl.Leave("a", room))
	assert.False(t, tbl.Leave("a", domain.BlogRoom("never-joined")))
	assert.Equal(t, []ConnID{"b"}, ids(tbl.Members(room, "")))
}

func TestRoomTable_EmptyRoomIsDeleted(t *testing.T) {
	tbl := NewRoomTable()
	tbl.Add("a", nopConn{})
	for _, id := range []string{"1", "2", "3"} {
		tbl.Join("a", domain.BlogRoom(id))
		tbl.Leave("a", domain.BlogRoom(id))
	}
	_, rooms := tbl.Counts()
	assert.Zero(t, rooms)
	assert.Empty(t, tbl.Rooms())
}

func TestRoomTable_RemoveLeavesEveryRoom(t *testing.T) {
	tbl := NewRoomTable()
	tbl.Add("a", nopConn{})
	tbl.Add("b", nopConn{})
	r1, r2 := domain.BlogRoom("1"), domain.CommentRoom("c1")
	tbl.Join("a", r1)
	tbl.Join("a", r2)
	tbl.Join("b", r1)

	left := tbl.Remove("a")
	require.Equal(t, []domain.RoomKey{r1, r2}, left)

	assert.False(t, tbl.Has("a"))
	assert.False(t, tbl.IsMember("a", r1))
	assert.Equal(t, []ConnID{"b"}, ids(tbl.Members(r1, "")))
	assert.Empty(t, tbl.Members(r2, ""))

	conns, rooms := tbl.Counts()
	assert.Equal(t, 1, conns)
	assert.Equal(t, 1, rooms)

	assert.Nil(t, tbl.Remove("a"))
}

func TestRoomTable_MembersExcludesSender(t *testing.T) {
	tbl := NewRoomTable()
	room := domain.BlogRoom("42")
	for _, id := range []ConnID{"c", "a", "b"} {
		tbl.Add(id, nopConn{})
		tbl.Join(id, room)
	}
	assert.Equal(t, []ConnID{"b", "c"}, ids(tbl.Members(room, "a")))
	assert.Equal(t, []ConnID{"a", "c"}, ids(tbl.Everyone("b")))
	assert.Equal(t, []ConnID{"a", "b", "c"}, ids(tbl.Everyone("")))
}

func TestRoomTable_RoomsOf(t *testing.T) {
	tbl := NewRoomTable()
	tbl.Add("a", nopConn{})
	tbl.Join("a", domain.BlogRoom("2"))
	tbl.Join("a", domain.BlogRoom("1"))

	assert.Equal(t, []domain.RoomKey{"blog-1", "blog-2"}, tbl.RoomsOf("a"))
	assert.Nil(t, tbl.RoomsOf("ghost"))
}
