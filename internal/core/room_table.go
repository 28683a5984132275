package core

import (
	"cmp"
	"slices"

	"github.com/dkeye/blogrelay/internal/domain"
)

type member struct {
	conn  SignalConnection
	rooms map[domain.RoomKey]struct{}
}

// Recipient pairs a connection handle with its transport.
type Recipient struct {
	ID   ConnID
	Conn SignalConnection
}

// RoomTable is the room membership table: rooms -> connections plus the
// reverse index used for implicit leave on disconnect.
// It is not safe for concurrent use; exactly one goroutine owns it.
type RoomTable struct {
	conns map[ConnID]*member
	rooms map[domain.RoomKey]map[ConnID]struct{}
}

func NewRoomTable() *RoomTable {
	return &RoomTable{
		conns: make(map[ConnID]*member),
		rooms: make(map[domain.RoomKey]map[ConnID]struct{}),
	}
}

// Add registers a connection. Re-adding an id replaces its transport and keeps its rooms.
func (t *RoomTable) Add(id ConnID, conn SignalConnection) {
	if m, ok := t.conns[id]; ok {
		m.conn = conn
		return
	}
	t.conns[id] = &member{conn: conn, rooms: make(map[domain.RoomKey]struct{})}
}

// Remove drops the connection and leaves every room it belonged to.
// It returns the rooms that were left.
func (t *RoomTable) Remove(id ConnID) []domain.RoomKey {
	m, ok := t.conns[id]
	if !ok {
		return nil
	}
	left := make([]domain.RoomKey, 0, len(m.rooms))
	for key := range m.rooms {
		t.dropMember(key, id)
		left = append(left, key)
	}
	delete(t.conns, id)
	slices.Sort(left)
	return left
}

// Join adds id to the room. It reports whether membership changed;
// joining twice or joining with an unknown id is a no-op.
func (t *RoomTable) Join(id ConnID, key domain.RoomKey) bool {
	m, ok := t.conns[id]
	if !ok {
		return false
	}
	if _, ok := m.rooms[key]; ok {
		return false
	}
	set, ok := t.rooms[key]
	if !ok {
		set = make(map[ConnID]struct{})
		t.rooms[key] = set
	}
	set[id] = struct{}{}
	m.rooms[key] = struct{}{}
	return true
}

// Leave removes id from the room. It reports whether membership changed.
func (t *RoomTable) Leave(id ConnID, key domain.RoomKey) bool {
	m, ok := t.conns[id]
	if !ok {
		return false
	}
	if _, ok := m.rooms[key]; !ok {
		return false
	}
	delete(m.rooms, key)
	t.dropMember(key, id)
	return true
}

// dropMember deletes the room entry once its last member leaves.
func (t *RoomTable) dropMember(key domain.RoomKey, id ConnID) {
	set, ok := t.rooms[key]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(t.rooms, key)
	}
}

// Members returns the room's members except the given id, ordered by id.
func (t *RoomTable) Members(key domain.RoomKey, except ConnID) []Recipient {
	set := t.rooms[key]
	out := make([]Recipient, 0, len(set))
	for id := range set {
		if id == except {
			continue
		}
		out = append(out, Recipient{ID: id, Conn: t.conns[id].conn})
	}
	sortRecipients(out)
	return out
}

// Everyone returns every registered connection except the given id.
// Pass an empty id to include all of them.
func (t *RoomTable) Everyone(except ConnID) []Recipient {
	out := make([]Recipient, 0, len(t.conns))
	for id, m := range t.conns {
		if id == except {
			continue
		}
		out = append(out, Recipient{ID: id, Conn: m.conn})
	}
	sortRecipients(out)
	return out
}

func (t *RoomTable) Has(id ConnID) bool {
	_, ok := t.conns[id]
	return ok
}

func (t *RoomTable) IsMember(id ConnID, key domain.RoomKey) bool {
	_, ok := t.rooms[key][id]
	return ok
}

// RoomsOf lists the rooms id has joined, sorted.
func (t *RoomTable) RoomsOf(id ConnID) []domain.RoomKey {
	m, ok := t.conns[id]
	if !ok {
		return nil
	}
	out := make([]domain.RoomKey, 0, len(m.rooms))
	for key := range m.rooms {
		out = append(out, key)
	}
	slices.Sort(out)
	return out
}

// Rooms snapshots every live room, sorted by key.
func (t *RoomTable) Rooms() []domain.RoomInfo {
	out := make([]domain.RoomInfo, 0, len(t.rooms))
	for key, set := range t.rooms {
		out = append(out, domain.RoomInfo{Key: key, MemberCount: len(set)})
	}
	slices.SortFunc(out, func(a, b domain.RoomInfo) int { return cmp.Compare(a.Key, b.Key) })
	return out
}

func (t *RoomTable) Counts() (conns, rooms int) {
	return len(t.conns), len(t.rooms)
}

func sortRecipients(rs []Recipient) {
	slices.SortFunc(rs, func(a, b Recipient) int { return cmp.Compare(a.ID, b.ID) })
}
