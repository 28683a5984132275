package domain

import (
	"strings"

	"github.com/goccy/go-json"
)

type EventName string

// Control events, client -> relay unless noted.
const (
	EventJoinBlog     EventName = "join_blog"
	EventLeaveBlog    EventName = "leave_blog"
	EventJoinComment  EventName = "join_comment"
	EventLeaveComment EventName = "leave_comment"
	EventPing         EventName = "ping"
	EventPong         EventName = "pong" // relay -> client
	EventWhoAmI       EventName = "whoami"
	EventError        EventName = "error" // relay -> client
)

// Domain events, relayed between clients.
const (
	EventNewComment       EventName = "new_comment"
	EventDeleteComment    EventName = "delete_comment"
	EventLike             EventName = "like"
	EventUnlike           EventName = "unlike"
	EventBlogLike         EventName = "blog_like"
	EventBlogUnlike       EventName = "blog_unlike"
	EventSavePost         EventName = "blog:save-post"
	EventDeleteSavedPost  EventName = "blog:delete-post"
	EventProfileUpdate    EventName = "profile:update"
	EventProfileFollower  EventName = "profile:follower"
	EventProfileFollowing EventName = "profile:following"
	EventProfileUnfollow  EventName = "profile:unfollow"
)

// Event is the wire envelope in both directions. Data is opaque to the relay.
type Event struct {
	Name EventName       `json:"event"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewEvent marshals v as the event payload.
func NewEvent(name EventName, v any) (Event, error) {
	if v == nil {
		return Event{Name: name}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return Event{}, err
	}
	return Event{Name: name, Data: data}, nil
}

func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

func DecodeEvent(frame []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(frame, &e); err != nil {
		return Event{}, err
	}
	return e, nil
}

// Field extracts a string or numeric member of a JSON object payload.
// Anything else (non-object payload, null, empty string) reports false.
func Field(data []byte, name string) (string, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil || obj == nil {
		return "", false
	}
	raw, ok := obj[name]
	if !ok {
		return "", false
	}
	return ScalarID(raw)
}

// ScalarID reads an identifier sent either as a JSON string or a JSON number.
// Numbers are canonical, so 42, 42.0 and 4.2e1 name the same room.
func ScalarID(raw []byte) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		return s, s != ""
	}
	return canonicalNumber(strings.TrimSpace(string(raw)))
}

// WhoAmI answers a whoami request.
type WhoAmI struct {
	ID    string    `json:"id"`
	Rooms []RoomKey `json:"rooms"`
}

// ErrorReply is sent back to a client whose frame could not be handled.
type ErrorReply struct {
	Event EventName `json:"event,omitempty"`
	Error string    `json:"error"`
}
