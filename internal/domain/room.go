// Package domain contains room keys, the wire envelope and the records
// clients exchange. No transport or lifecycle logic here.
package domain

import "strings"

// RoomKey labels a fan-out channel. A room has no existence of its own:
// it lives as long as at least one connection has joined it.
type RoomKey string

const (
	blogRoomPrefix    = "blog-"
	commentRoomPrefix = "comment-"
)

func BlogRoom(postID string) RoomKey {
	return RoomKey(blogRoomPrefix + postID)
}

func CommentRoom(commentID string) RoomKey {
	return RoomKey(commentRoomPrefix + commentID)
}

// IsBlog reports whether the key names a per-post room.
func (k RoomKey) IsBlog() bool { return strings.HasPrefix(string(k), blogRoomPrefix) }

// IsComment reports whether the key names a per-comment room.
func (k RoomKey) IsComment() bool { return strings.HasPrefix(string(k), commentRoomPrefix) }

// ID strips the room prefix.
func (k RoomKey) ID() string {
	switch {
	case k.IsBlog():
		return strings.TrimPrefix(string(k), blogRoomPrefix)
	case k.IsComment():
		return strings.TrimPrefix(string(k), commentRoomPrefix)
	}
	return string(k)
}

// RoomInfo is a read-only view of a room for APIs.
type RoomInfo struct {
	Key         RoomKey `json:"key"`
	MemberCount int     `json:"member_count"`
}
