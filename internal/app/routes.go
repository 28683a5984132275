package app

import "github.com/dkeye/blogrelay/internal/domain"

// KeyFunc derives the routing room from an event payload.
type KeyFunc func(data []byte) (domain.RoomKey, bool)

// Route describes how one event kind reaches its audience. A global route
// ignores Key and reaches every connection; a scoped route whose Key fails
// falls back to every connection except the sender.
type Route struct {
	Key    KeyFunc
	Global bool
}

// RouteTable maps event names to their routing rule. Adding an event kind is
// a new entry, not a new branch in the router.
type RouteTable map[domain.EventName]Route

// FieldKey builds a KeyFunc reading an id field from an object payload.
func FieldKey(field string, room func(id string) domain.RoomKey) KeyFunc {
	return func(data []byte) (domain.RoomKey, bool) {
		id, ok := domain.Field(data, field)
		if !ok {
			return "", false
		}
		return room(id), true
	}
}

func blogScoped() Route    { return Route{Key: FieldKey("postId", domain.BlogRoom)} }
func commentScoped() Route { return Route{Key: FieldKey("commentId", domain.CommentRoom)} }

var globalRoute = Route{Global: true}

// DefaultRoutes is the routing table of the blog platform.
func DefaultRoutes() RouteTable {
	return RouteTable{
		domain.EventNewComment:      blogScoped(),
		domain.EventDeleteComment:   blogScoped(),
		domain.EventBlogLike:        blogScoped(),
		domain.EventBlogUnlike:      blogScoped(),
		domain.EventSavePost:        blogScoped(),
		domain.EventDeleteSavedPost: blogScoped(),

		domain.EventLike:   commentScoped(),
		domain.EventUnlike: commentScoped(),

		// No per-user rooms exist, so profile changes go to everyone.
		domain.EventProfileUpdate:    globalRoute,
		domain.EventProfileFollower:  globalRoute,
		domain.EventProfileFollowing: globalRoute,
		domain.EventProfileUnfollow:  globalRoute,
	}
}
