package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/blogrelay/internal/domain"
)

func TestDefaultRoutes(t *testing.T) {
	routes := DefaultRoutes()

	tests := []struct {
		event   domain.EventName
		payload string
		global  bool
		want    domain.RoomKey
	}{
		{domain.EventNewComment, `{"id":"c1","postId":"42"}`, false, "blog-42"},
		{domain.EventDeleteComment, `{"id":"c1","postId":"42"}`, false, "blog-42"},
		{domain.EventBlogLike, `{"id":"l1","postId":7}`, false, "blog-7"},
		{domain.EventBlogUnlike, `{"id":"l1","postId":"7"}`, false, "blog-7"},
		{domain.EventSavePost, `{"id":"s1","postId":"9"}`, false, "blog-9"},
		{domain.EventDeleteSavedPost, `{"id":"s1","postId":"9"}`, false, "blog-9"},
		{domain.EventLike, `{"id":"l1","commentId":"c1"}`, false, "comment-c1"},
		{domain.EventUnlike, `{"id":"l1","commentId":"c1"}`, false, "comment-c1"},
		{domain.EventProfileUpdate, `{"id":"u1"}`, true, ""},
		{domain.EventProfileFollower, `{"id":"f1"}`, true, ""},
		{domain.EventProfileFollowing, `{"id":"f1"}`, true, ""},
		{domain.EventProfileUnfollow, `{"id":"f1"}`, true, ""},
	}
	for _, tt := range tests {
		t.Run(string(tt.event), func(t *testing.T) {
			rt, ok := routes[tt.event]
			require.True(t, ok)
			assert.Equal(t, tt.global, rt.Global)
			if tt.global {
				return
			}
			key, ok := rt.Key([]byte(tt.payload))
			require.True(t, ok)
			assert.Equal(t, tt.want, key)
		})
	}
}

func TestDefaultRoutes_CommentLikeIgnoresPostID(t *testing.T) {
	rt := DefaultRoutes()[domain.EventLike]
	_, ok := rt.Key([]byte(`{"id":"l1","postId":"42"}`))
	assert.False(t, ok)
}

func TestRouteTableIsData(t *testing.T) {
	routes := DefaultRoutes()
	routes["episode:new"] = Route{Key: FieldKey("dramaId", domain.BlogRoom)}

	key, ok := routes["episode:new"].Key([]byte(`{"dramaId":"d1"}`))
	require.True(t, ok)
	assert.Equal(t, domain.RoomKey("blog-d1"), key)
}
