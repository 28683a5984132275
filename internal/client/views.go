package client

import (
	"sync"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/blogrelay/internal/domain"
)

// Applier folds an event into local state. It reports whether anything changed.
// Applying the same event twice must leave the state as applying it once.
type Applier interface {
	Apply(ev domain.Event) bool
}

func decode[T any](ev domain.Event) (T, bool) {
	var v T
	if len(ev.Data) == 0 {
		return v, false
	}
	if err := json.Unmarshal(ev.Data, &v); err != nil {
		log.Debug().Err(err).Str("module", "client").Str("event", string(ev.Name)).Msg("undecodable payload")
		return v, false
	}
	return v, true
}

// BlogView is the live state of one open post page.
type BlogView struct {
	PostID domain.ID

	mu           sync.RWMutex
	comments     Set[domain.Comment]
	commentLikes Set[domain.CommentLike]
	likes        Set[domain.Like]
	saves        Set[domain.SavedPost]
}

func NewBlogView(postID string) *BlogView {
	return &BlogView{PostID: domain.ID(postID)}
}

// Load seeds the view with a server snapshot. Nested replies are flattened.
func (v *BlogView) Load(comments []domain.Comment, likes []domain.Like, saves []domain.SavedPost) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, c := range flatten(comments) {
		v.comments.Add(c)
	}
	for _, l := range likes {
		v.likes.Add(l)
	}
	for _, s := range saves {
		v.saves.Add(s)
	}
}

func flatten(comments []domain.Comment) []domain.Comment {
	var out []domain.Comment
	for _, c := range comments {
		replies := c.Replies
		c.Replies = nil
		out = append(out, c)
		out = append(out, flatten(replies)...)
	}
	return out
}

func (v *BlogView) ours(postID domain.ID) bool { return postID == v.PostID }

// Apply ignores records that belong to another post. Removals without a
// postId are accepted since removing an unknown id is a no-op anyway.
func (v *BlogView) Apply(ev domain.Event) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch ev.Name {
	case domain.EventNewComment:
		c, ok := decode[domain.Comment](ev)
		if !ok || !v.ours(c.PostID) {
			return false
		}
		changed := false
		for _, fc := range flatten([]domain.Comment{c}) {
			if v.comments.Add(fc) {
				changed = true
			}
		}
		return changed
	case domain.EventDeleteComment:
		c, ok := decode[domain.Comment](ev)
		if !ok || (c.PostID != "" && !v.ours(c.PostID)) {
			return false
		}
		return v.removeSubtree(c.ID)
	case domain.EventLike:
		l, ok := decode[domain.CommentLike](ev)
		if !ok || !v.comments.Has(string(l.CommentID)) {
			return false
		}
		return v.commentLikes.Add(l)
	case domain.EventUnlike:
		l, ok := decode[domain.CommentLike](ev)
		if !ok {
			return false
		}
		return v.commentLikes.Remove(string(l.ID))
	case domain.EventBlogLike:
		l, ok := decode[domain.Like](ev)
		if !ok || !v.ours(l.PostID) {
			return false
		}
		return v.likes.Add(l)
	case domain.EventBlogUnlike:
		l, ok := decode[domain.Like](ev)
		if !ok || (l.PostID != "" && !v.ours(l.PostID)) {
			return false
		}
		return v.likes.Remove(string(l.ID))
	case domain.EventSavePost:
		s, ok := decode[domain.SavedPost](ev)
		if !ok || !v.ours(s.PostID) {
			return false
		}
		return v.saves.Add(s)
	case domain.EventDeleteSavedPost:
		s, ok := decode[domain.SavedPost](ev)
		if !ok || (s.PostID != "" && !v.ours(s.PostID)) {
			return false
		}
		return v.saves.Remove(string(s.ID))
	}
	return false
}

// removeSubtree drops a comment, every reply below it and their likes.
func (v *BlogView) removeSubtree(id domain.ID) bool {
	if !v.comments.Has(string(id)) {
		return false
	}
	doomed := map[domain.ID]bool{id: true}
	for grew := true; grew; {
		grew = false
		for _, c := range v.comments.items {
			if !doomed[c.ID] && doomed[c.ParentID] {
				doomed[c.ID] = true
				grew = true
			}
		}
	}
	for cid := range doomed {
		v.comments.Remove(string(cid))
	}
	for _, l := range v.commentLikes.Items() {
		if doomed[l.CommentID] {
			v.commentLikes.Remove(string(l.ID))
		}
	}
	return true
}

// Tree nests comments under their parents. Comments whose parent is not in
// the view are treated as top level.
func (v *BlogView) Tree() []domain.Comment {
	v.mu.RLock()
	defer v.mu.RUnlock()

	children := make(map[domain.ID][]domain.Comment)
	var roots []domain.Comment
	for _, c := range v.comments.items {
		if c.ParentID != "" && v.comments.Has(string(c.ParentID)) {
			children[c.ParentID] = append(children[c.ParentID], c)
			continue
		}
		roots = append(roots, c)
	}

	var build func(c domain.Comment) domain.Comment
	build = func(c domain.Comment) domain.Comment {
		c.Replies = nil
		for _, r := range children[c.ID] {
			c.Replies = append(c.Replies, build(r))
		}
		return c
	}
	out := make([]domain.Comment, 0, len(roots))
	for _, r := range roots {
		out = append(out, build(r))
	}
	return out
}

func (v *BlogView) Comments() []domain.Comment {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.comments.Items()
}

func (v *BlogView) CommentLikes(commentID string) []domain.CommentLike {
	v.mu.RLock()
	defer v.mu.RUnlock()
	var out []domain.CommentLike
	for _, l := range v.commentLikes.items {
		if string(l.CommentID) == commentID {
			out = append(out, l)
		}
	}
	return out
}

func (v *BlogView) Likes() []domain.Like {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.likes.Items()
}

func (v *BlogView) Saves() []domain.SavedPost {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.saves.Items()
}

// ProfileView is the live state of one user's profile page.
type ProfileView struct {
	UserID domain.ID

	mu        sync.RWMutex
	profile   domain.Profile
	followers Set[domain.Follow]
	following Set[domain.Follow]
}

func NewProfileView(userID string) *ProfileView {
	return &ProfileView{UserID: domain.ID(userID), profile: domain.Profile{ID: domain.ID(userID)}}
}

// Apply keeps follow records that touch the viewed user. profile:follower
// and profile:following carry the same record and are handled alike.
func (v *ProfileView) Apply(ev domain.Event) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch ev.Name {
	case domain.EventProfileUpdate:
		p, ok := decode[domain.Profile](ev)
		if !ok || p.ID != v.UserID || p == v.profile {
			return false
		}
		v.profile = p
		return true
	case domain.EventProfileFollower, domain.EventProfileFollowing:
		f, ok := decode[domain.Follow](ev)
		if !ok {
			return false
		}
		changed := false
		if f.FollowingID == v.UserID && v.followers.Add(f) {
			changed = true
		}
		if f.FollowerID == v.UserID && v.following.Add(f) {
			changed = true
		}
		return changed
	case domain.EventProfileUnfollow:
		f, ok := decode[domain.Follow](ev)
		if !ok {
			return false
		}
		a := v.followers.Remove(string(f.ID))
		b := v.following.Remove(string(f.ID))
		return a || b
	}
	return false
}

func (v *ProfileView) Profile() domain.Profile {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.profile
}

func (v *ProfileView) Followers() []domain.Follow {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.followers.Items()
}

func (v *ProfileView) Following() []domain.Follow {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.following.Items()
}
