package domain

import "time"

// Records returned by the CRUD API and carried as event payloads.
// The relay never inspects them beyond the routing field.

type Author struct {
	ID    ID     `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Image string `json:"image,omitempty"`
}

type Comment struct {
	ID        ID        `json:"id"`
	Content   string    `json:"content"`
	PostID    ID        `json:"postId"`
	AuthorID  ID        `json:"authorId,omitempty"`
	ParentID  ID        `json:"parentId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Author    *Author   `json:"author,omitempty"`
	Replies   []Comment `json:"replies,omitempty"`
}

// CommentLike is a like on a single comment.
type CommentLike struct {
	ID        ID        `json:"id"`
	CommentID ID        `json:"commentId"`
	UserID    ID        `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Like is a like on a blog post.
type Like struct {
	ID        ID        `json:"id"`
	PostID    ID        `json:"postId"`
	UserID    ID        `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

type SavedPost struct {
	ID        ID        `json:"id"`
	PostID    ID        `json:"postId"`
	UserID    ID        `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

type Follow struct {
	ID          ID        `json:"id"`
	FollowerID  ID        `json:"followerId"`
	FollowingID ID        `json:"followingId"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Profile struct {
	ID    ID     `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Image string `json:"image,omitempty"`
	Bio   string `json:"bio,omitempty"`
}

func (c Comment) RecordID() string     { return string(c.ID) }
func (l CommentLike) RecordID() string { return string(l.ID) }
func (l Like) RecordID() string        { return string(l.ID) }
func (s SavedPost) RecordID() string   { return string(s.ID) }
func (f Follow) RecordID() string      { return string(f.ID) }
