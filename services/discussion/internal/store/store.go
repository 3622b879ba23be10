package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when the referenced user or comment does not exist.
var ErrNotFound = errors.New("not found")

// User is the identity behind a comment. ID is issued by an external auth
// provider and treated as an opaque string.
type User struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Email    *string `json:"email"`
	PhotoURL *string `json:"photo_url,omitempty"`
}

// Comment represents a single comment row together with its author summary.
type Comment struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	AuthorID  string    `json:"author_id"`
	ParentID  *string   `json:"parent_id"`
	Likes     int       `json:"likes"`
	CreatedAt time.Time `json:"created_at"`
	User      User      `json:"user"`
}

// NewComment carries the fields a caller controls when creating a comment.
type NewComment struct {
	Text     string
	AuthorID string
	ParentID *string
}

// Nullable is an optional string that tells an omitted field apart from an
// explicit JSON null. The zero value means "omitted".
type Nullable struct {
	Set   bool
	Value *string
}

// Null returns an explicit null.
func Null() Nullable { return Nullable{Set: true} }

// Of returns a present value.
func Of(s string) Nullable { return Nullable{Set: true, Value: &s} }

func (n *Nullable) UnmarshalJSON(b []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		n.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	n.Value = &s
	return nil
}

// touches reports whether an update must overwrite the stored column.
// An empty string counts as omitted.
func (n Nullable) touches() bool {
	return n.Set && (n.Value == nil || *n.Value != "")
}

// value is what gets written when the column is touched or inserted.
func (n Nullable) value() *string {
	if !n.Set || n.Value == nil || *n.Value == "" {
		return nil
	}
	v := *n.Value
	return &v
}

// apply merges n into the current column value.
func (n Nullable) apply(cur *string) *string {
	if n.touches() {
		return n.value()
	}
	return cur
}

// UserUpsert describes a write to the user directory.
type UserUpsert struct {
	ID       string
	Name     string
	Email    Nullable
	PhotoURL Nullable
}

// UserDirectory keeps the lightweight identity records fresh. It is the only
// place that knows how identities are stored.
type UserDirectory interface {
	// UpsertUser inserts the user or overwrites its name, and its email and
	// photo URL unless they were omitted.
	UpsertUser(ctx context.Context, u UserUpsert) (User, error)
	GetUser(ctx context.Context, id string) (User, error)
}

// CommentStore defines the contract for comment persistence.
type CommentStore interface {
	CreateComment(ctx context.Context, c NewComment) (Comment, error)
	GetComment(ctx context.Context, id string) (Comment, error)
	// ListComments returns every comment, newest first.
	ListComments(ctx context.Context) ([]Comment, error)
	// Descendants returns the comment id and its replies down to depth
	// levels (depth <= 0 means unbounded), newest first.
	Descendants(ctx context.Context, id string, depth int) ([]Comment, error)
	// DeleteComment removes the row only; replies are left in place.
	DeleteComment(ctx context.Context, id string) error
}

// LikeLedger owns the (user, comment) like memberships and the cached
// counter on the comment row. Both change in one atomic step.
type LikeLedger interface {
	// ToggleLike flips the membership and returns the new state.
	ToggleLike(ctx context.Context, commentID, userID string) (liked bool, err error)
	Liked(ctx context.Context, commentID, userID string) (bool, error)
	CountLikes(ctx context.Context, commentID string) (int, error)
}

// Store is a complete backend.
type Store interface {
	UserDirectory
	CommentStore
	LikeLedger
	Ping(ctx context.Context) error
}
