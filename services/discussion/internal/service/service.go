// Package service implements the discussion operations on top of a store.
package service

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/example/discussion/internal/platform/events"
	"github.com/example/discussion/services/discussion/internal/store"
	"github.com/example/discussion/services/discussion/internal/tree"
)

// DefaultDepth is how many reply levels Get returns when no depth is given.
const DefaultDepth = 2

// EventPublisher receives lifecycle events. *events.Publisher satisfies it.
type EventPublisher interface {
	Publish(subject, eventName, userID string, props map[string]any)
}

type noopPublisher struct{}

func (noopPublisher) Publish(string, string, string, map[string]any) {}

// CreateInput is the payload of a new comment. JSON names follow the
// web client.
type CreateInput struct {
	Text     string         `json:"text" validate:"required"`
	UID      string         `json:"uid" validate:"required"`
	Author   string         `json:"author" validate:"required"`
	Email    store.Nullable `json:"email"`
	PhotoURL store.Nullable `json:"photoURL"`
	ParentID *string        `json:"parentId"`
}

type Service struct {
	store    store.Store
	events   EventPublisher
	log      *zap.Logger
	validate *validator.Validate
	lists    singleflight.Group
}

func New(st store.Store, pub EventPublisher, log *zap.Logger) *Service {
	if pub == nil {
		pub = noopPublisher{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Service{store: st, events: pub, log: log, validate: v}
}

// Create validates in, upserts the author and stores the comment.
func (s *Service) Create(ctx context.Context, in CreateInput) (_ tree.Node, err error) {
	defer func(start time.Time) { observe("create", start, err) }(time.Now())

	text := in.Text
	in.Text = strings.TrimSpace(in.Text)
	in.UID = strings.TrimSpace(in.UID)
	in.Author = strings.TrimSpace(in.Author)
	if in.ParentID != nil && strings.TrimSpace(*in.ParentID) == "" {
		in.ParentID = nil
	}

	if err := s.validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return tree.Node{}, s.fail("validate comment", err)
		}
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fe.Field())
		}
		return tree.Node{}, validationError("missing required fields", fields...)
	}
	// blank text is rejected above, anything else is stored as sent
	in.Text = text

	if in.ParentID != nil {
		if _, err := s.store.GetComment(ctx, *in.ParentID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return tree.Node{}, notFound("parent comment does not exist")
			}
			return tree.Node{}, s.fail("load parent comment", err)
		}
	}

	if _, err := s.store.UpsertUser(ctx, store.UserUpsert{
		ID:       in.UID,
		Name:     in.Author,
		Email:    in.Email,
		PhotoURL: in.PhotoURL,
	}); err != nil {
		return tree.Node{}, s.fail("upsert user", err)
	}

	c, err := s.store.CreateComment(ctx, store.NewComment{
		Text:     in.Text,
		AuthorID: in.UID,
		ParentID: in.ParentID,
	})
	if err != nil {
		return tree.Node{}, s.fail("create comment", err)
	}

	props := map[string]any{"comment_id": c.ID}
	if c.ParentID != nil {
		props["parent_id"] = *c.ParentID
	}
	s.events.Publish(events.SubjectCommentCreated, "comment_created", c.AuthorID, props)
	return tree.Leaf(c), nil
}

// List returns the whole discussion as a forest. Concurrent callers share
// one store read and the returned forest must not be modified.
func (s *Service) List(ctx context.Context) (_ []tree.Node, err error) {
	defer func(start time.Time) { observe("list", start, err) }(time.Now())

	// the shared read must not be cut short by whichever caller started it
	shared := context.WithoutCancel(ctx)
	v, err, _ := s.lists.Do("all", func() (any, error) {
		flat, err := s.store.ListComments(shared)
		if err != nil {
			return nil, err
		}
		treeComments.Observe(float64(len(flat)))
		return tree.Assemble(flat), nil
	})
	if err != nil {
		return nil, s.fail("list comments", err)
	}
	return v.([]tree.Node), nil
}

// Get returns the comment id with depth levels of replies. depth <= 0
// returns the whole thread below it.
func (s *Service) Get(ctx context.Context, id string, depth int) (_ tree.Node, err error) {
	defer func(start time.Time) { observe("get", start, err) }(time.Now())

	flat, err := s.store.Descendants(ctx, id, depth)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return tree.Node{}, notFound("comment not found")
		}
		return tree.Node{}, s.fail("load comment thread", err)
	}
	node, ok := tree.Subtree(flat, id)
	if !ok {
		return tree.Node{}, notFound("comment not found")
	}
	return node, nil
}

// Delete removes the comment when requesterID is its author. Replies stay
// and surface as roots on the next listing.
func (s *Service) Delete(ctx context.Context, id, requesterID string) (err error) {
	defer func(start time.Time) { observe("delete", start, err) }(time.Now())

	c, err := s.store.GetComment(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound("comment not found")
		}
		return s.fail("load comment", err)
	}
	if strings.TrimSpace(requesterID) != c.AuthorID {
		return forbidden("only the author can delete this comment")
	}

	if err := s.store.DeleteComment(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound("comment not found")
		}
		return s.fail("delete comment", err)
	}
	s.events.Publish(events.SubjectCommentDeleted, "comment_deleted", c.AuthorID,
		map[string]any{"comment_id": id})
	return nil
}

// ToggleLike flips userID's like on the comment and reports the new state.
func (s *Service) ToggleLike(ctx context.Context, id, userID string) (_ bool, err error) {
	defer func(start time.Time) { observe("toggle_like", start, err) }(time.Now())

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return false, validationError("missing required fields", "uid")
	}

	liked, err := s.store.ToggleLike(ctx, id, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, notFound("comment not found")
		}
		return false, s.fail("toggle like", err)
	}

	subject, name := events.SubjectCommentUnliked, "comment_unliked"
	if liked {
		subject, name = events.SubjectCommentLiked, "comment_liked"
	}
	s.events.Publish(subject, name, userID, map[string]any{"comment_id": id})
	return liked, nil
}

// Ready reports whether the backing store is reachable.
func (s *Service) Ready(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) fail(op string, err error) *Error {
	s.log.Error("storage failure", zap.String("op", op), zap.Error(err))
	return internal(err)
}
