package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore is a development-only implementation of Store.
type InMemoryStore struct {
	mu       sync.RWMutex
	users    map[string]User
	comments map[string]Comment             // id -> comment, without author summary
	likes    map[string]map[string]struct{} // commentID -> userIDs
	last     time.Time
	now      func() time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		users:    make(map[string]User),
		comments: make(map[string]Comment),
		likes:    make(map[string]map[string]struct{}),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *InMemoryStore) Ping(context.Context) error { return nil }

func (s *InMemoryStore) UpsertUser(_ context.Context, u UserUpsert) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.users[u.ID]
	if !ok {
		cur = User{ID: u.ID, Email: u.Email.value(), PhotoURL: u.PhotoURL.value()}
	} else {
		cur.Email = u.Email.apply(cur.Email)
		cur.PhotoURL = u.PhotoURL.apply(cur.PhotoURL)
	}
	cur.Name = u.Name
	s.users[u.ID] = cur
	return cur, nil
}

func (s *InMemoryStore) GetUser(_ context.Context, id string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (s *InMemoryStore) CreateComment(_ context.Context, nc NewComment) (Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	author, ok := s.users[nc.AuthorID]
	if !ok {
		return Comment{}, ErrNotFound
	}

	// created_at must strictly increase so ordering matches insertion.
	now := s.now()
	if !now.After(s.last) {
		now = s.last.Add(time.Nanosecond)
	}
	s.last = now

	c := Comment{
		ID:        uuid.NewString(),
		Text:      nc.Text,
		AuthorID:  nc.AuthorID,
		ParentID:  copyString(nc.ParentID),
		CreatedAt: now,
	}
	s.comments[c.ID] = c
	c.User = author
	return c, nil
}

func (s *InMemoryStore) GetComment(_ context.Context, id string) (Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.comments[id]
	if !ok {
		return Comment{}, ErrNotFound
	}
	return s.withAuthor(c), nil
}

func (s *InMemoryStore) ListComments(_ context.Context) ([]Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Comment, 0, len(s.comments))
	for _, c := range s.comments {
		out = append(out, s.withAuthor(c))
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *InMemoryStore) Descendants(_ context.Context, id string, depth int) ([]Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	root, ok := s.comments[id]
	if !ok {
		return nil, ErrNotFound
	}

	children := make(map[string][]string)
	for _, c := range s.comments {
		if c.ParentID != nil {
			children[*c.ParentID] = append(children[*c.ParentID], c.ID)
		}
	}

	out := []Comment{s.withAuthor(root)}
	seen := map[string]bool{id: true}
	level := []string{id}
	for d := 0; len(level) > 0 && (depth <= 0 || d < depth); d++ {
		var next []string
		for _, pid := range level {
			for _, cid := range children[pid] {
				if seen[cid] {
					continue
				}
				seen[cid] = true
				out = append(out, s.withAuthor(s.comments[cid]))
				next = append(next, cid)
			}
		}
		level = next
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *InMemoryStore) DeleteComment(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.comments[id]; !ok {
		return ErrNotFound
	}
	delete(s.comments, id)
	delete(s.likes, id)
	return nil
}

func (s *InMemoryStore) ToggleLike(_ context.Context, commentID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.comments[commentID]
	if !ok {
		return false, ErrNotFound
	}
	members := s.likes[commentID]
	if members == nil {
		members = make(map[string]struct{})
		s.likes[commentID] = members
	}

	_, liked := members[userID]
	if liked {
		delete(members, userID)
		c.Likes--
	} else {
		members[userID] = struct{}{}
		c.Likes++
	}
	s.comments[commentID] = c
	return !liked, nil
}

func (s *InMemoryStore) Liked(_ context.Context, commentID, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.comments[commentID]; !ok {
		return false, ErrNotFound
	}
	_, ok := s.likes[commentID][userID]
	return ok, nil
}

func (s *InMemoryStore) CountLikes(_ context.Context, commentID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.comments[commentID]; !ok {
		return 0, ErrNotFound
	}
	return len(s.likes[commentID]), nil
}

// withAuthor must be called with s.mu held.
func (s *InMemoryStore) withAuthor(c Comment) Comment {
	c.User = s.users[c.AuthorID]
	c.ParentID = copyString(c.ParentID)
	return c
}

func sortNewestFirst(cs []Comment) {
	sort.Slice(cs, func(i, j int) bool {
		if !cs[i].CreatedAt.Equal(cs[j].CreatedAt) {
			return cs[i].CreatedAt.After(cs[j].CreatedAt)
		}
		return cs[i].ID > cs[j].ID
	})
}

func copyString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
