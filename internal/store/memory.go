package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryStore keeps every post in process. All mutations happen under one
// mutex, so each call is atomic relative to every other call.
type MemoryStore struct {
	mu    sync.RWMutex
	posts map[string]*Post
	users map[string]User
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		posts: make(map[string]*Post),
		users: make(map[string]User),
	}
}

func (s *MemoryStore) ListPostsByCategory(ctx context.Context, category string) ([]Post, error) {
	return s.collect(ctx, func(post *Post) bool { return post.Category == category })
}

func (s *MemoryStore) AllPosts(ctx context.Context) ([]Post, error) {
	return s.collect(ctx, func(*Post) bool { return true })
}

func (s *MemoryStore) collect(ctx context.Context, keep func(*Post) bool) ([]Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]Post, 0)
	for _, post := range s.posts {
		if keep(post) {
			items = append(items, post.Clone())
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Timestamp.Equal(items[j].Timestamp) {
			return items[i].ID > items[j].ID
		}
		return items[i].Timestamp.After(items[j].Timestamp)
	})
	return items, nil
}

func (s *MemoryStore) GetPost(ctx context.Context, postID string) (Post, error) {
	if err := ctx.Err(); err != nil {
		return Post{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	post, ok := s.posts[postID]
	if !ok {
		return Post{}, ErrNotFound
	}
	return post.Clone(), nil
}

func (s *MemoryStore) InsertPost(ctx context.Context, post Post) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.posts[post.ID]; exists {
		return fmt.Errorf("insert post: duplicate id %s", post.ID)
	}
	stored := post.Clone()
	s.posts[post.ID] = &stored
	return nil
}

func (s *MemoryStore) PrependReply(ctx context.Context, postID string, reply Reply) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	post, ok := s.posts[postID]
	if !ok {
		return ErrNotFound
	}
	replies := make([]Reply, 0, len(post.Replies)+1)
	replies = append(replies, reply)
	replies = append(replies, post.Replies...)
	post.Replies = replies
	return nil
}

func (s *MemoryStore) IncrementPostVote(ctx context.Context, postID string, direction Direction) (VoteCounts, error) {
	if err := ctx.Err(); err != nil {
		return VoteCounts{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	post, ok := s.posts[postID]
	if !ok {
		return VoteCounts{}, ErrNotFound
	}
	if direction == DirectionDown {
		post.Downvotes++
	} else {
		post.Upvotes++
	}
	return post.Counts(), nil
}

func (s *MemoryStore) IncrementReplyVote(ctx context.Context, postID, replyID string, direction Direction) (VoteCounts, error) {
	if err := ctx.Err(); err != nil {
		return VoteCounts{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	post, ok := s.posts[postID]
	if !ok {
		return VoteCounts{}, ErrNotFound
	}
	idx := post.FindReply(replyID)
	if idx < 0 {
		return VoteCounts{}, ErrReplyNotFound
	}
	reply := &post.Replies[idx]
	if direction == DirectionDown {
		reply.Downvotes++
	} else {
		reply.Upvotes++
	}
	return reply.Counts(), nil
}

func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}

func (s *MemoryStore) CreateUser(ctx context.Context, user User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(strings.TrimSpace(user.Email))
	if _, exists := s.users[key]; exists {
		return fmt.Errorf("insert user: email %s already registered", user.Email)
	}
	s.users[key] = user
	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}
