package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

type postStore interface {
	ListPostsByCategory(context.Context, string) ([]Post, error)
	AllPosts(context.Context) ([]Post, error)
	GetPost(context.Context, string) (Post, error)
	InsertPost(context.Context, Post) error
	PrependReply(context.Context, string, Reply) error
	IncrementPostVote(context.Context, string, Direction) (VoteCounts, error)
	IncrementReplyVote(context.Context, string, string, Direction) (VoteCounts, error)
	GetUserByEmail(context.Context, string) (User, error)
	CreateUser(context.Context, User) error
}

var testClock = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testPost(id, category string, offset time.Duration) Post {
	return Post{
		ID:        id,
		Author:    "Ana",
		Role:      "Member",
		Content:   "Hi from " + id,
		Category:  category,
		Replies:   []Reply{},
		Timestamp: testClock.Add(offset),
	}
}

func testReply(id string, offset time.Duration) Reply {
	return Reply{
		ID:        id,
		Author:    "Bo",
		Role:      "Member",
		Content:   "Reply " + id,
		Timestamp: testClock.Add(offset),
	}
}

func runPostStoreSuite(t *testing.T, newStore func(t *testing.T) postStore) {
	t.Run("unknown category is empty", func(t *testing.T) {
		s := newStore(t)
		items, err := s.ListPostsByCategory(context.Background(), "nobody-posts-here")
		if err != nil {
			t.Fatalf("ListPostsByCategory() error = %v", err)
		}
		if items == nil || len(items) != 0 {
			t.Fatalf("expected empty non-nil slice, got %#v", items)
		}
	})

	t.Run("list filters by category newest first", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		for _, p := range []Post{
			testPost("post_a", "frontend", 0),
			testPost("post_b", "backend", time.Minute),
			testPost("post_c", "frontend", 2*time.Minute),
		} {
			if err := s.InsertPost(ctx, p); err != nil {
				t.Fatalf("InsertPost(%s) error = %v", p.ID, err)
			}
		}

		items, err := s.ListPostsByCategory(ctx, "frontend")
		if err != nil {
			t.Fatalf("ListPostsByCategory() error = %v", err)
		}
		if len(items) != 2 {
			t.Fatalf("expected 2 frontend posts, got %d", len(items))
		}
		if items[0].ID != "post_c" || items[1].ID != "post_a" {
			t.Fatalf("expected newest-first [post_c post_a], got [%s %s]", items[0].ID, items[1].ID)
		}
		for _, item := range items {
			if item.Category != "frontend" {
				t.Fatalf("expected only frontend posts, got %q", item.Category)
			}
			if item.Replies == nil {
				t.Fatalf("expected non-nil replies for %s", item.ID)
			}
		}
	})

	t.Run("all posts spans channels", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		for _, p := range []Post{
			testPost("post_x", "frontend", 0),
			testPost("post_y", "backend", time.Minute),
		} {
			if err := s.InsertPost(ctx, p); err != nil {
				t.Fatalf("InsertPost(%s) error = %v", p.ID, err)
			}
		}
		items, err := s.AllPosts(ctx)
		if err != nil {
			t.Fatalf("AllPosts() error = %v", err)
		}
		if len(items) != 2 || items[0].ID != "post_y" || items[1].ID != "post_x" {
			t.Fatalf("expected [post_y post_x], got %+v", items)
		}
	})

	t.Run("image round trips", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		image := "data:image/png;base64,iVBORw0KGgo="
		withImage := testPost("post_img", "design", 0)
		withImage.Image = &image
		if err := s.InsertPost(ctx, withImage); err != nil {
			t.Fatalf("InsertPost() error = %v", err)
		}
		if err := s.InsertPost(ctx, testPost("post_noimg", "design", time.Second)); err != nil {
			t.Fatalf("InsertPost() error = %v", err)
		}

		got, err := s.GetPost(ctx, "post_img")
		if err != nil {
			t.Fatalf("GetPost() error = %v", err)
		}
		if got.Image == nil || *got.Image != image {
			t.Fatalf("expected image to round trip, got %v", got.Image)
		}
		plain, err := s.GetPost(ctx, "post_noimg")
		if err != nil {
			t.Fatalf("GetPost() error = %v", err)
		}
		if plain.Image != nil {
			t.Fatalf("expected nil image, got %q", *plain.Image)
		}
	})

	t.Run("get unknown post", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetPost(context.Background(), "post_missing")
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("prepend reply puts newest first", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		if err := s.InsertPost(ctx, testPost("post_r", "frontend", 0)); err != nil {
			t.Fatalf("InsertPost() error = %v", err)
		}
		if err := s.PrependReply(ctx, "post_r", testReply("rpl_1", time.Minute)); err != nil {
			t.Fatalf("PrependReply(rpl_1) error = %v", err)
		}
		if err := s.PrependReply(ctx, "post_r", testReply("rpl_2", 2*time.Minute)); err != nil {
			t.Fatalf("PrependReply(rpl_2) error = %v", err)
		}

		post, err := s.GetPost(ctx, "post_r")
		if err != nil {
			t.Fatalf("GetPost() error = %v", err)
		}
		if len(post.Replies) != 2 || post.Replies[0].ID != "rpl_2" || post.Replies[1].ID != "rpl_1" {
			t.Fatalf("expected replies [rpl_2 rpl_1], got %+v", post.Replies)
		}
		if post.Upvotes != 0 || post.Downvotes != 0 {
			t.Fatalf("expected post counters untouched, got %+v", post.Counts())
		}
		if !post.Timestamp.Equal(testClock) {
			t.Fatalf("expected post timestamp untouched, got %v", post.Timestamp)
		}
	})

	t.Run("prepend reply to unknown post", func(t *testing.T) {
		s := newStore(t)
		err := s.PrependReply(context.Background(), "post_missing", testReply("rpl_x", 0))
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("concurrent replies are all kept", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		if err := s.InsertPost(ctx, testPost("post_cr", "frontend", 0)); err != nil {
			t.Fatalf("InsertPost() error = %v", err)
		}

		const n = 20
		var wg sync.WaitGroup
		errs := make(chan error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs <- s.PrependReply(ctx, "post_cr", testReply(fmt.Sprintf("rpl_%02d", i), time.Duration(i)*time.Second))
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			if err != nil {
				t.Fatalf("PrependReply() error = %v", err)
			}
		}

		post, err := s.GetPost(ctx, "post_cr")
		if err != nil {
			t.Fatalf("GetPost() error = %v", err)
		}
		if len(post.Replies) != n {
			t.Fatalf("expected %d replies, got %d", n, len(post.Replies))
		}
		seen := map[string]bool{}
		for _, reply := range post.Replies {
			seen[reply.ID] = true
		}
		if len(seen) != n {
			t.Fatalf("expected %d distinct replies, got %d", n, len(seen))
		}
	})

	t.Run("concurrent post votes are not lost", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		if err := s.InsertPost(ctx, testPost("post_v", "frontend", 0)); err != nil {
			t.Fatalf("InsertPost() error = %v", err)
		}

		const n = 50
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := s.IncrementPostVote(ctx, "post_v", DirectionUp); err != nil {
					t.Errorf("IncrementPostVote() error = %v", err)
				}
			}()
		}
		wg.Wait()

		counts, err := s.IncrementPostVote(ctx, "post_v", DirectionDown)
		if err != nil {
			t.Fatalf("IncrementPostVote(down) error = %v", err)
		}
		if counts.Upvotes != n || counts.Downvotes != 1 {
			t.Fatalf("expected {%d 1}, got %+v", n, counts)
		}
	})

	t.Run("concurrent reply votes are not lost", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		if err := s.InsertPost(ctx, testPost("post_rv", "frontend", 0)); err != nil {
			t.Fatalf("InsertPost() error = %v", err)
		}
		for _, id := range []string{"rpl_a", "rpl_b"} {
			if err := s.PrependReply(ctx, "post_rv", testReply(id, 0)); err != nil {
				t.Fatalf("PrependReply(%s) error = %v", id, err)
			}
		}

		const n = 30
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := s.IncrementReplyVote(ctx, "post_rv", "rpl_a", DirectionDown); err != nil {
					t.Errorf("IncrementReplyVote() error = %v", err)
				}
			}()
		}
		wg.Wait()

		post, err := s.GetPost(ctx, "post_rv")
		if err != nil {
			t.Fatalf("GetPost() error = %v", err)
		}
		idx := post.FindReply("rpl_a")
		if idx < 0 {
			t.Fatal("expected rpl_a to exist")
		}
		if got := post.Replies[idx].Counts(); got.Downvotes != n || got.Upvotes != 0 {
			t.Fatalf("expected rpl_a {0 %d}, got %+v", n, got)
		}
		other := post.Replies[post.FindReply("rpl_b")].Counts()
		if other.Upvotes != 0 || other.Downvotes != 0 {
			t.Fatalf("expected rpl_b untouched, got %+v", other)
		}
		if post.Upvotes != 0 || post.Downvotes != 0 {
			t.Fatalf("expected post counters untouched, got %+v", post.Counts())
		}
	})

	t.Run("vote on unknown targets", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		if err := s.InsertPost(ctx, testPost("post_u", "frontend", 0)); err != nil {
			t.Fatalf("InsertPost() error = %v", err)
		}

		if _, err := s.IncrementPostVote(ctx, "post_missing", DirectionUp); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound for unknown post, got %v", err)
		}
		if _, err := s.IncrementReplyVote(ctx, "post_missing", "rpl_x", DirectionUp); !errors.Is(err, ErrNotFound) || errors.Is(err, ErrReplyNotFound) {
			t.Fatalf("expected plain ErrNotFound for unknown post, got %v", err)
		}
		if _, err := s.IncrementReplyVote(ctx, "post_u", "rpl_x", DirectionUp); !errors.Is(err, ErrReplyNotFound) {
			t.Fatalf("expected ErrReplyNotFound for unknown reply, got %v", err)
		}

		post, err := s.GetPost(ctx, "post_u")
		if err != nil {
			t.Fatalf("GetPost() error = %v", err)
		}
		if post.Upvotes != 0 || post.Downvotes != 0 {
			t.Fatalf("expected counters unchanged, got %+v", post.Counts())
		}
	})

	t.Run("users are looked up case-insensitively", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		if err := s.CreateUser(ctx, User{
			ID:           "usr_1",
			DisplayName:  "Ana",
			Email:        "Ana@Example.com",
			PasswordHash: "hash",
			Role:         "Member",
		}); err != nil {
			t.Fatalf("CreateUser() error = %v", err)
		}

		user, err := s.GetUserByEmail(ctx, "  ana@example.COM ")
		if err != nil {
			t.Fatalf("GetUserByEmail() error = %v", err)
		}
		if user.ID != "usr_1" || user.DisplayName != "Ana" || user.Role != "Member" {
			t.Fatalf("unexpected user: %+v", user)
		}
		if _, err := s.GetUserByEmail(ctx, "nobody@example.com"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}
