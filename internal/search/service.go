package search

import (
	"context"
	"log"

	"community/api/internal/store"
)

// Service is the facade that tries Meilisearch first and falls back to the
// backend's own searcher.
type Service struct {
	meili    *Meili
	fallback Searcher
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, fallback Searcher) *Service {
	return &Service{meili: meili, fallback: fallback}
}

// Search tries Meilisearch if healthy, otherwise uses the fallback.
func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(ctx, q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back: %v", err)
	}

	if s.fallback == nil {
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	results, total, err := s.fallback.Search(ctx, q)
	if err != nil {
		log.Printf("search: fallback error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexPost indexes a post (fire-and-forget to Meilisearch).
func (s *Service) IndexPost(post store.Post) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	record := PostRecordFrom(post)
	go func() {
		if err := s.meili.IndexPost(record); err != nil {
			log.Printf("search: index post %s: %v", record.ID, err)
		}
	}()
}

// IndexReply indexes a reply (fire-and-forget to Meilisearch).
func (s *Service) IndexReply(post store.Post, reply store.Reply) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	record := ReplyRecordFrom(post, reply)
	go func() {
		if err := s.meili.IndexReply(record); err != nil {
			log.Printf("search: index reply %s: %v", record.ID, err)
		}
	}()
}

// ReindexAll pushes every post and reply to Meilisearch. It returns the
// number of records sent, or zero when Meilisearch is unavailable.
func (s *Service) ReindexAll(ctx context.Context, loader PostLoader) (int, error) {
	if s.meili == nil || !s.meili.Healthy() {
		return 0, nil
	}
	posts, err := loader.AllPosts(ctx)
	if err != nil {
		return 0, err
	}
	postRecords, replyRecords := RecordsFrom(posts)
	if err := s.meili.IndexPosts(postRecords); err != nil {
		return 0, err
	}
	if err := s.meili.IndexReplies(replyRecords); err != nil {
		return len(postRecords), err
	}
	return len(postRecords) + len(replyRecords), nil
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
