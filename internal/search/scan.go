package search

import (
	"context"
	"sort"
	"strings"

	"community/api/internal/store"
)

// PostLoader returns every stored post.
type PostLoader interface {
	AllPosts(ctx context.Context) ([]store.Post, error)
}

// Scan matches query terms against post and reply content held by the store.
// It serves the backends that have no full-text index of their own.
type Scan struct {
	posts PostLoader
}

func NewScan(posts PostLoader) *Scan {
	return &Scan{posts: posts}
}

func (s *Scan) Healthy() bool {
	return true
}

// Search returns hits where every query term appears in the content or
// author, newest first.
func (s *Scan) Search(ctx context.Context, q Query) ([]Result, int, error) {
	terms := strings.Fields(strings.ToLower(q.Text))
	if len(terms) == 0 {
		return nil, 0, nil
	}
	posts, err := s.posts.AllPosts(ctx)
	if err != nil {
		return nil, 0, err
	}

	type hit struct {
		result Result
		at     int64
	}
	var hits []hit
	for _, post := range posts {
		if q.Category != "" && post.Category != q.Category {
			continue
		}
		if (q.FilterType == "" || q.FilterType == ResultPost) && matchesAll(terms, post.Content, post.Author) {
			hits = append(hits, hit{
				result: Result{Type: ResultPost, ID: post.ID, PostID: post.ID, Category: post.Category, Author: post.Author, Snippet: snippet(post.Content)},
				at:     post.Timestamp.UnixNano(),
			})
		}
		if q.FilterType != "" && q.FilterType != ResultReply {
			continue
		}
		for _, reply := range post.Replies {
			if !matchesAll(terms, reply.Content, reply.Author) {
				continue
			}
			hits = append(hits, hit{
				result: Result{Type: ResultReply, ID: reply.ID, PostID: post.ID, Category: post.Category, Author: reply.Author, Snippet: snippet(reply.Content)},
				at:     reply.Timestamp.UnixNano(),
			})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].at > hits[j].at })

	total := len(hits)
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	results := make([]Result, 0, end-offset)
	for _, h := range hits[offset:end] {
		results = append(results, h.result)
	}
	return results, total, nil
}

func matchesAll(terms []string, fields ...string) bool {
	haystack := strings.ToLower(strings.Join(fields, " "))
	for _, term := range terms {
		if !strings.Contains(haystack, term) {
			return false
		}
	}
	return true
}

func snippet(content string) string {
	const maxRunes = 160
	runes := []rune(content)
	if len(runes) <= maxRunes {
		return content
	}
	return string(runes[:maxRunes]) + "…"
}
