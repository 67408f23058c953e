package search

import (
	"context"

	"community/api/internal/store"
)

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultPost  ResultType = "post"
	ResultReply ResultType = "reply"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type     ResultType `json:"type"`
	ID       string     `json:"id"`
	PostID   string     `json:"postId"`
	Category string     `json:"category"`
	Author   string     `json:"author"`
	Snippet  string     `json:"snippet"`
}

// Query describes a search request.
type Query struct {
	Text       string
	Category   string     // empty = every channel
	FilterType ResultType // empty = posts and replies
	Limit      int
	Offset     int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Result, int, error)
	Healthy() bool
}

// PostRecord is the data we index for a post.
type PostRecord struct {
	ID        string `json:"id"`
	Author    string `json:"author"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	Category  string `json:"category"`
	Timestamp int64  `json:"timestamp"`
}

// ReplyRecord is the data we index for a reply.
type ReplyRecord struct {
	ID        string `json:"id"`
	PostID    string `json:"postId"`
	Author    string `json:"author"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	Category  string `json:"category"`
	Timestamp int64  `json:"timestamp"`
}

func PostRecordFrom(post store.Post) PostRecord {
	return PostRecord{
		ID:        post.ID,
		Author:    post.Author,
		Role:      post.Role,
		Content:   post.Content,
		Category:  post.Category,
		Timestamp: post.Timestamp.UnixMilli(),
	}
}

func ReplyRecordFrom(post store.Post, reply store.Reply) ReplyRecord {
	return ReplyRecord{
		ID:        reply.ID,
		PostID:    post.ID,
		Author:    reply.Author,
		Role:      reply.Role,
		Content:   reply.Content,
		Category:  post.Category,
		Timestamp: reply.Timestamp.UnixMilli(),
	}
}

// RecordsFrom flattens posts into index records.
func RecordsFrom(posts []store.Post) ([]PostRecord, []ReplyRecord) {
	postRecords := make([]PostRecord, 0, len(posts))
	replyRecords := make([]ReplyRecord, 0)
	for _, post := range posts {
		postRecords = append(postRecords, PostRecordFrom(post))
		for _, reply := range post.Replies {
			replyRecords = append(replyRecords, ReplyRecordFrom(post, reply))
		}
	}
	return postRecords, replyRecords
}
