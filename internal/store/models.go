package store

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a referenced post or reply does not exist.
var ErrNotFound = errors.New("not found")

// ErrReplyNotFound means the post exists but holds no reply with that id.
var ErrReplyNotFound = fmt.Errorf("reply %w", ErrNotFound)

type User struct {
	ID           string
	DisplayName  string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

type Post struct {
	ID        string    `json:"id" bson:"_id"`
	Author    string    `json:"author" bson:"author"`
	Role      string    `json:"role" bson:"role"`
	Content   string    `json:"content" bson:"content"`
	Image     *string   `json:"image" bson:"image"`
	Category  string    `json:"category" bson:"category"`
	Upvotes   int       `json:"upvotes" bson:"upvotes"`
	Downvotes int       `json:"downvotes" bson:"downvotes"`
	Replies   []Reply   `json:"replies" bson:"replies"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}

// Reply lives only inside its parent Post's Replies, newest first.
type Reply struct {
	ID        string    `json:"id" bson:"id"`
	Author    string    `json:"author" bson:"author"`
	Role      string    `json:"role" bson:"role"`
	Content   string    `json:"content" bson:"content"`
	Upvotes   int       `json:"upvotes" bson:"upvotes"`
	Downvotes int       `json:"downvotes" bson:"downvotes"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}

type PostDraft struct {
	Author   string  `json:"author"`
	Role     string  `json:"role"`
	Content  string  `json:"content"`
	Category string  `json:"category"`
	Image    *string `json:"image"`
}

type ReplyDraft struct {
	Author  string `json:"author"`
	Role    string `json:"role"`
	Content string `json:"content"`
}

type VoteCounts struct {
	Upvotes   int `json:"upvotes"`
	Downvotes int `json:"downvotes"`
}

type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// Column returns the counter field a vote in this direction increments.
func (d Direction) Column() string {
	if d == DirectionDown {
		return "downvotes"
	}
	return "upvotes"
}

// FindReply returns the index of the reply with the given id, or -1.
func (p Post) FindReply(replyID string) int {
	for i := range p.Replies {
		if p.Replies[i].ID == replyID {
			return i
		}
	}
	return -1
}

func (p Post) Counts() VoteCounts {
	return VoteCounts{Upvotes: p.Upvotes, Downvotes: p.Downvotes}
}

func (r Reply) Counts() VoteCounts {
	return VoteCounts{Upvotes: r.Upvotes, Downvotes: r.Downvotes}
}

// Clone returns a deep copy so callers never share the replies backing array.
func (p Post) Clone() Post {
	out := p
	out.Replies = make([]Reply, len(p.Replies))
	copy(out.Replies, p.Replies)
	if p.Image != nil {
		image := *p.Image
		out.Image = &image
	}
	return out
}
