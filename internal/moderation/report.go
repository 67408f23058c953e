// Package moderation holds the stubbed report flow: reports are queued for a
// moderator to pick up and, when SMTP is configured, announced by email.
package moderation

import (
	"errors"
	"time"
)

// ErrDuplicateReport is returned when the same reporter flags the same
// target again inside the de-duplication window.
var ErrDuplicateReport = errors.New("report already filed")

// Report is one flagged post or reply. ReporterID identifies a signed-in
// reporter; Reporter is only their display name.
type Report struct {
	ID         string    `json:"id"`
	PostID     string    `json:"postId"`
	ReplyID    string    `json:"replyId,omitempty"`
	Category   string    `json:"category"`
	Reason     string    `json:"reason"`
	ReporterID string    `json:"reporterId,omitempty"`
	Reporter   string    `json:"reporter"`
	Excerpt    string    `json:"excerpt"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Target names the reported post or reply.
func (r Report) Target() string {
	if r.ReplyID == "" {
		return r.PostID
	}
	return r.PostID + "/" + r.ReplyID
}
