package moderation

import (
	"context"
	"log"

	"community/api/internal/email"
)

// Queue stores reports until a moderator reviews them.
type Queue interface {
	Enqueue(ctx context.Context, report Report) error
	Pending(ctx context.Context, limit int) ([]Report, error)
}

// Notifier announces a new report to a moderator.
type Notifier interface {
	SendReportNotice(to string, data email.ReportNoticeData) error
}

type Service struct {
	queue          Queue
	notifier       Notifier
	moderatorEmail string
}

// NewService wires the report flow. queue and notifier may be nil: without a
// queue reports are only logged, without a notifier nobody is emailed.
func NewService(queue Queue, notifier Notifier, moderatorEmail string) *Service {
	return &Service{queue: queue, notifier: notifier, moderatorEmail: moderatorEmail}
}

// Submit files a report. The email notice runs in the background and never
// fails the call.
func (s *Service) Submit(ctx context.Context, report Report) error {
	if s.queue == nil {
		log.Printf("moderation: report %s on %s (%s) not queued, no queue configured", report.ID, report.Target(), report.Reason)
	} else if err := s.queue.Enqueue(ctx, report); err != nil {
		return err
	}

	if s.notifier == nil || s.moderatorEmail == "" {
		return nil
	}
	data := email.ReportNoticeData{
		ReportID: report.ID,
		PostID:   report.PostID,
		ReplyID:  report.ReplyID,
		Category: report.Category,
		Reason:   report.Reason,
		Reporter: report.Reporter,
		Excerpt:  report.Excerpt,
	}
	go func() {
		if err := s.notifier.SendReportNotice(s.moderatorEmail, data); err != nil {
			log.Printf("moderation: notify report %s: %v", report.ID, err)
		}
	}()
	return nil
}

// Pending lists queued reports, newest first.
func (s *Service) Pending(ctx context.Context, limit int) ([]Report, error) {
	if s.queue == nil {
		return []Report{}, nil
	}
	return s.queue.Pending(ctx, limit)
}
