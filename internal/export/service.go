package export

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"community/api/internal/store"
)

// PostSource lists a channel's posts.
type PostSource interface {
	ListPostsByCategory(ctx context.Context, category string) ([]store.Post, error)
}

// Archiver keeps a copy of a finished export.
type Archiver interface {
	Put(ctx context.Context, key string, result *Result) (string, error)
}

// Service provides channel export functionality
type Service struct {
	posts   PostSource
	pdf     PDFRenderer
	archive Archiver
	now     func() time.Time
}

// NewService creates an export service that prints PDFs with headless Chrome.
// archive may be nil.
func NewService(posts PostSource, archive Archiver) *Service {
	return &Service{
		posts:   posts,
		pdf:     ChromePDF,
		archive: archive,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Export renders every post in the channel in the requested format.
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	posts, err := s.posts.ListPostsByCategory(ctx, req.Category)
	if err != nil {
		return nil, fmt.Errorf("list channel: %w", err)
	}

	now := s.now()
	base := fmt.Sprintf("%s-%s", sanitizeFilename(req.Category), now.Format("20060102-150405"))
	result := &Result{PostCount: len(posts), CreatedAt: now}

	switch req.Format {
	case FormatJSON:
		data, err := json.MarshalIndent(struct {
			Category    string       `json:"category"`
			GeneratedAt time.Time    `json:"generatedAt"`
			Posts       []store.Post `json:"posts"`
		}{req.Category, now, posts}, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode channel: %w", err)
		}
		result.Data = data
		result.Filename = base + ".json"
		result.MimeType = "application/json"
	case FormatHTML, FormatPDF:
		html, err := RenderChannelHTML(TemplateData{Category: req.Category, GeneratedAt: now, Posts: posts})
		if err != nil {
			return nil, fmt.Errorf("render template: %w", err)
		}
		if req.Format == FormatHTML {
			result.Data = []byte(html)
			result.Filename = base + ".html"
			result.MimeType = "text/html; charset=utf-8"
			break
		}
		data, err := s.pdf(ctx, html)
		if err != nil {
			return nil, err
		}
		result.Data = data
		result.Filename = base + ".pdf"
		result.MimeType = "application/pdf"
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, req.Format)
	}

	if req.Archive {
		if s.archive == nil {
			return nil, ErrArchiveUnavailable
		}
		key, err := s.archive.Put(ctx, "channels/"+result.Filename, result)
		if err != nil {
			return nil, err
		}
		result.ArchiveKey = key
	}
	return result, nil
}
