// Package export renders a channel's posts and replies for moderators as
// HTML, JSON or PDF, optionally archiving the result to object storage.
package export

import (
	"errors"
	"time"
)

type Format string

const (
	FormatHTML Format = "html"
	FormatJSON Format = "json"
	FormatPDF  Format = "pdf"
)

// ParseFormat maps a query value onto a Format; blank means HTML.
func ParseFormat(raw string) (Format, error) {
	switch Format(raw) {
	case "", FormatHTML:
		return FormatHTML, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatPDF:
		return FormatPDF, nil
	}
	return "", ErrUnsupportedFormat
}

// Request contains parameters for an export operation
type Request struct {
	Category    string
	Format      Format
	Archive     bool
	RequestedBy string
}

// Result contains the export output
type Result struct {
	Data       []byte
	Filename   string
	MimeType   string
	PostCount  int
	ArchiveKey string
	CreatedAt  time.Time
}

var (
	ErrUnsupportedFormat = errors.New("export format unsupported")
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
	// ErrArchiveUnavailable is returned when archiving is requested but no bucket is configured.
	ErrArchiveUnavailable = errors.New("export archive not configured")
)
