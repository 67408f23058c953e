package store

import (
	"fmt"
	"strings"
)

// InvalidDocumentError reports the first required field a draft is missing.
type InvalidDocumentError struct {
	Field  string
	Reason string
}

func (e *InvalidDocumentError) Error() string {
	if e == nil {
		return ""
	}
	reason := e.Reason
	if reason == "" {
		reason = "is required"
	}
	return fmt.Sprintf("%s %s", e.Field, reason)
}

func invalidField(field string) *InvalidDocumentError {
	return &InvalidDocumentError{Field: field}
}

// Normalize trims every text field and drops a blank image.
func (d PostDraft) Normalize() PostDraft {
	d.Author = strings.TrimSpace(d.Author)
	d.Role = strings.TrimSpace(d.Role)
	d.Content = strings.TrimSpace(d.Content)
	d.Category = strings.TrimSpace(d.Category)
	if d.Image != nil && strings.TrimSpace(*d.Image) == "" {
		d.Image = nil
	}
	return d
}

func (d PostDraft) Validate() error {
	d = d.Normalize()
	switch {
	case d.Author == "":
		return invalidField("author")
	case d.Role == "":
		return invalidField("role")
	case d.Content == "":
		return invalidField("content")
	case d.Category == "":
		return invalidField("category")
	}
	return nil
}

func (d ReplyDraft) Normalize() ReplyDraft {
	d.Author = strings.TrimSpace(d.Author)
	d.Role = strings.TrimSpace(d.Role)
	d.Content = strings.TrimSpace(d.Content)
	return d
}

func (d ReplyDraft) Validate() error {
	d = d.Normalize()
	switch {
	case d.Author == "":
		return invalidField("author")
	case d.Role == "":
		return invalidField("role")
	case d.Content == "":
		return invalidField("content")
	}
	return nil
}

// ParseDirection accepts "up" or "down" in any case.
func ParseDirection(raw string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(raw))) {
	case DirectionUp:
		return DirectionUp, nil
	case DirectionDown:
		return DirectionDown, nil
	}
	return "", &InvalidDocumentError{Field: "direction", Reason: "must be 'up' or 'down'"}
}
