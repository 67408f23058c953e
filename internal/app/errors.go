package app

import (
	"fmt"
	"log"
	"net/http"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func invalidDocument(field, message string) *DomainError {
	return domainError(http.StatusBadRequest, "INVALID_DOCUMENT", message, map[string]any{"field": field})
}

func notFound(resource string) *DomainError {
	return domainError(http.StatusNotFound, "NOT_FOUND", resource+" not found", map[string]any{"resource": resource})
}

// storageUnavailable logs cause and hides it from the caller.
func storageUnavailable(op string, cause error) *DomainError {
	log.Printf("storage: %s: %v", op, cause)
	return domainError(http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "Storage is temporarily unavailable", nil)
}

func forbidden(action string) *DomainError {
	return domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", map[string]any{"action": action})
}
