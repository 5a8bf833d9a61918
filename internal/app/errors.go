package app

import (
	"fmt"
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

// Result is the availability-first outcome of a store operation. Failed
// writes come back OK=false with the reason already logged; failed reads
// degrade to empty values but still carry OK=false so callers can tell
// "empty because absent" from "empty because the backend failed".
type Result struct {
	OK      bool   `json:"ok"`
	Reason  string `json:"reason,omitempty"`
	Details any    `json:"details,omitempty"`
}

func okResult() Result { return Result{OK: true} }

// domainError converts a failed Result into the error the request layer
// writes out.
func (r Result) domainError() *DomainError {
	switch r.Reason {
	case ReasonConflict:
		return domainError(http.StatusConflict, "CONFLICT", "Version conflict", r.Details)
	case ReasonNotFound:
		return domainError(http.StatusNotFound, "NOT_FOUND", "Not found", r.Details)
	case ReasonStorage:
		return domainError(http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "Storage unavailable", r.Details)
	default:
		return domainError(http.StatusBadRequest, "REQUEST_FAILED", r.Reason, r.Details)
	}
}
