package server

import "github.com/josephgoksu/dayplan/internal/task"

// ArchiveRequest is the payload for POST /api/tasks/archive
type ArchiveRequest struct {
	Date string `json:"date" validate:"required,datetime=2006-01-02"`
}

// UnarchiveRequest is the payload for POST /api/tasks/unarchive
type UnarchiveRequest struct {
	IDs []int64 `json:"ids" validate:"dive,gt=0"`
}

// ReorderRequest is the payload for POST /api/tasks/reorder.
// The client sends the complete target order of the tasks it moved.
type ReorderRequest struct {
	Tasks []task.Move `json:"tasks" validate:"dive"`
}

// ReorderResponse is returned by a successful reorder
type ReorderResponse struct {
	Requested int   `json:"requested"`
	Updated   int64 `json:"updated"`
}

// ErrorResponse is the body of every non-2xx API response
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}

// Error codes
const (
	codeInvalidRequest      = "invalid_request"
	codeUnauthorized        = "unauthorized"
	codeNotFound            = "not_found"
	codePositionUnsupported = "position_unsupported"
	codeInternal            = "internal"
)
