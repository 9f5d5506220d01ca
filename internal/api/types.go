package api

import "github.com/t77yq/macroflow/internal/monitor"

// CreateMacroRequest is the body of POST /api/macros.
type CreateMacroRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Command     string `json:"command"`
}

// ExecuteRequest is the body of POST /api/execute.
type ExecuteRequest struct {
	Command string `json:"command"`
}

// ScheduleRequest is the body of POST /api/schedule. RunAt is an ISO-8601
// timestamp.
type ScheduleRequest struct {
	Command string `json:"command"`
	RunAt   string `json:"runAt"`
}

// MacroName is one entry of the macro listing.
type MacroName struct {
	Name string `json:"name"`
}

// AckResponse acknowledges asynchronous work.
type AckResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	JobID   string `json:"job_id,omitempty"`
}

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status string              `json:"status"`
	Stats  monitor.SystemStats `json:"stats"`
}

// ErrorResponse carries a failure message.
type ErrorResponse struct {
	Message string `json:"message"`
}
