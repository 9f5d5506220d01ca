package model

import "time"

// ActionType identifies the concrete automation an interpreted command maps to.
// The set is closed: anything outside it is treated as unrecognized and never
// reaches a handler.
type ActionType string

const (
	ActionSendEmail    ActionType = "send_email"
	ActionPostToSocial ActionType = "post_to_social"
	ActionCreateFile   ActionType = "create_file"

	// ActionError is the sentinel produced when the interpreter response
	// could not be turned into a task. It flows through the pipeline as a
	// regular branch instead of an exceptional one.
	ActionError ActionType = "error"
)

// KnownActions lists every action a handler may be registered for.
var KnownActions = []ActionType{
	ActionSendEmail,
	ActionPostToSocial,
	ActionCreateFile,
}

// Known reports whether the action is part of the closed enumeration of
// dispatchable actions. ActionError is deliberately not dispatchable.
func (a ActionType) Known() bool {
	for _, known := range KnownActions {
		if a == known {
			return true
		}
	}
	return false
}

// Task is the structured result of translating a natural-language command.
type Task struct {
	Action     ActionType        `json:"action"`
	Parameters map[string]string `json:"parameters,omitempty"`
	Details    string            `json:"details,omitempty"`
}

// TaskResult represents the outcome of handing a task to its handler.
// Completion means "handler invoked", not "effect confirmed": delivery of the
// side effect itself is best-effort.
type TaskResult struct {
	Action      ActionType `json:"action"`
	Output      string     `json:"output,omitempty"`
	CompletedAt time.Time  `json:"completed_at"`
}

// Param returns the named parameter or the empty string.
func (t *Task) Param(name string) string {
	if t.Parameters == nil {
		return ""
	}
	return t.Parameters[name]
}
