package model

import "time"

// MacroOrigin distinguishes bundled macros from ones created at runtime.
type MacroOrigin string

const (
	// MacroOriginPredefined macros ship with the binary and exist for the
	// process lifetime. They are immutable.
	MacroOriginPredefined MacroOrigin = "predefined"

	// MacroOriginUser macros are created through the registry and persisted
	// so they survive restarts.
	MacroOriginUser MacroOrigin = "user"
)

// Macro is a named, reusable automation definition. It resolves to either a
// literal command string, translated at run time (never at definition time),
// or a direct task with bound parameters. Exactly one of Command and Task is
// set.
type Macro struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Command     string      `json:"command,omitempty"`
	Task        *Task       `json:"task,omitempty"`
	Origin      MacroOrigin `json:"origin"`
	CreatedAt   time.Time   `json:"created_at"`
}
