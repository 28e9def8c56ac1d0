// Package tunnelqr shows the public URL of a local tunnel agent as a QR code.
package tunnelqr

import "time"

// State is a phase of a run.
type State int

const (
	// StateStart is the state before anything happened.
	StateStart State = iota
	// StateResolving polls the agent for a public URL.
	StateResolving
	// StateDisplaying prints the URL and its QR code.
	StateDisplaying
	// StateWaiting blocks until interrupted.
	StateWaiting
	// StateTerminated is reached through an interrupt.
	StateTerminated
	// StateFailed is reached when no URL could be resolved.
	StateFailed
)

// String returns the string representation of State.
func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateResolving:
		return "resolving"
	case StateDisplaying:
		return "displaying"
	case StateWaiting:
		return "waiting"
	case StateTerminated:
		return "terminated"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result describes how a run ended.
type Result struct {
	State    State         `json:"state"`
	URL      string        `json:"url,omitempty"`
	Attempts int           `json:"attempts"`
	Duration time.Duration `json:"duration"`
}
