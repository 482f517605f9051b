package authflow

import "github.com/pysugar/cursor-auth-keeper/internal/fingerprint"

// EventKind distinguishes the emissions of a running session.
type EventKind string

const (
	// EventStatus is a human-readable progress line.
	EventStatus EventKind = "status"
	// EventAuthCode carries the extracted authorization code or token.
	EventAuthCode EventKind = "auth_code"
	// EventFingerprint carries the captured final browser fingerprint.
	EventFingerprint EventKind = "fingerprint"
	// EventFinished is the terminal emission; it is always last.
	EventFinished EventKind = "finished"
)

// Event is one ordered emission from an authorization session. A session
// emits zero or more status events, at most one auth-code event, at most one
// fingerprint event, and exactly one finished event, in that relative order
// with finished last. A cancelled session simply closes the stream without a
// finished event.
type Event struct {
	Kind        EventKind             `json:"kind"`
	Message     string                `json:"message,omitempty"` // status or finished text
	Code        string                `json:"code,omitempty"`    // EventAuthCode only
	Success     bool                  `json:"success"`           // EventFinished only
	Fingerprint *fingerprint.Snapshot `json:"fingerprint,omitempty"`
}
