package domain

import (
	"time"
)

type SessionState string

const (
	StateIdle    SessionState = "idle"
	StateActive  SessionState = "active"
	StatePaused  SessionState = "paused"
	StateStopped SessionState = "stopped"
)

var transitions = map[SessionState][]SessionState{
	StateIdle:   {StateActive},
	StateActive: {StatePaused, StateStopped},
	StatePaused: {StateActive, StateStopped},
}

// CanTransition reports whether moving from s to next is a legal transition.
func (s SessionState) CanTransition(next SessionState) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// InProgress is true for the states that hold capture resources.
func (s SessionState) InProgress() bool {
	return s == StateActive || s == StatePaused
}

// SessionStatus is the polling view of the current recording.
type SessionStatus struct {
	SessionID string        `json:"sessionId,omitempty"`
	State     SessionState  `json:"state"`
	MimeType  string        `json:"mimeType,omitempty"`
	StartedAt *time.Time    `json:"startedAt,omitempty"`
	Duration  time.Duration `json:"-"`
	Size      int64         `json:"size"`
}

// DurationSeconds is the active duration as fractional seconds.
func (s SessionStatus) DurationSeconds() float64 {
	return s.Duration.Seconds()
}

// StartResult is returned to the caller of a successful start.
type StartResult struct {
	SessionID string
	Stream    *CombinedStream
	MimeType  string
}

// RecordingResult is the finalized artifact of one session.
type RecordingResult struct {
	SessionID string
	Data      []byte
	Duration  time.Duration
	Size      int64
	MimeType  string
	Config    RecordingConfig
}

// ChunkEvent is published to subscribers for every appended chunk. The last
// event of a session has Final set and is followed by channel close.
type ChunkEvent struct {
	SessionID      string        `json:"sessionId"`
	Sequence       int           `json:"sequence"`
	ChunkSize      int           `json:"chunkSize"`
	TotalSize      int64         `json:"totalSize"`
	ActiveDuration time.Duration `json:"activeDuration"`
	Final          bool          `json:"final"`
}
