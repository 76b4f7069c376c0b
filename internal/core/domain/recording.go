package domain

import (
	"fmt"
	"time"
)

// Recording is a saved recording as listed by the library. The artifact bytes
// are stored next to it and fetched separately.
type Recording struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	MimeType     string          `json:"mimeType"`
	Duration     float64         `json:"duration"` // seconds
	Size         int64           `json:"size"`     // bytes
	SourceConfig RecordingConfig `json:"sourceConfig"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// NewRecording is what the core hands to the store after a stop.
type NewRecording struct {
	Title        string
	Artifact     []byte
	Duration     float64
	Size         int64
	MimeType     string
	SourceConfig RecordingConfig
}

// Artifact is a binary recording plus its declared encoding. Duration is in
// seconds and zero when unknown.
type Artifact struct {
	Data     []byte
	MimeType string
	Duration float64
}

// DefaultTitle is used when a recording is saved without a title.
func DefaultTitle(t time.Time) string {
	return fmt.Sprintf("Recording %s", t.Format("2006-01-02 15:04:05"))
}
