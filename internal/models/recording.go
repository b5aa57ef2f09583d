package models

import (
	"errors"
	"time"
)

// Format is a recording container format.
type Format string

const (
	FormatMP4  Format = "mp4"
	FormatWebM Format = "webm"
)

// Valid reports whether f is a supported container format.
func (f Format) Valid() bool {
	return f == FormatMP4 || f == FormatWebM
}

// MimeType returns the video MIME type for the format.
func (f Format) MimeType() string {
	return "video/" + string(f)
}

// Recording is a stored screen recording: the metadata row plus a pointer
// (Filename) to its backing blob.
type Recording struct {
	ID           int       `json:"id"`
	Title        string    `json:"title"`
	Filename     string    `json:"filename"`
	FileSize     int64     `json:"fileSize"`
	Duration     int       `json:"duration"` // seconds
	Format       Format    `json:"format"`
	HasAudio     bool      `json:"hasAudio"`
	ThumbnailURL *string   `json:"thumbnailUrl"` // reserved; always null
	CreatedAt    time.Time `json:"createdAt"`
}

// ClientMetadata is the metadata part of a recording upload. FileSize is
// accepted for wire compatibility but ignored; the stored value is measured
// from the received bytes.
type ClientMetadata struct {
	Title        string  `json:"title"`
	Filename     string  `json:"filename"` // hint only; the stored name is server-generated
	Duration     int     `json:"duration"`
	Format       Format  `json:"format"`
	HasAudio     *bool   `json:"hasAudio"` // absent = true
	ThumbnailURL *string `json:"thumbnailUrl"`
	FileSize     int64   `json:"fileSize,omitempty"`
}

// Validate checks the metadata before any blob is written.
func (m *ClientMetadata) Validate() error {
	if m.Title == "" {
		return errors.New("title is required")
	}
	if !m.Format.Valid() {
		return errors.New("format must be mp4 or webm")
	}
	if m.Duration < 0 {
		return errors.New("duration must not be negative")
	}
	return nil
}

// StorageStats is the aggregate used/total byte accounting.
type StorageStats struct {
	Used  int64 `json:"used"`
	Total int64 `json:"total"`
}
