// Package capture implements the client-side capture session: the state
// machine owning one screen-recording attempt from start through upload.
// Browser media primitives are abstracted behind MediaDevice so the session
// can run against any runtime that exposes (or stubs) equivalent capture
// facilities.
package capture

import (
	"context"
	"time"
)

// TrackKind distinguishes media track types.
type TrackKind string

const (
	TrackVideo TrackKind = "video"
	TrackAudio TrackKind = "audio"
)

// Track is one live media track. Stop releases the underlying source;
// OnEnded registers a hook fired when the source ends externally (e.g. the
// user revokes screen sharing from the browser's own control).
type Track interface {
	Kind() TrackKind
	Stop()
	OnEnded(fn func())
}

// Stream is an ordered set of live tracks.
type Stream interface {
	Tracks() []Track
}

// MicrophoneConstraints configures microphone acquisition.
type MicrophoneConstraints struct {
	EchoCancellation bool
	NoiseSuppression bool
	SampleRate       int
}

// Recorder drives the underlying media-recording facility for one set of
// tracks. Data and stop handlers must be registered before Start; the
// facility emits chunks at the requested timeslice and fires the stop
// handler once after Stop, when all chunks have been delivered.
type Recorder interface {
	Start(timeslice time.Duration) error
	Pause() error
	Resume() error
	Stop() error
	OnData(fn func(chunk []byte))
	OnStop(fn func())
}

// MediaDevice abstracts the runtime's capture primitives.
type MediaDevice interface {
	// AcquireDisplayStream requests a screen-capture stream: video always,
	// system audio when withAudio is set.
	AcquireDisplayStream(ctx context.Context, withAudio bool) (Stream, error)
	// AcquireMicrophoneStream requests a microphone stream.
	AcquireMicrophoneStream(ctx context.Context, c MicrophoneConstraints) (Stream, error)
	// SupportsMimeType reports whether the recording facility can produce
	// the given container MIME type.
	SupportsMimeType(mimeType string) bool
	// NewRecorder creates a recorder over tracks producing mimeType output.
	NewRecorder(tracks []Track, mimeType string) (Recorder, error)
}
