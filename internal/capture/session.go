package capture

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/screenloom/backend/internal/models"
)

// State is the capture session lifecycle state.
type State string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
	StatePaused    State = "paused"
	StateStopping  State = "stopping"
	StateStopped   State = "stopped"
)

// UploadRequest carries a finished recording to the upload path. The data is
// the concatenation of all chunks the recorder emitted, tagged with the
// resolved output format.
type UploadRequest struct {
	Data     []byte
	Title    string
	Duration int // seconds
	Format   models.Format
	HasAudio bool
}

// Uploader sends a finished recording to the backend.
type Uploader interface {
	Upload(ctx context.Context, req UploadRequest) error
}

// Session owns one screen-recording attempt: idle -> recording
// {-> paused -> recording} -> stopping -> idle. At most one attempt is
// active at a time; a new attempt reuses the same Session after the previous
// one has reset to idle.
type Session struct {
	device   MediaDevice
	uploader Uploader
	logger   *zap.Logger

	now       func() time.Time
	newTicker func(d time.Duration) (<-chan time.Time, func())
	warnFn    func(msg string)

	mu             sync.Mutex
	state          State
	elapsedSeconds int
	chunks         [][]byte
	tracks         []Track
	recorder       Recorder
	format         models.Format
	hasAudio       bool
	lastErr        error
	done           chan struct{}
}

// NewSession creates an idle capture session over the given device and
// upload path.
func NewSession(device MediaDevice, uploader Uploader, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{
		device:   device,
		uploader: uploader,
		logger:   logger,
		state:    StateIdle,
		now:      time.Now,
	}
	s.newTicker = func(d time.Duration) (<-chan time.Time, func()) {
		t := time.NewTicker(d)
		return t.C, t.Stop
	}
	s.warnFn = func(msg string) { logger.Warn(msg) }
	return s
}

// SetClock overrides the time source used for default titles.
func (s *Session) SetClock(now func() time.Time) { s.now = now }

// SetTicker overrides the 1-second elapsed-time tick source.
func (s *Session) SetTicker(f func(d time.Duration) (<-chan time.Time, func())) { s.newTicker = f }

// SetWarningHandler sets the sink for non-fatal warnings, e.g. a denied
// microphone.
func (s *Session) SetWarningHandler(fn func(msg string)) { s.warnFn = fn }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Elapsed returns the recorded seconds so far.
func (s *Session) Elapsed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elapsedSeconds
}

// Err returns the last failure reason, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Start acquires media streams per opts and begins recording. A screen
// permission denial aborts with an error matching ErrPermissionDenied; a
// microphone denial degrades to video-only with a surfaced warning. On any
// failure the session is left idle with all acquired tracks released.
func (s *Session) Start(ctx context.Context, opts models.RecordingOptions) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrSessionActive
	}
	s.state = StateRecording
	s.elapsedSeconds = 0
	s.chunks = nil
	s.lastErr = nil
	s.done = make(chan struct{})
	s.mu.Unlock()

	display, err := s.device.AcquireDisplayStream(ctx, opts.IncludeSystemAudio)
	if err != nil {
		err = fmt.Errorf("acquire display stream: %w", err)
		s.abort(err)
		return err
	}

	tracks := make([]Track, 0, 4)
	var videoTrack Track
	for _, t := range display.Tracks() {
		switch t.Kind() {
		case TrackVideo:
			if videoTrack == nil {
				videoTrack = t
			}
			tracks = append(tracks, t)
		case TrackAudio:
			if opts.IncludeSystemAudio {
				tracks = append(tracks, t)
			}
		}
	}

	if opts.IncludeMicrophone {
		mic, micErr := s.device.AcquireMicrophoneStream(ctx, MicrophoneConstraints{
			EchoCancellation: true,
			NoiseSuppression: true,
			SampleRate:       44100,
		})
		if micErr != nil {
			s.logger.Warn("microphone unavailable, continuing without it", zap.Error(micErr))
			s.warnFn("Microphone access denied. Recording will continue without microphone audio.")
		} else {
			for _, t := range mic.Tracks() {
				if t.Kind() == TrackAudio {
					tracks = append(tracks, t)
				}
			}
		}
	}

	s.mu.Lock()
	s.tracks = tracks
	s.mu.Unlock()

	format := opts.Format
	if !format.Valid() {
		format = models.FormatWebM
	}
	if !s.device.SupportsMimeType(format.MimeType()) {
		format = models.FormatWebM
	}

	rec, err := s.device.NewRecorder(tracks, format.MimeType())
	if err != nil {
		err = fmt.Errorf("create recorder: %w", err)
		s.abort(err)
		return err
	}
	rec.OnData(s.appendChunk)
	rec.OnStop(s.finalize)

	hasAudio := false
	for _, t := range tracks {
		if t.Kind() == TrackAudio {
			hasAudio = true
		}
	}

	s.mu.Lock()
	s.recorder = rec
	s.format = format
	s.hasAudio = hasAudio
	done := s.done
	s.mu.Unlock()

	// The user can end sharing from the browser's own control; treat it as
	// an implicit stop.
	if videoTrack != nil {
		videoTrack.OnEnded(func() { _ = s.Stop() })
	}

	if err := rec.Start(time.Second); err != nil {
		err = fmt.Errorf("start recorder: %w", err)
		s.abort(err)
		return err
	}

	go s.runTicker(done)
	return nil
}

// Pause suspends the recorder and the elapsed-time tick. A no-op unless
// recording.
func (s *Session) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRecording || s.recorder == nil {
		return nil
	}
	if err := s.recorder.Pause(); err != nil {
		return err
	}
	s.state = StatePaused
	return nil
}

// Resume restarts the recorder and the elapsed-time tick. A no-op unless
// paused.
func (s *Session) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StatePaused || s.recorder == nil {
		return nil
	}
	if err := s.recorder.Resume(); err != nil {
		return err
	}
	s.state = StateRecording
	return nil
}

// Stop finalizes the recorder, which delivers the remaining chunks and then
// triggers blob assembly and upload. Valid from recording or paused.
func (s *Session) Stop() error {
	s.mu.Lock()
	if s.state != StateRecording && s.state != StatePaused {
		s.mu.Unlock()
		return ErrInvalidState
	}
	if s.recorder == nil {
		s.mu.Unlock()
		return ErrInvalidState
	}
	s.state = StateStopping
	rec := s.recorder
	s.mu.Unlock()

	if err := rec.Stop(); err != nil {
		err = fmt.Errorf("stop recorder: %w", err)
		s.abort(err)
		return err
	}
	return nil
}

func (s *Session) appendChunk(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	s.mu.Lock()
	s.chunks = append(s.chunks, chunk)
	s.mu.Unlock()
}

// finalize runs once the recorder has delivered all chunks: assemble the
// blob, upload it, then release every track regardless of the upload
// outcome and reset to idle.
func (s *Session) finalize() {
	s.mu.Lock()
	chunks := s.chunks
	s.chunks = nil
	elapsed := s.elapsedSeconds
	format := s.format
	hasAudio := s.hasAudio
	s.state = StateStopped
	s.mu.Unlock()

	var size int
	for _, c := range chunks {
		size += len(c)
	}
	blob := make([]byte, 0, size)
	for _, c := range chunks {
		blob = append(blob, c...)
	}

	now := s.now()
	title := fmt.Sprintf("Recording %s %s", now.Format("1/2/2006"), now.Format("3:04:05 PM"))

	err := s.uploader.Upload(context.Background(), UploadRequest{
		Data:     blob,
		Title:    title,
		Duration: elapsed,
		Format:   format,
		HasAudio: hasAudio,
	})
	if err != nil {
		s.logger.Error("upload recording failed", zap.Error(err))
		s.warnFn("Failed to save recording. Please try again.")
	}

	s.release()

	s.mu.Lock()
	s.lastErr = err
	s.recorder = nil
	s.state = StateIdle
	s.mu.Unlock()
}

// abort handles a fatal capture failure: release resources and return to
// idle with the failure recorded.
func (s *Session) abort(err error) {
	s.release()
	s.mu.Lock()
	s.lastErr = err
	s.recorder = nil
	s.state = StateIdle
	s.mu.Unlock()
}

// release stops every held track exactly once and ends the tick goroutine.
// Runs even when upload fails so no capture indicator is left lit.
func (s *Session) release() {
	s.mu.Lock()
	tracks := s.tracks
	s.tracks = nil
	done := s.done
	s.done = nil
	s.mu.Unlock()

	for _, t := range tracks {
		t.Stop()
	}
	if done != nil {
		close(done)
	}
}

// runTicker increments elapsedSeconds once per second while recording. The
// tick is suspended while paused and ends when the session releases.
func (s *Session) runTicker(done <-chan struct{}) {
	tickC, stop := s.newTicker(time.Second)
	defer stop()
	for {
		select {
		case <-done:
			return
		case <-tickC:
			s.mu.Lock()
			if s.state == StateRecording {
				s.elapsedSeconds++
			}
			s.mu.Unlock()
		}
	}
}
