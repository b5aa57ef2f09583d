package capture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screenloom/backend/internal/models"
)

type fakeTrack struct {
	kind TrackKind

	mu      sync.Mutex
	stopped bool
	ended   func()
}

func (t *fakeTrack) Kind() TrackKind { return t.kind }

func (t *fakeTrack) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

func (t *fakeTrack) OnEnded(fn func()) {
	t.mu.Lock()
	t.ended = fn
	t.mu.Unlock()
}

func (t *fakeTrack) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// fireEnded simulates the source ending externally (stop-sharing control).
func (t *fakeTrack) fireEnded() {
	t.mu.Lock()
	fn := t.ended
	t.mu.Unlock()
	if fn != nil {
		fn()
	}
}

type fakeStream struct{ tracks []Track }

func (s *fakeStream) Tracks() []Track { return s.tracks }

type fakeRecorder struct {
	mu       sync.Mutex
	started  int
	paused   int
	resumed  int
	stopped  int
	startErr error
	onData   func([]byte)
	onStop   func()
}

func (r *fakeRecorder) Start(timeslice time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.startErr != nil {
		return r.startErr
	}
	r.started++
	return nil
}

func (r *fakeRecorder) Pause() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paused++
	return nil
}

func (r *fakeRecorder) Resume() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resumed++
	return nil
}

func (r *fakeRecorder) Stop() error {
	r.mu.Lock()
	r.stopped++
	onStop := r.onStop
	r.mu.Unlock()
	if onStop != nil {
		onStop()
	}
	return nil
}

func (r *fakeRecorder) OnData(fn func([]byte)) { r.onData = fn }
func (r *fakeRecorder) OnStop(fn func())       { r.onStop = fn }

func (r *fakeRecorder) emit(chunk []byte) { r.onData(chunk) }

type fakeDevice struct {
	displayErr  error
	micErr      error
	display     *fakeStream
	mic         *fakeStream
	recorder    *fakeRecorder
	unsupported map[string]bool

	recorderTracks []Track
	recorderMime   string
}

func (d *fakeDevice) AcquireDisplayStream(ctx context.Context, withAudio bool) (Stream, error) {
	if d.displayErr != nil {
		return nil, d.displayErr
	}
	return d.display, nil
}

func (d *fakeDevice) AcquireMicrophoneStream(ctx context.Context, c MicrophoneConstraints) (Stream, error) {
	if d.micErr != nil {
		return nil, d.micErr
	}
	return d.mic, nil
}

func (d *fakeDevice) SupportsMimeType(mimeType string) bool {
	return !d.unsupported[mimeType]
}

func (d *fakeDevice) NewRecorder(tracks []Track, mimeType string) (Recorder, error) {
	d.recorderTracks = tracks
	d.recorderMime = mimeType
	return d.recorder, nil
}

type fakeUploader struct {
	mu   sync.Mutex
	err  error
	reqs []UploadRequest
}

func (u *fakeUploader) Upload(ctx context.Context, req UploadRequest) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.reqs = append(u.reqs, req)
	return u.err
}

func (u *fakeUploader) requests() []UploadRequest {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]UploadRequest(nil), u.reqs...)
}

type fixture struct {
	session  *Session
	device   *fakeDevice
	recorder *fakeRecorder
	uploader *fakeUploader
	video    *fakeTrack
	sysAudio *fakeTrack
	micAudio *fakeTrack
	tickC    chan time.Time
	warnings []string
}

func newFixture() *fixture {
	f := &fixture{
		video:    &fakeTrack{kind: TrackVideo},
		sysAudio: &fakeTrack{kind: TrackAudio},
		micAudio: &fakeTrack{kind: TrackAudio},
		recorder: &fakeRecorder{},
		uploader: &fakeUploader{},
		tickC:    make(chan time.Time),
	}
	f.device = &fakeDevice{
		display:  &fakeStream{tracks: []Track{f.video, f.sysAudio}},
		mic:      &fakeStream{tracks: []Track{f.micAudio}},
		recorder: f.recorder,
	}
	f.session = NewSession(f.device, f.uploader, nil)
	f.session.SetClock(func() time.Time {
		return time.Date(2024, 5, 1, 15, 4, 5, 0, time.UTC)
	})
	f.session.SetTicker(func(d time.Duration) (<-chan time.Time, func()) {
		return f.tickC, func() {}
	})
	f.session.SetWarningHandler(func(msg string) { f.warnings = append(f.warnings, msg) })
	return f
}

func (f *fixture) tick(t *testing.T, expectElapsed int) {
	t.Helper()
	f.tickC <- time.Time{}
	require.Eventually(t, func() bool {
		return f.session.Elapsed() == expectElapsed
	}, time.Second, time.Millisecond)
}

func videoOnlyOpts() models.RecordingOptions {
	return models.RecordingOptions{
		ScreenSource: models.SourceEntireScreen,
		Format:       models.FormatWebM,
	}
}

func TestStartStopUploadsConcatenatedChunks(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.session.Start(context.Background(), videoOnlyOpts()))
	assert.Equal(t, StateRecording, f.session.State())
	assert.Equal(t, 1, f.recorder.started)

	f.recorder.emit([]byte("abc"))
	f.recorder.emit(nil) // empty chunks are skipped
	f.recorder.emit([]byte("def"))
	f.tick(t, 1)
	f.tick(t, 2)

	require.NoError(t, f.session.Stop())
	reqs := f.uploader.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, []byte("abcdef"), reqs[0].Data)
	assert.Equal(t, 2, reqs[0].Duration)
	assert.Equal(t, models.FormatWebM, reqs[0].Format)
	assert.False(t, reqs[0].HasAudio)
	assert.Equal(t, "Recording 5/1/2024 3:04:05 PM", reqs[0].Title)
	assert.Equal(t, StateIdle, f.session.State())
	assert.NoError(t, f.session.Err())
}

func TestPauseAndResumeAreNoOpsOutsideTheirStates(t *testing.T) {
	f := newFixture()

	require.NoError(t, f.session.Pause())
	assert.Equal(t, StateIdle, f.session.State())
	require.NoError(t, f.session.Resume())
	assert.Equal(t, StateIdle, f.session.State())

	require.NoError(t, f.session.Start(context.Background(), videoOnlyOpts()))
	require.NoError(t, f.session.Resume()) // not paused, no-op
	assert.Equal(t, StateRecording, f.session.State())
	assert.Zero(t, f.recorder.resumed)
}

func TestPauseSuspendsTickAndDrivesRecorderInLockStep(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.session.Start(context.Background(), videoOnlyOpts()))
	f.tick(t, 1)

	require.NoError(t, f.session.Pause())
	assert.Equal(t, StatePaused, f.session.State())
	assert.Equal(t, 1, f.recorder.paused)

	// A tick delivered while paused must not advance the counter.
	f.tickC <- time.Time{}
	assert.Equal(t, 1, f.session.Elapsed())

	require.NoError(t, f.session.Resume())
	assert.Equal(t, StateRecording, f.session.State())
	assert.Equal(t, 1, f.recorder.resumed)
	f.tick(t, 2)

	require.NoError(t, f.session.Stop())
	reqs := f.uploader.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, 2, reqs[0].Duration)
}

func TestStopReleasesAllTracksEvenWhenUploadFails(t *testing.T) {
	f := newFixture()
	f.uploader.err = errors.New("network down")
	opts := videoOnlyOpts()
	opts.IncludeSystemAudio = true
	opts.IncludeMicrophone = true

	require.NoError(t, f.session.Start(context.Background(), opts))
	f.recorder.emit([]byte("chunk"))
	require.NoError(t, f.session.Stop())

	assert.True(t, f.video.isStopped())
	assert.True(t, f.sysAudio.isStopped())
	assert.True(t, f.micAudio.isStopped())
	assert.Equal(t, StateIdle, f.session.State())
	assert.ErrorContains(t, f.session.Err(), "network down")
	assert.Contains(t, f.warnings[len(f.warnings)-1], "Failed to save recording")
}

func TestScreenPermissionDenialAbortsStart(t *testing.T) {
	f := newFixture()
	f.device.displayErr = ErrPermissionDenied

	err := f.session.Start(context.Background(), videoOnlyOpts())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.Equal(t, StateIdle, f.session.State())
	assert.Empty(t, f.uploader.requests())
}

func TestMicrophoneDenialDegradesToVideoOnly(t *testing.T) {
	f := newFixture()
	f.device.micErr = ErrPermissionDenied
	opts := videoOnlyOpts()
	opts.IncludeMicrophone = true

	require.NoError(t, f.session.Start(context.Background(), opts))
	assert.Equal(t, StateRecording, f.session.State())
	require.NotEmpty(t, f.warnings)
	assert.Contains(t, f.warnings[0], "Microphone access denied")
	assert.Equal(t, []Track{f.video}, f.device.recorderTracks)

	require.NoError(t, f.session.Stop())
	reqs := f.uploader.requests()
	require.Len(t, reqs, 1)
	assert.False(t, reqs[0].HasAudio)
}

func TestSystemAndMicrophoneAudioAreCombined(t *testing.T) {
	f := newFixture()
	opts := videoOnlyOpts()
	opts.IncludeSystemAudio = true
	opts.IncludeMicrophone = true

	require.NoError(t, f.session.Start(context.Background(), opts))
	assert.Equal(t, []Track{f.video, f.sysAudio, f.micAudio}, f.device.recorderTracks)

	require.NoError(t, f.session.Stop())
	reqs := f.uploader.requests()
	require.Len(t, reqs, 1)
	assert.True(t, reqs[0].HasAudio)
}

func TestExternallyEndedTrackStopsSession(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.session.Start(context.Background(), videoOnlyOpts()))
	f.recorder.emit([]byte("partial"))

	f.video.fireEnded()

	require.Eventually(t, func() bool {
		return f.session.State() == StateIdle
	}, time.Second, time.Millisecond)
	reqs := f.uploader.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, []byte("partial"), reqs[0].Data)
	assert.True(t, f.video.isStopped())
}

func TestUnsupportedFormatFallsBackToWebM(t *testing.T) {
	f := newFixture()
	f.device.unsupported = map[string]bool{"video/mp4": true}
	opts := videoOnlyOpts()
	opts.Format = models.FormatMP4

	require.NoError(t, f.session.Start(context.Background(), opts))
	assert.Equal(t, "video/webm", f.device.recorderMime)

	require.NoError(t, f.session.Stop())
	reqs := f.uploader.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, models.FormatWebM, reqs[0].Format)
}

func TestStartWhileActiveIsRejected(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.session.Start(context.Background(), videoOnlyOpts()))

	err := f.session.Start(context.Background(), videoOnlyOpts())
	assert.ErrorIs(t, err, ErrSessionActive)

	require.NoError(t, f.session.Stop())
	assert.Equal(t, StateIdle, f.session.State())

	// The session is reusable once idle again.
	require.NoError(t, f.session.Start(context.Background(), videoOnlyOpts()))
	require.NoError(t, f.session.Stop())
	assert.Len(t, f.uploader.requests(), 2)
}

func TestStopWhenIdleIsInvalid(t *testing.T) {
	f := newFixture()
	assert.ErrorIs(t, f.session.Stop(), ErrInvalidState)
}
