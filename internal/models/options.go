package models

// ScreenSource selects what the capture picker should offer. Advisory only;
// the browser's picker has the final say.
type ScreenSource string

const (
	SourceEntireScreen ScreenSource = "entire"
	SourceWindow       ScreenSource = "window"
	SourceTab          ScreenSource = "tab"
)

// RecordingOptions is the client-held configuration for one capture attempt.
type RecordingOptions struct {
	ScreenSource       ScreenSource `json:"screenSource"`
	IncludeMicrophone  bool         `json:"includeMicrophone"`
	IncludeSystemAudio bool         `json:"includeSystemAudio"`
	MicrophoneVolume   int          `json:"microphoneVolume"` // 0-100, display only
	Format             Format       `json:"format"`
}
