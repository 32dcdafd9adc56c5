package resource

import "github.com/roach88/arictl/internal/engine"

// CreateOption configures CreateBridge.
type CreateOption func(*createSettings)

type createSettings struct {
	bridgeType string
	bridgeID   string
	name       string
}

// WithBridgeType overrides the bridge type (default "mixing").
func WithBridgeType(t string) CreateOption {
	return func(s *createSettings) { s.bridgeType = t }
}

// WithBridgeID asks the server to use id instead of assigning one.
func WithBridgeID(id string) CreateOption {
	return func(s *createSettings) { s.bridgeID = id }
}

// WithName sets the bridge's display name.
func WithName(name string) CreateOption {
	return func(s *createSettings) { s.name = name }
}

func (s createSettings) params() *engine.Params {
	return engine.NewParams().
		Set("type", s.bridgeType).
		String("bridgeId", s.bridgeID).
		String("name", s.name)
}

// PlayOption configures Play.
type PlayOption func(*playSettings)

type playSettings struct {
	lang       string
	playbackID string
	offsetMs   int
	skipMs     int
}

func defaultPlaySettings() playSettings {
	return playSettings{offsetMs: engine.Absent, skipMs: engine.Absent}
}

// WithLang sets the language for the media.
func WithLang(lang string) PlayOption {
	return func(s *playSettings) { s.lang = lang }
}

// WithPlaybackID sets the identifier of the playback to create.
func WithPlaybackID(id string) PlayOption {
	return func(s *playSettings) { s.playbackID = id }
}

// WithOffset starts playback ms milliseconds into the media.
func WithOffset(ms int) PlayOption {
	return func(s *playSettings) { s.offsetMs = ms }
}

// WithSkip sets the skip step in milliseconds for forward/reverse.
func WithSkip(ms int) PlayOption {
	return func(s *playSettings) { s.skipMs = ms }
}

func playParams(media string, opts []PlayOption) *engine.Params {
	s := defaultPlaySettings()
	for _, opt := range opts {
		opt(&s)
	}
	return engine.NewParams().
		Set("media", media).
		String("lang", s.lang).
		String("playbackId", s.playbackID).
		Int("offsetms", s.offsetMs).
		Int("skipms", s.skipMs)
}

// RecordOption configures Record.
type RecordOption func(*recordSettings)

type recordSettings struct {
	maxDuration int
	maxSilence  int
	ifExists    string
	beep        bool
	terminateOn TerminationDTMF
}

func defaultRecordSettings() recordSettings {
	return recordSettings{
		maxDuration: engine.Absent,
		maxSilence:  engine.Absent,
		terminateOn: TerminateNone,
	}
}

// WithMaxDuration limits the recording length in seconds.
func WithMaxDuration(seconds int) RecordOption {
	return func(s *recordSettings) { s.maxDuration = seconds }
}

// WithMaxSilence stops the recording after this many seconds of silence.
func WithMaxSilence(seconds int) RecordOption {
	return func(s *recordSettings) { s.maxSilence = seconds }
}

// WithIfExists sets the policy for an existing recording name
// ("fail", "overwrite", "append").
func WithIfExists(policy string) RecordOption {
	return func(s *recordSettings) { s.ifExists = policy }
}

// WithBeep plays a beep before recording starts.
func WithBeep() RecordOption {
	return func(s *recordSettings) { s.beep = true }
}

// WithTerminateOn ends the recording on the given DTMF.
func WithTerminateOn(t TerminationDTMF) RecordOption {
	return func(s *recordSettings) { s.terminateOn = t }
}

// recordParams always sends name, format, terminateOn and beep; the
// remaining parameters follow the omission rule.
func recordParams(name, format string, opts []RecordOption) *engine.Params {
	s := defaultRecordSettings()
	for _, opt := range opts {
		opt(&s)
	}
	return engine.NewParams().
		Set("name", name).
		Set("format", format).
		Set("terminateOn", s.terminateOn.String()).
		Flag("beep", s.beep).
		String("ifExists", s.ifExists).
		Int("maxDurationSeconds", s.maxDuration).
		Int("maxSilenceSeconds", s.maxSilence)
}
