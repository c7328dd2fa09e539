// Package config resolves, parses, validates, and defaults livescribe configuration.
package config

// Config is the fully materialized runtime configuration used by livescribe.
type Config struct {
	Recognition RecognitionConfig
	Audio       AudioConfig
	Google      GoogleConfig
	Deepgram    DeepgramConfig
	Script      ScriptConfig
	Transcript  TranscriptConfig
	Clipboard   CommandConfig
	Log         LogConfig
	Metrics     MetricsConfig
}

// RecognitionConfig selects recognizer backends and the session capability config.
type RecognitionConfig struct {
	// Backends is the provider preference order. The first available one wins.
	Backends       []string
	Language       string
	Continuous     bool
	InterimResults bool
}

// AudioConfig controls preferred and fallback input-source selection.
type AudioConfig struct {
	Input    string
	Fallback string
}

// GoogleConfig configures the Cloud Speech-to-Text backend.
type GoogleConfig struct {
	CredentialsFile      string
	Model                string
	Endpoint             string
	AutomaticPunctuation bool
}

// DeepgramConfig configures the Deepgram live backend.
type DeepgramConfig struct {
	APIKeyEnv   string
	Model       string
	SmartFormat bool
}

// ScriptConfig points at a scripted recognizer run.
type ScriptConfig struct {
	Path string
}

// TranscriptConfig controls transcript assembly formatting.
type TranscriptConfig struct {
	TrailingSpace bool
}

// CommandConfig stores a raw command string and its parsed argv form.
type CommandConfig struct {
	Raw  string
	Argv []string
}

// LogConfig controls the JSONL runtime log.
type LogConfig struct {
	Level string
}

// MetricsConfig controls the optional prometheus endpoint. An empty Listen disables it.
type MetricsConfig struct {
	Listen string
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}
