package config

const (
	BackendGoogle   = "google"
	BackendDeepgram = "deepgram"
	BackendScript   = "script"
)

// KnownBackends lists every recognizer backend name accepted in recognition.backends.
var KnownBackends = []string{BackendGoogle, BackendDeepgram, BackendScript}

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	return Config{
		Recognition: RecognitionConfig{
			Backends:       []string{BackendGoogle, BackendDeepgram},
			Language:       "en-US",
			Continuous:     true,
			InterimResults: true,
		},
		Audio: AudioConfig{
			Input:    "default",
			Fallback: "default",
		},
		Google: GoogleConfig{
			AutomaticPunctuation: true,
		},
		Deepgram: DeepgramConfig{
			APIKeyEnv:   "DEEPGRAM_API_KEY",
			Model:       "nova-2",
			SmartFormat: true,
		},
		Transcript: TranscriptConfig{TrailingSpace: true},
		Log:        LogConfig{Level: "info"},
	}
}
