package app

import (
	"github.com/rs/zerolog"

	"github.com/rbright/livescribe/internal/capability"
	"github.com/rbright/livescribe/internal/config"
	"github.com/rbright/livescribe/internal/recognizer/deepgram"
	"github.com/rbright/livescribe/internal/recognizer/google"
	"github.com/rbright/livescribe/internal/recognizer/script"
)

// Providers builds the recognizer providers named in recognition.backends, in order.
func Providers(cfg config.Config, logger zerolog.Logger) []capability.Provider {
	providers := make([]capability.Provider, 0, len(cfg.Recognition.Backends))
	for _, name := range cfg.Recognition.Backends {
		switch name {
		case config.BackendGoogle:
			providers = append(providers, google.NewProvider(google.Options{
				CredentialsFile:      cfg.Google.CredentialsFile,
				Model:                cfg.Google.Model,
				Endpoint:             cfg.Google.Endpoint,
				AutomaticPunctuation: cfg.Google.AutomaticPunctuation,
				AudioInput:           cfg.Audio.Input,
				AudioFallback:        cfg.Audio.Fallback,
				Logger:               logger,
			}))
		case config.BackendDeepgram:
			providers = append(providers, deepgram.NewProvider(deepgram.Options{
				APIKeyEnv:     cfg.Deepgram.APIKeyEnv,
				Model:         cfg.Deepgram.Model,
				SmartFormat:   cfg.Deepgram.SmartFormat,
				AudioInput:    cfg.Audio.Input,
				AudioFallback: cfg.Audio.Fallback,
				Logger:        logger,
			}))
		case config.BackendScript:
			providers = append(providers, &script.Provider{Path: cfg.Script.Path, Logger: logger})
		default:
			logger.Warn().Str("backend", name).Msg("unknown recognizer backend skipped")
		}
	}
	return providers
}

// capabilityConfig maps recognition settings onto the session capability config.
func capabilityConfig(cfg config.Config) capability.Config {
	return capability.Config{
		Continuous:     cfg.Recognition.Continuous,
		InterimResults: cfg.Recognition.InterimResults,
		Language:       cfg.Recognition.Language,
	}
}
