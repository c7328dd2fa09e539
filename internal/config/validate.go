package config

import (
	"fmt"
	"net"
	"slices"
	"strings"

	"github.com/rs/zerolog"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if len(cfg.Recognition.Backends) == 0 {
		return nil, fmt.Errorf("recognition.backends must list at least one backend")
	}
	for _, name := range cfg.Recognition.Backends {
		if !slices.Contains(KnownBackends, name) {
			return nil, fmt.Errorf("recognition.backends: unknown backend %q (want one of: %s)", name, strings.Join(KnownBackends, ", "))
		}
	}
	if strings.TrimSpace(cfg.Recognition.Language) == "" {
		return nil, fmt.Errorf("recognition.language must not be empty")
	}

	if slices.Contains(cfg.Recognition.Backends, BackendDeepgram) && strings.TrimSpace(cfg.Deepgram.APIKeyEnv) == "" {
		return nil, fmt.Errorf("deepgram.api_key_env must not be empty when deepgram is a backend")
	}
	if slices.Contains(cfg.Recognition.Backends, BackendScript) && cfg.Script.Path == "" {
		warnings = append(warnings, Warning{Message: "recognition.backends includes script but script.path is unset"})
	}
	if cfg.Script.Path != "" && !slices.Contains(cfg.Recognition.Backends, BackendScript) {
		warnings = append(warnings, Warning{Message: "script.path is set but script is not listed in recognition.backends"})
	}

	if cfg.Clipboard.Raw != "" && len(cfg.Clipboard.Argv) == 0 {
		return nil, fmt.Errorf("clipboard_cmd is configured but empty")
	}

	if _, err := zerolog.ParseLevel(cfg.Log.Level); err != nil || cfg.Log.Level == "" {
		return nil, fmt.Errorf("log.level %q is not a valid level", cfg.Log.Level)
	}

	if cfg.Metrics.Listen != "" {
		if _, _, err := net.SplitHostPort(cfg.Metrics.Listen); err != nil {
			return nil, fmt.Errorf("metrics.listen: %w", err)
		}
	}

	return warnings, nil
}
