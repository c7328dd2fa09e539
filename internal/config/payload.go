package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// filePayload mirrors the on-disk layout. Nil fields keep the base value.
type filePayload struct {
	Recognition *recognitionPayload `json:"recognition" yaml:"recognition"`
	Audio       *audioPayload       `json:"audio" yaml:"audio"`
	Google      *googlePayload      `json:"google" yaml:"google"`
	Deepgram    *deepgramPayload    `json:"deepgram" yaml:"deepgram"`
	Script      *scriptPayload      `json:"script" yaml:"script"`
	Transcript  *transcriptPayload  `json:"transcript" yaml:"transcript"`

	ClipboardCmd *string        `json:"clipboard_cmd" yaml:"clipboard_cmd"`
	Log          *logPayload     `json:"log" yaml:"log"`
	Metrics      *metricsPayload `json:"metrics" yaml:"metrics"`
}

type recognitionPayload struct {
	Backends       *stringList `json:"backends" yaml:"backends"`
	Language       *string     `json:"language" yaml:"language"`
	Continuous     *bool       `json:"continuous" yaml:"continuous"`
	InterimResults *bool       `json:"interim_results" yaml:"interim_results"`
}

type audioPayload struct {
	Input    *string `json:"input" yaml:"input"`
	Fallback *string `json:"fallback" yaml:"fallback"`
}

type googlePayload struct {
	CredentialsFile      *string `json:"credentials_file" yaml:"credentials_file"`
	Model                *string `json:"model" yaml:"model"`
	Endpoint             *string `json:"endpoint" yaml:"endpoint"`
	AutomaticPunctuation *bool   `json:"automatic_punctuation" yaml:"automatic_punctuation"`
}

type deepgramPayload struct {
	APIKeyEnv   *string `json:"api_key_env" yaml:"api_key_env"`
	Model       *string `json:"model" yaml:"model"`
	SmartFormat *bool   `json:"smart_format" yaml:"smart_format"`
}

type scriptPayload struct {
	Path *string `json:"path" yaml:"path"`
}

type transcriptPayload struct {
	TrailingSpace *bool `json:"trailing_space" yaml:"trailing_space"`
}

type logPayload struct {
	Level *string `json:"level" yaml:"level"`
}

type metricsPayload struct {
	Listen *string `json:"listen" yaml:"listen"`
}

// stringList accepts either a list or a comma-delimited string.
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*l = list
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*l = splitList(single)
		return nil
	}

	return fmt.Errorf("expected string array or comma-delimited string")
}

func (l *stringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*l = list
		return nil
	case yaml.ScalarNode:
		*l = splitList(node.Value)
		return nil
	default:
		return fmt.Errorf("line %d: expected string array or comma-delimited string", node.Line)
	}
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

func (payload filePayload) applyTo(cfg *Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if r := payload.Recognition; r != nil {
		if r.Backends != nil {
			backends := make([]string, 0, len(*r.Backends))
			seen := make(map[string]bool, len(*r.Backends))
			for _, name := range *r.Backends {
				name = strings.ToLower(strings.TrimSpace(name))
				if name == "" {
					continue
				}
				if seen[name] {
					warnings = append(warnings, Warning{Message: fmt.Sprintf("recognition.backends lists %q more than once", name)})
					continue
				}
				seen[name] = true
				backends = append(backends, name)
			}
			cfg.Recognition.Backends = backends
		}
		if r.Language != nil {
			cfg.Recognition.Language = strings.TrimSpace(*r.Language)
		}
		if r.Continuous != nil {
			cfg.Recognition.Continuous = *r.Continuous
		}
		if r.InterimResults != nil {
			cfg.Recognition.InterimResults = *r.InterimResults
		}
	}

	if payload.Audio != nil {
		if payload.Audio.Input != nil {
			cfg.Audio.Input = *payload.Audio.Input
		}
		if payload.Audio.Fallback != nil {
			cfg.Audio.Fallback = *payload.Audio.Fallback
		}
	}

	if g := payload.Google; g != nil {
		if g.CredentialsFile != nil {
			cfg.Google.CredentialsFile = strings.TrimSpace(*g.CredentialsFile)
		}
		if g.Model != nil {
			cfg.Google.Model = strings.TrimSpace(*g.Model)
		}
		if g.Endpoint != nil {
			cfg.Google.Endpoint = strings.TrimSpace(*g.Endpoint)
		}
		if g.AutomaticPunctuation != nil {
			cfg.Google.AutomaticPunctuation = *g.AutomaticPunctuation
		}
	}

	if d := payload.Deepgram; d != nil {
		if d.APIKeyEnv != nil {
			cfg.Deepgram.APIKeyEnv = strings.TrimSpace(*d.APIKeyEnv)
		}
		if d.Model != nil {
			cfg.Deepgram.Model = strings.TrimSpace(*d.Model)
		}
		if d.SmartFormat != nil {
			cfg.Deepgram.SmartFormat = *d.SmartFormat
		}
	}

	if payload.Script != nil && payload.Script.Path != nil {
		cfg.Script.Path = strings.TrimSpace(*payload.Script.Path)
	}

	if payload.Transcript != nil && payload.Transcript.TrailingSpace != nil {
		cfg.Transcript.TrailingSpace = *payload.Transcript.TrailingSpace
	}

	if payload.ClipboardCmd != nil {
		raw := *payload.ClipboardCmd
		argv, err := parseArgv(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid clipboard_cmd: %w", err)
		}
		cfg.Clipboard = CommandConfig{Raw: raw, Argv: argv}
	}

	if payload.Log != nil && payload.Log.Level != nil {
		cfg.Log.Level = strings.ToLower(strings.TrimSpace(*payload.Log.Level))
	}

	if payload.Metrics != nil && payload.Metrics.Listen != nil {
		cfg.Metrics.Listen = strings.TrimSpace(*payload.Metrics.Listen)
	}

	return warnings, nil
}
