// Package doctor runs runtime readiness diagnostics for config, recognizers, audio, and clipboard.
package doctor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rbright/livescribe/internal/audio"
	"github.com/rbright/livescribe/internal/capability"
	"github.com/rbright/livescribe/internal/config"
	"github.com/rbright/livescribe/internal/output"
)

const audioTimeout = 3 * time.Second

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Options supplies the environment probes. Nil probes use the live host.
type Options struct {
	Providers          []capability.Provider
	SelectAudio        func(ctx context.Context, input, fallback string) (audio.Selection, error)
	ClipboardAvailable func() bool
}

// Run executes environment/config/runtime checks for a loaded config.
func Run(ctx context.Context, cfg config.Loaded, opts Options) Report {
	if opts.SelectAudio == nil {
		opts.SelectAudio = audio.SelectDevice
	}
	if opts.ClipboardAvailable == nil {
		opts.ClipboardAvailable = output.Available
	}

	checks := []Check{checkConfig(cfg)}

	checks = append(checks, checkEnv("XDG_RUNTIME_DIR", func(v string) bool {
		return strings.TrimSpace(v) != ""
	}, "remote control socket directory is set", "XDG_RUNTIME_DIR is empty; remote commands are unavailable"))

	checks = append(checks, checkRecognizers(opts.Providers)...)

	if needsAudio(cfg.Config.Recognition.Backends) {
		checks = append(checks, checkAudioSelection(ctx, cfg.Config, opts.SelectAudio))
	}

	if len(cfg.Config.Clipboard.Argv) > 0 {
		checks = append(checks, checkCommand(cfg.Config.Clipboard.Argv, "clipboard_cmd"))
	} else {
		checks = append(checks, checkSystemClipboard(opts.ClipboardAvailable))
	}

	return Report{Checks: checks}
}

func checkConfig(cfg config.Loaded) Check {
	message := fmt.Sprintf("loaded %q", cfg.Path)
	if !cfg.Exists {
		message = fmt.Sprintf("%q not found; using defaults", cfg.Path)
	}
	if n := len(cfg.Warnings); n > 0 && cfg.Exists {
		message = fmt.Sprintf("%s with %d warning(s)", message, n)
	}
	return Check{Name: "config", Pass: true, Message: message}
}

// checkRecognizers reports every provider plus the one a session would pick.
func checkRecognizers(providers []capability.Provider) []Check {
	checks := make([]Check, 0, len(providers)+1)
	selected := ""
	for _, p := range providers {
		name := "recognizer." + p.Name()
		if err := p.Available(); err != nil {
			checks = append(checks, Check{Name: name, Pass: false, Message: err.Error()})
			continue
		}
		checks = append(checks, Check{Name: name, Pass: true, Message: "available"})
		if selected == "" {
			selected = p.Name()
		}
	}

	if selected == "" {
		return append(checks, Check{Name: "recognition", Pass: false, Message: capability.ErrUnsupported.Error()})
	}
	return append(checks, Check{Name: "recognition", Pass: true, Message: fmt.Sprintf("sessions will use %s", selected)})
}

func needsAudio(backends []string) bool {
	for _, name := range backends {
		if name != config.BackendScript {
			return true
		}
	}
	return false
}

// checkEnv validates an environment variable through a caller-supplied predicate.
func checkEnv(name string, predicate func(string) bool, okMsg, failMsg string) Check {
	value := os.Getenv(name)
	if predicate(value) {
		return Check{Name: name, Pass: true, Message: okMsg}
	}
	return Check{Name: name, Pass: false, Message: failMsg}
}

// checkCommand validates that argv contains a runnable command.
func checkCommand(argv []string, name string) Check {
	if len(argv) == 0 {
		return Check{Name: name, Pass: false, Message: "command is empty"}
	}
	return checkBinary(argv[0], fmt.Sprintf("%s command is available", name))
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}

func checkSystemClipboard(available func() bool) Check {
	if available() {
		return Check{Name: "clipboard", Pass: true, Message: "system clipboard available"}
	}
	return Check{Name: "clipboard", Pass: false, Message: output.ErrClipboardUnavailable.Error()}
}

// checkAudioSelection runs live device selection to surface selection/fallback issues.
func checkAudioSelection(ctx context.Context, cfg config.Config, selectAudio func(context.Context, string, string) (audio.Selection, error)) Check {
	ctx, cancel := context.WithTimeout(ctx, audioTimeout)
	defer cancel()

	selection, err := selectAudio(ctx, cfg.Audio.Input, cfg.Audio.Fallback)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}
