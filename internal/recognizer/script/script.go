// Package script replays a scripted recognition session from a YAML file. It needs no
// microphone or network and backs demos and end-to-end tests.
package script

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/rbright/livescribe/internal/capability"
	"github.com/rbright/livescribe/internal/recognizer"
)

// Name identifies this backend in config and logs.
const Name = "script"

// Step is one scripted event. After delays the step; Interim and Final may be combined into one
// result batch. Error emits a coded failure; End finishes the session.
type Step struct {
	After   time.Duration `yaml:"after"`
	Interim string        `yaml:"interim"`
	Final   string        `yaml:"final"`
	Error   string        `yaml:"error"`
	End     bool          `yaml:"end"`
}

// Script is the parsed file.
type Script struct {
	Steps []Step `yaml:"steps"`
}

var knownCodes = map[string]struct{}{
	capability.CodeNoSpeech:             {},
	capability.CodeAborted:              {},
	capability.CodeAudioCapture:         {},
	capability.CodeNetwork:              {},
	capability.CodeNotAllowed:           {},
	capability.CodeServiceNotAllowed:    {},
	capability.CodeLanguageNotSupported: {},
}

// Parse decodes and validates a script.
func Parse(data []byte) (Script, error) {
	var script Script
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&script); err != nil && !errors.Is(err, io.EOF) {
		return Script{}, fmt.Errorf("decode script: %w", err)
	}

	for i, step := range script.Steps {
		if step.After < 0 {
			return Script{}, fmt.Errorf("step %d: after must be >= 0", i+1)
		}
		if step.Error != "" {
			if _, ok := knownCodes[step.Error]; !ok {
				return Script{}, fmt.Errorf("step %d: unknown error code %q", i+1, step.Error)
			}
		}
		if step.Interim == "" && step.Final == "" && step.Error == "" && !step.End && step.After == 0 {
			return Script{}, fmt.Errorf("step %d: empty step", i+1)
		}
	}
	return script, nil
}

// Load reads and parses the script at path.
func Load(path string) (Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Script{}, fmt.Errorf("read script %q: %w", path, err)
	}
	script, err := Parse(data)
	if err != nil {
		return Script{}, fmt.Errorf("script %q: %w", path, err)
	}
	return script, nil
}

// Provider creates handles that replay the script at Path.
type Provider struct {
	Path   string
	Logger zerolog.Logger
}

// Name implements capability.Provider.
func (p *Provider) Name() string { return Name }

// Available reports whether the script file exists.
func (p *Provider) Available() error {
	path := strings.TrimSpace(p.Path)
	if path == "" {
		return errors.New("script.path is not configured")
	}
	if _, err := os.Stat(path); err != nil {
		return err
	}
	return nil
}

// New parses the script once; every run of the handle replays it from the start.
func (p *Provider) New(cfg capability.Config) (capability.Handle, error) {
	script, err := Load(strings.TrimSpace(p.Path))
	if err != nil {
		return nil, err
	}
	return recognizer.New(recognizer.Options{
		Name:   Name,
		Config: cfg,
		Dial: func(ctx context.Context, _ capability.Config) (recognizer.Stream, error) {
			return newReplay(ctx, script), nil
		},
		Logger: p.Logger.With().Str("component", "recognizer").Logger(),
	}), nil
}

// replay plays steps in order. Once the steps are exhausted it holds the session open until
// CloseSend, like a microphone picking up silence.
type replay struct {
	ctx   context.Context
	steps []Step
	next  int

	closed    chan struct{}
	closeOnce sync.Once
}

func newReplay(ctx context.Context, script Script) *replay {
	return &replay{
		ctx:    ctx,
		steps:  append([]Step(nil), script.Steps...),
		closed: make(chan struct{}),
	}
}

func (r *replay) Send([]byte) error { return nil }

func (r *replay) Recv() ([]capability.Fragment, error) {
	for r.next < len(r.steps) {
		step := r.steps[r.next]
		r.next++

		if err := r.wait(step.After); err != nil {
			return nil, err
		}

		switch {
		case step.Error != "":
			return nil, capability.WithCode(step.Error, errors.New("scripted failure"))
		case step.Interim != "" || step.Final != "":
			batch := make([]capability.Fragment, 0, 2)
			if step.Final != "" {
				batch = append(batch, capability.Fragment{Text: step.Final, Final: true})
			}
			if step.Interim != "" {
				batch = append(batch, capability.Fragment{Text: step.Interim})
			}
			return batch, nil
		case step.End:
			return nil, io.EOF
		}
	}

	select {
	case <-r.closed:
		return nil, io.EOF
	case <-r.ctx.Done():
		return nil, r.ctx.Err()
	}
}

// wait sleeps for d unless the session is closed or cancelled first.
func (r *replay) wait(d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-r.closed:
		return io.EOF
	case <-r.ctx.Done():
		return r.ctx.Err()
	}
}

func (r *replay) CloseSend() error {
	r.closeOnce.Do(func() { close(r.closed) })
	return nil
}

func (r *replay) Close() error {
	return r.CloseSend()
}

var _ capability.Provider = (*Provider)(nil)
