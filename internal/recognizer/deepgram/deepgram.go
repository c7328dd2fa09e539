// Package deepgram streams microphone audio to Deepgram's live transcription websocket.
package deepgram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
	"github.com/rs/zerolog"

	"github.com/rbright/livescribe/internal/audio"
	"github.com/rbright/livescribe/internal/capability"
	"github.com/rbright/livescribe/internal/recognizer"
)

// Name identifies this backend in config and logs.
const Name = "deepgram"

const (
	encoding     = "linear16"
	drainTimeout = 1500 * time.Millisecond
)

// Options configures the Deepgram backend.
type Options struct {
	APIKeyEnv   string
	Model       string
	SmartFormat bool

	AudioInput    string
	AudioFallback string

	Logger zerolog.Logger
}

// Provider creates Deepgram-backed recognizer handles.
type Provider struct {
	opts   Options
	getenv func(string) string
}

// NewProvider returns a provider for opts.
func NewProvider(opts Options) *Provider {
	if strings.TrimSpace(opts.APIKeyEnv) == "" {
		opts.APIKeyEnv = "DEEPGRAM_API_KEY"
	}
	opts.Logger = opts.Logger.With().Str("component", "recognizer").Logger()
	return &Provider{opts: opts, getenv: os.Getenv}
}

// Name implements capability.Provider.
func (p *Provider) Name() string { return Name }

// Available requires a non-empty API key in the configured environment variable.
func (p *Provider) Available() error {
	if p.apiKey() == "" {
		return fmt.Errorf("%s is not set", p.opts.APIKeyEnv)
	}
	return nil
}

// New implements capability.Provider.
func (p *Provider) New(cfg capability.Config) (capability.Handle, error) {
	return recognizer.New(recognizer.Options{
		Name:   Name,
		Config: cfg,
		Source: p.openCapture,
		Dial:   p.dial,
		Logger: p.opts.Logger,
	}), nil
}

func (p *Provider) apiKey() string {
	return strings.TrimSpace(p.getenv(p.opts.APIKeyEnv))
}

func (p *Provider) openCapture(ctx context.Context) (recognizer.Capture, error) {
	selection, err := audio.SelectDevice(ctx, p.opts.AudioInput, p.opts.AudioFallback)
	if err != nil {
		return nil, err
	}
	if selection.Warning != "" {
		p.opts.Logger.Warn().Str("device", selection.Device.Label()).Msg(selection.Warning)
	}
	return audio.StartCapture(ctx, selection.Device)
}

func transcriptionOptions(cfg capability.Config, opts Options) *interfaces.LiveTranscriptionOptions {
	return &interfaces.LiveTranscriptionOptions{
		Model:          strings.TrimSpace(opts.Model),
		Language:       cfg.Language,
		Encoding:       encoding,
		SampleRate:     audio.SampleRate,
		Channels:       1,
		InterimResults: cfg.InterimResults,
		SmartFormat:    opts.SmartFormat,
	}
}

func (p *Provider) dial(ctx context.Context, cfg capability.Config) (recognizer.Stream, error) {
	s := newStream(p.opts.Logger)

	ws, err := client.NewWSUsingCallback(ctx, p.apiKey(), &interfaces.ClientOptions{EnableKeepAlive: true}, transcriptionOptions(cfg, p.opts), callback{s: s})
	if err != nil {
		return nil, fmt.Errorf("create deepgram client: %w", err)
	}
	if !ws.Connect() {
		return nil, capability.WithCode(capability.CodeNetwork, errors.New("deepgram connection failed"))
	}
	s.pump(ctx, ws)
	return s, nil
}

// conn is the part of the websocket client a stream drives.
type conn interface {
	Stream(r io.Reader) error
	Finalize() error
	Stop()
}

// stream adapts the callback-driven websocket client to recognizer.Stream. Audio is written
// through a pipe the SDK reads from; callbacks enqueue result batches for Recv.
type stream struct {
	logger zerolog.Logger

	conn   conn
	reader *io.PipeReader
	writer *io.PipeWriter

	items    chan item
	streamed chan struct{}
	finished chan struct{}
	once     sync.Once
	drain    time.Duration
}

type item struct {
	fragments []capability.Fragment
	err       error
}

func newStream(logger zerolog.Logger) *stream {
	reader, writer := io.Pipe()
	return &stream{
		logger:   logger,
		reader:   reader,
		writer:   writer,
		items:    make(chan item, 256),
		streamed: make(chan struct{}),
		finished: make(chan struct{}),
		drain:    drainTimeout,
	}
}

func (s *stream) Send(chunk []byte) error {
	_, err := s.writer.Write(chunk)
	return err
}

// Recv returns queued batches first and io.EOF once the connection has finished.
func (s *stream) Recv() ([]capability.Fragment, error) {
	select {
	case it := <-s.items:
		return it.fragments, it.err
	case <-s.finished:
		select {
		case it := <-s.items:
			return it.fragments, it.err
		default:
			return nil, io.EOF
		}
	}
}

// pump copies piped audio to c until the pipe closes.
func (s *stream) pump(ctx context.Context, c conn) {
	s.conn = c
	go func() {
		defer close(s.streamed)
		err := c.Stream(s.reader)
		switch {
		case err == nil, errors.Is(err, io.EOF), errors.Is(err, io.ErrClosedPipe):
		case ctx.Err() != nil:
		default:
			s.fail(capability.WithCode(capability.CodeNetwork, fmt.Errorf("deepgram stream: %w", err)))
		}
	}()
}

// CloseSend ends the audio pipe, asks Deepgram to finalize what it has heard once the last
// chunk is out, and gives the service drainTimeout to deliver trailing results.
func (s *stream) CloseSend() error {
	err := s.writer.Close()
	go func() {
		timer := time.NewTimer(s.drain)
		defer timer.Stop()

		select {
		case <-s.streamed:
			if ferr := s.conn.Finalize(); ferr != nil {
				s.logger.Debug().Err(ferr).Msg("deepgram finalize failed")
			}
		case <-timer.C:
			s.finish()
			return
		case <-s.finished:
			return
		}

		select {
		case <-timer.C:
		case <-s.finished:
		}
		s.finish()
	}()
	return err
}

func (s *stream) Close() error {
	_ = s.writer.Close()
	s.finish()
	return nil
}

func (s *stream) finish() {
	s.once.Do(func() {
		if s.conn != nil {
			s.conn.Stop()
		}
		close(s.finished)
	})
}

func (s *stream) push(it item) {
	select {
	case s.items <- it:
	case <-s.finished:
	}
}

func (s *stream) fail(err error) {
	s.push(item{err: err})
}

// callback receives websocket events for one stream.
type callback struct {
	s *stream
}

func (c callback) Open(*msginterfaces.OpenResponse) error {
	c.s.logger.Debug().Msg("deepgram connection opened")
	return nil
}

func (c callback) Message(mr *msginterfaces.MessageResponse) error {
	if batch := messageFragments(mr); len(batch) > 0 {
		c.s.push(item{fragments: batch})
	}
	return nil
}

func (c callback) Metadata(md *msginterfaces.MetadataResponse) error {
	c.s.logger.Debug().Str("request_id", md.RequestID).Msg("deepgram metadata")
	return nil
}

func (callback) SpeechStarted(*msginterfaces.SpeechStartedResponse) error {
	return nil
}

func (callback) UtteranceEnd(*msginterfaces.UtteranceEndResponse) error {
	return nil
}

func (c callback) Close(*msginterfaces.CloseResponse) error {
	c.s.logger.Debug().Msg("deepgram connection closed")
	go c.s.finish()
	return nil
}

func (c callback) Error(er *msginterfaces.ErrorResponse) error {
	c.s.fail(errorFromResponse(er))
	return nil
}

func (c callback) UnhandledEvent(data []byte) error {
	c.s.logger.Debug().Int("bytes", len(data)).Msg("deepgram unhandled event")
	return nil
}

// messageFragments returns the top alternative of a transcript message as a one-fragment batch.
func messageFragments(mr *msginterfaces.MessageResponse) []capability.Fragment {
	if mr == nil || len(mr.Channel.Alternatives) == 0 {
		return nil
	}
	text := mr.Channel.Alternatives[0].Transcript
	if text == "" {
		return nil
	}
	return []capability.Fragment{{Text: text, Final: mr.IsFinal || mr.SpeechFinal}}
}

func errorFromResponse(er *msginterfaces.ErrorResponse) error {
	if er == nil {
		return capability.WithCode(capability.CodeNetwork, errors.New("deepgram error"))
	}
	err := fmt.Errorf("deepgram %s: %s", er.ErrCode, er.ErrMsg)
	code := strings.ToLower(er.ErrCode + " " + er.ErrMsg)
	switch {
	case strings.Contains(code, "401"), strings.Contains(code, "403"), strings.Contains(code, "auth"):
		return capability.WithCode(capability.CodeServiceNotAllowed, err)
	case strings.Contains(code, "language"):
		return capability.WithCode(capability.CodeLanguageNotSupported, err)
	default:
		return capability.WithCode(capability.CodeNetwork, err)
	}
}

var (
	_ capability.Provider               = (*Provider)(nil)
	_ msginterfaces.LiveMessageCallback = callback{}
)
