// Package google streams microphone audio to Google Cloud Speech-to-Text.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"google.golang.org/grpc/status"

	"github.com/rbright/livescribe/internal/audio"
	"github.com/rbright/livescribe/internal/capability"
	"github.com/rbright/livescribe/internal/recognizer"
)

// Name identifies this backend in config and logs.
const Name = "google"

const credentialsEnv = "GOOGLE_APPLICATION_CREDENTIALS"

// Options configures the Google backend.
type Options struct {
	CredentialsFile      string
	Model                string
	Endpoint             string
	AutomaticPunctuation bool

	AudioInput    string
	AudioFallback string

	Logger zerolog.Logger
}

// Provider creates Google-backed recognizer handles.
type Provider struct {
	opts Options

	getenv     func(string) string
	probeAudio func(context.Context) error
}

// NewProvider returns a provider for opts.
func NewProvider(opts Options) *Provider {
	opts.Logger = opts.Logger.With().Str("component", "recognizer").Logger()
	return &Provider{opts: opts, getenv: os.Getenv, probeAudio: audio.Probe}
}

// Name implements capability.Provider.
func (p *Provider) Name() string { return Name }

// Available requires resolvable credentials and a reachable Pulse server.
func (p *Provider) Available() error {
	path := p.credentialsPath()
	if path == "" {
		return fmt.Errorf("%w (set google.credentials_file or %s)", errNoCredentials, credentialsEnv)
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("credentials file: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.probeAudio(ctx); err != nil {
		return fmt.Errorf("audio: %w", err)
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

func (p *Provider) credentialsPath() string {
	if path := strings.TrimSpace(p.opts.CredentialsFile); path != "" {
		return path
	}
	return strings.TrimSpace(p.getenv(credentialsEnv))
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

func (p *Provider) clientOptions() []option.ClientOption {
	var opts []option.ClientOption
	if path := strings.TrimSpace(p.opts.CredentialsFile); path != "" {
		opts = append(opts, option.WithCredentialsFile(path))
	}
	if endpoint := strings.TrimSpace(p.opts.Endpoint); endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	return opts
}

func (p *Provider) dial(ctx context.Context, cfg capability.Config) (recognizer.Stream, error) {
	client, err := speech.NewClient(ctx, p.clientOptions()...)
	if err != nil {
		return nil, capability.WithCode(capability.CodeServiceNotAllowed, fmt.Errorf("create speech client: %w", err))
	}

	rpc, err := client.StreamingRecognize(ctx)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("open streaming recognize: %w", err)
	}
	if err := rpc.Send(configRequest(cfg, p.opts)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("send streaming config: %w", err)
	}

	return &stream{client: client, rpc: rpc}, nil
}

// configRequest builds the first message of a StreamingRecognize call.
func configRequest(cfg capability.Config, opts Options) *speechpb.StreamingRecognizeRequest {
	return &speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:                   speechpb.RecognitionConfig_LINEAR16,
					SampleRateHertz:            audio.SampleRate,
					AudioChannelCount:          1,
					LanguageCode:               cfg.Language,
					Model:                      strings.TrimSpace(opts.Model),
					EnableAutomaticPunctuation: opts.AutomaticPunctuation,
				},
				InterimResults:  cfg.InterimResults,
				SingleUtterance: !cfg.Continuous,
			},
		},
	}
}

type stream struct {
	client *speech.Client
	rpc    speechpb.Speech_StreamingRecognizeClient
}

func (s *stream) Send(chunk []byte) error {
	return s.rpc.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{AudioContent: chunk},
	})
}

func (s *stream) Recv() ([]capability.Fragment, error) {
	resp, err := s.rpc.Recv()
	if err != nil {
		return nil, err
	}
	return fragments(resp)
}

func (s *stream) CloseSend() error {
	return s.rpc.CloseSend()
}

func (s *stream) Close() error {
	return s.client.Close()
}

// fragments converts one response into a result batch using each result's top alternative.
func fragments(resp *speechpb.StreamingRecognizeResponse) ([]capability.Fragment, error) {
	if resp == nil {
		return nil, nil
	}
	if st := resp.GetError(); st != nil && st.GetCode() != 0 {
		return nil, status.ErrorProto(st)
	}

	out := make([]capability.Fragment, 0, len(resp.GetResults()))
	for _, result := range resp.GetResults() {
		alternatives := result.GetAlternatives()
		if len(alternatives) == 0 {
			continue
		}
		text := alternatives[0].GetTranscript()
		if text == "" {
			continue
		}
		out = append(out, capability.Fragment{Text: text, Final: result.GetIsFinal()})
	}
	return out, nil
}

var errNoCredentials = errors.New("no credentials")

var _ capability.Provider = (*Provider)(nil)
