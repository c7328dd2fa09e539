package google

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	rpcstatus "google.golang.org/genproto/googleapis/rpc/status"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"

	"github.com/rbright/livescribe/internal/capability"
)

func newTestProvider(opts Options, env map[string]string, audioErr error) *Provider {
	p := NewProvider(opts)
	p.getenv = func(key string) string { return env[key] }
	p.probeAudio = func(context.Context) error { return audioErr }
	return p
}

func TestAvailable(t *testing.T) {
	creds := filepath.Join(t.TempDir(), "sa.json")
	require.NoError(t, os.WriteFile(creds, []byte("{}"), 0o600))

	tests := []struct {
		name     string
		opts     Options
		env      map[string]string
		audioErr error
		wantErr  string
	}{
		{name: "no credentials", wantErr: "no credentials"},
		{name: "explicit file", opts: Options{CredentialsFile: creds}},
		{name: "environment file", env: map[string]string{credentialsEnv: creds}},
		{name: "missing file", opts: Options{CredentialsFile: creds + ".missing"}, wantErr: "credentials file"},
		{name: "pulse unreachable", opts: Options{CredentialsFile: creds}, audioErr: errors.New("connect pulse server"), wantErr: "audio"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := newTestProvider(tc.opts, tc.env, tc.audioErr)
			err := p.Available()
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestNewReturnsIdleHandle(t *testing.T) {
	p := newTestProvider(Options{Logger: zerolog.Nop()}, nil, nil)
	require.Equal(t, "google", p.Name())

	handle, err := p.New(capability.Config{Continuous: true})
	require.NoError(t, err)
	require.NoError(t, handle.Close())
}

func TestConfigRequest(t *testing.T) {
	req := configRequest(
		capability.Config{Continuous: false, InterimResults: true, Language: "de-DE"},
		Options{Model: " latest_long ", AutomaticPunctuation: true},
	)

	streaming := req.GetStreamingConfig()
	require.NotNil(t, streaming)
	require.True(t, streaming.GetInterimResults())
	require.True(t, streaming.GetSingleUtterance())

	recognition := streaming.GetConfig()
	require.Equal(t, speechpb.RecognitionConfig_LINEAR16, recognition.GetEncoding())
	require.Equal(t, int32(16000), recognition.GetSampleRateHertz())
	require.Equal(t, "de-DE", recognition.GetLanguageCode())
	require.Equal(t, "latest_long", recognition.GetModel())
	require.True(t, recognition.GetEnableAutomaticPunctuation())
}

func TestConfigRequestContinuous(t *testing.T) {
	got := configRequest(capability.Config{Continuous: true, Language: "en-US"}, Options{})
	want := &speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:          speechpb.RecognitionConfig_LINEAR16,
					SampleRateHertz:   16000,
					AudioChannelCount: 1,
					LanguageCode:      "en-US",
				},
			},
		},
	}
	require.True(t, proto.Equal(want, got), "got %v", got)
}

func TestClientOptions(t *testing.T) {
	require.Empty(t, newTestProvider(Options{}, nil, nil).clientOptions())
	require.Len(t, newTestProvider(Options{CredentialsFile: "/tmp/sa.json", Endpoint: "localhost:9000"}, nil, nil).clientOptions(), 2)
}

func TestFragments(t *testing.T) {
	got, err := fragments(&speechpb.StreamingRecognizeResponse{
		Results: []*speechpb.StreamingRecognitionResult{
			{IsFinal: true, Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: "hello"}, {Transcript: "yellow"}}},
			{Alternatives: nil},
			{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: ""}}},
			{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: " wor"}}},
		},
	})
	require.NoError(t, err)
	require.Equal(t, []capability.Fragment{{Text: "hello", Final: true}, {Text: " wor"}}, got)

	got, err = fragments(nil)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestFragmentsSurfacesResponseError(t *testing.T) {
	_, err := fragments(&speechpb.StreamingRecognizeResponse{
		Error: &rpcstatus.Status{Code: int32(codes.OutOfRange), Message: "audio timeout"},
	})
	require.Error(t, err)
	require.Equal(t, codes.OutOfRange, status.Code(err))
}
