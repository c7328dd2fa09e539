package capability

import (
	"context"
	"errors"
	"fmt"
)

// Error codes reported through Listener.OnError.
const (
	CodeNoSpeech             = "no-speech"
	CodeAborted              = "aborted"
	CodeAudioCapture         = "audio-capture"
	CodeNetwork              = "network"
	CodeNotAllowed           = "not-allowed"
	CodeServiceNotAllowed    = "service-not-allowed"
	CodeLanguageNotSupported = "language-not-supported"
	CodeInvalidState         = "invalid-state"
)

// ErrUnsupported indicates no recognition provider is available on this host.
var ErrUnsupported = errors.New("speech recognition is not supported on this host")

// Error carries a capability error code through a Go error chain.
type Error struct {
	Code string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Code
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithCode wraps err with a capability code. A nil err stays nil.
func WithCode(code string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Err: err}
}

// CodeOf extracts the capability code from err, falling back to fallback.
func CodeOf(err error, fallback string) string {
	if err == nil {
		return ""
	}
	var coded *Error
	if errors.As(err, &coded) && coded.Code != "" {
		return coded.Code
	}
	if errors.Is(err, context.Canceled) {
		return CodeAborted
	}
	return fallback
}
