// Package capability probes for and wraps an externally supplied speech-recognition facility.
package capability

import "strings"

// Config is applied to every handle created from a provider.
type Config struct {
	Continuous     bool
	InterimResults bool
	Language       string
}

// Listener receives asynchronous recognition events from one handle.
type Listener interface {
	OnResult(interim string, final string)
	OnError(code string)
	OnEnd()
}

// Handle is one recognizer instance. Start and Stop are requests; their outcome is reported
// through the registered Listener, never through a return value.
type Handle interface {
	Listen(Listener)
	Start()
	Stop()
	Close() error
}

// Fragment is one recognized piece of text within a result batch.
type Fragment struct {
	Text  string
	Final bool
}

// Fold splits a batch into concatenated interim and final text, preserving batch order.
func Fold(fragments []Fragment) (interim string, final string) {
	var interimText, finalText strings.Builder
	for _, fragment := range fragments {
		if fragment.Final {
			finalText.WriteString(fragment.Text)
			continue
		}
		interimText.WriteString(fragment.Text)
	}
	return interimText.String(), finalText.String()
}

// NopListener discards events. Handles use it until a real listener registers.
type NopListener struct{}

func (NopListener) OnResult(string, string) {}
func (NopListener) OnError(string)          {}
func (NopListener) OnEnd()                  {}
