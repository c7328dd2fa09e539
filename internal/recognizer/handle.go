// Package recognizer runs streaming speech-recognition sessions behind capability.Handle.
package recognizer

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rbright/livescribe/internal/capability"
)

const defaultCloseTimeout = 3 * time.Second

// Capture is a running audio source.
type Capture interface {
	Chunks() <-chan []byte
	Stop() error
}

// Source opens audio capture for one run.
type Source func(ctx context.Context) (Capture, error)

// Stream is one backend recognition stream.
// Recv returns io.EOF once the backend has delivered everything after CloseSend.
type Stream interface {
	Send(chunk []byte) error
	Recv() ([]capability.Fragment, error)
	CloseSend() error
	Close() error
}

// Dialer opens a backend stream for one run.
type Dialer func(ctx context.Context, cfg capability.Config) (Stream, error)

// Options configures a Handle.
type Options struct {
	Name   string
	Config capability.Config
	// Source may be nil for backends that produce results without microphone audio.
	Source       Source
	Dial         Dialer
	Logger       zerolog.Logger
	CloseTimeout time.Duration
}

// Handle implements capability.Handle on top of a Source and a Dialer. At most one run is
// active at a time.
type Handle struct {
	opts Options

	mu       sync.Mutex
	listener capability.Listener
	active   *run
	closed   bool
}

// run is one capture/stream lifetime between Start and OnEnd. Its events go to the listener
// registered when it started.
type run struct {
	ctx      context.Context
	cancel   context.CancelFunc
	listener capability.Listener

	// prev is a stopping run that must finish before this one opens audio.
	prev *run

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func (r *run) requestStop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

func (r *run) stopping() bool {
	select {
	case <-r.stop:
		return true
	default:
		return false
	}
}

// abort cancels r and every run it is still waiting on. Callers hold Handle.mu.
func (r *run) abort() {
	for ; r != nil; r = r.prev {
		r.cancel()
	}
}

// New returns an idle handle.
func New(opts Options) *Handle {
	if opts.CloseTimeout <= 0 {
		opts.CloseTimeout = defaultCloseTimeout
	}
	opts.Logger = opts.Logger.With().Str("backend", opts.Name).Logger()
	return &Handle{opts: opts, listener: capability.NopListener{}}
}

// Listen registers the event listener. A nil listener discards events.
func (h *Handle) Listen(listener capability.Listener) {
	if listener == nil {
		listener = capability.NopListener{}
	}
	h.mu.Lock()
	h.listener = listener
	h.mu.Unlock()
}

// Start begins a run. When the previous run is still draining after Stop, the new run waits
// for it to end first. Starting a running or closed handle reports invalid-state.
func (h *Handle) Start() {
	h.mu.Lock()
	listener := h.listener
	prev := h.active
	if (prev != nil && !prev.stopping()) || h.closed || h.opts.Dial == nil {
		h.mu.Unlock()
		go listener.OnError(capability.CodeInvalidState)
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &run{
		ctx:      ctx,
		cancel:   cancel,
		listener: listener,
		prev:     prev,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	h.active = r
	h.mu.Unlock()

	go h.execute(r)
}

// Stop asks the active run to finish. It is a no-op when idle.
func (h *Handle) Stop() {
	h.mu.Lock()
	r := h.active
	h.mu.Unlock()
	if r != nil {
		r.requestStop()
	}
}

// Close stops any active run and waits for it to finish, cancelling it when it overruns
// CloseTimeout.
func (h *Handle) Close() error {
	h.mu.Lock()
	h.closed = true
	r := h.active
	h.mu.Unlock()
	if r == nil {
		return nil
	}

	r.requestStop()
	select {
	case <-r.done:
		return nil
	case <-time.After(h.opts.CloseTimeout):
	}

	h.opts.Logger.Warn().Dur("timeout", h.opts.CloseTimeout).Msg("recognizer run did not stop in time; cancelling")
	h.mu.Lock()
	r.abort()
	h.mu.Unlock()
	select {
	case <-r.done:
	case <-time.After(h.opts.CloseTimeout):
		h.opts.Logger.Error().Msg("recognizer run abandoned after cancel")
	}
	return nil
}

// execute drives one run and reports its outcome: OnError on failure, then OnEnd.
func (h *Handle) execute(r *run) {
	defer close(r.done)
	defer r.cancel()

	queued, err := h.awaitPrevious(r)
	started := time.Now()
	// A run stopped while still queued never opens audio.
	if err == nil && !(queued && r.stopping()) {
		h.opts.Logger.Debug().Msg("recognizer run started")
		err = h.stream(r)
	}

	h.mu.Lock()
	if h.active == r {
		h.active = nil
	}
	h.mu.Unlock()

	listener := r.listener
	if err != nil {
		code := Classify(err)
		h.opts.Logger.Debug().Err(err).Str("code", code).Msg("recognizer run failed")
		listener.OnError(code)
	}
	h.opts.Logger.Debug().Dur("elapsed", time.Since(started)).Msg("recognizer run ended")
	listener.OnEnd()
}

// awaitPrevious blocks until the run r was queued behind has ended.
func (h *Handle) awaitPrevious(r *run) (bool, error) {
	h.mu.Lock()
	prev := r.prev
	h.mu.Unlock()
	if prev == nil {
		return false, nil
	}

	var err error
	select {
	case <-prev.done:
	case <-r.ctx.Done():
		err = r.ctx.Err()
	}

	h.mu.Lock()
	r.prev = nil
	h.mu.Unlock()
	return true, err
}

func (h *Handle) stream(r *run) error {
	var capture Capture
	if h.opts.Source != nil {
		c, err := h.opts.Source(r.ctx)
		if err != nil {
			return capability.WithCode(capability.CodeAudioCapture, err)
		}
		capture = c
	}

	stream, err := h.opts.Dial(r.ctx, h.opts.Config)
	if err != nil {
		if capture != nil {
			_ = capture.Stop()
		}
		return err
	}
	defer func() { _ = stream.Close() }()

	sendErr := make(chan error, 1)
	go func() {
		sendErr <- h.sendLoop(r, capture, stream)
	}()

	recvErr := h.recvLoop(r, stream)
	r.requestStop()
	serr := <-sendErr

	if recvErr != nil {
		return recvErr
	}
	return serr
}

// sendLoop forwards capture chunks until the capture closes, then half-closes the stream.
// A stop request stops the capture; already buffered chunks are still sent.
func (h *Handle) sendLoop(r *run, capture Capture, stream Stream) error {
	defer func() { _ = stream.CloseSend() }()

	if capture == nil {
		select {
		case <-r.stop:
		case <-r.ctx.Done():
		}
		return nil
	}

	stop := r.stop
	chunks := capture.Chunks()
	for {
		select {
		case <-stop:
			_ = capture.Stop()
			stop = nil
		case <-r.ctx.Done():
			_ = capture.Stop()
			return r.ctx.Err()
		case chunk, ok := <-chunks:
			if !ok {
				return nil
			}
			if len(chunk) == 0 {
				continue
			}
			if err := stream.Send(chunk); err != nil {
				_ = capture.Stop()
				if errors.Is(err, io.EOF) {
					// The backend closed the stream; Recv reports why.
					return nil
				}
				return err
			}
		}
	}
}

// recvLoop delivers result batches until the stream drains.
func (h *Handle) recvLoop(r *run, stream Stream) error {
	cfg := h.opts.Config
	for {
		fragments, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if r.stopping() && Classify(err) == capability.CodeAborted {
				return nil
			}
			return err
		}

		interim, final := capability.Fold(fragments)
		if !cfg.InterimResults {
			interim = ""
		}
		if interim == "" && final == "" {
			continue
		}
		r.listener.OnResult(interim, final)

		if !cfg.Continuous && strings.TrimSpace(final) != "" {
			r.requestStop()
		}
	}
}
