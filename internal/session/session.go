// Package session serializes owner commands and recognizer events into one listening/muted
// state machine over the transcript store.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rbright/livescribe/internal/capability"
	"github.com/rbright/livescribe/internal/fsm"
	"github.com/rbright/livescribe/internal/metrics"
	"github.com/rbright/livescribe/internal/transcript"
)

const defaultQueueSize = 64

// ErrStopped is returned by commands issued after Run has returned.
var ErrStopped = errors.New("session controller stopped")

// View is the read-only snapshot handed to presentation.
type View struct {
	Supported bool
	Listening bool
	Muted     bool
	Lines     []transcript.Line
	Interim   string
	LastError string
	Backend   string
}

// State returns the listening/muted pair of v.
func (v View) State() fsm.State {
	return fsm.State{Listening: v.Listening, Muted: v.Muted}
}

// Options configures a Controller. A nil Handle means recognition is unsupported on this host.
type Options struct {
	Handle    capability.Handle
	Backend   string
	Store     *transcript.Store
	Logger    zerolog.Logger
	Metrics   *metrics.Metrics
	Clock     func() time.Time
	QueueSize int
}

type message struct {
	event fsm.Event

	interim string
	final   string
	code    string

	// run is the generation of the recognizer run that produced an event. Zero means the
	// current run.
	run uint64

	// reply is set for owner commands; status messages carry an empty event.
	reply chan View
}

// Controller owns the session state, the transcript store, and the capability handle. All
// mutation happens on the Run goroutine.
type Controller struct {
	handle  capability.Handle
	backend string
	store   *transcript.Store
	logger  zerolog.Logger
	metrics *metrics.Metrics
	clock   func() time.Time

	queue chan message
	done  chan struct{}

	// run counts recognizer runs; only the Run goroutine touches it. Every start effect opens a
	// new generation and every stop effect retires the current one.
	run uint64

	mu        sync.RWMutex
	state     fsm.State
	lastError string

	subMu       sync.Mutex
	subscribers map[int]chan View
	nextSub     int
}

// NewController builds a controller and registers it as the handle's listener.
func NewController(opts Options) *Controller {
	if opts.Store == nil {
		opts.Store = transcript.NewStore()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}

	c := &Controller{
		handle:      opts.Handle,
		backend:     opts.Backend,
		store:       opts.Store,
		logger:      opts.Logger.With().Str("component", "session").Logger(),
		metrics:     opts.Metrics,
		clock:       opts.Clock,
		queue:       make(chan message, opts.QueueSize),
		done:        make(chan struct{}),
		subscribers: make(map[int]chan View),
	}
	if c.handle != nil {
		c.handle.Listen(c)
	}
	return c
}

// Supported reports whether a capability handle is attached.
func (c *Controller) Supported() bool {
	return c.handle != nil
}

// Run processes messages until ctx is cancelled, then stops and closes the handle.
func (c *Controller) Run(ctx context.Context) {
	defer c.teardown()
	defer close(c.done)

	c.publish(c.View())
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-c.queue:
			view := c.process(msg)
			if msg.reply != nil {
				msg.reply <- view
			}
			c.publish(view)
		}
	}
}

// Done is closed once Run stops accepting messages.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Start begins listening.
func (c *Controller) Start(ctx context.Context) (View, error) {
	return c.command(ctx, fsm.EventStart)
}

// Stop ends listening.
func (c *Controller) Stop(ctx context.Context) (View, error) {
	return c.command(ctx, fsm.EventStop)
}

// ToggleMute pauses or resumes the recognizer while keeping the session listening.
func (c *Controller) ToggleMute(ctx context.Context) (View, error) {
	return c.command(ctx, fsm.EventToggleMute)
}

// Reset clears the transcript and restarts line ids at 0.
func (c *Controller) Reset(ctx context.Context) (View, error) {
	return c.command(ctx, fsm.EventReset)
}

// Status returns the view after all previously queued messages are processed.
func (c *Controller) Status(ctx context.Context) (View, error) {
	return c.command(ctx, "")
}

func (c *Controller) command(ctx context.Context, event fsm.Event) (View, error) {
	if c.handle == nil && (event == fsm.EventStart || event == fsm.EventStop || event == fsm.EventToggleMute) {
		return c.View(), capability.ErrUnsupported
	}

	msg := message{event: event, reply: make(chan View, 1)}
	select {
	case c.queue <- msg:
	case <-ctx.Done():
		return View{}, ctx.Err()
	case <-c.done:
		return View{}, ErrStopped
	}

	select {
	case view := <-msg.reply:
		return view, nil
	case <-ctx.Done():
		return View{}, ctx.Err()
	case <-c.done:
		select {
		case view := <-msg.reply:
			return view, nil
		default:
			return View{}, ErrStopped
		}
	}
}

// OnResult reports a result from the current run.
func (c *Controller) OnResult(interim string, final string) {
	c.enqueue(message{event: fsm.EventResult, interim: interim, final: final})
}

// OnError reports a failure of the current run.
func (c *Controller) OnError(code string) {
	c.enqueue(message{event: fsm.EventError, code: code})
}

// OnEnd reports the end of the current run.
func (c *Controller) OnEnd() {
	c.enqueue(message{event: fsm.EventEnd})
}

// runListener tags handle events with the run generation they belong to.
type runListener struct {
	c   *Controller
	run uint64
}

func (l runListener) OnResult(interim string, final string) {
	l.c.enqueue(message{event: fsm.EventResult, interim: interim, final: final, run: l.run})
}

func (l runListener) OnError(code string) {
	l.c.enqueue(message{event: fsm.EventError, code: code, run: l.run})
}

func (l runListener) OnEnd() {
	l.c.enqueue(message{event: fsm.EventEnd, run: l.run})
}

func (c *Controller) enqueue(msg message) {
	select {
	case c.queue <- msg:
	case <-c.done:
	}
}

// View returns the current snapshot.
func (c *Controller) View() View {
	c.mu.RLock()
	state, lastError := c.state, c.lastError
	c.mu.RUnlock()

	snapshot := c.store.Snapshot()
	return View{
		Supported: c.handle != nil,
		Listening: state.Listening,
		Muted:     state.Muted,
		Lines:     snapshot.Lines,
		Interim:   snapshot.Interim,
		LastError: lastError,
		Backend:   c.backend,
	}
}

// Subscribe returns a channel that always holds the latest view. Slow readers skip
// intermediate views. The returned func unsubscribes.
func (c *Controller) Subscribe() (<-chan View, func()) {
	ch := make(chan View, 1)
	ch <- c.View()

	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subscribers[id] = ch
	c.subMu.Unlock()

	return ch, func() {
		c.subMu.Lock()
		delete(c.subscribers, id)
		c.subMu.Unlock()
	}
}

func (c *Controller) publish(view View) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, ch := range c.subscribers {
		select {
		case <-ch:
		default:
		}
		ch <- view
	}
}

func (c *Controller) process(msg message) View {
	retired := msg.run != 0 && msg.run != c.run
	switch {
	case msg.event == "":
	case msg.event == fsm.EventResult:
		c.applyResult(msg.interim, msg.final, retired)
	case retired:
		// A stopped or superseded run draining out must not end the current session.
		c.logger.Debug().
			Str("event", string(msg.event)).
			Str("code", msg.code).
			Uint64("run", msg.run).
			Msg("ignoring event from retired recognizer run")
	default:
		c.applyTransition(msg)
	}
	return c.View()
}

func (c *Controller) applyTransition(msg message) {
	c.mu.Lock()
	current := c.state
	next, effect, err := fsm.Transition(current, msg.event)
	if err != nil {
		c.mu.Unlock()
		c.logger.Error().Err(err).Msg("session transition rejected")
		return
	}
	c.state = next
	if msg.event == fsm.EventError {
		c.lastError = msg.code
	}
	if effect == fsm.EffectStart {
		c.lastError = ""
	}
	c.mu.Unlock()

	c.metrics.SetState(next.Listening, next.Muted)

	switch msg.event {
	case fsm.EventStart, fsm.EventStop, fsm.EventToggleMute, fsm.EventReset:
		c.metrics.RecordCommand(string(msg.event))
	case fsm.EventError:
		c.metrics.RecordError(msg.code)
		c.store.SetInterim("")
		c.logger.Warn().Str("code", msg.code).Str("backend", c.backend).Msg("recognition error")
	case fsm.EventEnd:
		c.metrics.RecordEnd()
		c.store.SetInterim("")
		c.logger.Debug().Msg("recognition ended")
	}

	if msg.event == fsm.EventReset {
		c.store.ClearAll()
	}

	switch effect {
	case fsm.EffectStart:
		c.metrics.RecordCapabilityCall("start")
		c.run++
		c.handle.Listen(runListener{c: c, run: c.run})
		c.handle.Start()
	case fsm.EffectStop:
		c.metrics.RecordCapabilityCall("stop")
		c.run++
		c.store.SetInterim("")
		c.handle.Stop()
	}

	if effect != fsm.EffectNone {
		c.logger.Info().
			Str("event", string(msg.event)).
			Str("effect", effect.String()).
			Str("state", next.Label()).
			Msg("session transition")
	}
}

// applyResult appends the trimmed final text as a new line, then replaces the interim slot.
// Interim text is ignored while not listening or from a retired run; late finals are still
// kept.
func (c *Controller) applyResult(interim string, final string, retired bool) {
	c.metrics.RecordResult(interim != "", strings.TrimSpace(final) != "")

	if line, ok := c.store.Append(final, c.clock()); ok {
		c.metrics.RecordLine()
		c.logger.Debug().Int("line_id", line.ID).Msg("transcript line appended")
	}

	if retired {
		return
	}
	c.mu.RLock()
	listening := c.state.Listening
	c.mu.RUnlock()
	if !listening {
		interim = ""
	}
	c.store.SetInterim(interim)
}

// teardown runs when the session ends: stop if listening, then close the handle.
func (c *Controller) teardown() {
	if c.handle == nil {
		return
	}

	c.mu.Lock()
	listening := c.state.Listening
	c.state.Listening = false
	c.mu.Unlock()

	if listening {
		c.metrics.RecordCapabilityCall("stop")
		c.handle.Stop()
	}
	if err := c.handle.Close(); err != nil {
		c.logger.Warn().Err(err).Msg("close recognizer")
	}
	c.metrics.SetState(false, false)
}

var _ capability.Listener = (*Controller)(nil)
