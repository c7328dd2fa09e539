package recognizer

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rbright/livescribe/internal/capability"
)

type event struct {
	kind    string
	interim string
	final   string
	code    string
}

type recordingListener struct {
	events chan event
}

func newRecordingListener() *recordingListener {
	return &recordingListener{events: make(chan event, 32)}
}

func (l *recordingListener) OnResult(interim string, final string) {
	l.events <- event{kind: "result", interim: interim, final: final}
}

func (l *recordingListener) OnError(code string) {
	l.events <- event{kind: "error", code: code}
}

func (l *recordingListener) OnEnd() {
	l.events <- event{kind: "end"}
}

func (l *recordingListener) next(t *testing.T) event {
	t.Helper()
	select {
	case ev := <-l.events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for listener event")
		return event{}
	}
}

type fakeCapture struct {
	chunks  chan []byte
	once    sync.Once
	stopped atomic.Bool
}

func newFakeCapture(chunks ...[]byte) *fakeCapture {
	c := &fakeCapture{chunks: make(chan []byte, len(chunks)+1)}
	for _, chunk := range chunks {
		c.chunks <- chunk
	}
	return c
}

func (c *fakeCapture) Chunks() <-chan []byte { return c.chunks }

func (c *fakeCapture) Stop() error {
	c.once.Do(func() {
		c.stopped.Store(true)
		close(c.chunks)
	})
	return nil
}

type recvItem struct {
	fragments []capability.Fragment
	err       error
}

type fakeStream struct {
	mu   sync.Mutex
	sent [][]byte

	items      chan recvItem
	sendClosed chan struct{}
	closeOnce  sync.Once
	closed     atomic.Bool

	// drain holds EOF after CloseSend until it is closed.
	drain chan struct{}
}

func newFakeStream(items ...recvItem) *fakeStream {
	s := &fakeStream{
		items:      make(chan recvItem, len(items)+8),
		sendClosed: make(chan struct{}),
	}
	for _, item := range items {
		s.items <- item
	}
	return s
}

func (s *fakeStream) Send(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, chunk)
	return nil
}

func (s *fakeStream) sentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func (s *fakeStream) Recv() ([]capability.Fragment, error) {
	select {
	case item := <-s.items:
		return item.fragments, item.err
	case <-s.sendClosed:
		if s.drain != nil {
			<-s.drain
		}
		select {
		case item := <-s.items:
			return item.fragments, item.err
		default:
			return nil, io.EOF
		}
	}
}

func (s *fakeStream) CloseSend() error {
	s.closeOnce.Do(func() { close(s.sendClosed) })
	return nil
}

func (s *fakeStream) Close() error {
	s.closed.Store(true)
	return nil
}

func newTestHandle(t *testing.T, cfg capability.Config, capture *fakeCapture, stream *fakeStream) (*Handle, *recordingListener) {
	t.Helper()
	opts := Options{
		Name:   "fake",
		Config: cfg,
		Dial: func(context.Context, capability.Config) (Stream, error) {
			return stream, nil
		},
		Logger: zerolog.Nop(),
	}
	if capture != nil {
		opts.Source = func(context.Context) (Capture, error) { return capture, nil }
	}
	handle := New(opts)
	listener := newRecordingListener()
	handle.Listen(listener)
	t.Cleanup(func() { _ = handle.Close() })
	return handle, listener
}

var continuousInterim = capability.Config{Continuous: true, InterimResults: true, Language: "en-US"}

func TestHandleDeliversResultsUntilStopped(t *testing.T) {
	capture := newFakeCapture()
	stream := newFakeStream(
		recvItem{fragments: []capability.Fragment{{Text: "hel"}}},
		recvItem{fragments: []capability.Fragment{{Text: "hello", Final: true}}},
	)
	handle, listener := newTestHandle(t, continuousInterim, capture, stream)

	handle.Start()
	require.Equal(t, event{kind: "result", interim: "hel"}, listener.next(t))
	require.Equal(t, event{kind: "result", final: "hello"}, listener.next(t))

	handle.Stop()
	require.Equal(t, event{kind: "end"}, listener.next(t))
	require.True(t, capture.stopped.Load())
	require.Eventually(t, stream.closed.Load, time.Second, 10*time.Millisecond)
}

func TestHandleForwardsCapturedAudio(t *testing.T) {
	capture := newFakeCapture([]byte{1, 2}, []byte{}, []byte{3, 4})
	stream := newFakeStream()
	handle, listener := newTestHandle(t, continuousInterim, capture, stream)

	handle.Start()
	require.Eventually(t, func() bool { return stream.sentCount() == 2 }, time.Second, 10*time.Millisecond)

	handle.Stop()
	require.Equal(t, event{kind: "end"}, listener.next(t))
	require.Equal(t, 2, stream.sentCount())
}

func TestHandleDropsInterimWhenDisabled(t *testing.T) {
	stream := newFakeStream(
		recvItem{fragments: []capability.Fragment{{Text: "partial"}}},
		recvItem{fragments: []capability.Fragment{{Text: "done", Final: true}, {Text: "next"}}},
	)
	handle, listener := newTestHandle(t, capability.Config{Continuous: true}, newFakeCapture(), stream)

	handle.Start()
	require.Equal(t, event{kind: "result", final: "done"}, listener.next(t))
	handle.Stop()
	require.Equal(t, event{kind: "end"}, listener.next(t))
}

func TestHandleSingleUtteranceStopsAfterFirstFinal(t *testing.T) {
	capture := newFakeCapture()
	stream := newFakeStream(
		recvItem{fragments: []capability.Fragment{{Text: "   ", Final: true}}},
		recvItem{fragments: []capability.Fragment{{Text: "only once", Final: true}}},
	)
	handle, listener := newTestHandle(t, capability.Config{InterimResults: true}, capture, stream)

	handle.Start()
	require.Equal(t, event{kind: "result", final: "   "}, listener.next(t))
	require.Equal(t, event{kind: "result", final: "only once"}, listener.next(t))
	require.Equal(t, event{kind: "end"}, listener.next(t))
	require.True(t, capture.stopped.Load())
}

func TestHandleStartWhileActiveReportsInvalidState(t *testing.T) {
	handle, listener := newTestHandle(t, continuousInterim, newFakeCapture(), newFakeStream())

	handle.Start()
	handle.Start()
	require.Equal(t, event{kind: "error", code: capability.CodeInvalidState}, listener.next(t))

	handle.Stop()
	require.Equal(t, event{kind: "end"}, listener.next(t))
}

func TestHandleStartWhileDrainingQueuesNextRun(t *testing.T) {
	first := newFakeStream()
	first.drain = make(chan struct{})
	second := newFakeStream(recvItem{fragments: []capability.Fragment{{Text: "again"}}})

	handle, firstListener := newTestHandle(t, continuousInterim, nil, nil)
	var dials atomic.Int32
	handle.opts.Dial = func(context.Context, capability.Config) (Stream, error) {
		if dials.Add(1) == 1 {
			return first, nil
		}
		return second, nil
	}

	handle.Start()
	require.Eventually(t, func() bool { return dials.Load() == 1 }, time.Second, 5*time.Millisecond)
	handle.Stop()

	secondListener := newRecordingListener()
	handle.Listen(secondListener)
	handle.Start()
	require.Never(t, func() bool { return dials.Load() == 2 }, 100*time.Millisecond, 10*time.Millisecond)

	close(first.drain)
	require.Equal(t, event{kind: "end"}, firstListener.next(t))
	require.Equal(t, event{kind: "result", interim: "again"}, secondListener.next(t))
	require.EqualValues(t, 2, dials.Load())

	handle.Stop()
	require.Equal(t, event{kind: "end"}, secondListener.next(t))
	require.Empty(t, firstListener.events)
}

func TestHandleQueuedRunStoppedBeforeItOpens(t *testing.T) {
	first := newFakeStream()
	first.drain = make(chan struct{})
	handle, firstListener := newTestHandle(t, continuousInterim, nil, first)
	var dials atomic.Int32
	handle.opts.Dial = func(context.Context, capability.Config) (Stream, error) {
		dials.Add(1)
		return first, nil
	}

	handle.Start()
	require.Eventually(t, func() bool { return dials.Load() == 1 }, time.Second, 5*time.Millisecond)
	handle.Stop()

	secondListener := newRecordingListener()
	handle.Listen(secondListener)
	handle.Start()
	handle.Stop()

	close(first.drain)
	require.Equal(t, event{kind: "end"}, firstListener.next(t))
	require.Equal(t, event{kind: "end"}, secondListener.next(t))
	require.EqualValues(t, 1, dials.Load())
}

func TestHandleRestartsAfterEnd(t *testing.T) {
	capture := newFakeCapture()
	stream := newFakeStream()
	handle, listener := newTestHandle(t, continuousInterim, nil, nil)
	calls := 0
	handle.opts.Source = func(context.Context) (Capture, error) {
		calls++
		if calls == 1 {
			return capture, nil
		}
		return newFakeCapture(), nil
	}
	handle.opts.Dial = func(context.Context, capability.Config) (Stream, error) {
		if calls == 1 {
			return stream, nil
		}
		return newFakeStream(), nil
	}

	handle.Start()
	handle.Stop()
	require.Equal(t, event{kind: "end"}, listener.next(t))

	handle.Start()
	handle.Stop()
	require.Equal(t, event{kind: "end"}, listener.next(t))
	require.Equal(t, 2, calls)
}

func TestHandleFailuresReportCodeThenEnd(t *testing.T) {
	tests := []struct {
		name     string
		source   Source
		dial     Dialer
		wantCode string
	}{
		{
			name: "capture failure",
			source: func(context.Context) (Capture, error) {
				return nil, errors.New("pulse unavailable")
			},
			dial: func(context.Context, capability.Config) (Stream, error) {
				return newFakeStream(), nil
			},
			wantCode: capability.CodeAudioCapture,
		},
		{
			name: "dial rejected",
			source: func(context.Context) (Capture, error) {
				return newFakeCapture(), nil
			},
			dial: func(context.Context, capability.Config) (Stream, error) {
				return nil, status.Error(codes.Unauthenticated, "bad key")
			},
			wantCode: capability.CodeServiceNotAllowed,
		},
		{
			name: "stream failure",
			source: func(context.Context) (Capture, error) {
				return newFakeCapture(), nil
			},
			dial: func(context.Context, capability.Config) (Stream, error) {
				return newFakeStream(recvItem{err: status.Error(codes.Unavailable, "reset")}), nil
			},
			wantCode: capability.CodeNetwork,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			handle := New(Options{Name: "fake", Config: continuousInterim, Source: tc.source, Dial: tc.dial, Logger: zerolog.Nop()})
			listener := newRecordingListener()
			handle.Listen(listener)

			handle.Start()
			require.Equal(t, event{kind: "error", code: tc.wantCode}, listener.next(t))
			require.Equal(t, event{kind: "end"}, listener.next(t))
			require.NoError(t, handle.Close())
		})
	}
}

func TestHandleCloseWaitsAndRejectsStart(t *testing.T) {
	capture := newFakeCapture()
	handle, listener := newTestHandle(t, continuousInterim, capture, newFakeStream())

	handle.Start()
	require.NoError(t, handle.Close())
	require.Equal(t, event{kind: "end"}, listener.next(t))
	require.True(t, capture.stopped.Load())

	handle.Start()
	require.Equal(t, event{kind: "error", code: capability.CodeInvalidState}, listener.next(t))
}

func TestHandleStopWhenIdleIsNoop(t *testing.T) {
	handle, listener := newTestHandle(t, continuousInterim, newFakeCapture(), newFakeStream())
	handle.Stop()

	select {
	case ev := <-listener.events:
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{err: nil, want: ""},
		{err: capability.WithCode(capability.CodeNotAllowed, errors.New("denied")), want: capability.CodeNotAllowed},
		{err: context.Canceled, want: capability.CodeAborted},
		{err: context.DeadlineExceeded, want: capability.CodeNetwork},
		{err: status.Error(codes.Unavailable, "x"), want: capability.CodeNetwork},
		{err: status.Error(codes.DeadlineExceeded, "x"), want: capability.CodeNetwork},
		{err: status.Error(codes.PermissionDenied, "x"), want: capability.CodeServiceNotAllowed},
		{err: status.Error(codes.Unauthenticated, "x"), want: capability.CodeServiceNotAllowed},
		{err: status.Error(codes.OutOfRange, "x"), want: capability.CodeNoSpeech},
		{err: status.Error(codes.Canceled, "x"), want: capability.CodeAborted},
		{err: status.Error(codes.InvalidArgument, "x"), want: capability.CodeLanguageNotSupported},
		{err: status.Error(codes.Internal, "x"), want: capability.CodeNetwork},
		{err: errors.New("socket closed"), want: capability.CodeNetwork},
	}

	for _, tc := range tests {
		require.Equal(t, tc.want, Classify(tc.err), "err=%v", tc.err)
	}
}
