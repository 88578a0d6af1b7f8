package hub

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/nerrad567/armlink/internal/armband"
)

var errSinkDown = errors.New("sink down")

type sentCommand struct {
	Handle  armband.Handle
	Command armband.Command
}

// mockSink records every command it receives. onSend, if set, runs after
// a command is accepted and outside the sink's lock.
type mockSink struct {
	mu     sync.Mutex
	sent   []sentCommand
	err    error
	onSend func(h armband.Handle, cmd armband.Command)
}

func (s *mockSink) Send(h armband.Handle, cmd armband.Command) error {
	s.mu.Lock()
	if s.err != nil {
		s.mu.Unlock()
		return s.err
	}
	s.sent = append(s.sent, sentCommand{Handle: h, Command: cmd})
	hook := s.onSend
	s.mu.Unlock()

	if hook != nil {
		hook(h, cmd)
	}
	return nil
}

func (s *mockSink) setOnSend(fn func(h armband.Handle, cmd armband.Command)) {
	s.mu.Lock()
	s.onSend = fn
	s.mu.Unlock()
}

func (s *mockSink) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *mockSink) commands() []sentCommand {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]sentCommand, len(s.sent))
	copy(out, s.sent)
	return out
}

func (s *mockSink) reset() {
	s.mu.Lock()
	s.sent = nil
	s.mu.Unlock()
}

// mockSampleFeed tracks per-handle subscriptions and lets tests push samples.
type mockSampleFeed struct {
	mu   sync.Mutex
	subs map[armband.Handle]func(armband.Sample)
	err  error
}

func newMockSampleFeed() *mockSampleFeed {
	return &mockSampleFeed{subs: make(map[armband.Handle]func(armband.Sample))}
}

func (f *mockSampleFeed) SubscribeSamples(h armband.Handle, fn func(armband.Sample)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.subs[h] = fn
	return nil
}

func (f *mockSampleFeed) UnsubscribeSamples(h armband.Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs, h)
	return nil
}

func (f *mockSampleFeed) subscribed(h armband.Handle) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.subs[h]
	return ok
}

func (f *mockSampleFeed) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// push delivers a sample through the handle's subscription, as the driver would.
func (f *mockSampleFeed) push(s armband.Sample) bool {
	f.mu.Lock()
	fn, ok := f.subs[s.Handle]
	f.mu.Unlock()
	if !ok {
		return false
	}
	fn(s)
	return true
}

// mockDiscovery holds the subscribed handler.
type mockDiscovery struct {
	mu           sync.Mutex
	handler      DiscoveryHandler
	unsubscribed bool
	err          error
}

func (d *mockDiscovery) SubscribeDiscovery(handler DiscoveryHandler) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.handler = handler
	return nil
}

func (d *mockDiscovery) UnsubscribeDiscovery() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handler = nil
	d.unsubscribed = true
	return nil
}

func (d *mockDiscovery) connect(h armband.Handle, arm armband.Arm) {
	d.mu.Lock()
	handler := d.handler
	d.mu.Unlock()
	if handler != nil {
		handler.HandleConnected(armband.ConnectEvent{Handle: h, Arm: arm, XDirection: armband.XDirectionTowardWrist})
	}
}

func (d *mockDiscovery) disconnect(h armband.Handle) {
	d.mu.Lock()
	handler := d.handler
	d.mu.Unlock()
	if handler != nil {
		handler.HandleDisconnected(h)
	}
}

// mockRecorder counts lifecycle and command events. events keeps the
// lifecycle calls in the order they arrived, e.g. "connect 1".
type mockRecorder struct {
	mu          sync.Mutex
	connects    []armband.Handle
	disconnects []armband.Handle
	commands    []bool
	events      []string
}

func (r *mockRecorder) RecordConnect(rec armband.Record) {
	r.mu.Lock()
	r.connects = append(r.connects, rec.Handle)
	r.events = append(r.events, fmt.Sprintf("connect %d", rec.Handle))
	r.mu.Unlock()
}

func (r *mockRecorder) RecordDisconnect(rec armband.Record) {
	r.mu.Lock()
	r.disconnects = append(r.disconnects, rec.Handle)
	r.events = append(r.events, fmt.Sprintf("disconnect %d", rec.Handle))
	r.mu.Unlock()
}

func (r *mockRecorder) lifecycle() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	copy(out, r.events)
	return out
}

func (r *mockRecorder) RecordCommand(_ armband.Handle, _ armband.Command, ok bool) {
	r.mu.Lock()
	r.commands = append(r.commands, ok)
	r.mu.Unlock()
}

// mockShutdownRecorder also implements ShutdownRecorder.
type mockShutdownRecorder struct {
	mockRecorder
	shutdowns []armband.Handle
}

func (r *mockShutdownRecorder) RecordShutdown(rec armband.Record) {
	r.mu.Lock()
	r.shutdowns = append(r.shutdowns, rec.Handle)
	r.events = append(r.events, fmt.Sprintf("shutdown %d", rec.Handle))
	r.mu.Unlock()
}

// hookLogger calls hook with each message logged at Info.
type hookLogger struct {
	noopLogger
	hook func(msg string)
}

func (l hookLogger) Info(msg string, _ ...any) { l.hook(msg) }

type testFixture struct {
	hub       *Hub
	sink      *mockSink
	samples   *mockSampleFeed
	discovery *mockDiscovery
	recorder  *mockRecorder
}

// newTestHub builds a started Hub wired to mocks.
func newTestHub(tb testing.TB, sensors int, policy UnlockPolicy) *testFixture {
	tb.Helper()
	f := &testFixture{
		sink:      &mockSink{},
		samples:   newMockSampleFeed(),
		discovery: &mockDiscovery{},
		recorder:  &mockRecorder{},
	}
	h, err := New(Options{
		Sensors:      sensors,
		Discovery:    f.discovery,
		Samples:      f.samples,
		Sink:         f.sink,
		UnlockPolicy: policy,
		Recorder:     f.recorder,
	})
	if err != nil {
		tb.Fatalf("New() error = %v", err)
	}
	if err := h.Start(); err != nil {
		tb.Fatalf("Start() error = %v", err)
	}
	f.hub = h
	return f
}
