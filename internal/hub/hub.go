package hub

import (
	"fmt"
	"strings"
	"sync"

	"github.com/nerrad567/armlink/internal/armband"
)

// Logger defines the logging interface used by the Hub.
// Compatible with *logging.Logger from infrastructure/logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// DiscoveryHandler receives connect and disconnect notifications.
// *Hub implements it.
type DiscoveryHandler interface {
	HandleConnected(ev armband.ConnectEvent)
	HandleDisconnected(h armband.Handle)
}

// DiscoveryFeed delivers connect and disconnect notifications from the driver.
type DiscoveryFeed interface {
	SubscribeDiscovery(handler DiscoveryHandler) error
	UnsubscribeDiscovery() error
}

// SampleFeed delivers typed telemetry for one handle at a time.
type SampleFeed interface {
	SubscribeSamples(h armband.Handle, fn func(armband.Sample)) error
	UnsubscribeSamples(h armband.Handle) error
}

// CommandSink forwards commands to the driver. Delivery is fire-and-forget;
// a nil error means the command was handed off, not that the device acted.
type CommandSink interface {
	Send(h armband.Handle, cmd armband.Command) error
}

// Recorder observes lifecycle and command outcomes.
// Calls run on intake and caller goroutines, and RecordConnect runs while
// ShutdownAll is held off, so implementations must bound their work.
type Recorder interface {
	RecordConnect(rec armband.Record)
	RecordDisconnect(rec armband.Record)
	RecordCommand(h armband.Handle, cmd armband.Command, ok bool)
}

// ShutdownRecorder is implemented by recorders that tell devices released by
// ShutdownAll apart from devices that disconnected. Recorders without it get
// RecordDisconnect.
type ShutdownRecorder interface {
	RecordShutdown(rec armband.Record)
}

func recordShutdown(r Recorder, rec armband.Record) {
	if sr, ok := r.(ShutdownRecorder); ok {
		sr.RecordShutdown(rec)
		return
	}
	r.RecordDisconnect(rec)
}

type noopRecorder struct{}

func (noopRecorder) RecordConnect(armband.Record)                        {}
func (noopRecorder) RecordDisconnect(armband.Record)                     {}
func (noopRecorder) RecordCommand(armband.Handle, armband.Command, bool) {}

// MultiRecorder fans every event out to each of its recorders in order.
type MultiRecorder []Recorder

// RecordConnect implements Recorder.
func (m MultiRecorder) RecordConnect(rec armband.Record) {
	for _, r := range m {
		r.RecordConnect(rec)
	}
}

// RecordDisconnect implements Recorder.
func (m MultiRecorder) RecordDisconnect(rec armband.Record) {
	for _, r := range m {
		r.RecordDisconnect(rec)
	}
}

// RecordShutdown implements ShutdownRecorder.
func (m MultiRecorder) RecordShutdown(rec armband.Record) {
	for _, r := range m {
		recordShutdown(r, rec)
	}
}

// RecordCommand implements Recorder.
func (m MultiRecorder) RecordCommand(h armband.Handle, cmd armband.Command, ok bool) {
	for _, r := range m {
		r.RecordCommand(h, cmd, ok)
	}
}

// UnlockPolicy selects the command issued to a device when it connects.
type UnlockPolicy string

// UnlockPolicy constants.
const (
	// UnlockPolicyTimed sends a timed unlock on connect.
	UnlockPolicyTimed UnlockPolicy = "timed"

	// UnlockPolicyHold sends a hold unlock on connect.
	UnlockPolicyHold UnlockPolicy = "hold"

	// UnlockPolicyNone leaves newly connected devices locked.
	UnlockPolicyNone UnlockPolicy = "none"
)

// ParseUnlockPolicy parses a policy name. The empty string means timed.
func ParseUnlockPolicy(s string) (UnlockPolicy, error) {
	switch p := UnlockPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return UnlockPolicyTimed, nil
	case UnlockPolicyTimed, UnlockPolicyHold, UnlockPolicyNone:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidUnlockPolicy, s)
	}
}

// Options holds configuration for creating a Hub.
type Options struct {
	// Sensors is the EMG channel count per device. Zero means armband.DefaultSensors.
	Sensors int

	// Discovery is the connect/disconnect feed. Required by Start.
	Discovery DiscoveryFeed

	// Samples is the per-handle telemetry feed. If nil, samples must be
	// delivered by calling HandleSample directly.
	Samples SampleFeed

	// Sink receives outbound commands. Required.
	Sink CommandSink

	// UnlockPolicy is applied on every connect. Empty means UnlockPolicyTimed.
	UnlockPolicy UnlockPolicy

	// Recorder is optional.
	Recorder Recorder

	// Logger is optional.
	Logger Logger
}

// Hub aggregates armband state for synchronous callers.
//
// Thread Safety: All methods are safe for concurrent use.
type Hub struct {
	registry     *armband.Registry
	discovery    DiscoveryFeed
	samples      SampleFeed
	sink         CommandSink
	recorder     Recorder
	unlockPolicy UnlockPolicy

	// lifeMu is held shared by every registry mutation and read, and
	// exclusively by ShutdownAll. Feed and sink calls are made outside it;
	// RecordConnect is made inside it.
	lifeMu  sync.RWMutex
	started bool
	closed  bool

	// emg is the legacy shared buffer: the last EMG sample from any device.
	emg   []int
	emgMu sync.RWMutex

	logger   Logger
	loggerMu sync.RWMutex
}

// New creates a Hub. Call Start to subscribe to the discovery feed.
func New(opts Options) (*Hub, error) {
	if opts.Sink == nil {
		return nil, ErrNoSink
	}

	policy, err := ParseUnlockPolicy(string(opts.UnlockPolicy))
	if err != nil {
		return nil, err
	}

	h := &Hub{
		registry:     armband.NewRegistry(opts.Sensors),
		discovery:    opts.Discovery,
		samples:      opts.Samples,
		sink:         opts.Sink,
		recorder:     opts.Recorder,
		unlockPolicy: policy,
		logger:       opts.Logger,
	}
	if h.recorder == nil {
		h.recorder = noopRecorder{}
	}
	if h.logger == nil {
		h.logger = noopLogger{}
	}
	h.emg = make([]int, h.registry.Sensors())

	return h, nil
}

// Start subscribes the Hub to the discovery feed.
func (h *Hub) Start() error {
	if h.discovery == nil {
		return ErrNoDiscoveryFeed
	}

	h.lifeMu.Lock()
	if h.closed {
		h.lifeMu.Unlock()
		return ErrClosed
	}
	if h.started {
		h.lifeMu.Unlock()
		return ErrAlreadyStarted
	}
	h.started = true
	h.lifeMu.Unlock()

	if err := h.discovery.SubscribeDiscovery(h); err != nil {
		h.lifeMu.Lock()
		h.started = false
		h.lifeMu.Unlock()
		return fmt.Errorf("subscribe discovery: %w", err)
	}

	h.log().Info("hub started",
		"sensors", h.registry.Sensors(),
		"unlock_policy", string(h.unlockPolicy))
	return nil
}

// Sensors returns the EMG channel count of every device.
func (h *Hub) Sensors() int {
	return h.registry.Sensors()
}

// UnlockPolicy returns the policy applied on connect.
func (h *Hub) UnlockPolicy() UnlockPolicy {
	return h.unlockPolicy
}

// SetLogger sets the logger for the Hub.
func (h *Hub) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	h.loggerMu.Lock()
	h.logger = logger
	h.loggerMu.Unlock()
}

func (h *Hub) log() Logger {
	h.loggerMu.RLock()
	defer h.loggerMu.RUnlock()
	return h.logger
}

// isClosed reports whether ShutdownAll has run.
func (h *Hub) isClosed() bool {
	h.lifeMu.RLock()
	defer h.lifeMu.RUnlock()
	return h.closed
}
