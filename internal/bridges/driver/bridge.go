package driver

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/armlink/internal/armband"
	"github.com/nerrad567/armlink/internal/hub"
	"github.com/nerrad567/armlink/internal/infrastructure/mqtt"
)

const (
	defaultQoS    = 1
	defaultSource = "hub"

	// closeParallelism bounds concurrent unsubscribes during Close.
	closeParallelism = 8
)

// MQTTClient is the subset of *mqtt.Client the bridge uses.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	IsConnected() bool
}

// Logger is the logging surface used by the bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Options configures a Bridge.
type Options struct {
	// MQTTClient is required.
	MQTTClient MQTTClient

	// QoS for subscriptions and commands. Default 1.
	QoS byte

	// Source is written into every command message. Default "hub".
	Source string

	// Logger is optional.
	Logger Logger
}

// Bridge implements hub.DiscoveryFeed, hub.SampleFeed and hub.CommandSink
// over MQTT.
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	mqtt   MQTTClient
	topics mqtt.Topics
	qos    byte
	source string
	now    func() time.Time

	discovery   hub.DiscoveryHandler
	discoveryMu sync.RWMutex

	// Discovery queue: unbounded so the MQTT delivery goroutine never blocks.
	pending   []discoveryEvent
	pendingMu sync.Mutex
	notify    chan struct{}

	samples *xsync.MapOf[armband.Handle, func(armband.Sample)]

	stats bridgeCounters

	done      chan struct{}
	wg        sync.WaitGroup
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error

	logger   Logger
	loggerMu sync.RWMutex
}

type bridgeCounters struct {
	discoveryEvents atomic.Uint64
	samplesReceived atomic.Uint64
	samplesDropped  atomic.Uint64
	invalidMessages atomic.Uint64
	commandsSent    atomic.Uint64
	commandsFailed  atomic.Uint64
}

// Stats is a snapshot of bridge counters.
type Stats struct {
	DiscoveryEvents     uint64 `json:"discovery_events"`
	SamplesReceived     uint64 `json:"samples_received"`
	SamplesDropped      uint64 `json:"samples_dropped"`
	InvalidMessages     uint64 `json:"invalid_messages"`
	CommandsSent        uint64 `json:"commands_sent"`
	CommandsFailed      uint64 `json:"commands_failed"`
	SampleSubscriptions int    `json:"sample_subscriptions"`
	PendingDiscovery    int    `json:"pending_discovery"`
}

// New creates a bridge and starts its discovery worker.
// Call Close to stop it.
func New(opts Options) (*Bridge, error) {
	if opts.MQTTClient == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	qos := opts.QoS
	if qos == 0 {
		qos = defaultQoS
	}
	if qos > 2 {
		return nil, fmt.Errorf("invalid QoS %d", qos)
	}
	source := opts.Source
	if source == "" {
		source = defaultSource
	}

	b := &Bridge{
		mqtt:    opts.MQTTClient,
		qos:     qos,
		source:  source,
		now:     func() time.Time { return time.Now().UTC() },
		notify:  make(chan struct{}, 1),
		samples: xsync.NewMapOf[armband.Handle, func(armband.Sample)](),
		done:    make(chan struct{}),
		logger:  opts.Logger,
	}

	b.wg.Add(1)
	go b.discoveryWorker()

	return b, nil
}

// SubscribeDiscovery implements hub.DiscoveryFeed.
func (b *Bridge) SubscribeDiscovery(handler hub.DiscoveryHandler) error {
	if b.closed.Load() {
		return ErrClosed
	}
	if handler == nil {
		return fmt.Errorf("discovery handler is required")
	}

	b.discoveryMu.Lock()
	if b.discovery != nil {
		b.discoveryMu.Unlock()
		return ErrAlreadySubscribed
	}
	b.discovery = handler
	b.discoveryMu.Unlock()

	topic := b.topics.Discovery()
	if err := b.mqtt.Subscribe(topic, b.qos, b.handleDiscovery); err != nil {
		b.discoveryMu.Lock()
		b.discovery = nil
		b.discoveryMu.Unlock()
		return fmt.Errorf("subscribe to discovery: %w", err)
	}

	b.logInfo("subscribed to discovery", "topic", topic)
	return nil
}

// UnsubscribeDiscovery implements hub.DiscoveryFeed.
// Events already queued are discarded.
func (b *Bridge) UnsubscribeDiscovery() error {
	b.discoveryMu.Lock()
	subscribed := b.discovery != nil
	b.discovery = nil
	b.discoveryMu.Unlock()

	b.pendingMu.Lock()
	b.pending = nil
	b.pendingMu.Unlock()

	if !subscribed {
		return nil
	}
	if err := b.mqtt.Unsubscribe(b.topics.Discovery()); err != nil {
		return fmt.Errorf("unsubscribe from discovery: %w", err)
	}
	return nil
}

// handleDiscovery runs on the MQTT delivery goroutine. It only decodes and
// queues; the worker makes the hub calls.
func (b *Bridge) handleDiscovery(_ string, payload []byte) error {
	ev, err := decodeDiscovery(payload)
	if err != nil {
		b.stats.invalidMessages.Add(1)
		return err
	}
	if b.closed.Load() {
		return nil
	}

	b.stats.discoveryEvents.Add(1)
	b.pendingMu.Lock()
	b.pending = append(b.pending, ev)
	b.pendingMu.Unlock()

	select {
	case b.notify <- struct{}{}:
	default:
	}
	return nil
}

func (b *Bridge) discoveryWorker() {
	defer b.wg.Done()

	for {
		select {
		case <-b.done:
			return
		case <-b.notify:
		}

		for {
			ev, ok := b.nextEvent()
			if !ok {
				break
			}
			b.deliver(ev)

			select {
			case <-b.done:
				return
			default:
			}
		}
	}
}

func (b *Bridge) nextEvent() (discoveryEvent, bool) {
	b.pendingMu.Lock()
	defer b.pendingMu.Unlock()

	if len(b.pending) == 0 {
		return discoveryEvent{}, false
	}
	ev := b.pending[0]
	b.pending[0] = discoveryEvent{}
	b.pending = b.pending[1:]
	return ev, true
}

func (b *Bridge) deliver(ev discoveryEvent) {
	b.discoveryMu.RLock()
	handler := b.discovery
	b.discoveryMu.RUnlock()

	if handler == nil {
		return
	}
	if ev.connected {
		handler.HandleConnected(ev.connect)
	} else {
		handler.HandleDisconnected(ev.connect.Handle)
	}
}

// SubscribeSamples implements hub.SampleFeed.
func (b *Bridge) SubscribeSamples(h armband.Handle, fn func(armband.Sample)) error {
	if b.closed.Load() {
		return ErrClosed
	}
	if fn == nil {
		return fmt.Errorf("sample callback is required")
	}

	b.samples.Store(h, fn)

	topic := b.topics.Sample(int(h))
	if err := b.mqtt.Subscribe(topic, b.qos, b.sampleHandler(h)); err != nil {
		b.samples.Delete(h)
		return fmt.Errorf("subscribe to samples of handle %d: %w", h, err)
	}

	b.logDebug("subscribed to samples", "handle", h, "topic", topic)
	return nil
}

// UnsubscribeSamples implements hub.SampleFeed. Messages already in flight
// may still be delivered to the old callback; the hub discards samples for
// handles it no longer holds. Unknown handles are ignored.
func (b *Bridge) UnsubscribeSamples(h armband.Handle) error {
	if _, ok := b.samples.LoadAndDelete(h); !ok {
		return nil
	}
	if err := b.mqtt.Unsubscribe(b.topics.Sample(int(h))); err != nil {
		return fmt.Errorf("unsubscribe from samples of handle %d: %w", h, err)
	}
	return nil
}

func (b *Bridge) sampleHandler(h armband.Handle) mqtt.MessageHandler {
	return func(_ string, payload []byte) error {
		s, err := decodeSample(h, payload)
		if err != nil {
			b.stats.invalidMessages.Add(1)
			return err
		}

		fn, ok := b.samples.Load(h)
		if !ok {
			b.stats.samplesDropped.Add(1)
			return nil
		}
		b.stats.samplesReceived.Add(1)
		fn(s)
		return nil
	}
}

// Send implements hub.CommandSink by publishing a CommandMessage on the
// device's command topic.
func (b *Bridge) Send(h armband.Handle, cmd armband.Command) error {
	if b.closed.Load() {
		return ErrClosed
	}
	if !b.mqtt.IsConnected() {
		b.stats.commandsFailed.Add(1)
		return ErrNotConnected
	}

	msg := newCommandMessage(h, cmd, b.source, b.now())
	payload, err := json.Marshal(msg)
	if err != nil {
		b.stats.commandsFailed.Add(1)
		return fmt.Errorf("marshal command: %w", err)
	}

	if err := b.mqtt.Publish(b.topics.Command(int(h)), payload, b.qos, false); err != nil {
		b.stats.commandsFailed.Add(1)
		return fmt.Errorf("publish command: %w", err)
	}

	b.stats.commandsSent.Add(1)
	b.logDebug("command sent", "handle", h, "command", cmd.String(), "command_id", msg.ID)
	return nil
}

// Close stops the discovery worker and drops every subscription.
// Unsubscribes run in parallel and are skipped when the broker is
// unreachable. Safe to call multiple times.
func (b *Bridge) Close() error {
	b.closeOnce.Do(func() {
		b.closed.Store(true)
		close(b.done)
		b.wg.Wait()

		var handles []armband.Handle
		b.samples.Range(func(h armband.Handle, _ func(armband.Sample)) bool {
			handles = append(handles, h)
			return true
		})

		online := b.mqtt.IsConnected()

		var g errgroup.Group
		g.SetLimit(closeParallelism)

		g.Go(func() error {
			if !online {
				b.discoveryMu.Lock()
				b.discovery = nil
				b.discoveryMu.Unlock()
				return nil
			}
			return b.UnsubscribeDiscovery()
		})
		for _, h := range handles {
			h := h
			g.Go(func() error {
				if !online {
					b.samples.Delete(h)
					return nil
				}
				return b.UnsubscribeSamples(h)
			})
		}

		b.closeErr = g.Wait()
		if b.closeErr != nil && errors.Is(b.closeErr, mqtt.ErrNotConnected) {
			b.closeErr = nil
		}
		b.logInfo("bridge closed", "sample_subscriptions", len(handles))
	})
	return b.closeErr
}

// Stats returns a snapshot of the bridge counters.
func (b *Bridge) Stats() Stats {
	b.pendingMu.Lock()
	pending := len(b.pending)
	b.pendingMu.Unlock()

	return Stats{
		DiscoveryEvents:     b.stats.discoveryEvents.Load(),
		SamplesReceived:     b.stats.samplesReceived.Load(),
		SamplesDropped:      b.stats.samplesDropped.Load(),
		InvalidMessages:     b.stats.invalidMessages.Load(),
		CommandsSent:        b.stats.commandsSent.Load(),
		CommandsFailed:      b.stats.commandsFailed.Load(),
		SampleSubscriptions: b.samples.Size(),
		PendingDiscovery:    pending,
	}
}

// SetLogger sets the logger for the bridge.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()
}

func (b *Bridge) getLogger() Logger {
	b.loggerMu.RLock()
	defer b.loggerMu.RUnlock()
	return b.logger
}

func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

func (b *Bridge) logDebug(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}
