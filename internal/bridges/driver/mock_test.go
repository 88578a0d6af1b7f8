package driver

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/armlink/internal/armband"
	"github.com/nerrad567/armlink/internal/infrastructure/mqtt"
)

var errBrokerDown = errors.New("broker down")

// MockMQTTClient implements MQTTClient for testing.
type MockMQTTClient struct {
	mu             sync.Mutex
	published      []mockPublish
	subscribed     []string
	unsubscribed   []string
	handlers       map[string]mqtt.MessageHandler
	connected      bool
	publishErr     error
	subscribeErr   error
	unsubscribeErr error
}

type mockPublish struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

func NewMockMQTTClient() *MockMQTTClient {
	return &MockMQTTClient{
		connected: true,
		handlers:  make(map[string]mqtt.MessageHandler),
	}
}

func (m *MockMQTTClient) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	m.published = append(m.published, mockPublish{Topic: topic, Payload: payload, QoS: qos, Retained: retained})
	return nil
}

func (m *MockMQTTClient) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subscribeErr != nil {
		return m.subscribeErr
	}
	m.subscribed = append(m.subscribed, topic)
	m.handlers[topic] = handler
	return nil
}

func (m *MockMQTTClient) Unsubscribe(topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handlers, topic)
	if m.unsubscribeErr != nil {
		return m.unsubscribeErr
	}
	m.unsubscribed = append(m.unsubscribed, topic)
	return nil
}

func (m *MockMQTTClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockMQTTClient) setConnected(connected bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = connected
}

func (m *MockMQTTClient) GetPublished() []mockPublish {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]mockPublish, len(m.published))
	copy(out, m.published)
	return out
}

func (m *MockMQTTClient) GetUnsubscribed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.unsubscribed))
	copy(out, m.unsubscribed)
	return out
}

func (m *MockMQTTClient) HasHandler(topic string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.handlers[topic]
	return ok
}

func (m *MockMQTTClient) handler(topic string) mqtt.MessageHandler {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handlers[topic]
}

// SimulateMessage delivers payload to the handler subscribed on topic, the
// way the MQTT client would on its delivery goroutine. Messages for topics
// without a subscription are dropped.
func (m *MockMQTTClient) SimulateMessage(topic string, payload []byte) error {
	h := m.handler(topic)
	if h == nil {
		return nil
	}
	return h(topic, payload)
}

// recordingHandler implements hub.DiscoveryHandler.
type recordingHandler struct {
	mu           sync.Mutex
	connected    []armband.ConnectEvent
	disconnected []armband.Handle
	events       chan struct{}
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{events: make(chan struct{}, 64)}
}

func (r *recordingHandler) HandleConnected(ev armband.ConnectEvent) {
	r.mu.Lock()
	r.connected = append(r.connected, ev)
	r.mu.Unlock()
	r.events <- struct{}{}
}

func (r *recordingHandler) HandleDisconnected(h armband.Handle) {
	r.mu.Lock()
	r.disconnected = append(r.disconnected, h)
	r.mu.Unlock()
	r.events <- struct{}{}
}

// waitEvents blocks until n discovery callbacks have run.
func (r *recordingHandler) waitEvents(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-r.events:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for discovery event %d of %d", i+1, n)
		}
	}
}

// waitFor polls cond until it holds or two seconds pass.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func newTestBridge(t *testing.T) (*Bridge, *MockMQTTClient) {
	t.Helper()
	client := NewMockMQTTClient()
	b, err := New(Options{MQTTClient: client, Source: "hub-test"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { b.Close() }) //nolint:errcheck // Test cleanup
	return b, client
}
