package sink

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/segmentio/kafka-go"

	"github.com/jpalmerr/thermoboard/internal/device"
)

const testAddress = "172.20.10.2"

// fakeToken is an mqtt.Token that completes when done is closed.
type fakeToken struct {
	done chan struct{}
	err  error
}

func completedToken(err error) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool {
	<-t.done
	return true
}

func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}

func (t *fakeToken) Done() <-chan struct{} { return t.done }
func (t *fakeToken) Error() error          { return t.err }

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakePublisher struct {
	mu           sync.Mutex
	messages     []published
	token        mqtt.Token
	disconnected bool
}

func (p *fakePublisher) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, _ := payload.([]byte)
	p.messages = append(p.messages, published{topic, qos, retained, b})
	if p.token != nil {
		return p.token
	}
	return completedToken(nil)
}

func (p *fakePublisher) Disconnect(uint) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disconnected = true
}

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

// recordingSink counts publishes and returns err.
type recordingSink struct {
	published int
	closed    bool
	err       error
}

func (s *recordingSink) Publish(ctx context.Context, r device.Reading) error {
	s.published++
	return s.err
}

func (s *recordingSink) Close() error {
	s.closed = true
	return s.err
}

var testReading = device.Reading{Temperature: 22.5, Timestamp: 1700000000000}

func decodeMessage(t *testing.T, b []byte) Message {
	t.Helper()
	var m Message
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	return m
}

func TestMQTTSink_Publish(t *testing.T) {
	pub := &fakePublisher{}
	s := newMQTTSink(pub, MQTTConfig{Topic: "lab/temp", QoS: 1, Retain: true}, testAddress)

	if err := s.Publish(context.Background(), testReading); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if len(pub.messages) != 1 {
		t.Fatalf("published %d messages, want 1", len(pub.messages))
	}
	got := pub.messages[0]
	if got.topic != "lab/temp" || got.qos != 1 || !got.retained {
		t.Errorf("published to %q qos=%d retained=%v", got.topic, got.qos, got.retained)
	}

	m := decodeMessage(t, got.payload)
	if m.Device != testAddress || m.Temperature != 22.5 || m.Timestamp != 1700000000000 {
		t.Errorf("payload = %+v", m)
	}
}

func TestMQTTSink_PublishError(t *testing.T) {
	pub := &fakePublisher{token: completedToken(errors.New("not connected"))}
	s := newMQTTSink(pub, MQTTConfig{Topic: "lab/temp"}, testAddress)

	err := s.Publish(context.Background(), testReading)
	if err == nil {
		t.Fatal("Publish() error = nil, want broker error")
	}
}

func TestMQTTSink_PublishRespectsContext(t *testing.T) {
	// a token that never completes
	pub := &fakePublisher{token: &fakeToken{done: make(chan struct{})}}
	s := newMQTTSink(pub, MQTTConfig{Topic: "lab/temp", QoS: 1}, testAddress)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := s.Publish(ctx, testReading)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Publish() error = %v, want DeadlineExceeded", err)
	}
}

func TestMQTTSink_Close(t *testing.T) {
	pub := &fakePublisher{}
	s := newMQTTSink(pub, MQTTConfig{Topic: "t"}, testAddress)

	if err := s.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if !pub.disconnected {
		t.Error("Close() did not disconnect")
	}
}

func TestMQTTConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     MQTTConfig
		wantErr bool
	}{
		{"valid", MQTTConfig{Broker: "tcp://localhost:1883", Topic: "t"}, false},
		{"qos 2", MQTTConfig{Broker: "tcp://localhost:1883", Topic: "t", QoS: 2}, false},
		{"missing broker", MQTTConfig{Topic: "t"}, true},
		{"missing topic", MQTTConfig{Broker: "tcp://localhost:1883"}, true},
		{"qos 3", MQTTConfig{Broker: "tcp://localhost:1883", Topic: "t", QoS: 3}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewMQTTSink_InvalidConfig(t *testing.T) {
	if _, err := NewMQTTSink(context.Background(), MQTTConfig{}, testAddress); err == nil {
		t.Error("NewMQTTSink() with empty config should fail")
	}
}

func TestKafkaSink_Publish(t *testing.T) {
	w := &fakeWriter{}
	s := newKafkaSink(w, testAddress)

	if err := s.Publish(context.Background(), testReading); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if len(w.msgs) != 1 {
		t.Fatalf("wrote %d messages, want 1", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != testAddress {
		t.Errorf("Key = %q, want %q", msg.Key, testAddress)
	}
	if !msg.Time.Equal(testReading.Time()) {
		t.Errorf("Time = %v, want %v", msg.Time, testReading.Time())
	}
	if m := decodeMessage(t, msg.Value); m.Temperature != 22.5 {
		t.Errorf("Value temperature = %v, want 22.5", m.Temperature)
	}
}

func TestKafkaSink_PublishError(t *testing.T) {
	cause := errors.New("leader not available")
	s := newKafkaSink(&fakeWriter{err: cause}, testAddress)

	err := s.Publish(context.Background(), testReading)
	if !errors.Is(err, cause) {
		t.Errorf("Publish() error = %v, want wrapped %v", err, cause)
	}
}

func TestKafkaSink_Close(t *testing.T) {
	w := &fakeWriter{}
	s := newKafkaSink(w, testAddress)
	if err := s.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if !w.closed {
		t.Error("Close() did not close the writer")
	}
}

func TestKafkaConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     KafkaConfig
		wantErr bool
	}{
		{"valid", KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "t"}, false},
		{"no brokers", KafkaConfig{Topic: "t"}, true},
		{"empty broker", KafkaConfig{Brokers: []string{""}, Topic: "t"}, true},
		{"no topic", KafkaConfig{Brokers: []string{"localhost:9092"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewKafkaSink(t *testing.T) {
	s, err := NewKafkaSink(KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "readings"}, testAddress)
	if err != nil {
		t.Fatalf("NewKafkaSink() error = %v", err)
	}
	w, ok := s.writer.(*kafka.Writer)
	if !ok {
		t.Fatalf("writer = %T, want *kafka.Writer", s.writer)
	}
	if w.Topic != "readings" {
		t.Errorf("Topic = %q, want readings", w.Topic)
	}
	_ = s.Close()
}

func TestMulti_PublishAll(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	m := Multi{a, b}

	if err := m.Publish(context.Background(), testReading); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if a.published != 1 || b.published != 1 {
		t.Errorf("published = %d, %d; want 1, 1", a.published, b.published)
	}
}

func TestMulti_JoinsErrors(t *testing.T) {
	errA := errors.New("a failed")
	errC := errors.New("c failed")
	a, b, c := &recordingSink{err: errA}, &recordingSink{}, &recordingSink{err: errC}
	m := Multi{a, b, c}

	err := m.Publish(context.Background(), testReading)
	if !errors.Is(err, errA) || !errors.Is(err, errC) {
		t.Errorf("Publish() error = %v, want both sink errors", err)
	}
	// a failing sink does not stop the rest
	if b.published != 1 || c.published != 1 {
		t.Error("sinks after a failure were not called")
	}

	if err := m.Close(); !errors.Is(err, errA) {
		t.Errorf("Close() error = %v, want %v", err, errA)
	}
	if !a.closed || !b.closed || !c.closed {
		t.Error("Close() did not close every sink")
	}
}

func TestMulti_Empty(t *testing.T) {
	var m Multi
	if err := m.Publish(context.Background(), testReading); err != nil {
		t.Errorf("empty Multi Publish() error = %v", err)
	}
	if err := m.Close(); err != nil {
		t.Errorf("empty Multi Close() error = %v", err)
	}
}
