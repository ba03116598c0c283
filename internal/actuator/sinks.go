package actuator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// LogSink writes one human readable line per command, e.g. "Action: Relax".
type LogSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewLogSink creates a sink writing to w.
func NewLogSink(w io.Writer) *LogSink {
	return &LogSink{w: w}
}

// Send implements Sink.
func (s *LogSink) Send(_ context.Context, cmd Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	line := "Action: " + cmd.Action.String() + "\n"
	if cmd.Action == Unknown {
		line = cmd.Action.String() + "\n"
	}
	_, err := io.WriteString(s.w, line)
	return err
}

// SerialSink writes the numeric action code as a newline terminated command
// to the actuator controller's serial port.
type SerialSink struct {
	mu   sync.Mutex
	port io.Writer
}

// NewSerialSink creates a sink writing to port.
func NewSerialSink(port io.Writer) *SerialSink {
	return &SerialSink{port: port}
}

// Send implements Sink.
func (s *SerialSink) Send(_ context.Context, cmd Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	command := fmt.Sprintf("%d\n", int(cmd.Action))
	n, err := s.port.Write([]byte(command))
	if err != nil {
		return err
	}
	if n != len(command) {
		return fmt.Errorf("short write to actuator port: %d of %d bytes", n, len(command))
	}
	return nil
}

// MQTTSink publishes commands as JSON to a broker topic.
type MQTTSink struct {
	client  mqtt.Client
	topic   string
	qos     byte
	timeout time.Duration
	now     func() time.Time
}

// MQTTMessage is the JSON payload published by MQTTSink.
type MQTTMessage struct {
	Action string `json:"action"`
	Code   int    `json:"code"`
	Label  int    `json:"label"`
	Time   string `json:"time"`
}

// NewMQTTSink creates a sink publishing on an already connected client.
func NewMQTTSink(client mqtt.Client, topic string, qos byte, timeout time.Duration) *MQTTSink {
	return &MQTTSink{client: client, topic: topic, qos: qos, timeout: timeout, now: time.Now}
}

// ConnectMQTT connects a paho client to broker.
func ConnectMQTT(broker, clientID string, timeout time.Duration) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(timeout)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.WaitTimeout(timeout) && token.Error() != nil {
		return nil, fmt.Errorf("MQTT connect error: %w", token.Error())
	} else if !client.IsConnected() {
		return nil, fmt.Errorf("MQTT connect to %s timed out", broker)
	}
	return client, nil
}

// Send implements Sink. The publish is bounded by the sink timeout so a
// stalled broker cannot hold up the control loop.
func (s *MQTTSink) Send(_ context.Context, cmd Command) error {
	payload, err := json.Marshal(MQTTMessage{
		Action: cmd.Action.String(),
		Code:   int(cmd.Action),
		Label:  int(cmd.Label),
		Time:   s.now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("json marshal error: %w", err)
	}

	token := s.client.Publish(s.topic, s.qos, false, payload)
	if !token.WaitTimeout(s.timeout) {
		return fmt.Errorf("MQTT publish to %s timed out", s.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("MQTT publish error: %w", err)
	}
	return nil
}
