// Package sink forwards published frame snapshots to an MQTT broker so
// external renderers and devices can follow playback.
package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/seantiz/cadence/internal/model"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 2 * time.Second
	disconnectMS   = 250

	// Snapshots are superseded every frame, so delivery is at most once.
	qos = 0
)

// Publisher sends a payload to a topic.
type Publisher interface {
	Publish(topic string, payload []byte) error
	Close()
}

// MQTTPublisher is a Publisher backed by a paho MQTT client.
type MQTTPublisher struct {
	client mqtt.Client
}

// NewMQTTPublisher connects to the broker at url.
func NewMQTTPublisher(url, clientID string) (*MQTTPublisher, error) {
	options := mqtt.NewClientOptions().
		AddBroker(url).
		SetClientID(clientID).
		SetKeepAlive(30 * time.Second).
		SetPingTimeout(5 * time.Second).
		SetAutoReconnect(true)
	client := mqtt.NewClient(options)

	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("connect to %s: timed out", url)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", url, err)
	}
	return &MQTTPublisher{client: client}, nil
}

// Publish sends payload and waits for the client to hand it off.
func (p *MQTTPublisher) Publish(topic string, payload []byte) error {
	token := p.client.Publish(topic, qos, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return errors.New("publish timed out")
	}
	return token.Error()
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(disconnectMS)
}

// Sink publishes snapshots as JSON.
type Sink struct {
	pub    Publisher
	topic  string
	logger *slog.Logger
}

// New creates a sink publishing to topic.
func New(pub Publisher, topic string, logger *slog.Logger) *Sink {
	return &Sink{pub: pub, topic: topic, logger: logger}
}

// Run publishes every snapshot received on snaps until ctx is cancelled or
// snaps is closed. Publish failures are logged and do not stop the sink.
func (s *Sink) Run(ctx context.Context, snaps <-chan model.FrameSnapshot) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-snaps:
			if !ok {
				return
			}
			if err := s.publish(snap); err != nil {
				s.logger.Warn("failed to publish snapshot", "frame", snap.Frame, "seq", snap.Seq, "error", err)
			}
		}
	}
}

func (s *Sink) publish(snap model.FrameSnapshot) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := s.pub.Publish(s.topic, b); err != nil {
		return fmt.Errorf("publish to %s: %w", s.topic, err)
	}
	return nil
}
