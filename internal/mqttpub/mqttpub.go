// Package mqttpub mirrors forwarded snapshots onto an MQTT topic.
package mqttpub

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/relabs-tech/nmea_injector/internal/gps"
)

const (
	DefaultTopic    = "nmea_injector/position"
	DefaultClientID = "nmea-injector"

	publishTimeout = 2 * time.Second
	connectTimeout = 5 * time.Second
)

type Publisher struct {
	client  mqtt.Client
	topic   string
	timeout time.Duration
	logger  *slog.Logger
}

// ClientID appends a short random suffix so several injectors can share a broker.
func ClientID(base string) string {
	if base == "" {
		base = DefaultClientID
	}
	return base + "-" + uuid.NewString()[:8]
}

// Connect dials the broker and returns a publisher for topic.
func Connect(broker, clientID, topic string, logger *slog.Logger) (*Publisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(ClientID(clientID)).
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("mqtt: connect to %s timed out", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt: connect to %s: %w", broker, err)
	}
	p := New(client, topic, logger)
	p.logger.Info("connected to MQTT broker", "broker", broker, "topic", p.topic)
	return p, nil
}

// New wraps an already connected client.
func New(client mqtt.Client, topic string, logger *slog.Logger) *Publisher {
	if topic == "" {
		topic = DefaultTopic
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		client:  client,
		topic:   topic,
		timeout: publishTimeout,
		logger:  logger.With("component", "mqtt"),
	}
}

// Publish sends the snapshot as retained JSON so late subscribers get the
// latest position immediately.
func (p *Publisher) Publish(snap gps.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("mqtt: encode snapshot: %w", err)
	}
	token := p.client.Publish(p.topic, 0, true, payload)
	if !token.WaitTimeout(p.timeout) {
		return errors.New("mqtt: publish timed out")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt: publish %s: %w", p.topic, err)
	}
	return nil
}

func (p *Publisher) Close() {
	p.client.Disconnect(250)
}
