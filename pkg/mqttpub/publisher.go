// Package mqttpub republishes telemetry snapshots to an MQTT broker.
package mqttpub

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/kmatveev/upsmon/pkg/models"
)

const (
	defaultClientID = "upsmon"
	defaultQoS      = 1

	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

var errPublishTimeout = errors.New("mqtt publish timed out")

// Config describes the broker connection.
type Config struct {
	Broker   string
	Port     int
	Topic    string
	ClientID string
	Username string
	Password string
}

// Publisher is a thin snapshot-to-JSON bridge over a paho client. The
// client reconnects on its own; publish failures are reported to the
// caller and never affect polling.
type Publisher struct {
	client mqtt.Client
	topic  string
}

func New(cfg Config) (*Publisher, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt broker address required")
	}

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = defaultClientID
	}

	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Broker, cfg.Port)).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOrderMatters(false)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.OnConnect = func(mqtt.Client) {
		log.Printf("MQTT connected to %s:%d", cfg.Broker, cfg.Port)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Printf("MQTT connection lost: %v", err)
	}

	client := mqtt.NewClient(opts)

	token := client.Connect()
	if token.WaitTimeout(connectTimeout) && token.Error() != nil {
		client.Disconnect(0)

		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}

	return &Publisher{client: client, topic: cfg.Topic}, nil
}

// Publish sends one snapshot as JSON at QoS 1.
func (p *Publisher) Publish(snap models.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	token := p.client.Publish(p.topic, defaultQoS, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return errPublishTimeout
	}

	return token.Error()
}

// Close disconnects from the broker, allowing in-flight messages to drain.
func (p *Publisher) Close() {
	p.client.Disconnect(250)
}
