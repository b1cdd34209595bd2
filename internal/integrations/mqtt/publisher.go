package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/r0gig0r/double-take/config"
	"github.com/r0gig0r/double-take/internal/training"
)

// Publisher sends review events to an MQTT broker. Delivery is
// best-effort: a broker outage never fails the request that produced
// the event.
type Publisher struct {
	cfg    config.MQTTConfig
	client mqtt.Client
}

// NewPublisher creates a publisher; Start must be called before use.
func NewPublisher(cfg config.MQTTConfig) *Publisher {
	return &Publisher{cfg: cfg}
}

// Start connects to the broker. A no-op when MQTT is disabled.
func (p *Publisher) Start() error {
	if !p.cfg.Enabled {
		log.Info("MQTT publisher is disabled in configuration")
		return nil
	}

	opts := mqtt.NewClientOptions()
	brokerURL := fmt.Sprintf("tcp://%s:%d", p.cfg.Broker, p.cfg.Port)
	opts.AddBroker(brokerURL)
	opts.SetClientID(p.cfg.ClientID)

	if p.cfg.Username != "" {
		opts.SetUsername(p.cfg.Username)
		opts.SetPassword(p.cfg.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(1 * time.Minute)

	p.client = mqtt.NewClient(opts)

	log.Infof("Connecting to MQTT broker at %s", brokerURL)
	if token := p.client.Connect(); token.Wait() && token.Error() != nil {
		log.Errorf("Failed to connect to MQTT broker: %v", token.Error())
		return token.Error()
	}

	log.Info("MQTT publisher connected")
	return nil
}

// Stop disconnects from the broker.
func (p *Publisher) Stop() {
	if p.client != nil && p.client.IsConnected() {
		log.Info("Disconnecting MQTT publisher...")
		p.client.Disconnect(250)
	}
}

// PublishTrainingEvent publishes a tag/train event under
// <topic>/training. Implements training.EventSink.
func (p *Publisher) PublishTrainingEvent(evt training.Event) {
	if p.client == nil || !p.client.IsConnected() {
		return
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		log.Errorf("Failed to marshal training event: %v", err)
		return
	}

	topic := fmt.Sprintf("%s/training", p.cfg.Topic)
	token := p.client.Publish(topic, 0, false, payload)
	go func() {
		if token.Wait() && token.Error() != nil {
			log.Warnf("Failed to publish training event to %s: %v", topic, token.Error())
		}
	}()
}
