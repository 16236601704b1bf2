// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package mqttbridge mirrors the driver state onto MQTT topics and accepts
// SetParams updates from them.
//
// Topics, relative to the configured base topic:
//
//	<base>/state         retained GetParams JSON
//	<base>/set           SetParams JSON accepted from subscribers
//	<base>/result        SetResult JSON for each /set message
//	<base>/availability  "online", or "offline" as the last will
package mqttbridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/Thermoquad/mhistat/internal/config"
	"github.com/Thermoquad/mhistat/internal/metrics"
	"github.com/Thermoquad/mhistat/pkg/mhiac"
)

const (
	topicState        = "/state"
	topicSet          = "/set"
	topicResult       = "/result"
	topicAvailability = "/availability"

	publishTimeout = 5 * time.Second
)

// ErrNotConnected is returned when publishing before Connect
var ErrNotConnected = errors.New("mqtt client not connected")

// publisher is the subset of the MQTT client the bridge publishes through
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

type pahoPublisher struct {
	client mqtt.Client
}

func (p pahoPublisher) Publish(topic string, qos byte, retained bool, payload []byte) error {
	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: timeout", topic)
	}
	return token.Error()
}

// Bridge connects one driver to an MQTT broker
type Bridge struct {
	driver  *mhiac.Driver
	cfg     config.MQTTConfig
	logger  *zap.Logger
	metrics *metrics.AppMetrics

	mu        sync.Mutex
	client    mqtt.Client
	pub       publisher
	lastState []byte
}

// New creates a bridge; call Connect before Run
func New(driver *mhiac.Driver, cfg config.MQTTConfig, logger *zap.Logger, m *metrics.AppMetrics) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{driver: driver, cfg: cfg, logger: logger, metrics: m}
}

func (b *Bridge) topic(suffix string) string {
	return b.cfg.Topic + suffix
}

// Connect dials the broker. Subscriptions are renewed on every reconnect.
func (b *Bridge) Connect() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(b.cfg.Broker)
	opts.SetClientID(b.cfg.ClientID)
	if b.cfg.Username != "" {
		opts.SetUsername(b.cfg.Username)
		opts.SetPassword(b.cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetWill(b.topic(topicAvailability), "offline", b.cfg.QoS, true)
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		b.logger.Info("connected to MQTT broker", zap.String("broker", b.cfg.Broker))
		c.Subscribe(b.topic(topicSet), b.cfg.QoS, func(_ mqtt.Client, msg mqtt.Message) {
			b.metrics.ObserveMQTT("in")
			b.HandleSet(msg.Payload())
		})
		c.Publish(b.topic(topicAvailability), b.cfg.QoS, true, "online")
		b.mu.Lock()
		b.lastState = nil
		b.mu.Unlock()
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		b.logger.Warn("MQTT connection lost", zap.Error(err))
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.WaitTimeout(publishTimeout) && token.Error() != nil {
		return fmt.Errorf("mqtt connect: %w", token.Error())
	}

	b.mu.Lock()
	b.client = client
	b.pub = pahoPublisher{client: client}
	b.mu.Unlock()
	return nil
}

// Close publishes offline and disconnects
func (b *Bridge) Close() {
	b.mu.Lock()
	client := b.client
	b.mu.Unlock()
	if client == nil {
		return
	}
	_ = b.publish(topicAvailability, true, []byte("offline"))
	client.Disconnect(250)
}

func (b *Bridge) publish(suffix string, retained bool, payload []byte) error {
	b.mu.Lock()
	pub := b.pub
	b.mu.Unlock()
	if pub == nil {
		return ErrNotConnected
	}
	if err := pub.Publish(b.topic(suffix), b.cfg.QoS, retained, payload); err != nil {
		return err
	}
	b.metrics.ObserveMQTT("out")
	return nil
}

// PublishState publishes the current parameters when they differ from the
// last published payload, or always when force is set.
func (b *Bridge) PublishState(force bool) error {
	payload, err := json.Marshal(b.driver.GetParams())
	if err != nil {
		return err
	}

	b.mu.Lock()
	same := bytes.Equal(payload, b.lastState)
	b.mu.Unlock()
	if same && !force {
		return nil
	}

	if err := b.publish(topicState, true, payload); err != nil {
		return err
	}
	b.mu.Lock()
	b.lastState = payload
	b.mu.Unlock()
	return nil
}

// Notify is a driver observer that republishes changed state
func (b *Bridge) Notify(mhiac.Status) {
	if err := b.PublishState(false); err != nil && !errors.Is(err, ErrNotConnected) {
		b.logger.Warn("publish state failed", zap.Error(err))
	}
}

type resultMessage struct {
	mhiac.SetResult
	Error string `json:"error,omitempty"`
}

// HandleSet applies a SetParams JSON payload and publishes the result
func (b *Bridge) HandleSet(payload []byte) mhiac.SetResult {
	var msg resultMessage
	var update mhiac.ParamsUpdate
	if err := json.Unmarshal(payload, &update); err != nil {
		b.logger.Warn("invalid set payload", zap.Error(err))
		msg.Results = map[string]bool{}
		msg.Params = b.driver.GetParams()
		msg.Error = err.Error()
	} else {
		msg.SetResult = b.driver.SetParams(update)
		b.metrics.ObserveSet(msg.Results)
	}

	out, err := json.Marshal(msg)
	if err == nil {
		err = b.publish(topicResult, false, out)
	}
	if err != nil {
		b.logger.Warn("publish result failed", zap.Error(err))
	}
	return msg.SetResult
}

// Run republishes state every PublishInterval until ctx is cancelled
func (b *Bridge) Run(ctx context.Context) error {
	interval := b.cfg.PublishInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := b.PublishState(true); err != nil {
				b.logger.Warn("periodic publish failed", zap.Error(err))
			}
		}
	}
}
