package capture

import (
	"context"
	"encoding/json"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/edss/rocket-sensors/config"
	"github.com/edss/rocket-sensors/logging"
)

const (
	connectTimeout    = 10 * time.Second
	disconnectQuiesce = 250
)

// Topic returns the topic readings of a sensor are published to.
func Topic(prefix, sensor string) string {
	return prefix + "/" + sensor + "/readings"
}

// An MQTTSink publishes readings as JSON at QoS 0.
type MQTTSink struct {
	client mqtt.Client
	prefix string
	logger logging.Logger
}

// NewMQTTSink connects to the configured broker. The client reconnects on its own after a lost
// connection; readings published while disconnected are dropped.
func NewMQTTSink(cfg *config.MQTTConfig, logger logging.Logger) (*MQTTSink, error) {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "rocket-sensors-" + uuid.NewString()
	}
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout).
		SetOnConnectHandler(func(mqtt.Client) {
			logger.Infow("connected to MQTT broker", "broker", cfg.Broker, "client_id", clientID)
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Warnw("lost connection to MQTT broker", "broker", cfg.Broker, "error", err)
		})
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, errors.Errorf("timed out connecting to MQTT broker %q", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, errors.Wrapf(err, "connecting to MQTT broker %q", cfg.Broker)
	}
	return newMQTTSink(client, cfg.TopicPrefix, logger), nil
}

func newMQTTSink(client mqtt.Client, prefix string, logger logging.Logger) *MQTTSink {
	return &MQTTSink{client: client, prefix: prefix, logger: logger}
}

// Write publishes r to the sensor's topic and waits for the publish or ctx.
func (s *MQTTSink) Write(ctx context.Context, r Reading) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return errors.Wrapf(err, "encoding readings of %q", r.Sensor)
	}
	token := s.client.Publish(Topic(s.prefix, r.Sensor), 0, false, payload)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-token.Done():
		return token.Error()
	}
}

// Close disconnects from the broker.
func (s *MQTTSink) Close() error {
	s.client.Disconnect(disconnectQuiesce)
	return nil
}
