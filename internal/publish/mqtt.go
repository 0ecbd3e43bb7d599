package publish

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
)

// DefaultDisconnectQuiesce is how long Close lets in-flight work finish, in milliseconds.
const DefaultDisconnectQuiesce = 250

// newClient creates the paho client (can be overridden in tests).
var newClient = mqtt.NewClient

// MQTTConfig holds MQTT connection and publish settings.
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte
	Retain   bool
	// ConnectTimeout bounds the initial connection attempt.
	ConnectTimeout time.Duration
}

// MQTTSink publishes payloads to an MQTT broker.
type MQTTSink struct {
	client mqtt.Client
	qos    byte
	retain bool
	logger *logrus.Logger
}

// NewMQTTSink connects to the configured broker.
func NewMQTTSink(cfg MQTTConfig, logger *logrus.Logger) (*MQTTSink, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.Broker == "" {
		return nil, fmt.Errorf("mqtt broker is required")
	}
	if cfg.QoS > 2 {
		return nil, fmt.Errorf("invalid mqtt qos %d: must be 0, 1 or 2", cfg.QoS)
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	if cfg.ConnectTimeout > 0 {
		opts.SetConnectTimeout(cfg.ConnectTimeout)
	}
	opts.SetOnConnectHandler(func(mqtt.Client) {
		logger.WithField("broker", cfg.Broker).Info("MQTT connection established")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.WithError(err).WithField("broker", cfg.Broker).Warn("MQTT connection lost")
	})

	client := newClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", cfg.Broker, token.Error())
	}

	return &MQTTSink{
		client: client,
		qos:    cfg.QoS,
		retain: cfg.Retain,
		logger: logger,
	}, nil
}

// Publish sends payload to topic and waits for the broker acknowledgement
// required by the configured QoS.
func (s *MQTTSink) Publish(topic string, payload []byte) error {
	token := s.client.Publish(topic, s.qos, s.retain, payload)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, token.Error())
	}
	return nil
}

// Close disconnects from the broker.
func (s *MQTTSink) Close() error {
	s.client.Disconnect(DefaultDisconnectQuiesce)
	s.logger.Debug("MQTT client disconnected")
	return nil
}
