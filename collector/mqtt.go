package collector

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"room_occupancy/config"
	"room_occupancy/logger"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTSource subscribes to broker topics and forwards decoded readings
type MQTTSource struct {
	cfg     config.MQTTConfig
	topics  []string
	qos     byte
	dropped atomic.Int64
}

// NewMQTTSource creates a source for the configured broker and topics
func NewMQTTSource(cfg config.MQTTConfig, topics []string, qos byte) (*MQTTSource, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt broker is not configured")
	}
	if len(topics) == 0 {
		return nil, errors.New("no mqtt topics configured")
	}
	return &MQTTSource{cfg: cfg, topics: topics, qos: qos}, nil
}

// Dropped counts readings discarded because the aggregator was behind
func (s *MQTTSource) Dropped() int64 { return s.dropped.Load() }

// Run connects, subscribes and blocks until ctx is cancelled
func (s *MQTTSource) Run(ctx context.Context, out chan<- Reading) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(s.cfg.Broker)
	opts.SetClientID(s.cfg.ClientID)
	if s.cfg.Username != "" {
		opts.SetUsername(s.cfg.Username)
	}
	if s.cfg.Password != "" {
		opts.SetPassword(s.cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)

	handler := func(_ mqtt.Client, msg mqtt.Message) {
		s.forward(ctx, msg.Topic(), msg.Payload(), out)
	}
	// resubscribe after every (re)connect
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		logger.Printf("MQTT connected to %s", s.cfg.Broker)
		for _, topic := range s.topics {
			if token := c.Subscribe(topic, s.qos, handler); token.Wait() && token.Error() != nil {
				logger.Errorf("failed to subscribe to topic %s: %v", topic, token.Error())
			}
		}
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warnf("MQTT connection lost: %v", err)
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	<-ctx.Done()
	client.Unsubscribe(s.topics...).Wait()
	client.Disconnect(250)
	return ctx.Err()
}

// forward decodes one message; when the channel is full readings are
// dropped so the network callback never blocks.
func (s *MQTTSource) forward(ctx context.Context, topic string, payload []byte, out chan<- Reading) {
	for _, r := range DecodePayload(topic, payload) {
		select {
		case out <- r:
		case <-ctx.Done():
			return
		default:
			if n := s.dropped.Add(1); n%100 == 1 {
				logger.Warnf("reading buffer full, %d readings dropped so far", n)
			}
		}
	}
}
