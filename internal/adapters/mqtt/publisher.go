// Package mqtt publishes newly stored readings to an MQTT broker.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/quentinrf/budwatch/internal/display"
	"github.com/quentinrf/budwatch/internal/domain"
)

const (
	qos            = 0
	connectTimeout = 10 * time.Second
	disconnectMs   = 250
)

// Message is the JSON payload of a published reading
type Message struct {
	SensorID     string    `json:"sensor_id"`
	ObservedAt   time.Time `json:"observed_at"`
	TemperatureF float64   `json:"temperature_f"`
	TemperatureC float64   `json:"temperature_c"`
	Humidity     float64   `json:"humidity"`
}

// Publisher sends each reading to {topic}/{sensor_id}
// This implements the ports.ReadingPublisher interface
type Publisher struct {
	client pahomqtt.Client
	topic  string
}

// Connect dials the broker and returns a publisher.
// The client reconnects on its own after the first successful connection.
func Connect(broker, topic string) (*Publisher, error) {
	opts := pahomqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID("budwatch-" + uuid.NewString()).
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
			log.Warn().Err(err).Str("broker", broker).Msg("mqtt connection lost")
		}).
		SetOnConnectHandler(func(pahomqtt.Client) {
			log.Info().Str("broker", broker).Msg("mqtt connected")
		})

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("connect to %s: timed out", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", broker, err)
	}

	return NewPublisher(client, topic), nil
}

// NewPublisher wraps an already configured client
func NewPublisher(client pahomqtt.Client, topic string) *Publisher {
	return &Publisher{
		client: client,
		topic:  strings.TrimSuffix(topic, "/"),
	}
}

// PublishReading sends one reading and waits for the broker or ctx
func (p *Publisher) PublishReading(ctx context.Context, reading *domain.Reading) error {
	payload, err := Encode(reading)
	if err != nil {
		return err
	}

	token := p.client.Publish(p.Topic(reading.SensorID), qos, false, payload)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return fmt.Errorf("publish %s: %w", reading.SensorID, ctx.Err())
	}
}

// Topic returns the topic for a sensor
func (p *Publisher) Topic(sensorID string) string {
	return p.topic + "/" + sensorID
}

// Close disconnects from the broker
func (p *Publisher) Close() error {
	if p.client == nil {
		return errors.New("publisher not connected")
	}
	p.client.Disconnect(disconnectMs)
	return nil
}

// Encode builds the JSON payload for a reading
func Encode(reading *domain.Reading) ([]byte, error) {
	payload, err := json.Marshal(Message{
		SensorID:     reading.SensorID,
		ObservedAt:   reading.ObservedAt.UTC(),
		TemperatureF: reading.TemperatureF,
		TemperatureC: display.Celsius(reading.TemperatureF),
		Humidity:     reading.HumidityPct,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal reading: %w", err)
	}
	return payload, nil
}
