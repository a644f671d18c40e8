package rabbitmq

import (
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// IPublisher publishes a payload on a fixed topic.
type IPublisher interface {
	PublishMessage(message interface{}) error
	PublishTo(topic string, message interface{}) error
	Topic() string
}

// Publisher publishes on one MQTT topic of the shared client.
type Publisher struct {
	client mqtt.Client
	topic  string
	qos    byte
}

func NewPublisher(client mqtt.Client, topic string) *Publisher {
	return &Publisher{client: client, topic: topic, qos: qosFor(topic)}
}

func (p *Publisher) Topic() string { return p.topic }

// PublishMessage accepts a string or a byte slice.
func (p *Publisher) PublishMessage(message interface{}) error {
	return p.publish(p.topic, p.qos, message)
}

// PublishTo publishes on another topic, with the QoS of that topic.
func (p *Publisher) PublishTo(topic string, message interface{}) error {
	return p.publish(topic, qosFor(topic), message)
}

func (p *Publisher) publish(topic string, qos byte, message interface{}) error {
	var payload []byte
	switch m := message.(type) {
	case string:
		payload = []byte(m)
	case []byte:
		payload = m
	default:
		return fmt.Errorf("invalid message format %T, expected string or []byte", message)
	}

	token := p.client.Publish(topic, qos, false, payload)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("failed to publish message on %s: %w", topic, token.Error())
	}
	return nil
}
