package rabbitmq

import (
	"context"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// Handler processes one message received on a subscription.
type Handler func(topic string, message mqtt.Message) error

// IConsumer subscribes a handler and blocks until ctx is done.
type IConsumer interface {
	ConsumeMessage(ctx context.Context)
	SetHandler(handler Handler)
}

// Consumer subscribes one topic filter of the shared client.
type Consumer struct {
	client  mqtt.Client
	handler Handler
	topic   string
	logger  *zap.Logger
}

func NewConsumer(client mqtt.Client, topic string, handler Handler, logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{client: client, topic: topic, handler: handler, logger: logger}
}

func (c *Consumer) SetHandler(handler Handler) {
	c.handler = handler
}

// qosFor is 1 on request and result topics, 0 elsewhere.
func qosFor(topic string) byte {
	t := strings.TrimSpace(topic)
	if strings.HasPrefix(t, "cropsense/request") || strings.HasPrefix(t, "cropsense/result") {
		return 1
	}
	return 0
}

// ConsumeMessage subscribes to the topic and dispatches to the handler.
// It blocks until the context is cancelled, then unsubscribes.
func (c *Consumer) ConsumeMessage(ctx context.Context) {
	token := c.client.Subscribe(c.topic, qosFor(c.topic), func(_ mqtt.Client, message mqtt.Message) {
		if c.handler == nil {
			c.logger.Warn("no handler set", zap.String("topic", c.topic))
			return
		}
		if err := c.handler(c.topic, message); err != nil {
			c.logger.Error("error handling message", zap.String("topic", message.Topic()), zap.Error(err))
		}
	})
	if token.Wait() && token.Error() != nil {
		c.logger.Error("error subscribing", zap.String("topic", c.topic), zap.Error(token.Error()))
		return
	}
	c.logger.Info("subscribed", zap.String("topic", c.topic))

	<-ctx.Done()

	c.client.Unsubscribe(c.topic).Wait()
}
