package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/LeonardoBeccarini/cropsense/internal/model"
	"github.com/LeonardoBeccarini/cropsense/pkg/rabbitmq"
)

// ResultPublisher publishes completed analyses on a per-PIN topic.
type ResultPublisher struct {
	pub       rabbitmq.IPublisher
	topicTmpl string
}

func NewResultPublisher(pub rabbitmq.IPublisher, topicTmpl string) *ResultPublisher {
	if strings.TrimSpace(topicTmpl) == "" {
		topicTmpl = DefaultResultTopic
	}
	return &ResultPublisher{pub: pub, topicTmpl: topicTmpl}
}

func (p *ResultPublisher) Topic(pin string) string {
	return strings.NewReplacer("{pin}", pin).Replace(p.topicTmpl)
}

func (p *ResultPublisher) Deliver(_ context.Context, ev model.AnalysisCompletedEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return p.pub.PublishTo(p.Topic(ev.PinCode), b)
}
