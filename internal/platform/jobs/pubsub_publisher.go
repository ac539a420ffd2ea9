package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"

	"github.com/itszainshop-byte/zain/internal/services"
)

// PubSubDeliveryPublisher publishes delivery lifecycle events to a Pub/Sub
// topic for downstream consumers (notifications, analytics, sync jobs).
type PubSubDeliveryPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

var _ services.DeliveryEventPublisher = (*PubSubDeliveryPublisher)(nil)

// NewPubSubDeliveryPublisher constructs a Pub/Sub backed delivery event publisher.
func NewPubSubDeliveryPublisher(topic *pubsub.Topic) (*PubSubDeliveryPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub delivery publisher: topic is required")
	}
	return &PubSubDeliveryPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

type deliveryEventMessage struct {
	Type           string         `json:"type"`
	OrderID        string         `json:"orderId"`
	OrderNumber    string         `json:"orderNumber,omitempty"`
	CompanyID      string         `json:"companyId,omitempty"`
	CompanyCode    string         `json:"companyCode,omitempty"`
	TrackingNumber string         `json:"trackingNumber,omitempty"`
	DeliveryStatus string         `json:"deliveryStatus,omitempty"`
	OccurredAt     time.Time      `json:"occurredAt"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// PublishDeliveryEvent enqueues a delivery event message on the configured topic.
func (p *PubSubDeliveryPublisher) PublishDeliveryEvent(ctx context.Context, event services.DeliveryEvent) error {
	if p == nil || p.topic == nil {
		return errors.New("pubsub delivery publisher: not initialised")
	}

	data, err := p.marshal(deliveryEventMessage{
		Type:           event.Type,
		OrderID:        event.OrderID,
		OrderNumber:    event.OrderNumber,
		CompanyID:      event.CompanyID,
		CompanyCode:    event.CompanyCode,
		TrackingNumber: event.TrackingNumber,
		DeliveryStatus: event.DeliveryStatus,
		OccurredAt:     event.OccurredAt.UTC(),
		Metadata:       event.Metadata,
	})
	if err != nil {
		return fmt.Errorf("marshal delivery event: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "type", event.Type)
	setAttr(attrs, "orderId", event.OrderID)
	setAttr(attrs, "companyCode", event.CompanyCode)
	setAttr(attrs, "deliveryStatus", event.DeliveryStatus)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish delivery event: %w", err)
	}
	return nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
