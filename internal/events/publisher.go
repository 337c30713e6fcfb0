package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
)

const RedemptionEventType = "discount.redeemed"

// RedemptionEvent announces one discount code consumed by an order. Consumers
// use it to keep external redemption statistics in sync.
type RedemptionEvent struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OrderID    string          `json:"orderId"`
	Code       string          `json:"code"`
	Amount     decimal.Decimal `json:"amount"`
	RedeemedAt time.Time       `json:"redeemedAt"`
}

func NewRedemptionEvent(orderID, code string, amount decimal.Decimal, at time.Time) RedemptionEvent {
	return RedemptionEvent{
		ID:         uuid.NewString(),
		Type:       RedemptionEventType,
		OrderID:    orderID,
		Code:       code,
		Amount:     amount,
		RedeemedAt: at.UTC(),
	}
}

type channelSource interface {
	Get() (*amqp.Channel, error)
	Put(ch *amqp.Channel)
}

type Publisher struct {
	pool      channelSource
	queueName string
	timeout   time.Duration
}

func NewPublisher(pool *ChannelPool, queueName string) *Publisher {
	return &Publisher{
		pool:      pool,
		queueName: queueName,
		timeout:   5 * time.Second,
	}
}

// PublishRedemption sends the event as a persistent JSON message on the
// redemption queue.
func (p *Publisher) PublishRedemption(ctx context.Context, evt RedemptionEvent) error {
	ch, err := p.pool.Get()
	if err != nil {
		return fmt.Errorf("get channel from pool: %w", err)
	}
	defer p.pool.Put(ch)

	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal redemption event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err = ch.PublishWithContext(ctx,
		"",          // exchange
		p.queueName, // routing key (queue name)
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			MessageId:    evt.ID,
			Type:         evt.Type,
			Timestamp:    evt.RedeemedAt,
			Body:         body,
		})
	if err != nil {
		return fmt.Errorf("publish redemption %s/%s: %w", evt.OrderID, evt.Code, err)
	}
	return nil
}
