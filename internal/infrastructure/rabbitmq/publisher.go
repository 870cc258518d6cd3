package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/sanosuguru/go-event-ticket-checkout/internal/domain/order"
)

// ルーティングキー
const (
	KeyOrderCreated  = "order.created"
	KeyOrderStatusFn = "order.%s"
)

// OrderMessage は注文イベントのメッセージ本文
type OrderMessage struct {
	OrderCode  string    `json:"orderCode"`
	Status     string    `json:"status"`
	Total      int64     `json:"total"`
	Currency   string    `json:"currency"`
	Email      string    `json:"email"`
	ExpireAt   time.Time `json:"expireAt"`
	OccurredAt time.Time `json:"occurredAt"`
}

func newOrderMessage(o *order.Order) OrderMessage {
	return OrderMessage{
		OrderCode:  o.OrderCode,
		Status:     string(o.Status),
		Total:      o.Total,
		Currency:   o.Currency,
		Email:      o.Customer.Email,
		ExpireAt:   o.ExpireAt,
		OccurredAt: o.UpdatedAt,
	}
}

// Channel は Publisher が使う amqp.Channel の操作
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher は注文イベントを topic exchange に送る
type Publisher struct {
	ch       Channel
	exchange string
}

// Dial は接続してチャネルを開き exchange を宣言する
func Dial(url, exchange string) (*Publisher, *amqp.Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("RabbitMQ接続に失敗: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("チャネル作成に失敗: %w", err)
	}
	p, err := NewPublisher(ch, exchange)
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	return p, conn, nil
}

func NewPublisher(ch Channel, exchange string) (*Publisher, error) {
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("exchange宣言に失敗: %w", err)
	}
	return &Publisher{ch: ch, exchange: exchange}, nil
}

// OrderCreated は注文作成を通知する
func (p *Publisher) OrderCreated(ctx context.Context, o *order.Order) error {
	return p.publish(ctx, KeyOrderCreated, newOrderMessage(o))
}

// OrderStatusChanged は注文の状態変更を order.<status> で通知する
func (p *Publisher) OrderStatusChanged(ctx context.Context, o *order.Order) error {
	return p.publish(ctx, fmt.Sprintf(KeyOrderStatusFn, o.Status), newOrderMessage(o))
}

func (p *Publisher) publish(ctx context.Context, key string, msg OrderMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("メッセージ変換に失敗: %w", err)
	}
	err = p.ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    msg.OccurredAt,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("メッセージ送信に失敗: %w", err)
	}
	return nil
}

// Close はチャネルを閉じる
func (p *Publisher) Close() error {
	return p.ch.Close()
}
