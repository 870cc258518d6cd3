package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sanosuguru/go-event-ticket-checkout/internal/domain/order"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/domain/seathold"
)

// AuditLog は監査ログの1件
type AuditLog struct {
	ID        string    `bson:"_id"`
	Action    string    `bson:"action"`
	Subject   string    `bson:"subject"`
	Timestamp time.Time `bson:"timestamp"`
	Data      bson.M    `bson:"data"`
}

// Inserter は監査ログの書き込み先
type Inserter interface {
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
}

// AuditLogger は保留・注文の操作履歴を audit_logs に残す
type AuditLogger struct {
	coll Inserter
	now  func() time.Time
}

// Connect は MongoDB に接続する
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("MongoDB接続に失敗: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("MongoDB疎通確認に失敗: %w", err)
	}
	return client, nil
}

func NewAuditLogger(db *mongo.Database) *AuditLogger {
	return NewAuditLoggerWith(db.Collection("audit_logs"), time.Now)
}

func NewAuditLoggerWith(coll Inserter, now func() time.Time) *AuditLogger {
	return &AuditLogger{coll: coll, now: now}
}

func (a *AuditLogger) log(ctx context.Context, action, subject string, data bson.M) error {
	entry := AuditLog{
		ID:        uuid.NewString(),
		Action:    action,
		Subject:   subject,
		Timestamp: a.now(),
		Data:      data,
	}
	if _, err := a.coll.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("監査ログ保存に失敗: %w", err)
	}
	return nil
}

// RecordHold は座席保留の作成・更新・解放を記録する
func (a *AuditLogger) RecordHold(ctx context.Context, action string, h *seathold.SeatHold) error {
	return a.log(ctx, action, h.Code, bson.M{
		"event_id":    h.EventID,
		"schedule_id": h.EventScheduleID,
		"seats":       h.SeatNames,
		"expire_at":   h.ExpireAt,
		"ip":          h.ClientMeta.IP,
		"user_agent":  h.ClientMeta.UserAgent,
	})
}

// RecordOrder は注文の作成・状態変更を記録する
func (a *AuditLogger) RecordOrder(ctx context.Context, action string, o *order.Order) error {
	return a.log(ctx, action, o.OrderCode, bson.M{
		"order_id": o.ID,
		"user_id":  o.UserID,
		"status":   string(o.Status),
		"total":    o.Total,
		"discount": o.TotalDiscount,
		"currency": o.Currency,
		"promo":    o.PromotionCode,
	})
}
