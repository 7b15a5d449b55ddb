package db_models

// WebhookEvent marks a processor event as processed. The provider's event id
// is the primary key, so a redelivered event fails the insert and is dropped
// instead of double-applying a seat change or notification.
type WebhookEvent struct {
	ID         string `gorm:"primaryKey"`
	EventType  string `gorm:"index"`
	ReceivedAt int64  `gorm:"autoCreateTime"`
}
