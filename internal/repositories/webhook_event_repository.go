package repositories

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"spreadchecker/internal/models/db_models"
)

type WebhookEventRepository interface {
	// MarkProcessed records the event id and reports whether it had been
	// seen before. Insert-first: the unique key makes replays no-ops even
	// when two deliveries race.
	MarkProcessed(ctx context.Context, eventID string, eventType string) (alreadySeen bool, err error)
	// Forget removes the mark so the processor's redelivery of the same
	// event is handled again after a failed dispatch.
	Forget(ctx context.Context, eventID string) error
}

type webhookEventRepository struct {
	db *gorm.DB
}

func NewWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &webhookEventRepository{
		db: db,
	}
}

func (r *webhookEventRepository) MarkProcessed(ctx context.Context, eventID string, eventType string) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&db_models.WebhookEvent{
			ID:        eventID,
			EventType: eventType,
		})

	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 0, nil
}

func (r *webhookEventRepository) Forget(ctx context.Context, eventID string) error {
	return r.db.WithContext(ctx).
		Delete(&db_models.WebhookEvent{}, "id = ?", eventID).Error
}
