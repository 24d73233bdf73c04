package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/librariashqip/libraria-backend/pkg/enums"
)

// UserSubscription is a buyer's purchased window on a subscription plan.
// CurrentAccessCount is the throttle counter: it must satisfy
// 0 <= current <= Subscription.MaxConcurrent at all times, which is why it is
// only ever mutated through guarded conditional updates.
type UserSubscription struct {
	ID             uuid.UUID                    `gorm:"column:id;type:uuid;primaryKey"`
	BuyerID        uuid.UUID                    `gorm:"column:buyer_id;type:uuid;not null;index"`
	SubscriptionID uuid.UUID                    `gorm:"column:subscription_id;type:uuid;not null"`
	Status         enums.UserSubscriptionStatus `gorm:"column:status;type:user_subscription_status;not null;default:'active'"`

	StartsAt time.Time `gorm:"column:starts_at;not null"`
	EndsAt   time.Time `gorm:"column:ends_at;not null"`

	LifetimeAccessCount int64 `gorm:"column:lifetime_access_count;not null;default:0"`
	CurrentAccessCount  int   `gorm:"column:current_access_count;not null;default:0"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// IsCurrentAt reports whether the window covers the given instant.
func (us *UserSubscription) IsCurrentAt(now time.Time) bool {
	return us.Status == enums.UserSubscriptionStatusActive &&
		!now.Before(us.StartsAt) && now.Before(us.EndsAt)
}
