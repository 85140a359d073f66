package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReferralRelation links a referred user to exactly one referrer. The unique
// index on ReferredUserID is what enforces "at most one referrer per user":
// the first successful insert wins, forever.
type ReferralRelation struct {
	ID             string `gorm:"type:varchar(36);primaryKey" json:"id"`
	ReferrerID     string `gorm:"type:varchar(36);not null;index" json:"referrer_id"`
	ReferredUserID string `gorm:"type:varchar(36);uniqueIndex;not null" json:"referred_user_id"`
	Campaign       string `gorm:"type:varchar(32)" json:"campaign,omitempty"`

	// Snapshot of the referred user's profile at relation-creation time.
	ReferredUsername  string `gorm:"type:varchar(100)" json:"referred_username,omitempty"`
	ReferredFirstName string `gorm:"type:varchar(100)" json:"referred_first_name,omitempty"`
	ReferredLastName  string `gorm:"type:varchar(100)" json:"referred_last_name,omitempty"`

	TotalEarned    int64      `gorm:"not null;default:0" json:"total_earned"`
	LastBonusAt    *time.Time `json:"last_bonus_at,omitempty"`
	LastActivityAt *time.Time `json:"last_activity_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func (r *ReferralRelation) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return nil
}
