package models

import "time"

// ReferralCode maps a Telegram user to their shareable code. One code per
// user, issued lazily on the first generate call and never changed.
type ReferralCode struct {
	UserID    string    `gorm:"type:varchar(36);primaryKey" json:"user_id"`
	Code      string    `gorm:"type:varchar(16);uniqueIndex;not null" json:"code"`
	CreatedAt time.Time `json:"created_at"`
}
