// Package referral holds the referral subsystem: code registry, start
// parameter codec, relation bookkeeping and bonus payout.
package referral

import (
	"errors"
	"time"

	"github.com/goldvein/goldvein/internal/models"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"gorm.io/gorm"
)

var (
	ErrCodeNotFound = errors.New("referral code not found")
	ErrSelfReferral = errors.New("cannot use your own referral code")
)

// codeAlphabet is the base64url character set, so generated codes are safe
// inside deep links without escaping.
const (
	codeAlphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"
	codeLength      = 16
	maxCodeAttempts = 5
)

// Store is the persistence handle shared by the referral components. It is
// constructed once and passed in, never a package-level singleton.
type Store struct {
	db    *gorm.DB
	nowFn func() time.Time
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:    db,
		nowFn: time.Now,
	}
}

// GetOrCreateCode returns the user's referral code, generating and persisting
// one on the first call. Idempotent after first creation.
func (s *Store) GetOrCreateCode(userID string) (*models.ReferralCode, error) {
	var existing models.ReferralCode
	err := s.db.First(&existing, "user_id = ?", userID).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	code, err := s.newCode()
	if err != nil {
		return nil, err
	}

	record := models.ReferralCode{
		UserID:    userID,
		Code:      code,
		CreatedAt: s.nowFn(),
	}
	if err := s.db.Create(&record).Error; err != nil {
		// Lost a race against a concurrent first call for the same user:
		// the primary key rejected us, so the winner's row exists.
		if lookupErr := s.db.First(&existing, "user_id = ?", userID).Error; lookupErr == nil {
			return &existing, nil
		}
		return nil, err
	}

	return &record, nil
}

// FindOwnerByCode is the reverse lookup from a code to its owner.
func (s *Store) FindOwnerByCode(code string) (*models.ReferralCode, error) {
	var record models.ReferralCode
	err := s.db.First(&record, "code = ?", code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCodeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// newCode generates a 16-character token over the base64url alphabet and
// checks it against existing codes, retrying on collision. After 5 collisions
// the last candidate is used anyway; the unique index remains the backstop.
func (s *Store) newCode() (string, error) {
	var code string
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		candidate, err := gonanoid.Generate(codeAlphabet, codeLength)
		if err != nil {
			return "", err
		}
		code = candidate

		var count int64
		if err := s.db.Model(&models.ReferralCode{}).Where("code = ?", candidate).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return candidate, nil
		}
	}
	return code, nil
}
