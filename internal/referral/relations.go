package referral

import (
	"errors"

	"github.com/goldvein/goldvein/internal/models"

	"gorm.io/gorm"
)

// ReferredUser is the profile snapshot denormalized onto a new relation.
type ReferredUser struct {
	ID        string
	Username  string
	FirstName string
	LastName  string
}

// CreateResult reports whether a relation was created by this call or an
// earlier one already existed. Repeat validation attempts are a no-op.
type CreateResult struct {
	Created  bool
	Relation *models.ReferralRelation
}

// CreateRelation records the referrer for a referred user. The first
// successful claim wins; any later attempt (same or different referrer)
// returns the winner's relation with Created false.
func (s *Store) CreateRelation(referrerID string, referred ReferredUser, campaign string) (*CreateResult, error) {
	if referrerID == referred.ID {
		return nil, ErrSelfReferral
	}

	var existing models.ReferralRelation
	err := s.db.First(&existing, "referred_user_id = ?", referred.ID).Error
	if err == nil {
		return &CreateResult{Created: false, Relation: &existing}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	relation := models.ReferralRelation{
		ReferrerID:        referrerID,
		ReferredUserID:    referred.ID,
		Campaign:          campaign,
		ReferredUsername:  referred.Username,
		ReferredFirstName: referred.FirstName,
		ReferredLastName:  referred.LastName,
		CreatedAt:         s.nowFn(),
	}
	if err := s.db.Create(&relation).Error; err != nil {
		// The unique index on referred_user_id serializes concurrent
		// claims: if the insert failed, the winner's row is there.
		if lookupErr := s.db.First(&existing, "referred_user_id = ?", referred.ID).Error; lookupErr == nil {
			return &CreateResult{Created: false, Relation: &existing}, nil
		}
		return nil, err
	}

	return &CreateResult{Created: true, Relation: &relation}, nil
}

// GetByReferred returns the relation a referred user belongs to, or nil when
// the user was never referred.
func (s *Store) GetByReferred(referredUserID string) (*models.ReferralRelation, error) {
	var relation models.ReferralRelation
	err := s.db.First(&relation, "referred_user_id = ?", referredUserID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &relation, nil
}

// Stats aggregates a referrer's relations. A referral counts as active once
// it has earned the referrer anything.
type Stats struct {
	TotalReferrals  int
	ActiveReferrals int
	TotalEarned     int64
	Referrals       []models.ReferralRelation
}

// StatsFor lists a referrer's relations, most recent first, with totals.
func (s *Store) StatsFor(referrerID string) (*Stats, error) {
	var relations []models.ReferralRelation
	err := s.db.
		Where("referrer_id = ?", referrerID).
		Order("created_at DESC").
		Find(&relations).Error
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		TotalReferrals: len(relations),
		Referrals:      relations,
	}
	for _, relation := range relations {
		if relation.TotalEarned > 0 {
			stats.ActiveReferrals++
		}
		stats.TotalEarned += relation.TotalEarned
	}
	return stats, nil
}
