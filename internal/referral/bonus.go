package referral

import (
	"math"

	"github.com/goldvein/goldvein/internal/models"

	"gorm.io/gorm"
)

// Referrers earn 10% of their referred users' gold, rounded down to whole
// units. Fractions below one unit award nothing.
const bonusRate = 0.10

// maxBonus caps a single payout. Anything above it would push the float
// arithmetic outside the range where int64 conversion is exact.
const maxBonus = int64(1) << 53

// BonusResult reports the outcome of a payout attempt. ReferrerID is empty
// when the earning user has no referrer at all.
type BonusResult struct {
	Awarded    bool
	Bonus      int64
	ReferrerID string
}

// AwardBonus pays the referrer's cut of a referred user's earnings. The
// increment runs as a single SQL update, so concurrent awards for different
// referred users of the same referrer cannot lose each other's bonuses.
func (s *Store) AwardBonus(referredUserID string, goldEarned float64) (*BonusResult, error) {
	relation, err := s.GetByReferred(referredUserID)
	if err != nil {
		return nil, err
	}
	if relation == nil {
		return &BonusResult{Awarded: false}, nil
	}

	raw := math.Floor(goldEarned * bonusRate)
	var bonus int64
	switch {
	case math.IsNaN(raw):
		bonus = 0
	case raw >= float64(maxBonus):
		bonus = maxBonus
	default:
		bonus = int64(raw)
	}
	if bonus <= 0 {
		return &BonusResult{Awarded: false, Bonus: 0, ReferrerID: relation.ReferrerID}, nil
	}

	now := s.nowFn()
	err = s.db.Model(&models.ReferralRelation{}).
		Where("id = ?", relation.ID).
		Updates(map[string]any{
			"total_earned":     gorm.Expr("total_earned + ?", bonus),
			"last_bonus_at":    now,
			"last_activity_at": now,
		}).Error
	if err != nil {
		return nil, err
	}

	return &BonusResult{Awarded: true, Bonus: bonus, ReferrerID: relation.ReferrerID}, nil
}
