package handlers

import (
	"errors"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/goldvein/goldvein/internal/models"
	"github.com/goldvein/goldvein/internal/referral"

	"github.com/gin-gonic/gin"
)

type generateRequest struct {
	Campaign string `json:"campaign"`
}

type generateResponse struct {
	ReferralCode string         `json:"referralCode"`
	Links        referral.Links `json:"links"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// GenerateCode issues (or returns) the caller's referral code together with
// the shareable link variants.
func (h *Handlers) GenerateCode(c *gin.Context) {
	user := h.currentUser(c)

	var req generateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}

	record, err := h.store.GetOrCreateCode(user.Key())
	if err != nil {
		h.internalError(c, err)
		return
	}

	payload := referral.EncodePayload(record.Code, req.Campaign)
	links := referral.BuildLinks(h.config.BotUsername, h.config.MiniAppName, payload)

	c.JSON(http.StatusOK, generateResponse{
		ReferralCode: record.Code,
		Links:        links,
		CreatedAt:    record.CreatedAt,
	})
}

type validateRequest struct {
	StartParam string `json:"startParam"`
}

// ValidateReferral claims a referral for the calling user from a deep-link
// start parameter. The first successful claim wins; repeats are a soft
// conflict, answered with 200 and valid:false.
func (h *Handlers) ValidateReferral(c *gin.Context) {
	user := h.currentUser(c)

	var req validateRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.StartParam) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "startParam is required"})
		return
	}

	payload := referral.DecodePayload(strings.TrimSpace(req.StartParam))
	if !payload.IsReferral || payload.Code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "not a referral payload"})
		return
	}

	owner, err := h.store.FindOwnerByCode(payload.Code)
	if errors.Is(err, referral.ErrCodeNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "referral code not found"})
		return
	}
	if err != nil {
		h.internalError(c, err)
		return
	}

	if owner.UserID == user.Key() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot use your own referral code"})
		return
	}

	result, err := h.store.CreateRelation(owner.UserID, referral.ReferredUser{
		ID:        user.Key(),
		Username:  user.Username,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	}, payload.Campaign)
	if errors.Is(err, referral.ErrSelfReferral) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot use your own referral code"})
		return
	}
	if err != nil {
		h.internalError(c, err)
		return
	}

	if !result.Created {
		c.JSON(http.StatusOK, gin.H{
			"valid":      false,
			"reason":     "already_referred",
			"referrerId": result.Relation.ReferrerID,
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"valid":        true,
		"referrerId":   owner.UserID,
		"referralCode": payload.Code,
		"campaign":     payload.Campaign,
	})
}

type referralInfo struct {
	ReferredUserID string     `json:"referredUserId"`
	Username       string     `json:"username,omitempty"`
	FirstName      string     `json:"firstName,omitempty"`
	LastName       string     `json:"lastName,omitempty"`
	Campaign       string     `json:"campaign,omitempty"`
	TotalEarned    int64      `json:"totalEarned"`
	LastBonusAt    *time.Time `json:"lastBonusAt,omitempty"`
	LastActivityAt *time.Time `json:"lastActivityAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

type statsResponse struct {
	TotalReferrals  int            `json:"totalReferrals"`
	ActiveReferrals int            `json:"activeReferrals"`
	TotalEarned     int64          `json:"totalEarned"`
	Referrals       []referralInfo `json:"referrals"`
}

// ReferralStats reports the caller's referral totals and per-relation detail,
// most recent first.
func (h *Handlers) ReferralStats(c *gin.Context) {
	user := h.currentUser(c)

	stats, err := h.store.StatsFor(user.Key())
	if err != nil {
		h.internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, statsResponse{
		TotalReferrals:  stats.TotalReferrals,
		ActiveReferrals: stats.ActiveReferrals,
		TotalEarned:     stats.TotalEarned,
		Referrals:       referralInfos(stats.Referrals),
	})
}

func referralInfos(relations []models.ReferralRelation) []referralInfo {
	infos := make([]referralInfo, 0, len(relations))
	for _, r := range relations {
		infos = append(infos, referralInfo{
			ReferredUserID: r.ReferredUserID,
			Username:       r.ReferredUsername,
			FirstName:      r.ReferredFirstName,
			LastName:       r.ReferredLastName,
			Campaign:       r.Campaign,
			TotalEarned:    r.TotalEarned,
			LastBonusAt:    r.LastBonusAt,
			LastActivityAt: r.LastActivityAt,
			CreatedAt:      r.CreatedAt,
		})
	}
	return infos
}

type rewardRequest struct {
	GoldEarned float64 `json:"goldEarned"`
}

// AwardReward pays the caller's referrer their cut of freshly earned gold.
func (h *Handlers) AwardReward(c *gin.Context) {
	user := h.currentUser(c)

	var req rewardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if math.IsNaN(req.GoldEarned) || math.IsInf(req.GoldEarned, 0) || req.GoldEarned <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "goldEarned must be a positive finite number"})
		return
	}

	result, err := h.store.AwardBonus(user.Key(), req.GoldEarned)
	if err != nil {
		h.internalError(c, err)
		return
	}

	if result.ReferrerID == "" {
		c.JSON(http.StatusOK, gin.H{"awarded": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"awarded":    result.Awarded,
		"bonus":      result.Bonus,
		"referrerId": result.ReferrerID,
	})
}
