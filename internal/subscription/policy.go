// Package subscription resolves membership tiers and the booking quota they grant.
package subscription

import (
	"context"
	"fmt"

	"github.com/m3rciful/fitbot/internal/model"
)

// Quota limits how many active bookings a user may hold. MaxActive 0 means no limit.
type Quota struct {
	MaxActive int
}

// Unlimited reports whether the quota has no ceiling.
func (q Quota) Unlimited() bool { return q.MaxActive <= 0 }

// Allows reports whether one more booking fits next to active ones.
func (q Quota) Allows(active int) bool {
	return q.Unlimited() || active < q.MaxActive
}

// QuotaForTier is the only place that maps tiers to quotas.
func QuotaForTier(t model.Tier) Quota {
	switch t {
	case model.TierPremium:
		return Quota{}
	default:
		return Quota{MaxActive: 1}
	}
}

// Reader loads stored subscriptions.
type Reader interface {
	GetSubscription(ctx context.Context, userID int64) (model.Subscription, bool, error)
}

// Policy answers tier and quota questions for a user.
type Policy struct {
	reader Reader
}

// NewPolicy builds a Policy over r.
func NewPolicy(r Reader) *Policy {
	return &Policy{reader: r}
}

// GetTier returns the user's tier. A user without a subscription is on TierNone.
func (p *Policy) GetTier(ctx context.Context, userID int64) (model.Tier, error) {
	return tierOf(ctx, p.reader, userID)
}

func tierOf(ctx context.Context, r Reader, userID int64) (model.Tier, error) {
	sub, ok, err := r.GetSubscription(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("load subscription: %w", err)
	}
	if !ok || sub.Tier == "" {
		return model.TierNone, nil
	}
	return sub.Tier, nil
}

// QuotaFor resolves the tier of userID and the quota it grants.
func (p *Policy) QuotaFor(ctx context.Context, userID int64) (model.Tier, Quota, error) {
	return p.QuotaWith(ctx, p.reader, userID)
}

// QuotaWith is QuotaFor with subscriptions read through r instead of the
// policy's own reader, typically an open transaction.
func (p *Policy) QuotaWith(ctx context.Context, r Reader, userID int64) (model.Tier, Quota, error) {
	tier, err := tierOf(ctx, r, userID)
	if err != nil {
		return "", Quota{}, err
	}
	return tier, QuotaForTier(tier), nil
}
