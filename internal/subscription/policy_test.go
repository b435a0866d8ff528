package subscription

import (
	"context"
	"errors"
	"testing"

	"github.com/m3rciful/fitbot/internal/model"
)

type stubReader struct {
	subs map[int64]model.Subscription
	err  error
}

func (s stubReader) GetSubscription(_ context.Context, userID int64) (model.Subscription, bool, error) {
	if s.err != nil {
		return model.Subscription{}, false, s.err
	}
	sub, ok := s.subs[userID]
	return sub, ok, nil
}

func TestQuotaForTier(t *testing.T) {
	if q := QuotaForTier(model.TierNone); q.MaxActive != 1 || q.Allows(1) || !q.Allows(0) {
		t.Fatalf("none quota = %+v", q)
	}
	if q := QuotaForTier(model.TierTrial); q.MaxActive != 1 {
		t.Fatalf("trial quota = %+v", q)
	}
	q := QuotaForTier(model.TierPremium)
	if !q.Unlimited() || !q.Allows(100) {
		t.Fatalf("premium quota = %+v", q)
	}
}

func TestPolicyDefaultsToNone(t *testing.T) {
	p := NewPolicy(stubReader{subs: map[int64]model.Subscription{
		7: {UserID: 7, Tier: model.TierPremium},
	}})
	tier, q, err := p.QuotaFor(context.Background(), 7)
	if err != nil || tier != model.TierPremium || !q.Unlimited() {
		t.Fatalf("user 7: tier=%q quota=%+v err=%v", tier, q, err)
	}
	tier, err = p.GetTier(context.Background(), 8)
	if err != nil || tier != model.TierNone {
		t.Fatalf("user 8: tier=%q err=%v", tier, err)
	}
}

func TestPolicyWrapsReaderError(t *testing.T) {
	boom := errors.New("boom")
	if _, err := NewPolicy(stubReader{err: boom}).GetTier(context.Background(), 1); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped boom", err)
	}
}

func TestQuotaWithUsesGivenReader(t *testing.T) {
	p := NewPolicy(stubReader{err: errors.New("unused")})
	r := stubReader{subs: map[int64]model.Subscription{3: {UserID: 3, Tier: model.TierPremium}}}
	tier, q, err := p.QuotaWith(context.Background(), r, 3)
	if err != nil || tier != model.TierPremium || !q.Unlimited() {
		t.Fatalf("tier=%q quota=%+v err=%v", tier, q, err)
	}
}
