//go:build !integration

package model

import (
	"errors"
	"testing"
	"time"

	"github.com/dheerurajpoot/quote-generator-sub001/internal/domain"
)

func testPlan(t *testing.T) *Plan {
	t.Helper()
	p, err := NewPlan("premium", "Premium", TierPremium, 499, 4999, "inr")
	if err != nil {
		t.Fatalf("expected no error, but got: %v", err)
	}
	return p
}

// --- Plan Tests ---

func TestNewPlan(t *testing.T) {
	t.Run("should default and normalise currency", func(t *testing.T) {
		p, err := NewPlan("basic", "Basic", TierFree, 0, 0, "")
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if p.Currency != "INR" {
			t.Errorf("expected currency INR, but got %s", p.Currency)
		}
		if up := testPlan(t); up.Currency != "INR" {
			t.Errorf("expected upper-cased currency, but got %s", up.Currency)
		}
	})

	t.Run("should reject an unknown tier", func(t *testing.T) {
		_, err := NewPlan("x", "X", Tier("gold"), 1, 1, "INR")
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, but got %v", err)
		}
	})

	t.Run("should price by billing cycle", func(t *testing.T) {
		p := testPlan(t)
		if p.Price(BillingCycleMonthly) != 499 || p.Price(BillingCycleAnnually) != 4999 {
			t.Errorf("unexpected prices %d/%d", p.Price(BillingCycleMonthly), p.Price(BillingCycleAnnually))
		}
	})
}

func TestCatalogFind(t *testing.T) {
	c := NewCatalog(testPlan(t))
	p, err := c.Find("premium")
	if err != nil {
		t.Fatalf("expected no error, but got: %v", err)
	}
	p.Name = "mutated"
	again, _ := c.Find("premium")
	if again.Name != "Premium" {
		t.Error("expected Find to return a copy")
	}
	if _, err := c.Find("missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, but got %v", err)
	}
}

// --- Enum Tests ---

func TestParseBillingCycle(t *testing.T) {
	if c, err := ParseBillingCycle(" Monthly "); err != nil || c != BillingCycleMonthly {
		t.Errorf("expected monthly, got %q (%v)", c, err)
	}
	if _, err := ParseBillingCycle("weekly"); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, but got %v", err)
	}
	if BillingCycleMonthly.Period() != 30*24*time.Hour {
		t.Error("expected monthly period of 30 days")
	}
	if BillingCycleAnnually.Period() != 365*24*time.Hour {
		t.Error("expected annual period of 365 days")
	}
}

func TestParseSubscriptionStatus(t *testing.T) {
	if s, err := ParseSubscriptionStatus("ACTIVE"); err != nil || s != SubscriptionStatusActive {
		t.Errorf("expected active, got %q (%v)", s, err)
	}
	if _, err := ParseSubscriptionStatus("paused"); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, but got %v", err)
	}
}

// --- Subscription Tests ---

func newPending(t *testing.T, cycle BillingCycle, now time.Time) *Subscription {
	t.Helper()
	s, err := NewPendingSubscription("sub-1", "user-1", testPlan(t), cycle, 499, PaymentMethodUPI, now)
	if err != nil {
		t.Fatalf("expected no error, but got: %v", err)
	}
	return s
}

func TestNewPendingSubscription(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("should start pending with a provisional period", func(t *testing.T) {
		s := newPending(t, BillingCycleMonthly, now)
		if s.Status != SubscriptionStatusPending {
			t.Errorf("expected pending, but got %s", s.Status)
		}
		if !s.CurrentPeriodStart.Equal(now) || !s.CurrentPeriodEnd.Equal(now) {
			t.Error("expected period start and end to equal now")
		}
		if s.Tier != TierPremium || s.PlanName != "Premium" {
			t.Errorf("expected tier and name from the plan, got %s/%s", s.Tier, s.PlanName)
		}
	})

	t.Run("should reject invalid input", func(t *testing.T) {
		cases := []struct {
			name   string
			userID string
			cycle  BillingCycle
			amount int64
		}{
			{"missing user", "", BillingCycleMonthly, 499},
			{"bad cycle", "u", BillingCycle("weekly"), 499},
			{"zero amount", "u", BillingCycleMonthly, 0},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := NewPendingSubscription("id", tc.userID, testPlan(t), tc.cycle, tc.amount, PaymentMethodUPI, now)
				if !errors.Is(err, domain.ErrInvalidArgument) {
					t.Errorf("expected ErrInvalidArgument, but got %v", err)
				}
			})
		}
	})
}

func TestSubscriptionActivate(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	later := now.Add(2 * time.Hour)

	t.Run("monthly adds 30 days from activation time", func(t *testing.T) {
		s := newPending(t, BillingCycleMonthly, now)
		if err := s.Activate(later); err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if !s.CurrentPeriodStart.Equal(later) {
			t.Errorf("expected period start %v, got %v", later, s.CurrentPeriodStart)
		}
		if want := later.AddDate(0, 0, 30); !s.CurrentPeriodEnd.Equal(want) {
			t.Errorf("expected period end %v, got %v", want, s.CurrentPeriodEnd)
		}
		if !s.AutoRenew {
			t.Error("expected autoRenew to be set")
		}
		if !s.IsEntitled(later.Add(time.Hour)) {
			t.Error("expected record to grant access inside the window")
		}
	})

	t.Run("annually adds 365 days", func(t *testing.T) {
		s := newPending(t, BillingCycleAnnually, now)
		_ = s.Activate(now)
		if want := now.AddDate(0, 0, 365); !s.CurrentPeriodEnd.Equal(want) {
			t.Errorf("expected period end %v, got %v", want, s.CurrentPeriodEnd)
		}
	})

	t.Run("cannot activate twice", func(t *testing.T) {
		s := newPending(t, BillingCycleMonthly, now)
		_ = s.Activate(now)
		if err := s.Activate(now); !errors.Is(err, domain.ErrInvalidState) {
			t.Errorf("expected ErrInvalidState, but got %v", err)
		}
	})
}

func TestSubscriptionTerminalStates(t *testing.T) {
	now := time.Now().UTC()

	t.Run("reject stamps audit fields", func(t *testing.T) {
		s := newPending(t, BillingCycleMonthly, now)
		if err := s.Reject("admin-1", "blurry screenshot", now); err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if s.Status != SubscriptionStatusRejected || s.VerifiedBy != "admin-1" || s.VerifiedAt == nil {
			t.Errorf("unexpected record after reject: %+v", s)
		}
		if err := s.Activate(now); !errors.Is(err, domain.ErrInvalidState) {
			t.Errorf("expected rejected to be terminal, but got %v", err)
		}
	})

	t.Run("cancel requires active", func(t *testing.T) {
		s := newPending(t, BillingCycleMonthly, now)
		if err := s.Cancel(now); !errors.Is(err, domain.ErrInvalidState) {
			t.Errorf("expected ErrInvalidState, but got %v", err)
		}
		_ = s.Activate(now)
		if err := s.Cancel(now); err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if s.CancelledAt == nil || s.AutoRenew {
			t.Error("expected cancelledAt set and autoRenew cleared")
		}
	})

	t.Run("expire requires active", func(t *testing.T) {
		s := newPending(t, BillingCycleMonthly, now)
		if err := s.Expire(now); !errors.Is(err, domain.ErrInvalidState) {
			t.Errorf("expected ErrInvalidState, but got %v", err)
		}
	})
}

func TestSyncFromGateway(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	start := now.Add(24 * time.Hour)
	end := start.AddDate(0, 1, 0)

	s := newPending(t, BillingCycleMonthly, now)
	_ = s.Activate(now)

	changed, err := s.SyncFromGateway(SubscriptionStatusActive, start, end, now)
	if err != nil || !changed {
		t.Fatalf("expected first sync to change the record, got changed=%v err=%v", changed, err)
	}
	if !s.CurrentPeriodEnd.Equal(end) {
		t.Errorf("expected period end %v, got %v", end, s.CurrentPeriodEnd)
	}

	changed, err = s.SyncFromGateway(SubscriptionStatusActive, start, end, now.Add(time.Minute))
	if err != nil || changed {
		t.Errorf("expected replay to be a no-op, got changed=%v err=%v", changed, err)
	}

	if _, err := s.SyncFromGateway(SubscriptionStatusCanceled, time.Time{}, time.Time{}, now); err != nil {
		t.Fatalf("expected cancel to apply, got %v", err)
	}
	if s.CancelledAt == nil {
		t.Error("expected cancelledAt to be stamped")
	}
	if changed, err := s.SyncFromGateway(SubscriptionStatusCanceled, time.Time{}, time.Time{}, now); err != nil || changed {
		t.Errorf("expected terminal replay to be a no-op, got changed=%v err=%v", changed, err)
	}
	if _, err := s.SyncFromGateway(SubscriptionStatusActive, time.Time{}, time.Time{}, now); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("expected reactivating a canceled record to fail, got %v", err)
	}
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to SubscriptionStatus
		want     bool
	}{
		{SubscriptionStatusPending, SubscriptionStatusActive, true},
		{SubscriptionStatusPending, SubscriptionStatusRejected, true},
		{SubscriptionStatusActive, SubscriptionStatusCanceled, true},
		{SubscriptionStatusActive, SubscriptionStatusExpired, true},
		{SubscriptionStatusPending, SubscriptionStatusCanceled, false},
		{SubscriptionStatusRejected, SubscriptionStatusActive, false},
		{SubscriptionStatusExpired, SubscriptionStatusActive, false},
		{SubscriptionStatusActive, SubscriptionStatusPending, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

// --- Transaction Tests ---

func TestTransactionSettle(t *testing.T) {
	now := time.Now().UTC()
	sub := newPending(t, BillingCycleMonthly, now)
	sub.UPIID = "alice@okaxis"

	tx, err := NewPendingTransaction("tx-1", sub, "T1")
	if err != nil {
		t.Fatalf("expected no error, but got: %v", err)
	}
	if tx.SubscriptionID != sub.ID || tx.UPIID != "alice@okaxis" || tx.Status != TransactionStatusPending {
		t.Errorf("expected ledger entry to mirror the subscription, got %+v", tx)
	}

	if err := tx.Settle(TransactionStatusSuccess, now); err != nil {
		t.Fatalf("expected no error, but got: %v", err)
	}
	if tx.PaidAt == nil {
		t.Error("expected paidAt on success")
	}
	if err := tx.Settle(TransactionStatusRejected, now); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("expected a second settle to fail with ErrInvalidState, got %v", err)
	}

	other, _ := NewPendingTransaction("tx-2", sub, "T2")
	if err := other.Settle(TransactionStatusPending, now); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestNewPagination(t *testing.T) {
	cases := []struct{ total, limit, pages int }{
		{0, 10, 0}, {1, 10, 1}, {10, 10, 1}, {11, 10, 2}, {101, 100, 2},
	}
	for _, tc := range cases {
		if p := NewPagination(1, tc.limit, tc.total); p.Pages != tc.pages {
			t.Errorf("total=%d limit=%d: expected %d pages, got %d", tc.total, tc.limit, tc.pages, p.Pages)
		}
	}
}
