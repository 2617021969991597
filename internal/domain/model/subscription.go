package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/dheerurajpoot/quote-generator-sub001/internal/domain"
)

type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
)

type SubscriptionStatus string

const (
	SubscriptionStatusPending  SubscriptionStatus = "pending"
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
	SubscriptionStatusRejected SubscriptionStatus = "rejected"
	SubscriptionStatusExpired  SubscriptionStatus = "expired"
)

// ParseSubscriptionStatus accepts the canonical names only.
func ParseSubscriptionStatus(s string) (SubscriptionStatus, error) {
	switch st := SubscriptionStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case SubscriptionStatusPending, SubscriptionStatusActive, SubscriptionStatusCanceled,
		SubscriptionStatusRejected, SubscriptionStatusExpired:
		return st, nil
	}
	return "", fmt.Errorf("%w: unknown status %q", domain.ErrInvalidArgument, s)
}

type BillingCycle string

const (
	BillingCycleMonthly  BillingCycle = "monthly"
	BillingCycleAnnually BillingCycle = "annually"
)

func ParseBillingCycle(s string) (BillingCycle, error) {
	switch c := BillingCycle(strings.ToLower(strings.TrimSpace(s))); c {
	case BillingCycleMonthly, BillingCycleAnnually:
		return c, nil
	}
	return "", fmt.Errorf("%w: invalid billing cycle %q", domain.ErrInvalidArgument, s)
}

// Period is the entitlement window granted on activation.
func (c BillingCycle) Period() time.Duration {
	if c == BillingCycleAnnually {
		return 365 * 24 * time.Hour
	}
	return 30 * 24 * time.Hour
}

type PaymentMethod string

const (
	PaymentMethodUPI      PaymentMethod = "upi"
	PaymentMethodRazorpay PaymentMethod = "razorpay"
)

// Subscription is a user's entitlement record. A new record is created for every
// payment attempt; records are never deleted by the normal flow.
type Subscription struct {
	ID           string             `json:"id"`
	UserID       string             `json:"userId"`
	PlanID       string             `json:"planId"`
	PlanName     string             `json:"planName"`
	Tier         Tier               `json:"tier"`
	Status       SubscriptionStatus `json:"status"`
	BillingCycle BillingCycle       `json:"billingCycle"`
	Amount       int64              `json:"amount"`
	Currency     string             `json:"currency"`

	CurrentPeriodStart time.Time `json:"currentPeriodStart"`
	CurrentPeriodEnd   time.Time `json:"currentPeriodEnd"`

	PaymentMethod         PaymentMethod `json:"paymentMethod"`
	UPIID                 string        `json:"upiId,omitempty"`
	TransactionID         string        `json:"transactionId"`
	GatewayOrderID        string        `json:"gatewayOrderId,omitempty"`
	GatewayPaymentID      string        `json:"gatewayPaymentId,omitempty"`
	GatewaySubscriptionID string        `json:"gatewaySubscriptionId,omitempty"`
	AutoRenew             bool          `json:"autoRenew"`

	AdminNotes  string     `json:"adminNotes,omitempty"`
	VerifiedBy  string     `json:"verifiedBy,omitempty"`
	VerifiedAt  *time.Time `json:"verifiedAt,omitempty"`
	CancelledAt *time.Time `json:"cancelledAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Version is bumped on every successful save; a stale value makes the save fail.
	Version int64 `json:"-"`
}

// NewPendingSubscription builds the record created on a payment submission or a
// gateway order. The period is provisional and is recomputed on activation.
func NewPendingSubscription(id, userID string, plan *Plan, cycle BillingCycle, amount int64, method PaymentMethod, now time.Time) (*Subscription, error) {
	if id == "" || userID == "" || plan == nil || amount <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	if _, err := ParseBillingCycle(string(cycle)); err != nil {
		return nil, err
	}
	return &Subscription{
		ID:                 id,
		UserID:             userID,
		PlanID:             plan.ID,
		PlanName:           plan.Name,
		Tier:               plan.Tier,
		Status:             SubscriptionStatusPending,
		BillingCycle:       cycle,
		Amount:             amount,
		Currency:           plan.Currency,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now,
		PaymentMethod:      method,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

// Activate moves a pending record to active and opens a fresh entitlement window.
func (s *Subscription) Activate(now time.Time) error {
	if err := s.transition(SubscriptionStatusActive); err != nil {
		return err
	}
	s.CurrentPeriodStart = now
	s.CurrentPeriodEnd = now.Add(s.BillingCycle.Period())
	s.AutoRenew = true
	s.UpdatedAt = now
	return nil
}

// Reject closes a pending record without granting anything.
func (s *Subscription) Reject(adminID, notes string, now time.Time) error {
	if err := s.transition(SubscriptionStatusRejected); err != nil {
		return err
	}
	s.stampVerification(adminID, notes, now)
	return nil
}

// Cancel ends an active record, e.g. when superseded by a newer activation.
func (s *Subscription) Cancel(now time.Time) error {
	if err := s.transition(SubscriptionStatusCanceled); err != nil {
		return err
	}
	s.AutoRenew = false
	s.CancelledAt = &now
	s.UpdatedAt = now
	return nil
}

// Expire ends an active record whose period is over.
func (s *Subscription) Expire(now time.Time) error {
	if err := s.transition(SubscriptionStatusExpired); err != nil {
		return err
	}
	s.AutoRenew = false
	s.UpdatedAt = now
	return nil
}

func (s *Subscription) stampVerification(adminID, notes string, now time.Time) {
	s.VerifiedBy = adminID
	s.VerifiedAt = &now
	if notes != "" {
		s.AdminNotes = notes
	}
	s.UpdatedAt = now
}

// Verify stamps the audit fields of a manual verification.
func (s *Subscription) Verify(adminID, notes string, now time.Time) {
	s.stampVerification(adminID, notes, now)
}

func (s *Subscription) transition(to SubscriptionStatus) error {
	if !CanTransition(s.Status, to) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidState, s.Status, to)
	}
	s.Status = to
	return nil
}

// IsEntitled reports whether the record grants access at the given instant.
func (s *Subscription) IsEntitled(at time.Time) bool {
	return s.Status == SubscriptionStatusActive && at.Before(s.CurrentPeriodEnd)
}

// SyncFromGateway overwrites status and period with the provider's absolute
// values. An empty status keeps the current one; zero times keep the current
// period. Applying the same values twice is a no-op. Reports whether anything changed.
func (s *Subscription) SyncFromGateway(status SubscriptionStatus, start, end, now time.Time) (bool, error) {
	changed := false
	if status != "" && status != s.Status {
		if err := s.transition(status); err != nil {
			return false, err
		}
		if status != SubscriptionStatusActive {
			s.AutoRenew = false
		}
		if status == SubscriptionStatusCanceled {
			s.CancelledAt = &now
		}
		changed = true
	}
	if !start.IsZero() && !start.Equal(s.CurrentPeriodStart) {
		s.CurrentPeriodStart = start
		changed = true
	}
	if !end.IsZero() && !end.Equal(s.CurrentPeriodEnd) {
		s.CurrentPeriodEnd = end
		changed = true
	}
	if changed {
		s.UpdatedAt = now
	}
	return changed, nil
}
