package model

import (
	"fmt"
	"time"

	"github.com/dheerurajpoot/quote-generator-sub001/internal/domain"
)

type TransactionStatus string

const (
	TransactionStatusPending  TransactionStatus = "pending"
	TransactionStatusSuccess  TransactionStatus = "success"
	TransactionStatusRejected TransactionStatus = "rejected"
	TransactionStatusFailed   TransactionStatus = "failed"
)

// Transaction is the ledger entry of one payment attempt. It is created together
// with its Subscription and leaves pending exactly once.
type Transaction struct {
	ID             string            `json:"id"`
	SubscriptionID string            `json:"subscriptionId"`
	UserID         string            `json:"userId"`
	Amount         int64             `json:"amount"`
	Currency       string            `json:"currency"`
	Status         TransactionStatus `json:"status"`
	PaymentMethod  PaymentMethod     `json:"paymentMethod"`
	TransactionID  string            `json:"transactionId"` // external reference, unique
	UPIID          string            `json:"upiId,omitempty"`

	PlanName     string       `json:"planName"`
	BillingCycle BillingCycle `json:"billingCycle"`
	AdminNotes   string       `json:"adminNotes,omitempty"`
	VerifiedBy   string       `json:"verifiedBy,omitempty"`
	VerifiedAt   *time.Time   `json:"verifiedAt,omitempty"`
	PaidAt       *time.Time   `json:"paidAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewPendingTransaction mirrors the descriptive fields of its subscription.
func NewPendingTransaction(id string, sub *Subscription, externalID string) (*Transaction, error) {
	if id == "" || sub == nil || externalID == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &Transaction{
		ID:             id,
		SubscriptionID: sub.ID,
		UserID:         sub.UserID,
		Amount:         sub.Amount,
		Currency:       sub.Currency,
		Status:         TransactionStatusPending,
		PaymentMethod:  sub.PaymentMethod,
		TransactionID:  externalID,
		UPIID:          sub.UPIID,
		PlanName:       sub.PlanName,
		BillingCycle:   sub.BillingCycle,
		CreatedAt:      sub.CreatedAt,
		UpdatedAt:      sub.CreatedAt,
	}, nil
}

// Settle moves a pending entry to a terminal status.
func (t *Transaction) Settle(status TransactionStatus, now time.Time) error {
	if t.Status != TransactionStatusPending {
		return fmt.Errorf("%w: transaction already %s", domain.ErrInvalidState, t.Status)
	}
	switch status {
	case TransactionStatusSuccess:
		t.PaidAt = &now
	case TransactionStatusRejected, TransactionStatusFailed:
	default:
		return fmt.Errorf("%w: cannot settle as %s", domain.ErrInvalidArgument, status)
	}
	t.Status = status
	t.UpdatedAt = now
	return nil
}

func (t *Transaction) Verify(adminID, notes string, now time.Time) {
	t.VerifiedBy = adminID
	t.VerifiedAt = &now
	if notes != "" {
		t.AdminNotes = notes
	}
	t.UpdatedAt = now
}

// PendingPayment is a subscription awaiting review joined with its ledger entry
// and the owner's identity.
type PendingPayment struct {
	Subscription *Subscription `json:"subscription"`
	Transaction  *Transaction  `json:"transaction,omitempty"`
	UserName     string        `json:"userName"`
	UserEmail    string        `json:"userEmail"`
}

type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

func NewPagination(page, limit, total int) Pagination {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Pagination{Page: page, Limit: limit, Total: total, Pages: pages}
}
