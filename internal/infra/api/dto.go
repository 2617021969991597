package api

import (
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/dheerurajpoot/quote-generator-sub001/internal/domain/model"
)

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type upiPaymentRequest struct {
	UserID        string `json:"userId" validate:"required,max=64"`
	PlanID        string `json:"planId" validate:"required,max=64"`
	PlanName      string `json:"planName" validate:"max=128"`
	Amount        int64  `json:"amount" validate:"gte=0"`
	BillingCycle  string `json:"billingCycle" validate:"required"`
	TransactionID string `json:"transactionId" validate:"required,max=128"`
	UPIID         string `json:"upiId" validate:"required,max=128"`
}

type upiPaymentResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	PaymentID     string `json:"paymentId"`
	TransactionID string `json:"transactionId"`
}

type orderRequest struct {
	UserID       string `json:"userId" validate:"required,max=64"`
	PlanID       string `json:"planId" validate:"required,max=64"`
	BillingCycle string `json:"billingCycle" validate:"required"`
}

type orderResponse struct {
	OrderID   string `json:"orderId"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	KeyID     string `json:"keyId"`
	PaymentID string `json:"paymentId"`
}

type verifyCheckoutRequest struct {
	OrderID   string `json:"order_id" validate:"required"`
	PaymentID string `json:"payment_id" validate:"required"`
	Signature string `json:"signature" validate:"required"`
}

type cancelRequest struct {
	UserID string `json:"userId" validate:"required,max=64"`
}

type verifyPaymentRequest struct {
	PaymentID  string `json:"paymentId" validate:"required"`
	Action     string `json:"action" validate:"required"`
	AdminNotes string `json:"adminNotes" validate:"max=1000"`
	AdminID    string `json:"adminId"`
}

type decisionResponse struct {
	Success      bool                `json:"success"`
	Subscription *model.Subscription `json:"subscription"`
	Transaction  *model.Transaction  `json:"transaction"`
}

type historyResponse struct {
	Items []*model.Subscription `json:"items"`
}

type healthResponse struct {
	Status string    `json:"status"`
	Time   time.Time `json:"time"`
}

type errorBody struct {
	Error   string `json:"error"`
	TraceID string `json:"traceId,omitempty"`
}
