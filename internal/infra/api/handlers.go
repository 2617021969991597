package api

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dheerurajpoot/quote-generator-sub001/internal/domain"
	"github.com/dheerurajpoot/quote-generator-sub001/internal/domain/model"
	"github.com/dheerurajpoot/quote-generator-sub001/internal/usecase"
)

// EntitlementService is the user-facing and webhook side of the entitlement use case.
type EntitlementService interface {
	SubmitUPIPayment(ctx context.Context, in usecase.SubmitUPIInput) (*model.Subscription, *model.Transaction, error)
	CreateOrder(ctx context.Context, in usecase.CreateOrderInput) (*usecase.OrderResult, error)
	VerifyCheckout(ctx context.Context, orderID, paymentID, signature string) (*model.Subscription, error)
	CancelActive(ctx context.Context, userID string) (*model.Subscription, error)
	GetEntitlement(ctx context.Context, userID string) (*usecase.Entitlement, error)
	History(ctx context.Context, userID string) ([]*model.Subscription, error)
	HandleWebhook(ctx context.Context, rawBody []byte, signature string) error
}

// AdminService backs the review queue endpoints.
type AdminService interface {
	ListPending(ctx context.Context, status string, page, limit int) (*usecase.PendingList, error)
	VerifyPayment(ctx context.Context, paymentID, action, adminID, notes string) (*model.Subscription, *model.Transaction, error)
	Stats(ctx context.Context, now time.Time) (*usecase.Stats, error)
}

type Handler struct {
	subs  EntitlementService
	admin AdminService
	log   *zerolog.Logger
}

func NewHandler(subs EntitlementService, admin AdminService, logger *zerolog.Logger) *Handler {
	l := logger.With().Str("component", "api").Logger()
	return &Handler{subs: subs, admin: admin, log: &l}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, h.log, err)
}

func (h *Handler) handleSubmitUPI(w http.ResponseWriter, r *http.Request) {
	var req upiPaymentRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	sub, txn, err := h.subs.SubmitUPIPayment(r.Context(), usecase.SubmitUPIInput{
		UserID:        req.UserID,
		PlanID:        req.PlanID,
		PlanName:      req.PlanName,
		Amount:        req.Amount,
		BillingCycle:  req.BillingCycle,
		TransactionID: req.TransactionID,
		UPIID:         req.UPIID,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, upiPaymentResponse{
		Success:       true,
		Message:       "Payment submitted for verification",
		PaymentID:     sub.ID,
		TransactionID: txn.TransactionID,
	})
}

func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.subs.CreateOrder(r.Context(), usecase.CreateOrderInput{
		UserID:       req.UserID,
		PlanID:       req.PlanID,
		BillingCycle: req.BillingCycle,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, orderResponse{
		OrderID:   res.OrderID,
		Amount:    res.Amount,
		Currency:  res.Currency,
		KeyID:     res.KeyID,
		PaymentID: res.SubscriptionID,
	})
}

func (h *Handler) handleVerifyCheckout(w http.ResponseWriter, r *http.Request) {
	var req verifyCheckoutRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	sub, err := h.subs.VerifyCheckout(r.Context(), req.OrderID, req.PaymentID, req.Signature)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	sub, err := h.subs.CancelActive(r.Context(), req.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (h *Handler) handleEntitlement(w http.ResponseWriter, r *http.Request) {
	ent, err := h.subs.GetEntitlement(r.Context(), r.URL.Query().Get("userId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ent)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	items, err := h.subs.History(r.Context(), r.URL.Query().Get("userId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if items == nil {
		items = []*model.Subscription{}
	}
	writeJSON(w, http.StatusOK, historyResponse{Items: items})
}

// handleWebhook must see the exact bytes the gateway signed, so the body is
// read raw and never re-encoded.
func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		h.fail(w, r, domain.ErrInvalidArgument)
		return
	}
	sig := r.Header.Get("X-Gateway-Signature")
	if sig == "" {
		sig = r.Header.Get("X-Razorpay-Signature")
	}
	if err := h.subs.HandleWebhook(r.Context(), body, sig); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func (h *Handler) handleListPending(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	res, err := h.admin.ListPending(r.Context(), q.Get("status"), page, limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleVerifyPayment(w http.ResponseWriter, r *http.Request) {
	var req verifyPaymentRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	adminID := strings.TrimSpace(req.AdminID)
	if adminID == "" {
		adminID = AdminFromContext(r.Context())
	}
	sub, txn, err := h.admin.VerifyPayment(r.Context(), req.PaymentID, req.Action, adminID, req.AdminNotes)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, decisionResponse{Success: true, Subscription: sub, Transaction: txn})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.admin.Stats(r.Context(), time.Now().UTC())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Time: time.Now().UTC()})
}
