package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/dheerurajpoot/quote-generator-sub001/internal/domain/ports/adapter"
)

var _ adapter.SignatureVerifier = (*SignatureVerifier)(nil)

// Sign returns the hex HMAC-SHA256 of payload under secret.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyWebhook checks signature against the HMAC of the exact raw body.
// A malformed signature is a mismatch, never an error.
func VerifyWebhook(rawBody []byte, signature, secret string) bool {
	if secret == "" {
		return false
	}
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil || len(got) != sha256.Size {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	return hmac.Equal(got, mac.Sum(nil))
}

// VerifyPaymentSignature checks a checkout confirmation, signed over "orderID|paymentID".
func VerifyPaymentSignature(orderID, paymentID, signature, secret string) bool {
	if orderID == "" || paymentID == "" {
		return false
	}
	return VerifyWebhook([]byte(orderID+"|"+paymentID), signature, secret)
}

// SignatureVerifier binds the gateway secrets so callers never handle them.
type SignatureVerifier struct {
	webhookSecret string
	keySecret     string
}

func NewSignatureVerifier(webhookSecret, keySecret string) *SignatureVerifier {
	return &SignatureVerifier{webhookSecret: webhookSecret, keySecret: keySecret}
}

func (v *SignatureVerifier) VerifyWebhook(rawBody []byte, signature string) bool {
	return VerifyWebhook(rawBody, signature, v.webhookSecret)
}

func (v *SignatureVerifier) VerifyPayment(orderID, paymentID, signature string) bool {
	return VerifyPaymentSignature(orderID, paymentID, signature, v.keySecret)
}
