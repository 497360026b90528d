package booking

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// PaymentProof is the gateway's evidence that a payment succeeded.
type PaymentProof struct {
	OrderID   string
	PaymentID string
	Signature string
}

// NewPaymentProof trims and requires every field.
func NewPaymentProof(orderID string, paymentID string, signature string) (PaymentProof, error) {
	proof := PaymentProof{
		OrderID:   strings.TrimSpace(orderID),
		PaymentID: strings.TrimSpace(paymentID),
		Signature: strings.TrimSpace(signature),
	}
	if proof.OrderID == "" || proof.PaymentID == "" || proof.Signature == "" {
		return PaymentProof{}, fmt.Errorf("%w: order id, payment id and signature are required", ErrInvalidPaymentProof)
	}
	return proof, nil
}

// Verifier checks gateway signatures against a shared secret.
type Verifier struct {
	secret []byte
}

// NewVerifier builds a Verifier. The secret may not be empty.
func NewVerifier(secret string) (*Verifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("%w: gateway secret is empty", ErrInvalidServiceConfig)
	}
	return &Verifier{secret: []byte(secret)}, nil
}

// Sign returns hex(HMAC-SHA256(secret, orderID|paymentID)).
func (verifier *Verifier) Sign(orderID string, paymentID string) string {
	mac := hmac.New(sha256.New, verifier.secret)
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify compares the proof's signature with the expected one in constant time.
func (verifier *Verifier) Verify(proof PaymentProof) error {
	expected := verifier.Sign(proof.OrderID, proof.PaymentID)
	if !hmac.Equal([]byte(expected), []byte(proof.Signature)) {
		return ErrPaymentVerificationFailed
	}
	return nil
}
