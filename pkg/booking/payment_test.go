package booking

import (
	"errors"
	"testing"
)

func TestVerifierRoundTrip(test *testing.T) {
	test.Parallel()

	verifier := mustVerifier(test)
	signature := verifier.Sign("order_1", "pay_1")
	if len(signature) != 64 {
		test.Fatalf("expected 64 hex characters, got %d", len(signature))
	}
	if err := verifier.Verify(PaymentProof{OrderID: "order_1", PaymentID: "pay_1", Signature: signature}); err != nil {
		test.Fatalf("expected signature to verify, got %v", err)
	}
}

func TestVerifierRejectsTampering(test *testing.T) {
	test.Parallel()

	verifier := mustVerifier(test)
	signature := verifier.Sign("order_1", "pay_1")
	flipped := []byte(signature)
	if flipped[0] == '0' {
		flipped[0] = '1'
	} else {
		flipped[0] = '0'
	}

	testCases := []struct {
		name  string
		proof PaymentProof
	}{
		{name: "flipped character", proof: PaymentProof{OrderID: "order_1", PaymentID: "pay_1", Signature: string(flipped)}},
		{name: "other payment", proof: PaymentProof{OrderID: "order_1", PaymentID: "pay_2", Signature: signature}},
		{name: "swapped ids", proof: PaymentProof{OrderID: "pay_1", PaymentID: "order_1", Signature: signature}},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			if err := verifier.Verify(testCase.proof); !errors.Is(err, ErrPaymentVerificationFailed) {
				test.Fatalf("expected ErrPaymentVerificationFailed, got %v", err)
			}
		})
	}

	otherVerifier, err := NewVerifier("another-secret")
	if err != nil {
		test.Fatalf("verifier: %v", err)
	}
	if err := otherVerifier.Verify(PaymentProof{OrderID: "order_1", PaymentID: "pay_1", Signature: signature}); !errors.Is(err, ErrPaymentVerificationFailed) {
		test.Fatalf("expected a different secret to fail, got %v", err)
	}
}

func TestNewVerifierRequiresSecret(test *testing.T) {
	test.Parallel()
	if _, err := NewVerifier("  "); !errors.Is(err, ErrInvalidServiceConfig) {
		test.Fatalf("expected ErrInvalidServiceConfig, got %v", err)
	}
	if _, err := NewPaymentProof("order_1", "", "sig"); !errors.Is(err, ErrInvalidPaymentProof) {
		test.Fatalf("expected ErrInvalidPaymentProof, got %v", err)
	}
}
