package stripe

import (
	"errors"
	"fmt"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

var (
	// ErrMissingSecret is a configuration error: the endpoint cannot
	// authenticate anything without the signing secret.
	ErrMissingSecret = errors.New("stripe: webhook signing secret is not configured")
	// ErrMissingSignature means the request carried no Stripe-Signature header.
	ErrMissingSignature = errors.New("stripe: missing Stripe-Signature header")
	// ErrInvalidSignature means cryptographic verification of the payload failed.
	ErrInvalidSignature = errors.New("stripe: webhook signature verification failed")
)

// SignatureVerifier authenticates webhook payloads against the shared
// signing secret. Verification runs over the exact bytes read from the
// wire; the payload must never be re-serialized before this point.
type SignatureVerifier struct {
	secret string
}

// NewSignatureVerifier fails when no secret is configured so the
// misconfiguration is caught at startup rather than on the first event.
func NewSignatureVerifier(secret string) (*SignatureVerifier, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	return &SignatureVerifier{secret: secret}, nil
}

// Verify checks the signature header against the raw payload and returns
// the decoded event.
func (v *SignatureVerifier) Verify(payload []byte, signatureHeader string) (stripe.Event, error) {
	if v == nil || v.secret == "" {
		return stripe.Event{}, ErrMissingSecret
	}
	if signatureHeader == "" {
		return stripe.Event{}, ErrMissingSignature
	}

	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return event, nil
}
