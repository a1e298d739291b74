package stripe

import (
	"time"

	"github.com/amitthakurameotech-cmyk/subscription-plan/config"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

// ProcessorClient is the slice of the Stripe API the payment handlers
// use. Keeping it an interface lets tests substitute a fake without
// touching the network.
type ProcessorClient interface {
	GetPaymentIntent(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	GetCheckoutSession(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	NewCheckoutSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	GetCustomer(id string, params *stripe.CustomerParams) (*stripe.Customer, error)
	NewCustomer(params *stripe.CustomerParams) (*stripe.Customer, error)
}

type apiClient struct {
	api *client.API
}

// NewProcessorClient builds a Stripe client bound to the configured
// secret key.
func NewProcessorClient(apiKey string) ProcessorClient {
	api := &client.API{}
	api.Init(apiKey, nil)
	return &apiClient{api: api}
}

func (c *apiClient) GetPaymentIntent(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	return c.api.PaymentIntents.Get(id, params)
}

func (c *apiClient) GetCheckoutSession(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	return c.api.CheckoutSessions.Get(id, params)
}

func (c *apiClient) NewCheckoutSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	return c.api.CheckoutSessions.New(params)
}

func (c *apiClient) GetCustomer(id string, params *stripe.CustomerParams) (*stripe.Customer, error) {
	return c.api.Customers.Get(id, params)
}

func (c *apiClient) NewCustomer(params *stripe.CustomerParams) (*stripe.Customer, error) {
	return c.api.Customers.New(params)
}

// Handler owns the payment endpoints. The verifier and processor client
// are constructed once from validated settings and injected here instead
// of being read from globals on the request path.
type Handler struct {
	verifier  *SignatureVerifier
	processor ProcessorClient

	// OnScheduleExpiring is invoked when Stripe announces that a
	// subscription schedule is about to end, so a collaborator can
	// notify the account holder. Optional.
	OnScheduleExpiring func(planID string, expiresAt time.Time)
}

// NewHandler wires the payment handlers from the startup settings.
func NewHandler(cfg *config.Settings) (*Handler, error) {
	verifier, err := NewSignatureVerifier(cfg.StripeWebhookSecret)
	if err != nil {
		return nil, err
	}
	return &Handler{
		verifier:  verifier,
		processor: NewProcessorClient(cfg.StripeSecretKey),
	}, nil
}
