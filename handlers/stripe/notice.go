package stripe

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/amitthakurameotech-cmyk/subscription-plan/models"

	stripe "github.com/stripe/stripe-go/v82"
)

// paymentNotice is the immutable, normalized view of one notification
// about a logical payment, whatever channel it arrived through. Each
// handler builds a notice and hands it to the reconciler; the notice is
// never mutated, the reconciler derives a patch from it.
type paymentNotice struct {
	kind string

	checkoutSessionID string
	paymentIntentID   string
	chargeID          string

	planID string
	userID string

	amountMinor int64
	// amountAuthoritative is true for amounts read from a payment intent
	// or charge; session and browser amounts only fill empty records.
	amountAuthoritative bool
	currency            string

	status models.PaymentStatus

	card *cardSnapshot

	subscriptionID string
	customerID     string
	periodStart    *time.Time
	periodEnd      *time.Time

	// allowFallback permits the plan+amount identity fallback for this
	// notice. Enabled for channels that may arrive before any record
	// with a strong identifier exists.
	allowFallback bool

	raw json.RawMessage
}

type cardSnapshot struct {
	brand    string
	funding  string
	last4    string
	expMonth int64
	expYear  int64
}

func cardFromCharge(ch *stripe.Charge) *cardSnapshot {
	if ch == nil || ch.PaymentMethodDetails == nil || ch.PaymentMethodDetails.Card == nil {
		return nil
	}
	card := ch.PaymentMethodDetails.Card
	return &cardSnapshot{
		brand:    strings.ToLower(string(card.Brand)),
		funding:  models.NormalizeFunding(string(card.Funding)),
		last4:    card.Last4,
		expMonth: card.ExpMonth,
		expYear:  card.ExpYear,
	}
}

// planFromMetadata pulls the catalog plan reference out of the object
// metadata. Checkout sessions additionally carry it as the client
// reference id.
func planFromMetadata(metadata map[string]string) string {
	if metadata == nil {
		return ""
	}
	return metadata["plan_id"]
}

func noticeFromCheckoutSession(session *stripe.CheckoutSession, raw json.RawMessage) paymentNotice {
	n := paymentNotice{
		kind:              "checkout.session.completed",
		checkoutSessionID: session.ID,
		planID:            planFromMetadata(session.Metadata),
		amountMinor:       session.AmountTotal,
		currency:          string(session.Currency),
		status:            models.PaymentPending,
		allowFallback:     true,
		raw:               raw,
	}
	if n.planID == "" {
		n.planID = session.ClientReferenceID
	}
	if session.PaymentStatus == "paid" {
		n.status = models.PaymentSucceeded
	}
	if session.PaymentIntent != nil {
		n.paymentIntentID = session.PaymentIntent.ID
	}
	if session.Customer != nil {
		n.customerID = session.Customer.ID
	}
	if session.Subscription != nil {
		n.subscriptionID = session.Subscription.ID
	}
	return n
}

func noticeFromPaymentIntent(pi *stripe.PaymentIntent, status models.PaymentStatus, raw json.RawMessage) paymentNotice {
	amount := pi.Amount
	if pi.AmountReceived > 0 {
		amount = pi.AmountReceived
	}
	n := paymentNotice{
		kind:                "payment_intent",
		paymentIntentID:     pi.ID,
		planID:              planFromMetadata(pi.Metadata),
		amountMinor:         amount,
		amountAuthoritative: true,
		currency:            string(pi.Currency),
		status:              status,
		card:                cardFromCharge(pi.LatestCharge),
		raw:                 raw,
	}
	if pi.LatestCharge != nil {
		n.chargeID = pi.LatestCharge.ID
	}
	if pi.Customer != nil {
		n.customerID = pi.Customer.ID
	}
	return n
}

func noticeFromCharge(ch *stripe.Charge, raw json.RawMessage) paymentNotice {
	n := paymentNotice{
		kind:                "charge.succeeded",
		chargeID:            ch.ID,
		planID:              planFromMetadata(ch.Metadata),
		amountMinor:         ch.Amount,
		amountAuthoritative: true,
		currency:            string(ch.Currency),
		status:              models.PaymentSucceeded,
		card:                cardFromCharge(ch),
		raw:                 raw,
	}
	if ch.PaymentIntent != nil {
		n.paymentIntentID = ch.PaymentIntent.ID
	}
	if ch.Customer != nil {
		n.customerID = ch.Customer.ID
	}
	return n
}

// invoicePayload is the slice of the invoice object the reconciler needs.
// Decoded locally because the subscription reference moved between Stripe
// API versions (top level vs parent.subscription_details).
type invoicePayload struct {
	ID            string            `json:"id"`
	AmountPaid    int64             `json:"amount_paid"`
	Currency      string            `json:"currency"`
	Customer      string            `json:"customer"`
	PaymentIntent string            `json:"payment_intent"`
	Subscription  string            `json:"subscription"`
	Metadata      map[string]string `json:"metadata"`
	Parent        *struct {
		SubscriptionDetails *struct {
			Subscription string            `json:"subscription"`
			Metadata     map[string]string `json:"metadata"`
		} `json:"subscription_details"`
	} `json:"parent"`
}

func (inv invoicePayload) subscriptionID() string {
	if inv.Parent != nil && inv.Parent.SubscriptionDetails != nil && inv.Parent.SubscriptionDetails.Subscription != "" {
		return inv.Parent.SubscriptionDetails.Subscription
	}
	return inv.Subscription
}

func noticeFromInvoice(inv invoicePayload, raw json.RawMessage) paymentNotice {
	planID := planFromMetadata(inv.Metadata)
	if planID == "" && inv.Parent != nil && inv.Parent.SubscriptionDetails != nil {
		planID = planFromMetadata(inv.Parent.SubscriptionDetails.Metadata)
	}
	return paymentNotice{
		kind:                "invoice.payment_succeeded",
		paymentIntentID:     inv.PaymentIntent,
		planID:              planID,
		amountMinor:         inv.AmountPaid,
		amountAuthoritative: true,
		currency:            inv.Currency,
		status:              models.PaymentSucceeded,
		subscriptionID:      inv.subscriptionID(),
		customerID:          inv.Customer,
		raw:                 raw,
	}
}

// subscriptionPayload is the slice of the subscription object used to
// keep billing-period bounds current. The period fields moved onto the
// items in newer Stripe API versions, so both locations are read.
type subscriptionPayload struct {
	ID                 string            `json:"id"`
	Customer           string            `json:"customer"`
	Status             string            `json:"status"`
	CurrentPeriodStart int64             `json:"current_period_start"`
	CurrentPeriodEnd   int64             `json:"current_period_end"`
	Metadata           map[string]string `json:"metadata"`
	Items              struct {
		Data []struct {
			CurrentPeriodStart int64 `json:"current_period_start"`
			CurrentPeriodEnd   int64 `json:"current_period_end"`
		} `json:"data"`
	} `json:"items"`
}

func (sub subscriptionPayload) period() (*time.Time, *time.Time) {
	start, end := sub.CurrentPeriodStart, sub.CurrentPeriodEnd
	if start == 0 && end == 0 && len(sub.Items.Data) > 0 {
		start, end = sub.Items.Data[0].CurrentPeriodStart, sub.Items.Data[0].CurrentPeriodEnd
	}
	return unixTime(start), unixTime(end)
}

func unixTime(ts int64) *time.Time {
	if ts == 0 {
		return nil
	}
	t := time.Unix(ts, 0).UTC()
	return &t
}
