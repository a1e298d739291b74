package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentFailed    PaymentStatus = "failed"
	PaymentCanceled  PaymentStatus = "canceled"
)

// PaymentRecord is the reconciled ledger row for one logical payment.
// The three Stripe identifiers are each optional but unique when present,
// so whichever notification arrives first can claim the row and every
// later notification converges onto it.
type PaymentRecord struct {
	ID                string          `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	CheckoutSessionID *string         `json:"checkoutSessionId" gorm:"uniqueIndex"`
	PaymentIntentID   *string         `json:"paymentIntentId" gorm:"uniqueIndex"`
	ChargeID          *string         `json:"chargeId" gorm:"uniqueIndex"`
	PlanID            string          `json:"planId" gorm:"type:uuid;not null"`
	UserID            *string         `json:"userId" gorm:"type:uuid"`
	Amount            decimal.Decimal `json:"amount" gorm:"type:decimal(12,2)"`
	Currency          string          `json:"currency" gorm:"type:varchar(8)"`
	Status            PaymentStatus   `json:"status" gorm:"type:varchar(20);default:'pending'"`

	CardBrand    *string `json:"cardBrand"`
	CardFunding  *string `json:"cardFunding"`
	CardLast4    *string `json:"cardLast4"`
	CardExpMonth *int64  `json:"cardExpMonth"`
	CardExpYear  *int64  `json:"cardExpYear"`

	SubscriptionID     *string    `json:"subscriptionId"`
	CustomerID         *string    `json:"customerId"`
	CurrentPeriodStart *time.Time `json:"currentPeriodStart"`
	CurrentPeriodEnd   *time.Time `json:"currentPeriodEnd"`

	RawPayload []byte    `json:"-" gorm:"type:jsonb"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// NextStatus advances the payment state machine. A reported success is
// sticky: nothing demotes a succeeded record. Failure and cancellation
// only apply to records that have not succeeded, and a later success
// reported by the processor supersedes both.
func NextStatus(current, proposed PaymentStatus) PaymentStatus {
	if proposed == "" {
		return current
	}
	switch current {
	case PaymentSucceeded:
		return PaymentSucceeded
	case PaymentFailed, PaymentCanceled:
		if proposed == PaymentSucceeded {
			return PaymentSucceeded
		}
		return current
	default:
		return proposed
	}
}

// AmountFromMinorUnits converts a Stripe minor-unit amount (cents) to the
// major-unit decimal stored on the record, e.g. 4999 -> 49.99.
func AmountFromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}

// NormalizeFunding maps Stripe's card funding value onto the closed set
// stored on the record.
func NormalizeFunding(funding string) string {
	switch strings.ToLower(funding) {
	case "credit", "debit", "prepaid":
		return strings.ToLower(funding)
	default:
		return "unknown"
	}
}

// PaymentPatch is the proposed field set produced by reconciling one
// notification. Nil means "no information", never "clear"; a previously
// known value is only replaced when the patch actually carries a new one.
type PaymentPatch struct {
	CheckoutSessionID *string
	PaymentIntentID   *string
	ChargeID          *string
	UserID            *string

	Amount *decimal.Decimal
	// AmountAuthoritative marks amounts taken from a payment intent or
	// charge. Non-authoritative amounts (bare checkout sessions, browser
	// reports) only fill a record whose amount is still unset.
	AmountAuthoritative bool
	Currency            *string

	Status PaymentStatus

	CardBrand    *string
	CardFunding  *string
	CardLast4    *string
	CardExpMonth *int64
	CardExpYear  *int64

	SubscriptionID     *string
	CustomerID         *string
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time

	RawPayload []byte
}

// ApplyTo merges the patch into the record following the precedence
// rules: fill-if-empty for identity and linkage keys, authoritative-wins
// for money fields, fill-or-override (never clear) for the card and
// period snapshot, and the NextStatus state machine for status.
func (p PaymentPatch) ApplyTo(r *PaymentRecord) {
	if p.CheckoutSessionID != nil && r.CheckoutSessionID == nil {
		r.CheckoutSessionID = p.CheckoutSessionID
	}
	if p.PaymentIntentID != nil && r.PaymentIntentID == nil {
		r.PaymentIntentID = p.PaymentIntentID
	}
	if p.ChargeID != nil && r.ChargeID == nil {
		r.ChargeID = p.ChargeID
	}
	if p.UserID != nil && r.UserID == nil {
		r.UserID = p.UserID
	}

	if p.Amount != nil && (p.AmountAuthoritative || r.Amount.IsZero()) {
		r.Amount = *p.Amount
	}
	if p.Currency != nil && (p.AmountAuthoritative || r.Currency == "") {
		r.Currency = strings.ToLower(*p.Currency)
	}

	r.Status = NextStatus(r.Status, p.Status)

	if p.CardBrand != nil {
		r.CardBrand = p.CardBrand
	}
	if p.CardFunding != nil {
		r.CardFunding = p.CardFunding
	}
	if p.CardLast4 != nil {
		r.CardLast4 = p.CardLast4
	}
	if p.CardExpMonth != nil {
		r.CardExpMonth = p.CardExpMonth
	}
	if p.CardExpYear != nil {
		r.CardExpYear = p.CardExpYear
	}

	if p.SubscriptionID != nil {
		r.SubscriptionID = p.SubscriptionID
	}
	if p.CustomerID != nil {
		r.CustomerID = p.CustomerID
	}
	if p.CurrentPeriodStart != nil {
		r.CurrentPeriodStart = p.CurrentPeriodStart
	}
	if p.CurrentPeriodEnd != nil {
		r.CurrentPeriodEnd = p.CurrentPeriodEnd
	}

	if len(p.RawPayload) > 0 {
		r.RawPayload = p.RawPayload
	}
}
