package stripe

import (
	"errors"
	"fmt"
	"strings"

	"github.com/amitthakurameotech-cmyk/subscription-plan/models"
	"github.com/amitthakurameotech-cmyk/subscription-plan/store"
	"github.com/amitthakurameotech-cmyk/subscription-plan/utils"

	stripe "github.com/stripe/stripe-go/v82"
)

// reconcile merges one notification into the ledger. It enriches sparse
// notices from the processor, derives the identity filter and the field
// patch, and funnels both through the store's atomic upsert. A notice
// that cannot be tied to any record or plan is acknowledged as a no-op;
// convergence then relies on a later, better-identified delivery.
func (h *Handler) reconcile(n paymentNotice) (*models.PaymentRecord, error) {
	n = h.enrich(n)

	record, err := store.UpsertPayment(filterFromNotice(n), patchFromNotice(n))
	if err != nil {
		if errors.Is(err, store.ErrPlanRequired) || errors.Is(err, store.ErrNoIdentity) {
			utils.LogWarn(fmt.Sprintf("%s: no matching record and not enough identity to create one (pi=%s session=%s)",
				n.kind, n.paymentIntentID, n.checkoutSessionID))
			return nil, nil
		}
		return nil, fmt.Errorf("reconcile %s: %w", n.kind, err)
	}
	return record, nil
}

// enrich fetches payment-intent detail (with the latest charge expanded)
// for notices that carry only an intent id. The fetch is best-effort: on
// failure the merge proceeds with the fields already known, and the
// error is logged with enough context for a later backfill.
func (h *Handler) enrich(n paymentNotice) paymentNotice {
	if h == nil || h.processor == nil {
		return n
	}
	if n.paymentIntentID == "" || (n.card != nil && n.chargeID != "") {
		return n
	}

	params := &stripe.PaymentIntentParams{}
	params.AddExpand("latest_charge")
	pi, err := h.processor.GetPaymentIntent(n.paymentIntentID, params)
	if err != nil {
		utils.LogError(err, fmt.Sprintf("%s: payment intent enrichment failed (pi=%s), merging partial fields",
			n.kind, n.paymentIntentID))
		return n
	}

	if pi.LatestCharge != nil && n.chargeID == "" {
		n.chargeID = pi.LatestCharge.ID
	}
	if n.card == nil {
		n.card = cardFromCharge(pi.LatestCharge)
	}
	if amount := pi.AmountReceived; amount > 0 {
		n.amountMinor = amount
		n.amountAuthoritative = true
	} else if pi.Amount > 0 && n.amountMinor == 0 {
		n.amountMinor = pi.Amount
		n.amountAuthoritative = true
	}
	if c := string(pi.Currency); c != "" {
		n.currency = c
	}
	if n.customerID == "" && pi.Customer != nil {
		n.customerID = pi.Customer.ID
	}
	return n
}

func filterFromNotice(n paymentNotice) store.PaymentFilter {
	return store.PaymentFilter{
		PaymentIntentID:   n.paymentIntentID,
		CheckoutSessionID: n.checkoutSessionID,
		ChargeID:          n.chargeID,
		PlanID:            n.planID,
		Amount:            models.AmountFromMinorUnits(n.amountMinor),
		AllowFallback:     n.allowFallback,
	}
}

func patchFromNotice(n paymentNotice) models.PaymentPatch {
	p := models.PaymentPatch{
		Status:              n.status,
		AmountAuthoritative: n.amountAuthoritative,
		RawPayload:          n.raw,
	}

	if n.checkoutSessionID != "" {
		p.CheckoutSessionID = strPtr(n.checkoutSessionID)
	}
	if n.paymentIntentID != "" {
		p.PaymentIntentID = strPtr(n.paymentIntentID)
	}
	if n.chargeID != "" {
		p.ChargeID = strPtr(n.chargeID)
	}
	if n.userID != "" {
		p.UserID = strPtr(n.userID)
	}

	if n.amountMinor > 0 {
		amount := models.AmountFromMinorUnits(n.amountMinor)
		p.Amount = &amount
	}
	if n.currency != "" {
		p.Currency = strPtr(strings.ToLower(n.currency))
	}

	if n.card != nil {
		if n.card.brand != "" {
			p.CardBrand = strPtr(n.card.brand)
		}
		if n.card.funding != "" {
			p.CardFunding = strPtr(n.card.funding)
		}
		if n.card.last4 != "" {
			p.CardLast4 = strPtr(n.card.last4)
		}
		if n.card.expMonth != 0 {
			p.CardExpMonth = int64Ptr(n.card.expMonth)
		}
		if n.card.expYear != 0 {
			p.CardExpYear = int64Ptr(n.card.expYear)
		}
	}

	if n.subscriptionID != "" {
		p.SubscriptionID = strPtr(n.subscriptionID)
	}
	if n.customerID != "" {
		p.CustomerID = strPtr(n.customerID)
	}
	p.CurrentPeriodStart = n.periodStart
	p.CurrentPeriodEnd = n.periodEnd

	return p
}

func strPtr(s string) *string { return &s }

func int64Ptr(n int64) *int64 { return &n }
