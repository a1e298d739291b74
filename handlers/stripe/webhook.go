package stripe

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/amitthakurameotech-cmyk/subscription-plan/models"
	"github.com/amitthakurameotech-cmyk/subscription-plan/utils"

	"github.com/gin-gonic/gin"
	stripe "github.com/stripe/stripe-go/v82"
)

const maxWebhookBodyBytes = int64(65536)

// HandleWebhook receives asynchronous payment events from Stripe.
// @Summary Stripe webhook endpoint
// @Description Verifies the Stripe signature and reconciles the event into the payment ledger. Unknown event types are acknowledged as no-ops.
// @Tags payments
// @Accept json
// @Produce json
// @Success 200 {object} map[string]string "message: event outcome"
// @Failure 400 {object} map[string]string "error: signature verification failed"
// @Failure 500 {object} map[string]string "error: processing error"
// @Router /stripe/webhook [post]
func (h *Handler) HandleWebhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes)

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Could not read the request body"})
		return
	}

	event, err := h.verifier.Verify(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, ErrMissingSecret) {
			utils.LogError(err, "Webhook received while the signing secret is missing")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Webhook secret not configured"})
			return
		}
		utils.LogError(err, "Stripe signature verification failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Stripe signature verification failed"})
		return
	}

	if err := h.dispatch(event); err != nil {
		utils.LogError(err, fmt.Sprintf("Error processing Stripe event %s (%s)", event.ID, event.Type))
		// Non-2xx so Stripe redelivers; the upsert is idempotent, the
		// retry converges.
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error processing the event"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Event processed"})
}

// dispatch routes a verified event to the handler for its type. The set
// of recognized types is closed; anything else is acknowledged untouched.
func (h *Handler) dispatch(event stripe.Event) error {
	switch event.Type {
	case "checkout.session.completed":
		return h.handleCheckoutSessionCompleted(event)
	case "payment_intent.succeeded":
		return h.handlePaymentIntent(event, models.PaymentSucceeded)
	case "payment_intent.payment_failed":
		return h.handlePaymentIntent(event, models.PaymentFailed)
	case "charge.succeeded":
		return h.handleChargeSucceeded(event)
	case "invoice.payment_succeeded", "invoice.paid":
		return h.handleInvoicePaid(event)
	case "customer.subscription.created", "customer.subscription.updated":
		return h.handleSubscriptionChanged(event)
	case "subscription_schedule.created", "subscription_schedule.updated", "subscription_schedule.completed":
		return h.handleSchedulePhase(event)
	case "subscription_schedule.expiring":
		return h.handleScheduleExpiring(event)
	case "subscription_schedule.canceled", "subscription_schedule.released":
		utils.LogInfo(fmt.Sprintf("Subscription schedule %s event received, no state change", event.Type))
		return nil
	default:
		utils.LogInfo(fmt.Sprintf("Ignoring unhandled Stripe event type %s", event.Type))
		return nil
	}
}

func (h *Handler) handleCheckoutSessionCompleted(event stripe.Event) error {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return fmt.Errorf("decode checkout session: %w", err)
	}

	_, err := h.reconcile(noticeFromCheckoutSession(&session, event.Data.Raw))
	return err
}

func (h *Handler) handlePaymentIntent(event stripe.Event, status models.PaymentStatus) error {
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return fmt.Errorf("decode payment intent: %w", err)
	}
	if pi.ID == "" {
		return errors.New("payment intent event without an id")
	}

	_, err := h.reconcile(noticeFromPaymentIntent(&pi, status, event.Data.Raw))
	return err
}

func (h *Handler) handleChargeSucceeded(event stripe.Event) error {
	var charge stripe.Charge
	if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
		return fmt.Errorf("decode charge: %w", err)
	}
	if charge.ID == "" {
		return errors.New("charge event without an id")
	}

	_, err := h.reconcile(noticeFromCharge(&charge, event.Data.Raw))
	return err
}

func (h *Handler) handleInvoicePaid(event stripe.Event) error {
	var invoice invoicePayload
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		return fmt.Errorf("decode invoice: %w", err)
	}

	notice := noticeFromInvoice(invoice, event.Data.Raw)
	if notice.paymentIntentID == "" && notice.subscriptionID == "" {
		utils.LogWarn(fmt.Sprintf("Invoice %s carries neither payment intent nor subscription, ignoring", invoice.ID))
		return nil
	}

	_, err := h.reconcile(notice)
	return err
}
