package stripe

import (
	"encoding/json"
	"net/http"

	"github.com/amitthakurameotech-cmyk/subscription-plan/models"
	"github.com/amitthakurameotech-cmyk/subscription-plan/store"
	"github.com/amitthakurameotech-cmyk/subscription-plan/utils"

	"github.com/gin-gonic/gin"
)

// sessionSaveInput is the session-like object the frontend reports after
// returning from checkout. It is less trusted than a webhook: amounts are
// non-authoritative and only ever fill empty records.
type sessionSaveInput struct {
	SessionID       string `json:"sessionId"`
	PaymentIntentID string `json:"paymentIntentId"`
	PlanID          string `json:"planId" binding:"required"`
	AmountTotal     int64  `json:"amountTotal"`
	Currency        string `json:"currency"`
	PaymentStatus   string `json:"paymentStatus"`
}

// SavePaymentSession records a browser-reported checkout session.
// @Summary Save a checkout session reported by the frontend
// @Description Funnels the browser-reported session through the same reconciliation as the webhooks, so a later authoritative event converges onto the same record.
// @Tags payments
// @Accept json
// @Produce json
// @Param session body sessionSaveInput true "Session data"
// @Security BearerAuth
// @Success 200 {object} utils.Response
// @Failure 400 {object} utils.Response
// @Failure 500 {object} utils.Response
// @Router /payments/session [post]
func (h *Handler) SavePaymentSession(c *gin.Context) {
	var input sessionSaveInput
	if !utils.ValidateRequestBody(c, &input) {
		return
	}
	if input.SessionID == "" && input.PaymentIntentID == "" && input.AmountTotal <= 0 {
		utils.SendError(c, http.StatusBadRequest, "Session data carries nothing to identify a payment by")
		return
	}

	userID, _ := c.Get("user_id")
	uid, _ := userID.(string)

	raw, _ := json.Marshal(input)
	notice := paymentNotice{
		kind:              "frontend.session_save",
		checkoutSessionID: input.SessionID,
		paymentIntentID:   input.PaymentIntentID,
		planID:            input.PlanID,
		userID:            uid,
		amountMinor:       input.AmountTotal,
		currency:          input.Currency,
		status:            models.PaymentPending,
		allowFallback:     true,
		raw:               raw,
	}
	if input.PaymentStatus == "paid" {
		notice.status = models.PaymentSucceeded
	}

	record, err := h.reconcile(notice)
	if err != nil {
		utils.LogErrorWithUser(uid, err, "Error saving the reported session")
		utils.SendError(c, http.StatusInternalServerError, "Error saving the payment session")
		return
	}
	if record == nil {
		utils.SendError(c, http.StatusBadRequest, "Could not attach the session to a plan")
		return
	}

	utils.LogSuccessWithUser(uid, "Frontend-reported session saved")
	utils.SendSuccess(c, http.StatusOK, "Payment session saved", record)
}

// MarkSessionCanceled records a cancellation for a checkout session.
// @Summary Mark a checkout session as canceled
// @Description Re-fetches the session from Stripe before recording anything: a session the processor reports as paid is recorded as succeeded, whatever the caller claims.
// @Tags payments
// @Produce json
// @Param sessionId path string true "Checkout session ID"
// @Security BearerAuth
// @Success 200 {object} utils.Response
// @Failure 404 {object} utils.Response
// @Failure 502 {object} utils.Response
// @Router /payments/cancel/{sessionId} [post]
func (h *Handler) MarkSessionCanceled(c *gin.Context) {
	sessionID := c.Param("sessionId")
	userID, _ := c.Get("user_id")
	uid, _ := userID.(string)

	// The caller only names the session; its state comes from Stripe.
	session, err := h.processor.GetCheckoutSession(sessionID, nil)
	if err != nil {
		utils.LogErrorWithUser(uid, err, "Could not fetch the session to cancel from Stripe")
		utils.SendError(c, http.StatusBadGateway, "Could not verify the session with the payment processor")
		return
	}

	raw, _ := json.Marshal(session)
	notice := noticeFromCheckoutSession(session, raw)
	notice.kind = "frontend.session_cancel"
	notice.userID = uid
	if session.PaymentStatus == "paid" {
		notice.status = models.PaymentSucceeded
		utils.LogWarn("Cancellation requested for a paid session, recording succeeded instead")
	} else {
		notice.status = models.PaymentCanceled
	}

	record, err := h.reconcile(notice)
	if err != nil {
		utils.LogErrorWithUser(uid, err, "Error recording the session cancellation")
		utils.SendError(c, http.StatusInternalServerError, "Error recording the cancellation")
		return
	}
	if record == nil {
		utils.SendError(c, http.StatusNotFound, "No payment found for this session")
		return
	}

	if record.Status == models.PaymentSucceeded {
		utils.SendSuccess(c, http.StatusOK, "Session already paid, payment recorded as succeeded", record)
		return
	}
	utils.LogSuccessWithUser(uid, "Checkout session marked as canceled")
	utils.SendSuccess(c, http.StatusOK, "Session marked as canceled", record)
}

// GetPaymentHistory lists the caller's payments.
// @Summary Payment history
// @Description Return the authenticated user's payment records, newest first.
// @Tags payments
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.PaymentRecord
// @Failure 401 {object} map[string]string "error: Unauthorized"
// @Router /payments/history [get]
func (h *Handler) GetPaymentHistory(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	uid, _ := userID.(string)

	payments, err := store.PaymentsByUser(uid)
	if err != nil {
		utils.LogErrorWithUser(uid, err, "Error fetching the payment history")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error fetching payments"})
		return
	}

	c.JSON(http.StatusOK, payments)
}
