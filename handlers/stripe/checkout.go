package stripe

import (
	"errors"
	"net/http"
	"os"

	"github.com/amitthakurameotech-cmyk/subscription-plan/db"
	"github.com/amitthakurameotech-cmyk/subscription-plan/models"
	"github.com/amitthakurameotech-cmyk/subscription-plan/store"
	"github.com/amitthakurameotech-cmyk/subscription-plan/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	stripe "github.com/stripe/stripe-go/v82"
	"gorm.io/gorm"
)

// CreateCheckoutSession starts a Stripe Checkout for a plan.
// @Summary Create a Stripe Checkout session for a plan
// @Description Start a Stripe payment for the given plan. Returns the Stripe session ID and URL for the frontend.
// @Tags payments
// @Accept json
// @Produce json
// @Param planId path string true "ID of the plan"
// @Security BearerAuth
// @Success 200 {object} map[string]string "sessionId: Stripe Checkout session ID, url: Checkout URL"
// @Failure 400 {object} map[string]string "error: Invalid plan ID"
// @Failure 404 {object} map[string]string "error: Plan or user not found"
// @Failure 500 {object} map[string]string "error: Stripe error or server error"
// @Router /payments/checkout/{planId} [post]
func (h *Handler) CreateCheckoutSession(c *gin.Context) {
	planID := c.Param("planId")
	if _, err := uuid.Parse(planID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid plan ID"})
		return
	}

	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	uid, _ := userID.(string)

	plan, err := store.PlanByID(planID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Plan not found"})
			return
		}
		utils.LogErrorWithUser(uid, err, "Error fetching the plan for checkout")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error fetching the plan"})
		return
	}
	if plan.StripePriceId == "" || !plan.Active {
		c.JSON(http.StatusBadRequest, gin.H{"error": "This plan cannot be purchased"})
		return
	}

	var payer models.User
	if err := db.DB.First(&payer, "id = ?", uid).Error; err != nil {
		utils.LogErrorWithUser(uid, err, "User not found in CreateCheckoutSession")
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	if payer.StripeCustomerId != "" {
		// The stored customer may have been deleted on the Stripe side.
		if _, err := h.processor.GetCustomer(payer.StripeCustomerId, nil); err != nil {
			payer.StripeCustomerId = ""
		}
	}
	if payer.StripeCustomerId == "" {
		cust, err := h.processor.NewCustomer(&stripe.CustomerParams{
			Name:  stripe.String(payer.UserName),
			Email: stripe.String(payer.Email),
		})
		if err != nil {
			utils.LogErrorWithUser(uid, err, "Error creating the Stripe customer")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Error creating the Stripe customer"})
			return
		}
		db.DB.Model(&payer).Update("stripe_customer_id", cust.ID)
		payer.StripeCustomerId = cust.ID
	}

	mode := string(stripe.CheckoutSessionModePayment)
	if plan.Interval != "" && plan.Interval != "once" {
		mode = string(stripe.CheckoutSessionModeSubscription)
	}

	params := &stripe.CheckoutSessionParams{
		Customer:           stripe.String(payer.StripeCustomerId),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Mode:               stripe.String(mode),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(plan.StripePriceId),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(os.Getenv("CHECKOUT_SUCCESS_URL")),
		CancelURL:         stripe.String(os.Getenv("CHECKOUT_CANCEL_URL")),
		ClientReferenceID: stripe.String(plan.ID),
		Metadata: map[string]string{
			"plan_id": plan.ID,
			"user_id": payer.ID,
		},
	}

	session, err := h.processor.NewCheckoutSession(params)
	if err != nil {
		utils.LogErrorWithUser(uid, err, "Error creating the Stripe Checkout session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	utils.LogSuccessWithUser(uid, "Stripe Checkout session created")
	c.JSON(http.StatusOK, gin.H{"sessionId": session.ID, "url": session.URL})
}
