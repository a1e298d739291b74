package routes

import (
	stripeHandlers "github.com/amitthakurameotech-cmyk/subscription-plan/handlers/stripe"
	"github.com/amitthakurameotech-cmyk/subscription-plan/middleware"

	"github.com/gin-gonic/gin"
)

func PaymentsRoutes(r *gin.Engine, h *stripeHandlers.Handler) {
	paymentRoutes := r.Group("/payments")
	paymentRoutes.Use(middleware.JWTAuth())
	{
		paymentRoutes.POST("/checkout/:planId", h.CreateCheckoutSession)
		paymentRoutes.POST("/session", h.SavePaymentSession)
		paymentRoutes.POST("/cancel/:sessionId", h.MarkSessionCanceled)
		paymentRoutes.GET("/history", h.GetPaymentHistory)
	}

	// Called by Stripe, authenticated by the signature header
	r.POST("/stripe/webhook", h.HandleWebhook)
}
