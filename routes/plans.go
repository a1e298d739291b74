package routes

import (
	"github.com/amitthakurameotech-cmyk/subscription-plan/handlers/plans"
	"github.com/amitthakurameotech-cmyk/subscription-plan/middleware"

	"github.com/gin-gonic/gin"
)

func PlansRoutes(r *gin.Engine) {
	// Catalog reads are public
	plansPublicRoutes := r.Group("/plans")
	plansPublicRoutes.GET("", plans.GetAllPlans)
	plansPublicRoutes.GET("/:id", plans.GetPlanByID)

	// Writes are admin only
	plansPrivateRoutes := r.Group("/plans")
	plansPrivateRoutes.Use(middleware.JWTAuth())
	plansPrivateRoutes.Use(middleware.AdminAuth())
	{
		plansPrivateRoutes.POST("", plans.CreatePlan)
		plansPrivateRoutes.PUT("/:id", plans.UpdatePlan)
	}
}
