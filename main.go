package main

import (
	"log"

	"github.com/amitthakurameotech-cmyk/subscription-plan/config"
	"github.com/amitthakurameotech-cmyk/subscription-plan/db"
	stripeHandlers "github.com/amitthakurameotech-cmyk/subscription-plan/handlers/stripe"
	"github.com/amitthakurameotech-cmyk/subscription-plan/routes"

	"github.com/gin-gonic/gin"
)

// @title Subscription Plan API
// @version 1.0
// @description Subscription plan catalog and payment reconciliation backend
// @host localhost:8080
// @BasePath /
// @SecurityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Enter the JWT with the Bearer prefix: Bearer <JWT>
func main() {
	gin.SetMode(gin.ReleaseMode)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Invalid configuration: ", err)
	}

	db.InitDB(cfg.DatabaseURL)

	payments, err := stripeHandlers.NewHandler(cfg)
	if err != nil {
		log.Fatal("Could not initialize the payment handlers: ", err)
	}

	r := routes.SetupRouter(payments)

	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal("Error starting the server: ", err)
	}
}
