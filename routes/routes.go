package routes

import (
	"time"

	"github.com/amitthakurameotech-cmyk/subscription-plan/handlers/ping"
	stripeHandlers "github.com/amitthakurameotech-cmyk/subscription-plan/handlers/stripe"
	"github.com/amitthakurameotech-cmyk/subscription-plan/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func SetupRouter(payments *stripeHandlers.Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.LoggerWithWriter(utils.LogWriter()), gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	pingHandler := ping.New()
	r.GET("/ping", pingHandler.HandlePing)

	AuthRoutes(r)
	PlansRoutes(r)
	PaymentsRoutes(r, payments)

	return r
}
