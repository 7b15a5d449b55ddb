package main

import (
	"context"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/fx"

	"spreadchecker/cmd/fx/billing_fx"
	"spreadchecker/cmd/fx/checkout_fx"
	"spreadchecker/cmd/fx/controllers_fx"
	"spreadchecker/cmd/fx/db_fx"
	"spreadchecker/cmd/fx/logger_fx"
	"spreadchecker/cmd/fx/mail_fx"
	"spreadchecker/cmd/fx/member_fx"
	"spreadchecker/cmd/fx/processor_fx"
	"spreadchecker/cmd/fx/repositories_fx"
	"spreadchecker/internal/api/controllers"
	"spreadchecker/pkg/middleware"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment")
	}

	app := fx.New(
		logger_fx.Module,
		db_fx.Module,
		repositories_fx.Module,
		processor_fx.Module,
		mail_fx.Module,
		billing_fx.Module,
		checkout_fx.Module,
		member_fx.Module,
		controllers_fx.Module,

		fx.Provide(ProvideRouter),
		fx.Invoke(StartServer),
	)

	app.Run()
}

func StartServer(lc fx.Lifecycle, engine *gin.Engine) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				port := os.Getenv("PORT")
				if port == "" {
					port = "8080"
				}
				log.Printf("Starting HTTP server at :%s", port)
				if err := engine.Run(":" + port); err != nil {
					log.Fatalf("Failed to start server: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Println("Stopping HTTP server")
			return nil
		},
	})
}

func ProvideRouter(
	billingController *controllers.BillingController,
	webhookController *controllers.WebhookController,
	memberController *controllers.MemberController,
	sweepController *controllers.SweepController) *gin.Engine {

	r := gin.Default()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(middleware.CORSMiddleware())
	r.Use(middleware.TraceIDMiddleware())

	RegisterRoutes(r, billingController, webhookController, memberController, sweepController)

	return r
}

func RegisterRoutes(r *gin.Engine,
	billingController *controllers.BillingController,
	webhookController *controllers.WebhookController,
	memberController *controllers.MemberController,
	sweepController *controllers.SweepController) {

	r.GET("/billing/pricing", billingController.PricingQuote)

	billingGroup := r.Group("/billing")
	billingGroup.Use(middleware.JWTAuthMiddleware())
	billingGroup.GET("/access-status", billingController.AccessStatus)
	billingGroup.GET("/addons", billingController.ListAddons)

	adminBilling := billingGroup.Group("")
	adminBilling.Use(middleware.RoleMiddleware("admin"))

	adminBilling.POST("/checkout", billingController.StartCheckout)
	adminBilling.POST("/cancel", billingController.Cancel)
	adminBilling.POST("/seats", billingController.UpdateSeats)
	adminBilling.POST("/addons/checkout", billingController.AddonCheckout)
	adminBilling.POST("/addons/disable", billingController.DisableAddon)
	adminBilling.POST("/reactivate", billingController.Reactivate)

	r.POST("/signup", memberController.Register)

	membersGroup := r.Group("/members")
	membersGroup.POST("/accept-invite", memberController.AcceptInvite)
	authedMembers := membersGroup.Group("")
	authedMembers.Use(middleware.JWTAuthMiddleware())
	authedMembers.GET("", memberController.List)
	authedMembers.POST("/invite", middleware.RoleMiddleware("admin"), memberController.Invite)
	authedMembers.POST("/:id/deactivate", middleware.RoleMiddleware("admin"), memberController.Deactivate)

	r.POST("/webhooks/processor", webhookController.HandleProcessorWebhook)
	r.POST("/internal/sweep/locks", sweepController.LockExpired)
	r.POST("/internal/sweep/reminders", sweepController.TrialReminders)
}
