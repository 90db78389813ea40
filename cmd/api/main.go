package main

import (
	"context"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"

	"kotoba_backend/internal/controller"
	"kotoba_backend/internal/middleware"
	"kotoba_backend/internal/model"
	"kotoba_backend/internal/repository"
	"kotoba_backend/internal/service"
	"kotoba_backend/pkg/config"
	"kotoba_backend/pkg/cron"
	"kotoba_backend/pkg/database"
	"kotoba_backend/pkg/email"
	"kotoba_backend/pkg/seed"
	"kotoba_backend/pkg/utils/jwt"
	"kotoba_backend/pkg/utils/storage"
)

type controllers struct {
	auth     *controller.AuthController
	credits  *controller.CreditController
	trials   *controller.TrialController
	tiers    *controller.TierController
	vouchers *controller.VoucherController
	payments *controller.PaymentController
	usage    *controller.UsageController
	settings *controller.SettingsController
	cron     *controller.CronController
}

func setupRoutes(app *fiber.App, ctrl controllers, creditSvc *service.CreditService, cronSecret string) {
	api := app.Group("/api")

	// Auth Routes
	auth := api.Group("/auth")
	auth.Post("/register", ctrl.auth.Register)
	auth.Post("/login", ctrl.auth.Login)

	// Protected Routes
	protected := api.Group("/", middleware.AuthMiddleware())
	protected.Get("/me", ctrl.auth.GetMe)

	// Subscription routes
	subscription := api.Group("/subscription", middleware.AuthMiddleware())
	subscription.Get("/my", ctrl.tiers.GetMySubscription)
	subscription.Post("/check", ctrl.credits.Check)
	subscription.Get("/credits/history", ctrl.credits.History)
	subscription.Get("/credits/stats", ctrl.credits.Stats)
	subscription.Get("/trial", ctrl.trials.GetStatus)
	subscription.Post("/trial", ctrl.trials.Start)
	subscription.Post("/trial/extend", ctrl.trials.Extend)
	subscription.Post("/validate-change", ctrl.tiers.ValidateChange)
	subscription.Post("/change", ctrl.tiers.RequestChange)
	subscription.Post("/cancel-scheduled-change", ctrl.tiers.CancelScheduledChange)

	// Stripe checkout redirect targets
	api.Get("/subscription/payment-success", ctrl.payments.HandleSuccess)
	api.Get("/subscription/payment-cancelled", ctrl.payments.HandleCancel)

	// Voucher routes
	voucher := api.Group("/voucher", middleware.AuthMiddleware())
	voucher.Post("/validate", ctrl.vouchers.Validate)
	voucher.Get("/my-redemptions", ctrl.vouchers.MyRedemptions)

	// Metered usage routes with a credit gate
	usage := api.Group("/usage", middleware.AuthMiddleware())
	usage.Post("/chat", middleware.RequireCredits(creditSvc, model.UsageChat), ctrl.usage.Chat)
	usage.Post("/transcribe", middleware.RequireCredits(creditSvc, model.UsageTranscription), ctrl.usage.Transcribe)

	// Settings routes
	settings := api.Group("/settings", middleware.AuthMiddleware())
	settings.Get("/profile", ctrl.settings.GetProfile)
	settings.Put("/profile", ctrl.settings.UpdateProfile)
	settings.Post("/avatar", ctrl.settings.UploadAvatar)

	// Batch jobs for the external scheduler
	cronGroup := api.Group("/cron", middleware.CronAuth(cronSecret))
	cronGroup.Get("/process-scheduled-tier-changes", ctrl.cron.ProcessScheduledTierChanges)
	cronGroup.Get("/expire-trials", ctrl.cron.ExpireTrials)

	// Stripe webhook
	api.Post("/webhook", ctrl.payments.HandleStripeWebhook)
}

func main() {
	cfg := config.Load()

	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL is not set in .env")
	}
	if cfg.JWT.Secret == "" {
		log.Fatal("JWT_SECRET is not set in .env")
	}
	jwt.Init(cfg.JWT.Secret)

	var mail *email.Service
	if cfg.Email.ResendAPIKey != "" {
		var err error
		mail, err = email.NewService(cfg.Email.ResendAPIKey)
		if err != nil {
			log.Fatal("Could not initialize email service:", err)
		}
	} else {
		log.Println("RESEND_API_KEY not set, email notifications disabled")
	}

	db, err := database.Connect(cfg.Database.URL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	err = database.Migrate(
		db,
		&model.User{},
		&model.Subscription{},
		&model.CreditTransaction{},
		&model.Voucher{},
		&model.VoucherRedemption{},
		&model.PendingPayment{},
	)
	if err != nil {
		log.Printf("Migration warning: %v", err)
	}

	seed.SeedVouchers(db)

	store, err := storage.New(context.Background(), storage.Config{
		AccountID: cfg.Storage.AccountID,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		Bucket:    cfg.Storage.Bucket,
		CDNBase:   cfg.Storage.CDNBase,
	})
	if err != nil {
		log.Fatal("Could not initialize storage client:", err)
	}

	subStore := repository.NewSubscriptionStore(db)
	ledgerStore := repository.NewCreditLedgerStore(db)
	voucherStore := repository.NewVoucherStore(db)
	paymentStore := repository.NewPendingPaymentStore(db)
	userStore := repository.NewUserStore(db)

	creditSvc := service.NewCreditService(subStore, ledgerStore)
	trialSvc := service.NewTrialService(subStore, userStore, mail)
	tierSvc := service.NewTierChangeService(subStore, userStore, mail)
	voucherSvc := service.NewVoucherService(voucherStore)
	paymentSvc := service.NewPaymentService(
		cfg.Stripe.SecretKey,
		paymentStore,
		userStore,
		voucherSvc,
		tierSvc,
		mail,
		cfg.Stripe.SuccessURL,
		cfg.Stripe.CancelURL,
	)

	ctrl := controllers{
		auth:     controller.NewAuthController(userStore, trialSvc, mail),
		credits:  controller.NewCreditController(creditSvc),
		trials:   controller.NewTrialController(trialSvc),
		tiers:    controller.NewTierController(subStore, tierSvc, trialSvc, paymentSvc),
		vouchers: controller.NewVoucherController(voucherSvc),
		payments: controller.NewPaymentController(paymentSvc, cfg.Stripe.WebhookSecret),
		usage:    controller.NewUsageController(creditSvc, subStore, store),
		settings: controller.NewSettingsController(userStore, store),
		cron:     controller.NewCronController(tierSvc, trialSvc),
	}

	if cfg.Cron.Enabled {
		scheduler := cron.NewScheduler(tierSvc, trialSvc)
		if err := scheduler.Start(); err != nil {
			log.Printf("Could not start in-process scheduler: %v", err)
		}
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New())

	setupRoutes(app, ctrl, creditSvc, cfg.Cron.Secret)

	log.Printf("Server is running on port %s", cfg.Server.Port)
	log.Fatal(app.Listen(":" + cfg.Server.Port))
}
