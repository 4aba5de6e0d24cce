package main

import (
	"log"
	"path/filepath"
	"strings"

	"kiramate-backend/internal/admin"
	"kiramate-backend/internal/apierr"
	"kiramate-backend/internal/applog"
	"kiramate-backend/internal/audit"
	"kiramate-backend/internal/auth"
	"kiramate-backend/internal/config"
	"kiramate-backend/internal/dashboard"
	"kiramate-backend/internal/database"
	"kiramate-backend/internal/ledger"
	"kiramate-backend/internal/models"
	"kiramate-backend/internal/openingbalance"
	"kiramate-backend/internal/payment"
	"kiramate-backend/internal/rent"
	"kiramate-backend/internal/report"
	"kiramate-backend/internal/shop"
	"kiramate-backend/internal/storage"
	"kiramate-backend/internal/tenant"
	"kiramate-backend/internal/views"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/etag"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
)

func main() {
	cfg := config.Load()

	access, closeLogs, err := applog.Init(cfg.LogDir)
	if err != nil {
		log.Fatalf("Could not open log files: %v", err)
	}
	defer closeLogs()

	database.Init(cfg)

	store, err := storage.New(cfg.UploadDir)
	if err != nil {
		log.Fatalf("Could not prepare upload directory: %v", err)
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ErrorHandler: apierr.ErrorHandler,
		Views:        views.Engine(),
		BodyLimit:    (storage.MaxFiles + 1) * storage.MaxFileSize,
	})

	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
		Output: access,
	}))

	corsOrigins := strings.Split(cfg.CORSOrigins, ",")
	for i := range corsOrigins {
		corsOrigins[i] = strings.TrimSpace(corsOrigins[i])
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(corsOrigins, ","),
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, " + auth.CSRFHeader,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowCredentials: true,
	}))
	app.Use(compress.New())

	app.Static(views.LogoURLPrefix, filepath.Join(cfg.UploadDir, storage.Company))

	api := app.Group("/api")
	api.Use(auth.Sessions(cfg))
	api.Use(auth.CSRF(cfg))

	// Public auth
	api.Post("/auth/login", auth.LoginHandler(cfg))
	api.Get("/auth/csrf", auth.CSRFTokenHandler())

	protected := api.Group("")
	protected.Use(auth.RequireLogin())

	protected.Post("/auth/logout", auth.LogoutHandler())
	protected.Get("/auth/me", auth.MeHandler())
	protected.Post("/auth/change-password", auth.ChangePasswordHandler())

	// Tenants
	protected.Get("/tenants/check-unique", tenant.CheckUniqueHandler())
	protected.Post("/tenants", tenant.CreateTenantHandler(store))
	protected.Get("/tenants", tenant.ListTenantsHandler())
	protected.Get("/tenants/:id", tenant.GetTenantHandler())
	protected.Put("/tenants/:id", tenant.UpdateTenantHandler(store))
	protected.Delete("/tenants/:id", tenant.DeleteTenantHandler(store))
	protected.Get("/tenants/:id/documents/:docId", tenant.DownloadDocumentHandler(store))
	protected.Delete("/tenants/:id/documents/:docId", tenant.DeleteDocumentHandler(store))

	// Shops
	protected.Get("/shops/check-number", shop.CheckNumberHandler())
	protected.Post("/shops", shop.CreateShopHandler(store))
	protected.Get("/shops", shop.ListShopsHandler())
	protected.Get("/shops/:id", shop.GetShopHandler())
	protected.Put("/shops/:id", shop.UpdateShopHandler(store))
	protected.Delete("/shops/:id", shop.DeleteShopHandler(store))
	protected.Get("/shops/:id/rent-quote", rent.RentQuoteHandler())
	protected.Get("/shops/:id/documents/:docId", shop.DownloadDocumentHandler(store))
	protected.Delete("/shops/:id/documents/:docId", shop.DeleteDocumentHandler(store))

	// Rents
	protected.Post("/rents", rent.CreateRentHandler())
	protected.Get("/rents", rent.ListRentsHandler())
	protected.Get("/rents/:id", rent.GetRentHandler())
	protected.Put("/rents/:id", rent.UpdateRentHandler())
	protected.Delete("/rents/:id", rent.DeleteRentHandler())
	protected.Get("/rents/:id/receipt", etag.New(), rent.RentReceiptHandler())

	// Opening balances
	protected.Post("/opening-balances", openingbalance.CreateOpeningBalanceHandler())
	protected.Get("/opening-balances", openingbalance.ListOpeningBalancesHandler())
	protected.Get("/opening-balances/:id", openingbalance.GetOpeningBalanceHandler())
	protected.Put("/opening-balances/:id", openingbalance.UpdateOpeningBalanceHandler())
	protected.Delete("/opening-balances/:id", openingbalance.DeleteOpeningBalanceHandler())

	// Payments
	protected.Post("/payments", payment.CreatePaymentHandler())
	protected.Get("/payments", payment.ListPaymentsHandler())
	protected.Get("/payments/:id", payment.GetPaymentHandler())
	protected.Delete("/payments/:id", payment.DeletePaymentHandler())
	protected.Get("/payments/:id/receipt", etag.New(), payment.PaymentReceiptHandler())

	// Payment form lookups
	protected.Get("/lookup/pending-rent-months", ledger.PendingRentMonthsHandler())
	protected.Get("/lookup/opening-balances", ledger.PendingOpeningBalancesHandler())
	protected.Get("/lookup/rent-amount", ledger.RentAmountHandler())

	// Dashboard & reports
	protected.Get("/dashboard", dashboard.SummaryHandler())
	protected.Get("/dashboard/collections", dashboard.CollectionChartHandler())
	protected.Get("/reports", report.Limiter(cfg.ReportRateLimit, cfg.ReportRateWindow), report.ReportHandler())

	// Admin
	adminRoutes := protected.Group("/admin")
	adminRoutes.Use(auth.RequireRole(models.RoleAdmin))

	adminRoutes.Get("/users", admin.ListUsersHandler())
	adminRoutes.Post("/users", admin.CreateUserHandler())
	adminRoutes.Get("/users/:id", admin.GetUserHandler())
	adminRoutes.Put("/users/:id", admin.UpdateUserHandler())
	adminRoutes.Delete("/users/:id", admin.DeleteUserHandler())

	adminRoutes.Get("/settings", admin.GetSettingsHandler())
	adminRoutes.Put("/settings", admin.UpdateSettingsHandler(store))

	adminRoutes.Get("/audit-logs", audit.ListAuditLogsHandler())
	adminRoutes.Post("/audit-logs/:id/undo", audit.UndoAuditLogHandler())

	log.Println("Server listening on port:", cfg.HTTPPort)
	if err := app.Listen(":" + cfg.HTTPPort); err != nil {
		applog.Errorf("server stopped: %v", err)
	}
}
