package routes

import (
	"time"

	"github.com/aidatapp/aidat-backend/internal/config"
	"github.com/aidatapp/aidat-backend/internal/handlers"
	"github.com/aidatapp/aidat-backend/internal/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"gorm.io/gorm"
)

func Setup(
	app *fiber.App,
	cfg *config.Config,
	db *gorm.DB,
	authHandler *handlers.AuthHandler,
	healthHandler *handlers.HealthHandler,
	accessHandler *handlers.AccessHandler,
	credentialsHandler *handlers.CredentialsHandler,
) {
	api := app.Group("/api")

	// General API rate limiter: 60 req/min per IP
	api.Use(limiter.New(limiter.Config{
		Max:               60,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))

	api.Get("/health", healthHandler.Check)

	// Auth — public, with a stricter per-IP limit
	auth := api.Group("/auth")
	auth.Use(limiter.New(limiter.Config{
		Max:               10,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Post("/refresh", authHandler.Refresh)
	api.Post("/auth/logout", middleware.JWTProtected(cfg), authHandler.Logout)

	// Verification — called by intercom devices, no JWT. Brute-force
	// throttling on top of whatever the device itself enforces.
	api.Post("/access/verify", limiter.New(limiter.Config{
		Max:               30,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}), accessHandler.Verify)

	// Credential management — authenticated users; per-op role gating
	// lives in the access package.
	creds := api.Group("/credentials", middleware.JWTProtected(cfg))
	creds.Put("/user-pin", credentialsHandler.SetUserPin)
	creds.Put("/my-pin", credentialsHandler.UpdateOwnPin)
	creds.Post("/access-codes", credentialsHandler.CreateAccessCode)
	creds.Post("/access-codes/:id/deactivate", credentialsHandler.DeactivateAccessCode)
	creds.Delete("/access-codes/:id", credentialsHandler.DeleteAccessCode)
	creds.Post("/temporary-pins", credentialsHandler.CreateTemporaryPin)
	creds.Post("/face", credentialsHandler.EnrollFace)
	creds.Get("/access-logs", credentialsHandler.ListAccessLogs)

	// Admin-only credential management
	admin := api.Group("/admin", middleware.JWTProtected(cfg), middleware.AdminRequired(db, cfg))
	admin.Put("/credentials/master-pin", credentialsHandler.SetMasterPin)
}
