package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/gofiber/template/html/v2"
	"github.com/gofiber/websocket/v2"

	"cloudmail/backend"
	"cloudmail/compose"
	"cloudmail/config"
	"cloudmail/handlers/api"
	"cloudmail/handlers/web"
	"cloudmail/middleware"
	"cloudmail/storage"
	"cloudmail/store"
	"cloudmail/utils"
)

// Helper function to determine if request is an API request
func isAPIRequest(c *fiber.Ctx) bool {
	if c == nil {
		return false
	}

	// Check for HTMX request first
	if c.Get("HX-Request") != "" {
		return true
	}

	path := c.Path()
	return strings.HasPrefix(path, "/api") || strings.HasPrefix(path, "/ws")
}

func main() {
	utils.Log.Info("Initializing CloudMail...")

	// Load configuration
	cfg, err := config.LoadConfig("config.toml")
	if err != nil {
		utils.Log.Error("Failed to load config: %v", err)
		return
	}

	// Initialize i18n system
	if err := utils.InitI18n(); err != nil {
		utils.Log.Error("Failed to initialize i18n: %v", err)
	}

	// Session store backed by the local bbolt database
	sessionStorage, err := storage.NewSessionStorage(cfg.Session.Folder)
	if err != nil {
		utils.Log.Error("Failed to initialize session storage: %v", err)
		return
	}
	defer sessionStorage.Close()

	sessions := session.New(session.Config{
		Storage:        sessionStorage,
		Expiration:     cfg.SessionTTL(),
		CookieSecure:   cfg.SSL.Enabled,
		CookieHTTPOnly: true,
	})

	// Hosted backend client and the layers over it
	client := backend.New(cfg.Provider)
	emails := store.New(client, cfg.CacheTTL())
	composer := compose.NewManager(client, cfg.Provider.AttachmentBucket)

	// Initialize template engine with custom functions
	engine := html.New("./templates", ".html")

	engine.AddFunc("lower", strings.ToLower)
	engine.AddFunc("join", strings.Join)
	engine.AddFunc("hasPrefix", strings.HasPrefix)

	// i18n template function
	engine.AddFunc("t", func(messageID string) string {
		return utils.T(utils.Localizer, messageID)
	})

	// File size formatting function
	engine.AddFunc("formatSize", func(size int64) string {
		const unit = 1024
		if size < unit {
			return fmt.Sprintf("%d B", size)
		}
		div, exp := int64(unit), 0
		for n := size / unit; n >= unit; n /= unit {
			div *= unit
			exp++
		}
		return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
	})

	// Initialize Fiber with template engine
	app := fiber.New(fiber.Config{
		Views:       engine,
		ViewsLayout: "layouts/main",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			message := err.Error()

			if appErr, ok := err.(*utils.AppError); ok {
				code = appErr.Code
				message = appErr.UserMessage()
				utils.Log.Error("Application error (%s): %v", appErr.Kind, appErr)
			} else if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}

			if isAPIRequest(c) {
				return c.Status(code).JSON(fiber.Map{
					"error": message,
				})
			}

			return c.Status(code).Render("error", fiber.Map{
				"Error": message,
				"Code":  code,
			})
		},
	})

	// Add global middleware
	app.Use(recover.New())  // Recover from panics
	app.Use(logger.New())   // Request logging
	app.Use(compress.New()) // Response compression
	app.Use(helmet.New(helmet.Config{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "SAMEORIGIN",
		ReferrerPolicy:        "no-referrer",
		ContentSecurityPolicy: "default-src 'self'; script-src 'self' 'unsafe-inline' https://unpkg.com; style-src 'self' 'unsafe-inline'; img-src 'self' " + cfg.Provider.URL + "; connect-src 'self'",
	}))

	app.Use(middleware.LocaleMiddleware())

	// Add rate limiting (100 requests per minute per IP)
	app.Use(middleware.RateLimiter(100, time.Minute))

	app.Use(middleware.CSRFProtection())

	// Serve static files
	app.Static("/assets", "./assets", fiber.Static{
		Compress:      true,
		CacheDuration: 24 * time.Hour,
	})

	// Initialize handlers
	authHandler := web.NewAuthHandler(sessions, cfg, client)
	mailHandler := web.NewMailHandler(sessions, cfg, emails, client)
	emailAPI := api.NewEmailHandler(sessions, cfg, emails)
	composeAPI := api.NewComposeHandler(sessions, cfg, composer, emails)
	profileAPI := api.NewProfileHandler(sessions, cfg, client)
	notifications := api.NewNotificationHandler()
	i18nAPI := &api.I18nHandler{}

	// The realtime feed invalidates the store; the store's change hint is
	// fanned out to connected browsers, which re-query. Both paths are
	// idempotent so the echo of a local mutation is harmless.
	emails.Subscribe(notifications.NotifyChanged)
	if cfg.Provider.Realtime {
		feed := client.NewChangeFeed(cfg.Provider.EmailTable)
		feed.Subscribe(func(change backend.Change) {
			utils.Log.Debug("Realtime change: %s on %s", change.Kind, change.Table)
			emails.InvalidateAll()
		})
		feed.Start()
		defer feed.Stop()
	}

	// Public routes
	app.Get("/login", authHandler.ShowLogin)
	app.Post("/login", authHandler.HandleLogin)
	app.Get("/signup", authHandler.ShowSignup)
	app.Post("/signup", authHandler.HandleSignup)
	app.Get("/logout", authHandler.HandleLogout)

	// Protected routes group
	protected := app.Group("", middleware.RequireSession(sessions, client))

	// Main web routes
	protected.Get("/", mailHandler.HandleInbox)
	protected.Get("/inbox", mailHandler.HandleInbox)
	protected.Get("/view/:view", mailHandler.HandleView)

	// API routes
	apiRoutes := protected.Group("/api")
	{
		// Email routes
		apiRoutes.Get("/emails", emailAPI.HandleList)
		apiRoutes.Get("/email/:id", mailHandler.HandleEmailView)
		apiRoutes.Post("/email/:id/read", emailAPI.HandleToggleRead)
		apiRoutes.Post("/email/:id/star", emailAPI.HandleToggleStar)
		apiRoutes.Post("/email/:id/move", emailAPI.HandleMove)
		apiRoutes.Delete("/email/:id", emailAPI.HandleDelete)

		// Compose routes
		apiRoutes.Post("/compose/open", composeAPI.HandleOpen)
		apiRoutes.Post("/compose/reply/:id", composeAPI.HandleReplyContext)
		apiRoutes.Put("/compose/fields", composeAPI.HandleFields)
		apiRoutes.Post("/compose/attachments", composeAPI.HandleAttachments)
		apiRoutes.Delete("/compose/attachments/:id", composeAPI.HandleRemoveAttachment)
		apiRoutes.Post("/compose/send", composeAPI.HandleSend)
		apiRoutes.Post("/compose/discard", composeAPI.HandleDiscard)

		// Profile routes
		apiRoutes.Get("/profile", profileAPI.HandleGet)
		apiRoutes.Put("/profile", profileAPI.HandleUpdate)

		// Notifications (SSE fallback)
		apiRoutes.Get("/notifications", notifications.HandleSSE)

		// i18n routes
		apiRoutes.Get("/i18n/:lang", i18nAPI.GetTranslations)
	}

	// WebSocket notifications
	protected.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	protected.Get("/ws/notifications", websocket.New(notifications.HandleWebSocket))

	// Health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// 404 Handler for undefined routes
	app.Use(func(c *fiber.Ctx) error {
		if isAPIRequest(c) {
			return c.Status(404).JSON(fiber.Map{
				"error": "Not found",
			})
		}
		return c.Status(404).Render("error", fiber.Map{
			"Error": "Page not found",
			"Code":  404,
		})
	})

	// Start server
	if cfg.SSL.Enabled {
		utils.Log.Info("Starting server on port %d (TLS)...", cfg.SSL.Port)
		if err := app.ListenTLS(fmt.Sprintf(":%d", cfg.SSL.Port), cfg.SSL.CertFile, cfg.SSL.KeyFile); err != nil {
			utils.Log.Error("Error starting server: %v", err)
		}
		return
	}

	utils.Log.Info("Starting server on port %d...", cfg.Server.Port)
	if err := app.Listen(fmt.Sprintf(":%d", cfg.Server.Port)); err != nil {
		utils.Log.Error("Error starting server: %v", err)
	}
}
