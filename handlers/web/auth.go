// handlers/web/auth.go
package web

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"

	"cloudmail/backend"
	"cloudmail/config"
	"cloudmail/middleware"
	"cloudmail/utils"
)

type AuthHandler struct {
	store  *session.Store
	config *config.Config
	client *backend.Client
}

// NewAuthHandler creates a new instance of AuthHandler
func NewAuthHandler(store *session.Store, config *config.Config, client *backend.Client) *AuthHandler {
	return &AuthHandler{
		store:  store,
		config: config,
		client: client,
	}
}

// ShowLogin renders the login page
func (h *AuthHandler) ShowLogin(c *fiber.Ctx) error {
	sess, err := h.store.Get(c)
	if err == nil {
		if token, _ := sess.Get("access_token").(string); token != "" {
			if _, err := backend.IdentityFromToken(token); err == nil {
				return c.Redirect("/inbox")
			}
		}
	}
	return c.Render("login", fiber.Map{
		"CSRFToken": middleware.GenerateCSRFToken(c),
	})
}

// HandleLogin exchanges the form credentials for a provider session
func (h *AuthHandler) HandleLogin(c *fiber.Ctx) error {
	sess, err := h.store.Get(c)
	if err != nil {
		return c.Status(500).SendString("Session error")
	}

	email := strings.TrimSpace(c.FormValue("email"))
	password := c.FormValue("password")

	if email == "" || password == "" {
		return c.Status(400).Render("login", fiber.Map{
			"Error":     "Email and password are required",
			"Email":     email,
			"CSRFToken": middleware.GenerateCSRFToken(c),
		})
	}

	providerSession, err := h.client.SignIn(email, password)
	if err != nil {
		utils.Log.Info("Sign in failed for %s: %v", email, err)
		return c.Status(401).Render("login", fiber.Map{
			"Error":     errorMessage(err),
			"Email":     email,
			"CSRFToken": middleware.GenerateCSRFToken(c),
		})
	}

	sess.Set("access_token", providerSession.AccessToken)
	sess.Set("refresh_token", providerSession.RefreshToken)
	sess.SetExpiry(h.config.SessionTTL())

	if err := sess.Save(); err != nil {
		return c.Status(500).Render("login", fiber.Map{
			"Error":     "Failed to create session",
			"Email":     email,
			"CSRFToken": middleware.GenerateCSRFToken(c),
		})
	}

	return c.Redirect("/inbox")
}

// ShowSignup renders the registration page
func (h *AuthHandler) ShowSignup(c *fiber.Ctx) error {
	return c.Render("signup", fiber.Map{
		"CSRFToken": middleware.GenerateCSRFToken(c),
	})
}

// HandleSignup registers a new account with the provider. The account
// stays verification-pending until the user confirms the email the
// provider sends.
func (h *AuthHandler) HandleSignup(c *fiber.Ctx) error {
	email := strings.TrimSpace(c.FormValue("email"))
	password := c.FormValue("password")

	if email == "" || password == "" {
		return c.Status(400).Render("signup", fiber.Map{
			"Error":     "Email and password are required",
			"Email":     email,
			"CSRFToken": middleware.GenerateCSRFToken(c),
		})
	}
	if len(password) < 6 {
		return c.Status(400).Render("signup", fiber.Map{
			"Error":     "Password must be at least 6 characters",
			"Email":     email,
			"CSRFToken": middleware.GenerateCSRFToken(c),
		})
	}

	if err := h.client.SignUp(email, password); err != nil {
		utils.Log.Info("Sign up failed for %s: %v", email, err)
		return c.Status(400).Render("signup", fiber.Map{
			"Error":     errorMessage(err),
			"Email":     email,
			"CSRFToken": middleware.GenerateCSRFToken(c),
		})
	}

	return c.Render("login", fiber.Map{
		"Notice":    "Account created. Please check your email to verify your account.",
		"Email":     email,
		"CSRFToken": middleware.GenerateCSRFToken(c),
	})
}

// HandleLogout revokes the provider session and destroys the local one
func (h *AuthHandler) HandleLogout(c *fiber.Ctx) error {
	sess, err := h.store.Get(c)
	if err != nil {
		return c.Redirect("/login")
	}

	if token, _ := sess.Get("access_token").(string); token != "" {
		if err := h.client.SignOut(token); err != nil {
			utils.Log.Warn("Provider sign out failed: %v", err)
		}
	}

	if err := sess.Destroy(); err != nil {
		return c.Status(500).SendString("Error during logout")
	}

	return c.Redirect("/login")
}

// errorMessage unwraps the user-facing text of an error.
func errorMessage(err error) string {
	if appErr, ok := err.(*utils.AppError); ok {
		return appErr.UserMessage()
	}
	return "An error occurred. Please try again."
}
