package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"

	"cloudmail/backend"
	"cloudmail/utils"
)

// RequireSession guards routes behind a signed-in provider session. The
// access token and decoded identity are placed in Locals for handlers. An
// expired token is refreshed in place when a refresh token is available;
// otherwise the session is torn down and the user sent back to login.
func RequireSession(store *session.Store, client *backend.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := store.Get(c)
		if err != nil {
			return deny(c)
		}

		token, _ := sess.Get("access_token").(string)
		if token == "" {
			return deny(c)
		}

		identity, err := backend.IdentityFromToken(token)
		if err != nil {
			// Expired or damaged token: one refresh attempt, then out.
			refresh, _ := sess.Get("refresh_token").(string)
			if refresh == "" {
				sess.Destroy()
				return deny(c)
			}

			renewed, rerr := client.Refresh(refresh)
			if rerr != nil {
				utils.Log.Info("Session refresh failed: %v", rerr)
				sess.Destroy()
				return deny(c)
			}

			sess.Set("access_token", renewed.AccessToken)
			sess.Set("refresh_token", renewed.RefreshToken)
			if serr := sess.Save(); serr != nil {
				utils.Log.Error("Failed to save refreshed session: %v", serr)
			}

			token = renewed.AccessToken
			identity, err = backend.IdentityFromToken(token)
			if err != nil {
				return deny(c)
			}
		}

		c.Locals("token", token)
		c.Locals("identity", identity)
		c.Locals("session_id", sess.ID())
		return c.Next()
	}
}

// deny redirects page requests to login and answers API requests with 401.
func deny(c *fiber.Ctx) error {
	if isAPIRequest(c) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Not signed in",
		})
	}
	return c.Redirect("/login")
}

// isAPIRequest reports whether the request expects JSON/partial output.
func isAPIRequest(c *fiber.Ctx) bool {
	if c.Get("HX-Request") != "" {
		return true
	}
	return strings.HasPrefix(c.Path(), "/api") || strings.HasPrefix(c.Path(), "/ws")
}
