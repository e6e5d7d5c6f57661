package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"cloudmail/utils"
)

// LocaleMiddleware detects and sets the user's locale
func LocaleMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Query parameter wins, then cookie, then Accept-Language.
		lang := c.Query("lang")
		if lang == "" {
			lang = c.Cookies("lang")
		}
		if lang == "" {
			if strings.HasPrefix(c.Get("Accept-Language"), "es") {
				lang = "es"
			} else {
				lang = "en"
			}
		}

		// Only allow supported languages
		if lang != "en" && lang != "es" {
			lang = "en"
		}

		if c.Cookies("lang") != lang {
			c.Cookie(&fiber.Cookie{
				Name:     "lang",
				Value:    lang,
				MaxAge:   365 * 24 * 3600,
				SameSite: "Lax",
			})
		}

		c.Locals("localizer", utils.GetLocalizer(lang))
		c.Locals("lang", lang)

		return c.Next()
	}
}
