package api

import (
	"github.com/gofiber/fiber/v2"

	"cloudmail/utils"
)

// I18nHandler serves translations for client-side toasts.
type I18nHandler struct{}

// messageIDs lists the keys the browser needs.
var messageIDs = []string{
	"toast_email_sent",
	"toast_email_deleted",
	"toast_upload_failed",
	"toast_send_failed",
	"toast_mailbox_changed",
	"error_404",
}

// GetTranslations returns the message catalog for one language
func (h *I18nHandler) GetTranslations(c *fiber.Ctx) error {
	lang := c.Params("lang")
	localizer := utils.GetLocalizer(lang)

	translations := make(map[string]string, len(messageIDs))
	for _, id := range messageIDs {
		translations[id] = utils.T(localizer, id)
	}

	return c.JSON(fiber.Map{
		"lang":         lang,
		"translations": translations,
	})
}
