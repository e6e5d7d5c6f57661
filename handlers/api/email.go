package api

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"

	"cloudmail/backend"
	"cloudmail/config"
	"cloudmail/models"
	"cloudmail/store"
	"cloudmail/utils"
)

// EmailHandler serves the filtered list and the single-field mutations.
type EmailHandler struct {
	store  *session.Store
	config *config.Config
	emails *store.Store
}

// NewEmailHandler creates a new email API handler
func NewEmailHandler(sessions *session.Store, cfg *config.Config, emails *store.Store) *EmailHandler {
	return &EmailHandler{
		store:  sessions,
		config: cfg,
		emails: emails,
	}
}

func requestContext(c *fiber.Ctx) (*backend.Identity, string) {
	return c.Locals("identity").(*backend.Identity), c.Locals("token").(string)
}

// HandleList returns the visible emails for the requested view as a list
// partial (HTMX) or JSON.
func (h *EmailHandler) HandleList(c *fiber.Ctx) error {
	identity, token := requestContext(c)

	view := c.Query("view", models.FolderInbox)
	if view != models.ViewStarred && !models.ValidFolder(view) {
		return utils.BadRequestError("Unknown view", nil)
	}

	var labels []string
	if raw := c.Query("labels"); raw != "" {
		for _, l := range strings.Split(raw, ",") {
			if l = strings.TrimSpace(l); l != "" {
				labels = append(labels, l)
			}
		}
	}
	state := models.ViewStateFor(view, labels, c.Query("q"))

	fetched, err := h.emails.Query(token, identity.UserID, state.Starred, state.Folder)
	if err != nil {
		utils.Log.Error("List query failed: %v", err)
		return err
	}
	visible := models.Filter(fetched, state)

	if c.Get("HX-Request") != "" {
		return c.Render("partials/email-list", fiber.Map{
			"Emails":      visible,
			"CurrentView": view,
			"Search":      state.Search,
		}, "")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"emails":  visible,
	})
}

// HandleToggleRead flips the read flag of an email
func (h *EmailHandler) HandleToggleRead(c *fiber.Ctx) error {
	identity, token := requestContext(c)

	emailID := c.Params("id")
	if emailID == "" {
		return utils.BadRequestError("Email ID required", nil)
	}

	if err := h.emails.ToggleRead(token, identity.UserID, emailID); err != nil {
		utils.Log.Error("Toggle read failed for %s: %v", emailID, err)
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
	})
}

// HandleToggleStar flips the starred flag of an email
func (h *EmailHandler) HandleToggleStar(c *fiber.Ctx) error {
	identity, token := requestContext(c)

	emailID := c.Params("id")
	if emailID == "" {
		return utils.BadRequestError("Email ID required", nil)
	}

	if err := h.emails.ToggleStar(token, identity.UserID, emailID); err != nil {
		utils.Log.Error("Toggle star failed for %s: %v", emailID, err)
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
	})
}

// HandleMove reassigns an email to another folder
func (h *EmailHandler) HandleMove(c *fiber.Ctx) error {
	identity, token := requestContext(c)

	emailID := c.Params("id")
	if emailID == "" {
		return utils.BadRequestError("Email ID required", nil)
	}

	var req struct {
		Folder string `json:"folder"`
	}
	if err := c.BodyParser(&req); err != nil || req.Folder == "" {
		return utils.BadRequestError("Target folder required", err)
	}

	if err := h.emails.MoveToFolder(token, identity.UserID, emailID, req.Folder); err != nil {
		utils.Log.Error("Move failed for %s: %v", emailID, err)
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Email moved",
	})
}

// HandleDelete moves an email to trash. Nothing is hard-deleted.
func (h *EmailHandler) HandleDelete(c *fiber.Ctx) error {
	identity, token := requestContext(c)

	emailID := c.Params("id")
	if emailID == "" {
		return utils.BadRequestError("Email ID required", nil)
	}

	if err := h.emails.MoveToFolder(token, identity.UserID, emailID, models.FolderTrash); err != nil {
		utils.Log.Error("Delete failed for %s: %v", emailID, err)
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Email moved to trash",
	})
}
