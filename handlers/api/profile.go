package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"

	"cloudmail/backend"
	"cloudmail/config"
	"cloudmail/utils"
)

// ProfileHandler reads and updates the caller's profile row.
type ProfileHandler struct {
	store   *session.Store
	config  *config.Config
	backend *backend.Client
}

// NewProfileHandler creates a new profile handler
func NewProfileHandler(sessions *session.Store, cfg *config.Config, client *backend.Client) *ProfileHandler {
	return &ProfileHandler{
		store:   sessions,
		config:  cfg,
		backend: client,
	}
}

// HandleGet returns the caller's profile
func (h *ProfileHandler) HandleGet(c *fiber.Ctx) error {
	identity, token := requestContext(c)

	profile, err := h.backend.GetProfile(token, identity.UserID)
	if err != nil {
		utils.Log.Error("Profile read failed for %s: %v", identity.UserID, err)
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"profile": profile,
		"email":   identity.Email,
	})
}

// HandleUpdate patches the caller's display name and avatar URL
func (h *ProfileHandler) HandleUpdate(c *fiber.Ctx) error {
	identity, token := requestContext(c)

	var req struct {
		DisplayName string `json:"display_name"`
		AvatarURL   string `json:"avatar_url"`
	}
	if err := c.BodyParser(&req); err != nil {
		return utils.BadRequestError("Invalid profile request", err)
	}

	fields := map[string]interface{}{}
	if req.DisplayName != "" {
		fields["display_name"] = req.DisplayName
	}
	if req.AvatarURL != "" {
		fields["avatar_url"] = req.AvatarURL
	}
	if len(fields) == 0 {
		return utils.BadRequestError("Nothing to update", nil)
	}

	if err := h.backend.UpdateProfile(token, identity.UserID, fields); err != nil {
		utils.Log.Error("Profile update failed for %s: %v", identity.UserID, err)
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Profile updated",
	})
}
