// handlers/web/mail.go
package web

import (
	"html/template"
	"sort"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"

	"cloudmail/backend"
	"cloudmail/config"
	"cloudmail/middleware"
	"cloudmail/models"
	"cloudmail/store"
	"cloudmail/utils"
)

type MailHandler struct {
	store   *session.Store
	config  *config.Config
	emails  *store.Store
	backend *backend.Client
}

// NewMailHandler creates a new mailbox page handler
func NewMailHandler(sessions *session.Store, config *config.Config, emails *store.Store, client *backend.Client) *MailHandler {
	return &MailHandler{
		store:   sessions,
		config:  config,
		emails:  emails,
		backend: client,
	}
}

// viewState reads the filter state out of the request. The starred
// pseudo-folder in the URL becomes the orthogonal starred axis.
func viewState(c *fiber.Ctx, view string) models.ViewState {
	var labels []string
	if raw := c.Query("labels"); raw != "" {
		for _, l := range strings.Split(raw, ",") {
			if l = strings.TrimSpace(l); l != "" {
				labels = append(labels, l)
			}
		}
	}
	return models.ViewStateFor(view, labels, c.Query("q"))
}

// HandleInbox renders the default mailbox view
func (h *MailHandler) HandleInbox(c *fiber.Ctx) error {
	return h.renderMailbox(c, models.FolderInbox)
}

// HandleView renders a folder or the starred view
func (h *MailHandler) HandleView(c *fiber.Ctx) error {
	view := c.Params("view")
	if view != models.ViewStarred && !models.ValidFolder(view) {
		return c.Redirect("/inbox")
	}
	return h.renderMailbox(c, view)
}

func (h *MailHandler) renderMailbox(c *fiber.Ctx, view string) error {
	identity := c.Locals("identity").(*backend.Identity)
	token := c.Locals("token").(string)

	state := viewState(c, view)

	fetched, err := h.emails.Query(token, identity.UserID, state.Starred, state.Folder)
	if err != nil {
		utils.Log.Error("Mailbox query failed for %s: %v", identity.UserID, err)
		return c.Status(500).Render("mailbox", fiber.Map{
			"Error":       errorMessage(err),
			"Folders":     models.DefaultFolders,
			"CurrentView": view,
			"Email":       identity.Email,
			"CSRFToken":   middleware.GenerateCSRFToken(c),
		})
	}

	visible := models.Filter(fetched, state)

	return c.Render("mailbox", fiber.Map{
		"Email":          identity.Email,
		"Folders":        models.DefaultFolders,
		"Labels":         collectLabels(fetched),
		"SelectedLabels": state.Labels,
		"Emails":         visible,
		"CurrentView":    view,
		"Search":         state.Search,
		"CSRFToken":      middleware.GenerateCSRFToken(c),
	})
}

// HandleEmailView renders the reading pane partial and marks the email
// read. The read flag round-trips through the provider; the re-query after
// invalidation is what flips the list row.
func (h *MailHandler) HandleEmailView(c *fiber.Ctx) error {
	identity := c.Locals("identity").(*backend.Identity)
	token := c.Locals("token").(string)

	emailID := c.Params("id")
	if emailID == "" {
		return c.Status(400).SendString("Email ID required")
	}

	view := c.Query("view", models.FolderInbox)
	state := viewState(c, view)

	email, err := h.emails.Email(token, identity.UserID, emailID, state.Starred, state.Folder)
	if err != nil {
		utils.Log.Error("Error fetching email %s: %v", emailID, err)
		return c.Status(404).JSON(fiber.Map{
			"error": "Email not found",
		})
	}

	if !email.Read {
		if err := h.emails.SetRead(token, identity.UserID, emailID, true); err != nil {
			// Reading still works when the flag update fails.
			utils.Log.Warn("Failed to mark %s read: %v", emailID, err)
		} else {
			email.Read = true
		}
	}

	return c.Render("partials/email-viewer", fiber.Map{
		"Email":       email,
		"Content":     template.HTML(utils.SanitizeHTML(email.Content)),
		"CurrentView": view,
	}, "")
}

// collectLabels returns the sorted union of labels across the fetched
// emails for the sidebar.
func collectLabels(emails []models.Email) []string {
	seen := make(map[string]bool)
	for _, e := range emails {
		for _, l := range e.Labels {
			seen[l] = true
		}
	}

	labels := make([]string, 0, len(seen))
	for l := range seen {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}
