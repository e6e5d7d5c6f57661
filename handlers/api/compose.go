package api

import (
	"io"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"

	"cloudmail/compose"
	"cloudmail/config"
	"cloudmail/store"
	"cloudmail/utils"
)

// ComposeHandler drives the compose dialog: open (blank or with
// reply/forward context), attachment batch upload, attachment removal,
// send and discard.
type ComposeHandler struct {
	store   *session.Store
	config  *config.Config
	manager *compose.Manager
	emails  *store.Store
}

// NewComposeHandler creates a new compose handler
func NewComposeHandler(sessions *session.Store, cfg *config.Config, manager *compose.Manager, emails *store.Store) *ComposeHandler {
	return &ComposeHandler{
		store:   sessions,
		config:  cfg,
		manager: manager,
		emails:  emails,
	}
}

func composeSessionID(c *fiber.Ctx) string {
	return c.Locals("session_id").(string)
}

// HandleOpen starts a compose session. A reply/forward context in the body
// prefills the fields; reopening replaces any previous draft state.
func (h *ComposeHandler) HandleOpen(c *fiber.Ctx) error {
	var req struct {
		Context *compose.ReplyContext `json:"context"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return utils.BadRequestError("Invalid compose request", err)
		}
	}

	session := h.manager.Open(composeSessionID(c), req.Context)

	return c.JSON(fiber.Map{
		"success": true,
		"compose": session.Snapshot(),
	})
}

// HandleFields stores the edited recipient, subject and body between
// requests so attachment uploads and send see current values.
func (h *ComposeHandler) HandleFields(c *fiber.Ctx) error {
	session, ok := h.manager.Get(composeSessionID(c))
	if !ok {
		return utils.BadRequestError("No compose session open", nil)
	}

	var req struct {
		To      string `json:"to"`
		Subject string `json:"subject"`
		Body    string `json:"body"`
	}
	if err := c.BodyParser(&req); err != nil {
		return utils.BadRequestError("Invalid compose request", err)
	}

	if err := session.SetFields(req.To, req.Subject, req.Body); err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
	})
}

// HandleAttachments uploads a multipart batch. Files are processed one at
// a time; a failed file is reported in its result entry and the batch
// continues.
func (h *ComposeHandler) HandleAttachments(c *fiber.Ctx) error {
	_, token := requestContext(c)

	session, ok := h.manager.Get(composeSessionID(c))
	if !ok {
		return utils.BadRequestError("No compose session open", nil)
	}

	form, err := c.MultipartForm()
	if err != nil || form == nil {
		return utils.BadRequestError("Multipart form required", err)
	}

	var files []compose.File
	for _, header := range form.File["attachments"] {
		f, err := header.Open()
		if err != nil {
			utils.Log.Error("Error opening attachment %s: %v", header.Filename, err)
			continue
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			utils.Log.Error("Error reading attachment %s: %v", header.Filename, err)
			continue
		}

		files = append(files, compose.File{
			Name: header.Filename,
			Type: header.Header.Get("Content-Type"),
			Data: data,
		})
	}

	results := h.manager.AddAttachments(session, token, files)

	failed := 0
	for _, r := range results {
		if r.Error != "" {
			failed++
		}
	}

	return c.JSON(fiber.Map{
		"success": failed == 0,
		"results": results,
		"compose": session.Snapshot(),
	})
}

// HandleRemoveAttachment drops a pending attachment from the session
func (h *ComposeHandler) HandleRemoveAttachment(c *fiber.Ctx) error {
	session, ok := h.manager.Get(composeSessionID(c))
	if !ok {
		return utils.BadRequestError("No compose session open", nil)
	}

	attachmentID := c.Params("id")
	if attachmentID == "" {
		return utils.BadRequestError("Attachment ID required", nil)
	}

	session.RemoveAttachment(attachmentID)

	return c.JSON(fiber.Map{
		"success": true,
		"compose": session.Snapshot(),
	})
}

// HandleSend persists the message and its attachment links. On failure the
// dialog stays open with every field intact; the error text is surfaced to
// the toast.
func (h *ComposeHandler) HandleSend(c *fiber.Ctx) error {
	identity, token := requestContext(c)

	sessionID := composeSessionID(c)
	session, ok := h.manager.Get(sessionID)
	if !ok {
		return utils.BadRequestError("No compose session open", nil)
	}

	// Late field edits may arrive with the send itself.
	var req struct {
		To      string `json:"to"`
		Subject string `json:"subject"`
		Body    string `json:"body"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err == nil {
			if err := session.SetFields(req.To, req.Subject, req.Body); err != nil {
				return err
			}
		}
	}

	if err := h.manager.Send(session, token, identity); err != nil {
		utils.Log.Error("Send failed for %s: %v", identity.Email, err)
		if appErr, ok := err.(*utils.AppError); ok && appErr.Kind == utils.KindLinkage {
			// The message row exists; only the attachment links are
			// missing. The dialog is done, the sent list must refresh.
			h.manager.Discard(sessionID)
			h.emails.Invalidate(identity.UserID)
		}
		return err
	}

	h.manager.Discard(sessionID)
	h.emails.Invalidate(identity.UserID)

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Email sent",
	})
}

// HandleDiscard closes the compose session without sending
func (h *ComposeHandler) HandleDiscard(c *fiber.Ctx) error {
	h.manager.Discard(composeSessionID(c))
	return c.JSON(fiber.Map{
		"success": true,
	})
}

// HandleReplyContext builds the prefill context for replying to or
// forwarding a stored email, so the dialog opens with the quote template
// already applied.
func (h *ComposeHandler) HandleReplyContext(c *fiber.Ctx) error {
	_, token := requestContext(c)

	emailID := c.Params("id")
	mode := c.Query("mode", "reply")
	if emailID == "" {
		return utils.BadRequestError("Email ID required", nil)
	}
	if mode != "reply" && mode != "forward" {
		return utils.BadRequestError("Unknown compose mode", nil)
	}

	email, err := h.emails.Lookup(token, emailID)
	if err != nil {
		return err
	}

	ctx := &compose.ReplyContext{
		Mode:    mode,
		From:    email.From,
		Subject: email.Subject,
		Date:    email.Date,
		Excerpt: email.Preview,
	}
	session := h.manager.Open(composeSessionID(c), ctx)

	return c.JSON(fiber.Map{
		"success": true,
		"compose": session.Snapshot(),
	})
}
