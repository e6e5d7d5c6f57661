package backend

import (
	"cloudmail/models"
	"cloudmail/utils"
)

// QueryEmails loads the active view's rows: the starred view selects on the
// flag across all folders, otherwise the folder column is matched. Rows
// come back ordered by date descending; the caller never re-sorts.
func (c *Client) QueryEmails(token string, starred bool, folder string) ([]models.Email, error) {
	q := c.Table(c.cfg.EmailTable)
	if starred {
		q.EqBool("starred", true)
	} else {
		q.Eq("folder", folder)
	}
	q.Order("date", true)

	emails := []models.Email{}
	if err := q.Select(token, &emails); err != nil {
		return nil, err
	}
	return emails, nil
}

// GetEmail loads a single email row by id.
func (c *Client) GetEmail(token, id string) (*models.Email, error) {
	emails := []models.Email{}
	if err := c.Table(c.cfg.EmailTable).Eq("id", id).Select(token, &emails); err != nil {
		return nil, err
	}
	if len(emails) == 0 {
		return nil, utils.NotFoundError("Email not found", nil)
	}
	return &emails[0], nil
}

// QueryAttachments loads the attachment rows linked to one email.
func (c *Client) QueryAttachments(token, emailID string) ([]models.Attachment, error) {
	attachments := []models.Attachment{}
	err := c.Table(c.cfg.AttachmentTable).Eq("email_id", emailID).Select(token, &attachments)
	if err != nil {
		return nil, err
	}
	return attachments, nil
}

// InsertEmail creates a message row and returns it with the generated id.
func (c *Client) InsertEmail(token string, email models.Email) (*models.Email, error) {
	created := []models.Email{}
	if err := c.Insert(token, c.cfg.EmailTable, email, &created); err != nil {
		return nil, err
	}
	if len(created) == 0 {
		return nil, utils.QueryError("Message insert returned no row", nil)
	}
	return &created[0], nil
}

// InsertAttachments batch-creates the attachment rows for a sent message.
func (c *Client) InsertAttachments(token string, attachments []models.Attachment) error {
	if len(attachments) == 0 {
		return nil
	}
	return c.Insert(token, c.cfg.AttachmentTable, attachments, nil)
}

// UpdateEmail patches fields of one email row.
func (c *Client) UpdateEmail(token, id string, fields map[string]interface{}) error {
	return c.Update(token, c.cfg.EmailTable, id, fields)
}

// GetProfile loads the caller's profile row, if one exists.
func (c *Client) GetProfile(token, userID string) (*models.Profile, error) {
	profiles := []models.Profile{}
	if err := c.Table(c.cfg.ProfileTable).Eq("id", userID).Select(token, &profiles); err != nil {
		return nil, err
	}
	if len(profiles) == 0 {
		return nil, nil
	}
	return &profiles[0], nil
}

// UpdateProfile patches the caller's profile row.
func (c *Client) UpdateProfile(token, userID string, fields map[string]interface{}) error {
	return c.Update(token, c.cfg.ProfileTable, userID, fields)
}
