// Package compose manages in-progress messages: one session per signed-in
// browser session, from dialog open to send or discard.
package compose

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"cloudmail/backend"
	"cloudmail/models"
	"cloudmail/utils"
)

// State of a compose session.
type State int

const (
	StateClosed State = iota
	StateEditing
	StateSending
)

// Backend is the slice of the provider client the compose flow needs.
type Backend interface {
	Upload(token, bucket, key string, data []byte, contentType string) error
	PublicURL(bucket, key string) string
	InsertEmail(token string, email models.Email) (*models.Email, error)
	InsertAttachments(token string, attachments []models.Attachment) error
}

// ReplyContext carries the fields of the email being replied to or
// forwarded. Mode selects the prefill template.
type ReplyContext struct {
	Mode    string `json:"mode"` // "reply" or "forward"
	From    string `json:"from"`
	Subject string `json:"subject"`
	Date    string `json:"date"`
	Excerpt string `json:"excerpt"`
}

// Session is one open compose dialog. All access goes through the mutex;
// a send in flight blocks further sends but not field edits from being
// rejected cleanly.
type Session struct {
	mu          sync.Mutex
	state       State
	to          string
	subject     string
	body        string
	attachments []models.Attachment // URL is the durable object URL
}

// View is a read-only snapshot of a session for rendering.
type View struct {
	State       State               `json:"-"`
	To          string              `json:"to"`
	Subject     string              `json:"subject"`
	Body        string              `json:"body"`
	Attachments []models.Attachment `json:"attachments"`
}

// Manager owns the compose sessions, keyed by web session id.
type Manager struct {
	backend Backend
	bucket  string

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a compose manager storing uploads in the given bucket.
func NewManager(b Backend, bucket string) *Manager {
	return &Manager{
		backend:  b,
		bucket:   bucket,
		sessions: make(map[string]*Session),
	}
}

// Open starts (or restarts) the compose dialog for a browser session. Any
// previous state is replaced wholesale so a stale draft never leaks into a
// new reply.
func (m *Manager) Open(sessionID string, ctx *ReplyContext) *Session {
	s := &Session{state: StateEditing}
	if ctx != nil {
		s.to, s.subject, s.body = prefill(ctx)
	}

	m.mu.Lock()
	m.sessions[sessionID] = s
	m.mu.Unlock()
	return s
}

// Get returns the open session for a browser session, if any.
func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	return s, ok
}

// Discard closes and forgets the session.
func (m *Manager) Discard(sessionID string) {
	m.mu.Lock()
	if s, ok := m.sessions[sessionID]; ok {
		s.mu.Lock()
		s.state = StateClosed
		s.mu.Unlock()
		delete(m.sessions, sessionID)
	}
	m.mu.Unlock()
}

// prefill builds the initial fields from a reply/forward context, using
// the same quote templates the reading pane always used.
func prefill(ctx *ReplyContext) (to, subject, body string) {
	switch ctx.Mode {
	case "forward":
		subject = ctx.Subject
		if !strings.HasPrefix(strings.ToLower(subject), "fwd:") &&
			!strings.HasPrefix(strings.ToLower(subject), "fw:") {
			subject = "Fwd: " + subject
		}
		body = fmt.Sprintf("\n\n---------- Forwarded message ---------\nFrom: %s\nDate: %s\nSubject: %s\n\n%s",
			ctx.From, ctx.Date, ctx.Subject, ctx.Excerpt)
		return "", subject, body
	default: // reply
		subject = ctx.Subject
		if !strings.HasPrefix(strings.ToLower(subject), "re:") {
			subject = "Re: " + subject
		}
		body = fmt.Sprintf("\n\nOn %s, %s wrote:\n%s", ctx.Date, ctx.From, ctx.Excerpt)
		return ctx.From, subject, body
	}
}

// Snapshot returns the session's current fields.
func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	attachments := make([]models.Attachment, len(s.attachments))
	copy(attachments, s.attachments)
	return View{
		State:       s.state,
		To:          s.to,
		Subject:     s.subject,
		Body:        s.body,
		Attachments: attachments,
	}
}

// SetFields stores the edited recipient, subject and body. Rejected while
// a send is in flight.
func (s *Session) SetFields(to, subject, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateSending {
		return utils.BadRequestError("A send is already in progress", nil)
	}
	s.to, s.subject, s.body = to, subject, body
	return nil
}

// File is one local file selected for upload.
type File struct {
	Name string
	Type string
	Data []byte
}

// UploadResult reports the outcome for one file of an attachment batch.
type UploadResult struct {
	Name       string             `json:"name"`
	Error      string             `json:"error,omitempty"`
	Attachment *models.Attachment `json:"attachment,omitempty"`
}

// AddAttachments uploads the files one at a time. A failed file is
// reported and skipped; the rest of the batch still runs. Successful files
// are appended to the session with their durable public URL.
func (m *Manager) AddAttachments(s *Session, token string, files []File) []UploadResult {
	results := make([]UploadResult, 0, len(files))

	for _, f := range files {
		key := objectKey(f.Name)
		if err := m.backend.Upload(token, m.bucket, key, f.Data, f.Type); err != nil {
			utils.Log.Error("Attachment upload failed for %s: %v", f.Name, err)
			results = append(results, UploadResult{Name: f.Name, Error: userMessage(err)})
			continue
		}

		att := models.Attachment{
			ID:   uuid.New().String(),
			Name: f.Name,
			Size: int64(len(f.Data)),
			Type: f.Type,
			URL:  m.backend.PublicURL(m.bucket, key),
		}

		s.mu.Lock()
		s.attachments = append(s.attachments, att)
		s.mu.Unlock()

		results = append(results, UploadResult{Name: f.Name, Attachment: &att})
	}

	return results
}

// RemoveAttachment drops one pending attachment from the session. Nothing
// is linked server-side before send, so there is no backend call.
func (s *Session) RemoveAttachment(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.attachments[:0]
	for _, att := range s.attachments {
		if att.ID != id {
			kept = append(kept, att)
		}
	}
	s.attachments = kept
}

// objectKey builds a collision-resistant storage key: millisecond prefix
// plus the original name with path separators removed.
func objectKey(name string) string {
	name = strings.NewReplacer("/", "_", "\\", "_").Replace(name)
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), name)
}

// Send persists the message and then its attachment links.
//
// Failure handling follows the message-first contract: when the message
// insert fails the session returns to editing with every field intact.
// When only the attachment linkage fails the message already exists and is
// NOT rolled back; the error is surfaced and the session still closes.
// That inconsistency window (message without its attachments) is accepted.
func (m *Manager) Send(s *Session, token string, identity *backend.Identity) error {
	if identity == nil {
		return utils.AuthError("You must be signed in to send email", nil)
	}

	s.mu.Lock()
	if s.state == StateSending {
		s.mu.Unlock()
		return utils.BadRequestError("A send is already in progress", nil)
	}
	s.state = StateSending
	subject, body := s.subject, s.body
	attachments := make([]models.Attachment, len(s.attachments))
	copy(attachments, s.attachments)
	s.mu.Unlock()

	// No required-field validation here: an empty subject or body still
	// inserts. The recipient is dialog-only state; the message row stores
	// the sender identity.
	email := models.Email{
		UserID:  identity.UserID,
		From:    identity.Email,
		Subject: subject,
		Content: body,
		Preview: utils.MakePreview(body),
		Date:    time.Now().Format("Jan 2, 2006 3:04 PM"),
		Read:    true,
		Folder:  models.FolderSent,
		Labels:  []string{},
	}

	created, err := m.backend.InsertEmail(token, email)
	if err != nil {
		s.mu.Lock()
		s.state = StateEditing
		s.mu.Unlock()
		return err
	}

	if len(attachments) > 0 {
		rows := make([]models.Attachment, len(attachments))
		for i, att := range attachments {
			rows[i] = models.Attachment{
				EmailID: created.ID,
				Name:    att.Name,
				Size:    att.Size,
				Type:    att.Type,
				URL:     att.URL,
			}
		}
		if err := m.backend.InsertAttachments(token, rows); err != nil {
			s.mu.Lock()
			s.state = StateClosed
			s.mu.Unlock()
			return utils.LinkageError("Message sent, but attaching files failed", err)
		}
	}

	s.mu.Lock()
	s.state = StateClosed
	s.to, s.subject, s.body = "", "", ""
	s.attachments = nil
	s.mu.Unlock()
	return nil
}

// userMessage unwraps an AppError's user-facing text.
func userMessage(err error) string {
	if appErr, ok := err.(*utils.AppError); ok {
		return appErr.UserMessage()
	}
	return err.Error()
}
