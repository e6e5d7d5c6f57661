package compose

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cloudmail/backend"
	"cloudmail/models"
	"cloudmail/utils"
)

// fakeBackend records calls and fails on demand.
type fakeBackend struct {
	mu sync.Mutex

	failUpload  map[string]bool // file name -> fail
	failInsert  bool
	failLinkage bool

	uploads       []string
	inserted      []models.Email
	linkedBatches [][]models.Attachment
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{failUpload: make(map[string]bool)}
}

func (f *fakeBackend) Upload(token, bucket, key string, data []byte, contentType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for name, fail := range f.failUpload {
		if fail && len(key) > len(name) && key[len(key)-len(name):] == name {
			return utils.UploadError("Upload failed", errors.New("boom"))
		}
	}
	f.uploads = append(f.uploads, key)
	return nil
}

func (f *fakeBackend) PublicURL(bucket, key string) string {
	return fmt.Sprintf("https://files.example.com/%s/%s", bucket, key)
}

func (f *fakeBackend) InsertEmail(token string, email models.Email) (*models.Email, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failInsert {
		return nil, utils.QueryError("Insert failed", errors.New("boom"))
	}
	email.ID = fmt.Sprintf("email-%d", len(f.inserted)+1)
	f.inserted = append(f.inserted, email)
	return &email, nil
}

func (f *fakeBackend) InsertAttachments(token string, attachments []models.Attachment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failLinkage {
		return utils.QueryError("Linkage failed", errors.New("boom"))
	}
	f.linkedBatches = append(f.linkedBatches, attachments)
	return nil
}

func testIdentity() *backend.Identity {
	return &backend.Identity{UserID: "user-1", Email: "me@example.com"}
}

func TestOpenBlankSession(t *testing.T) {
	m := NewManager(newFakeBackend(), "attachments")

	s := m.Open("sess", nil)
	view := s.Snapshot()

	assert.Equal(t, StateEditing, view.State)
	assert.Empty(t, view.To)
	assert.Empty(t, view.Subject)
	assert.Empty(t, view.Body)
	assert.Empty(t, view.Attachments)
}

func TestOpenReplyPrefill(t *testing.T) {
	m := NewManager(newFakeBackend(), "attachments")

	s := m.Open("sess", &ReplyContext{
		Mode:    "reply",
		From:    "alice@example.com",
		Subject: "Status",
		Date:    "Jan 2, 2026 3:04 PM",
		Excerpt: "All green.",
	})
	view := s.Snapshot()

	assert.Equal(t, "alice@example.com", view.To)
	assert.Equal(t, "Re: Status", view.Subject)
	assert.Contains(t, view.Body, "On Jan 2, 2026 3:04 PM, alice@example.com wrote:")
	assert.Contains(t, view.Body, "All green.")
}

func TestOpenReplyDoesNotStackPrefix(t *testing.T) {
	m := NewManager(newFakeBackend(), "attachments")

	s := m.Open("sess", &ReplyContext{Mode: "reply", Subject: "Re: Status"})

	assert.Equal(t, "Re: Status", s.Snapshot().Subject)
}

func TestOpenForwardPrefill(t *testing.T) {
	m := NewManager(newFakeBackend(), "attachments")

	s := m.Open("sess", &ReplyContext{
		Mode:    "forward",
		From:    "alice@example.com",
		Subject: "Status",
		Date:    "Jan 2, 2026 3:04 PM",
		Excerpt: "All green.",
	})
	view := s.Snapshot()

	assert.Empty(t, view.To)
	assert.Equal(t, "Fwd: Status", view.Subject)
	assert.Contains(t, view.Body, "---------- Forwarded message ---------")
	assert.Contains(t, view.Body, "From: alice@example.com")
	assert.Contains(t, view.Body, "Subject: Status")
	assert.Contains(t, view.Body, "All green.")
}

func TestOpenReplacesPreviousSession(t *testing.T) {
	m := NewManager(newFakeBackend(), "attachments")

	first := m.Open("sess", nil)
	require.NoError(t, first.SetFields("x@example.com", "draft", "half-written"))

	second := m.Open("sess", &ReplyContext{Mode: "reply", Subject: "New"})
	view := second.Snapshot()

	// The stale draft never leaks into the new session.
	assert.Equal(t, "Re: New", view.Subject)
	assert.NotContains(t, view.Body, "half-written")

	got, ok := m.Get("sess")
	require.True(t, ok)
	assert.Same(t, second, got)
}

func TestAddAttachmentsPartialFailure(t *testing.T) {
	fake := newFakeBackend()
	fake.failUpload["b.png"] = true
	m := NewManager(fake, "attachments")
	s := m.Open("sess", nil)

	results := m.AddAttachments(s, "token", []File{
		{Name: "a.txt", Type: "text/plain", Data: []byte("aaa")},
		{Name: "b.png", Type: "image/png", Data: []byte("bbb")},
		{Name: "c.pdf", Type: "application/pdf", Data: []byte("ccc")},
	})

	require.Len(t, results, 3)
	assert.Empty(t, results[0].Error)
	assert.NotEmpty(t, results[1].Error)
	assert.Nil(t, results[1].Attachment)
	assert.Empty(t, results[2].Error)

	// The batch continued past the failure.
	view := s.Snapshot()
	require.Len(t, view.Attachments, 2)
	assert.Equal(t, "a.txt", view.Attachments[0].Name)
	assert.Equal(t, "c.pdf", view.Attachments[1].Name)
	assert.Equal(t, int64(3), view.Attachments[0].Size)
	assert.Contains(t, view.Attachments[0].URL, "https://files.example.com/attachments/")

	// A failed file does not block sending with the ones that made it.
	require.NoError(t, m.Send(s, "token", testIdentity()))
	require.Len(t, fake.linkedBatches, 1)
	assert.Len(t, fake.linkedBatches[0], 2)
}

func TestRemoveAttachment(t *testing.T) {
	fake := newFakeBackend()
	m := NewManager(fake, "attachments")
	s := m.Open("sess", nil)

	m.AddAttachments(s, "token", []File{
		{Name: "a.txt", Data: []byte("a")},
		{Name: "b.txt", Data: []byte("b")},
	})
	view := s.Snapshot()
	require.Len(t, view.Attachments, 2)

	s.RemoveAttachment(view.Attachments[0].ID)

	view = s.Snapshot()
	require.Len(t, view.Attachments, 1)
	assert.Equal(t, "b.txt", view.Attachments[0].Name)
}

func TestSendPersistsMessageAndLinks(t *testing.T) {
	fake := newFakeBackend()
	m := NewManager(fake, "attachments")
	s := m.Open("sess", nil)
	require.NoError(t, s.SetFields("to@example.com", "Hello", "<p>Hi there</p>"))
	m.AddAttachments(s, "token", []File{{Name: "a.txt", Data: []byte("a")}})

	err := m.Send(s, "token", testIdentity())
	require.NoError(t, err)

	require.Len(t, fake.inserted, 1)
	sent := fake.inserted[0]
	assert.Equal(t, "user-1", sent.UserID)
	assert.Equal(t, "me@example.com", sent.From)
	assert.Equal(t, "Hello", sent.Subject)
	assert.Equal(t, models.FolderSent, sent.Folder)
	assert.True(t, sent.Read)
	assert.Equal(t, "Hi there", sent.Preview)

	require.Len(t, fake.linkedBatches, 1)
	require.Len(t, fake.linkedBatches[0], 1)
	assert.Equal(t, "email-1", fake.linkedBatches[0][0].EmailID)

	view := s.Snapshot()
	assert.Equal(t, StateClosed, view.State)
	assert.Empty(t, view.Subject)
	assert.Empty(t, view.Attachments)
}

func TestSendWithoutIdentityFailsFast(t *testing.T) {
	fake := newFakeBackend()
	m := NewManager(fake, "attachments")
	s := m.Open("sess", nil)

	err := m.Send(s, "token", nil)

	require.Error(t, err)
	assert.Empty(t, fake.inserted)
	assert.Equal(t, StateEditing, s.Snapshot().State)
}

func TestSendInsertFailureReturnsToEditing(t *testing.T) {
	fake := newFakeBackend()
	fake.failInsert = true
	m := NewManager(fake, "attachments")
	s := m.Open("sess", nil)
	require.NoError(t, s.SetFields("to@example.com", "Hello", "body"))

	err := m.Send(s, "token", testIdentity())

	require.Error(t, err)
	view := s.Snapshot()
	assert.Equal(t, StateEditing, view.State)
	// Fields survive for another attempt.
	assert.Equal(t, "Hello", view.Subject)
	assert.Equal(t, "body", view.Body)
}

func TestSendLinkageFailureKeepsMessage(t *testing.T) {
	fake := newFakeBackend()
	fake.failLinkage = true
	m := NewManager(fake, "attachments")
	s := m.Open("sess", nil)
	require.NoError(t, s.SetFields("", "Hello", "body"))
	m.AddAttachments(s, "token", []File{{Name: "a.txt", Data: []byte("a")}})

	err := m.Send(s, "token", testIdentity())

	require.Error(t, err)
	var appErr *utils.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, utils.KindLinkage, appErr.Kind)

	// The message is not rolled back and the session still closes.
	assert.Len(t, fake.inserted, 1)
	assert.Equal(t, StateClosed, s.Snapshot().State)
}

func TestSendRejectedWhileSending(t *testing.T) {
	fake := newFakeBackend()
	m := NewManager(fake, "attachments")
	s := m.Open("sess", nil)

	s.mu.Lock()
	s.state = StateSending
	s.mu.Unlock()

	err := m.Send(s, "token", testIdentity())
	require.Error(t, err)
	assert.Empty(t, fake.inserted)

	err = s.SetFields("a", "b", "c")
	assert.Error(t, err)
}

func TestSendWithoutValidation(t *testing.T) {
	fake := newFakeBackend()
	m := NewManager(fake, "attachments")
	s := m.Open("sess", nil)

	// Empty subject and body still insert.
	err := m.Send(s, "token", testIdentity())
	require.NoError(t, err)
	require.Len(t, fake.inserted, 1)
	assert.Empty(t, fake.inserted[0].Subject)
}

func TestDiscard(t *testing.T) {
	m := NewManager(newFakeBackend(), "attachments")
	s := m.Open("sess", nil)

	m.Discard("sess")

	_, ok := m.Get("sess")
	assert.False(t, ok)
	assert.Equal(t, StateClosed, s.Snapshot().State)
}
