// Package store is the client-side email cache: queries on demand, caches
// per user and view axis, and drops the cache whenever a mutation completes
// or the realtime feed reports a change. The authoritative state always
// lives in the provider; nothing here is mutated optimistically.
package store

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"cloudmail/models"
	"cloudmail/utils"
)

// Backend is the slice of the provider client the store needs.
type Backend interface {
	QueryEmails(token string, starred bool, folder string) ([]models.Email, error)
	QueryAttachments(token, emailID string) ([]models.Attachment, error)
	GetEmail(token, id string) (*models.Email, error)
	UpdateEmail(token, id string, fields map[string]interface{}) error
}

// Store caches email lists per user and view and pushes change hints to
// subscribers so open pages can re-query.
type Store struct {
	backend Backend
	cache   *utils.MemoryCache
	ttl     time.Duration

	mu        sync.RWMutex
	listeners map[string]func()
}

// New creates a store over the given backend.
func New(backend Backend, ttl time.Duration) *Store {
	return &Store{
		backend:   backend,
		cache:     utils.NewMemoryCache(),
		ttl:       ttl,
		listeners: make(map[string]func()),
	}
}

func cacheKey(userID string, starred bool, folder string) string {
	axis := folder
	if starred {
		axis = models.ViewStarred
	}
	return userID + "/" + axis
}

// Query returns the emails for one view axis, from cache when fresh. The
// provider orders by date descending; the result keeps that order.
func (s *Store) Query(token, userID string, starred bool, folder string) ([]models.Email, error) {
	key := cacheKey(userID, starred, folder)
	if cached, ok := s.cache.Get(key); ok {
		if emails, ok := cached.([]models.Email); ok {
			return emails, nil
		}
	}

	emails, err := s.backend.QueryEmails(token, starred, folder)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, emails, s.ttl)
	return emails, nil
}

// Email returns one email from the active view along with its attachments.
func (s *Store) Email(token, userID, id string, starred bool, folder string) (*models.Email, error) {
	emails, err := s.Query(token, userID, starred, folder)
	if err != nil {
		return nil, err
	}
	for i := range emails {
		if emails[i].ID != id {
			continue
		}
		email := emails[i]
		attachments, err := s.backend.QueryAttachments(token, id)
		if err != nil {
			// The message itself is readable; missing attachments are
			// surfaced by the caller when it matters.
			utils.Log.Warn("Failed to load attachments for %s: %v", id, err)
		} else {
			email.Attachments = attachments
		}
		return &email, nil
	}
	return nil, utils.NotFoundError("Email not found", nil)
}

// Lookup loads one email row straight from the provider, bypassing the
// view cache. Used where the row is needed outside the active view.
func (s *Store) Lookup(token, id string) (*models.Email, error) {
	return s.backend.GetEmail(token, id)
}

// SetRead updates the read flag. The local cache is invalidated, never
// patched: the next read re-pulls server truth.
func (s *Store) SetRead(token, userID, id string, read bool) error {
	if err := s.backend.UpdateEmail(token, id, map[string]interface{}{"read": read}); err != nil {
		return err
	}
	s.Invalidate(userID)
	return nil
}

// ToggleStar flips the starred flag. The current value is read from the
// provider, not from the cache, so two quick toggles cannot diverge from
// server truth.
func (s *Store) ToggleStar(token, userID, id string) error {
	email, err := s.backend.GetEmail(token, id)
	if err != nil {
		return err
	}
	if err := s.backend.UpdateEmail(token, id, map[string]interface{}{"starred": !email.Starred}); err != nil {
		return err
	}
	s.Invalidate(userID)
	return nil
}

// ToggleRead flips the read flag.
func (s *Store) ToggleRead(token, userID, id string) error {
	email, err := s.backend.GetEmail(token, id)
	if err != nil {
		return err
	}
	return s.SetRead(token, userID, id, !email.Read)
}

// MoveToFolder reassigns an email to another folder. Deleting is a move to
// trash; nothing is hard-deleted here.
func (s *Store) MoveToFolder(token, userID, id, folder string) error {
	if !models.ValidFolder(folder) {
		return utils.BadRequestError("Unknown folder", nil)
	}
	if err := s.backend.UpdateEmail(token, id, map[string]interface{}{"folder": folder}); err != nil {
		return err
	}
	s.Invalidate(userID)
	return nil
}

// Invalidate drops every cached view for one user. Idempotent: redundant
// invalidations (a mutation completion racing its own realtime echo) just
// hit an empty cache.
func (s *Store) Invalidate(userID string) {
	s.cache.DeletePrefix(userID + "/")
}

// InvalidateAll drops the whole cache. The realtime feed carries no row
// payload, so a change event cannot be attributed to one user.
func (s *Store) InvalidateAll() {
	s.cache.Clear()
	s.notify()
}

// Subscribe registers a callback fired after any store-wide change hint.
// Returns an id for Unsubscribe.
func (s *Store) Subscribe(fn func()) string {
	id := uuid.New().String()
	s.mu.Lock()
	s.listeners[id] = fn
	s.mu.Unlock()
	return id
}

// Unsubscribe removes a callback.
func (s *Store) Unsubscribe(id string) {
	s.mu.Lock()
	delete(s.listeners, id)
	s.mu.Unlock()
}

func (s *Store) notify() {
	s.mu.RLock()
	listeners := make([]func(), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn()
	}
}
