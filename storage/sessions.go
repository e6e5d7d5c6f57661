// Package storage provides the local bbolt database backing the
// server-side session store. Sessions are the only thing persisted
// locally; mail data lives entirely in the hosted backend.
package storage

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

var sessionBucket = []byte("Sessions")

// SessionStorage is a fiber.Storage implementation over bbolt. Each value
// is stored with an absolute expiry; expired entries are dropped on read
// and swept periodically.
type SessionStorage struct {
	db   *bbolt.DB
	done chan struct{}
}

// NewSessionStorage opens (or creates) the session database in dataDir.
func NewSessionStorage(dataDir string) (*SessionStorage, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %v", err)
	}

	dbPath := filepath.Join(dataDir, "sessions.db")
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open session database: %v", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(sessionBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &SessionStorage{db: db, done: make(chan struct{})}
	go s.sweepLoop()
	return s, nil
}

// encode prefixes the value with its expiry as unix nanoseconds (zero for
// no expiry).
func encode(val []byte, exp time.Duration) []byte {
	var expiry int64
	if exp > 0 {
		expiry = time.Now().Add(exp).UnixNano()
	}
	buf := make([]byte, 8+len(val))
	binary.BigEndian.PutUint64(buf[:8], uint64(expiry))
	copy(buf[8:], val)
	return buf
}

func decode(raw []byte) ([]byte, bool) {
	if len(raw) < 8 {
		return nil, false
	}
	expiry := int64(binary.BigEndian.Uint64(raw[:8]))
	if expiry > 0 && time.Now().UnixNano() > expiry {
		return nil, false
	}
	out := make([]byte, len(raw)-8)
	copy(out, raw[8:])
	return out, true
}

// Get returns the value for a session key, or nil when absent or expired.
func (s *SessionStorage) Get(key string) ([]byte, error) {
	var val []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(sessionBucket).Get([]byte(key))
		if raw == nil {
			return nil
		}
		if v, ok := decode(raw); ok {
			val = v
		}
		return nil
	})
	return val, err
}

// Set stores a session value with the given lifetime.
func (s *SessionStorage) Set(key string, val []byte, exp time.Duration) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(sessionBucket).Put([]byte(key), encode(val, exp))
	})
}

// Delete removes a session key.
func (s *SessionStorage) Delete(key string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(sessionBucket).Delete([]byte(key))
	})
}

// Reset removes all sessions.
func (s *SessionStorage) Reset() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(sessionBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucket(sessionBucket)
		return err
	})
}

// Close stops the sweeper and closes the database.
func (s *SessionStorage) Close() error {
	close(s.done)
	return s.db.Close()
}

func (s *SessionStorage) sweepLoop() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.done:
			return
		}
	}
}

// sweep deletes expired entries.
func (s *SessionStorage) sweep() {
	now := time.Now().UnixNano()
	s.db.Update(func(tx *bbolt.Tx) error {
		c := tx.Bucket(sessionBucket).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if len(v) >= 8 {
				expiry := int64(binary.BigEndian.Uint64(v[:8]))
				if expiry > 0 && now > expiry {
					c.Delete()
				}
			}
		}
		return nil
	})
}
