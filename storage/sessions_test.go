package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *SessionStorage {
	t.Helper()

	s, err := NewSessionStorage(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSessionStorageSetGet(t *testing.T) {
	s := newTestStorage(t)

	require.NoError(t, s.Set("sid", []byte("payload"), time.Minute))

	got, err := s.Get("sid")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)
}

func TestSessionStorageMissingKey(t *testing.T) {
	s := newTestStorage(t)

	got, err := s.Get("missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSessionStorageExpiry(t *testing.T) {
	s := newTestStorage(t)

	require.NoError(t, s.Set("sid", []byte("payload"), 10*time.Millisecond))
	time.Sleep(20 * time.Millisecond)

	got, err := s.Get("sid")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSessionStorageZeroExpiryNeverExpires(t *testing.T) {
	s := newTestStorage(t)

	require.NoError(t, s.Set("sid", []byte("payload"), 0))

	got, err := s.Get("sid")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)
}

func TestSessionStorageDelete(t *testing.T) {
	s := newTestStorage(t)

	require.NoError(t, s.Set("sid", []byte("payload"), time.Minute))
	require.NoError(t, s.Delete("sid"))

	got, err := s.Get("sid")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSessionStorageReset(t *testing.T) {
	s := newTestStorage(t)

	require.NoError(t, s.Set("a", []byte("1"), time.Minute))
	require.NoError(t, s.Set("b", []byte("2"), time.Minute))
	require.NoError(t, s.Reset())

	got, err := s.Get("a")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSessionStorageSweep(t *testing.T) {
	s := newTestStorage(t)

	require.NoError(t, s.Set("old", []byte("1"), 5*time.Millisecond))
	require.NoError(t, s.Set("fresh", []byte("2"), time.Minute))
	time.Sleep(10 * time.Millisecond)

	s.sweep()

	got, err := s.Get("fresh")
	require.NoError(t, err)
	assert.Equal(t, []byte("2"), got)
}
