package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"gridflow/internal/repository"
	"gridflow/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSource struct {
	records []repository.FileRecord
	err     error
}

func (s staticSource) Load(context.Context) ([]repository.FileRecord, error) {
	return s.records, s.err
}

func testOptions() service.Options {
	return service.Options{Clipboard: service.ClipboardFunc(func(string) bool { return true })}
}

func TestRegistry_CreateAndGet(t *testing.T) {
	reg := NewRegistry(Config{}, nil, testOptions(), nil)
	defer reg.Close()

	s, err := reg.Create(context.Background())
	require.NoError(t, err)
	assert.Len(t, s.Records(), 3)

	got, err := reg.Get(s.ID())
	require.NoError(t, err)
	assert.Same(t, s, got)
	assert.Equal(t, 1, reg.Len())

	_, err = reg.Get("unknown")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_SessionsAreIsolated(t *testing.T) {
	reg := NewRegistry(Config{}, nil, testOptions(), nil)
	defer reg.Close()

	a, err := reg.Create(context.Background())
	require.NoError(t, err)
	b, err := reg.Create(context.Background())
	require.NoError(t, err)

	require.NoError(t, a.Delete(a.Records()[0].ID))
	assert.Len(t, a.Records(), 2)
	assert.Len(t, b.Records(), 3)
}

func TestRegistry_DeleteClosesSession(t *testing.T) {
	reg := NewRegistry(Config{}, nil, testOptions(), nil)
	defer reg.Close()

	s, err := reg.Create(context.Background())
	require.NoError(t, err)

	require.NoError(t, reg.Delete(s.ID()))
	assert.ErrorIs(t, reg.Delete(s.ID()), ErrNotFound)

	_, err = s.Stage(service.NewBytesHandle("a.png", "image/png", nil))
	assert.ErrorIs(t, err, service.ErrSessionClosed)
}

func TestRegistry_CapacityEvictsOldest(t *testing.T) {
	reg := NewRegistry(Config{MaxSessions: 2}, nil, testOptions(), nil)
	defer reg.Close()

	first, err := reg.Create(context.Background())
	require.NoError(t, err)
	_, err = reg.Create(context.Background())
	require.NoError(t, err)
	_, err = reg.Create(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, reg.Len())
	_, err = reg.Get(first.ID())
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = first.ConfirmUpload()
	assert.ErrorIs(t, err, service.ErrSessionClosed)
}

func TestRegistry_IdleSessionsExpire(t *testing.T) {
	reg := NewRegistry(Config{TTL: 50 * time.Millisecond}, nil, testOptions(), nil)
	defer reg.Close()

	s, err := reg.Create(context.Background())
	require.NoError(t, err)

	require.Eventually(t, func() bool { return reg.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
	_, err = s.Stage(service.NewBytesHandle("a.png", "image/png", nil))
	assert.ErrorIs(t, err, service.ErrSessionClosed)
}

func TestRegistry_SeedFailure(t *testing.T) {
	boom := errors.New("seed unavailable")
	reg := NewRegistry(Config{}, staticSource{err: boom}, testOptions(), nil)
	defer reg.Close()

	_, err := reg.Create(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, reg.Len())
}

func TestRegistry_DuplicateSeedRejected(t *testing.T) {
	dup := []repository.FileRecord{{ID: "aaaaaaaaaaaaaaaaaaaaaaaa"}, {ID: "aaaaaaaaaaaaaaaaaaaaaaaa"}}
	reg := NewRegistry(Config{}, staticSource{records: dup}, testOptions(), nil)
	defer reg.Close()

	_, err := reg.Create(context.Background())
	assert.ErrorIs(t, err, repository.ErrDuplicateID)
}
