package local

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"gridflow/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_WriteThenRead(t *testing.T) {
	store, err := New(t.TempDir(), "http://localhost:8080/objects")
	require.NoError(t, err)

	loc, err := store.Write(context.Background(), "1a2b3c4d_report.pdf", strings.NewReader("%PDF-1.4"), "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/objects/1a2b3c4d_report.pdf", loc.URL)

	rc, err := store.Read(context.Background(), "1a2b3c4d_report.pdf")
	require.NoError(t, err)
	defer rc.Close()

	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(body))
}

func TestStore_ReadMissing(t *testing.T) {
	store, err := New(t.TempDir(), "")
	require.NoError(t, err)

	_, err = store.Read(context.Background(), "missing.bin")
	assert.True(t, errors.Is(err, storage.ErrObjectNotFound))
}

func TestStore_RejectsTraversal(t *testing.T) {
	store, err := New(t.TempDir(), "")
	require.NoError(t, err)

	_, err = store.Write(context.Background(), "../escape.txt", strings.NewReader("x"), "text/plain")
	assert.Error(t, err)
}

func TestStore_WriteHonoursCancelledContext(t *testing.T) {
	store, err := New(t.TempDir(), "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = store.Write(ctx, "a.txt", strings.NewReader("x"), "text/plain")
	assert.ErrorIs(t, err, context.Canceled)
}
