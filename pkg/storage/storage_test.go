package storage

import (
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupLocalStorage(t *testing.T) *LocalStorage {
	store, err := NewLocalStorage(LocalConfig{Path: t.TempDir()})
	require.NoError(t, err)
	return store
}

func TestLocalStorage_SaveAndGet(t *testing.T) {
	store := setupLocalStorage(t)
	content := "chunking splits long documents into pieces"

	info, err := store.Save(strings.NewReader(content), "notes.txt")
	require.NoError(t, err)
	assert.NotEmpty(t, info.ID)
	assert.Equal(t, "notes.txt", info.Name)
	assert.Equal(t, int64(len(content)), info.Size)
	assert.Equal(t, "text/plain", info.MimeType)

	// 保存路径直接可读
	_, err = os.Stat(info.Path)
	require.NoError(t, err)

	reader, err := store.Get(info.ID)
	require.NoError(t, err)
	defer reader.Close()

	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, content, string(data))

	t.Run("missing file", func(t *testing.T) {
		_, err := store.Get("no-such-id")
		assert.ErrorIs(t, err, ErrFileNotFound)
	})
}

func TestLocalStorage_Delete(t *testing.T) {
	store := setupLocalStorage(t)

	info, err := store.Save(strings.NewReader("content"), "doc.pdf")
	require.NoError(t, err)

	require.NoError(t, store.Delete(info.ID))

	exists, err := store.Exists(info.ID)
	require.NoError(t, err)
	assert.False(t, exists)

	t.Run("missing file", func(t *testing.T) {
		err := store.Delete("no-such-id")
		assert.ErrorIs(t, err, ErrFileNotFound)
	})
}

func TestLocalStorage_ListAndExists(t *testing.T) {
	store := setupLocalStorage(t)

	first, err := store.Save(strings.NewReader("first"), "a.txt")
	require.NoError(t, err)
	second, err := store.Save(strings.NewReader("second"), "b.md")
	require.NoError(t, err)

	files, err := store.List()
	require.NoError(t, err)
	require.Len(t, files, 2)

	ids := []string{files[0].ID, files[1].ID}
	assert.Contains(t, ids, first.ID)
	assert.Contains(t, ids, second.ID)

	exists, err := store.Exists(first.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.Exists("no-such-id")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestGetMimeType(t *testing.T) {
	assert.Equal(t, "application/pdf", getMimeType("report.PDF"))
	assert.Equal(t, "text/markdown", getMimeType("readme.md"))
	assert.Equal(t, "text/markdown", getMimeType("readme.markdown"))
	assert.Equal(t, "text/plain", getMimeType("notes.txt"))
	assert.Equal(t, "application/octet-stream", getMimeType("binary.bin"))
}

func TestNewStorage(t *testing.T) {
	t.Run("local by default", func(t *testing.T) {
		store, err := NewStorage(Config{Local: LocalConfig{Path: t.TempDir()}})
		require.NoError(t, err)
		_, ok := store.(*LocalStorage)
		assert.True(t, ok)
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := NewStorage(Config{Type: "s3"})
		assert.Error(t, err)
	})
}
