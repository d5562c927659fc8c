package storage

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doc struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "doc.json")
	require.NoError(t, Save(path, doc{Name: "afr", Count: 3}))

	var got doc
	ok, err := Load(path, &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, doc{Name: "afr", Count: 3}, got)

	// No temp file left behind.
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestLoadMissingFile(t *testing.T) {
	var got doc
	ok, err := Load(filepath.Join(t.TempDir(), "absent.json"), &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoadEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	var got doc
	ok, err := Load(path, &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoadCorruptFileWarnsAndStartsFresh(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	defer slog.SetDefault(prev)

	path := filepath.Join(t.TempDir(), "mangled.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"name": "afr", "count":`), 0o600))

	var got doc
	ok, err := Load(path, &got)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, buf.String(), "discarding unparseable document")
	assert.Contains(t, buf.String(), "mangled.json")
}

func TestRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")
	require.NoError(t, Save(path, doc{}))
	require.NoError(t, Remove(path))
	require.NoError(t, Remove(path)) // idempotent

	var got doc
	ok, err := Load(path, &got)
	require.NoError(t, err)
	assert.False(t, ok)
}
