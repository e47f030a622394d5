package prefab

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/scenekit/internal/core/observability/log"
)

const sampleSnapshot = `{"entities":[0],"name":[{"entity":0,"value":{"name":"crate"}}]}`

func openLibrary(t *testing.T, dir string) *Library {
	t.Helper()
	lib, err := Open(context.Background(), dir, log.Nop())
	require.NoError(t, err)
	return lib
}

func TestPutGetFind(t *testing.T) {
	lib := openLibrary(t, t.TempDir())

	p, err := lib.Put("crate", "json", []byte(sampleSnapshot))
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, p.ID)
	assert.Equal(t, "json", p.Format)
	require.NoError(t, p.Verify())

	got, err := lib.Get(p.ID)
	require.NoError(t, err)
	assert.Equal(t, p, got)

	byName, err := lib.Find("crate")
	require.NoError(t, err)
	assert.Equal(t, p.ID, byName.ID)

	_, err = lib.Find("barrel")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = lib.Put("bad", "toml", nil)
	assert.Error(t, err)
}

func TestReturnedPrefabsAreCopies(t *testing.T) {
	lib := openLibrary(t, t.TempDir())
	p, err := lib.Put("crate", "json", []byte(sampleSnapshot))
	require.NoError(t, err)

	p.Data[0] = 'X'
	stored, err := lib.Get(p.ID)
	require.NoError(t, err)
	require.NoError(t, stored.Verify())
	assert.ErrorIs(t, p.Verify(), ErrCorrupt)
}

func TestFlushAndReopen(t *testing.T) {
	dir := t.TempDir()
	lib := openLibrary(t, dir)

	crate, err := lib.Put("crate", "json", []byte(sampleSnapshot))
	require.NoError(t, err)
	lamp, err := lib.Put("lamp", "yaml", []byte("entities: [0]\n"))
	require.NoError(t, err)
	require.NoError(t, lib.Flush(context.Background()))

	assert.FileExists(t, filepath.Join(dir, crate.ID.String()+".prefab.json"))
	assert.FileExists(t, filepath.Join(dir, lamp.ID.String()+".prefab.yaml"))

	reopened := openLibrary(t, dir)
	list := reopened.List()
	require.Len(t, list, 2)
	assert.Equal(t, "crate", list[0].Name)
	assert.Equal(t, "lamp", list[1].Name)
	assert.Equal(t, crate.Data, list[0].Data)
	assert.Equal(t, lamp.Checksum, list[1].Checksum)

	require.NoError(t, reopened.Delete(crate.ID))
	assert.ErrorIs(t, reopened.Delete(crate.ID), ErrNotFound)
	require.NoError(t, reopened.Flush(context.Background()))
	assert.NoFileExists(t, filepath.Join(dir, crate.ID.String()+".prefab.json"))
	assert.Len(t, openLibrary(t, dir).List(), 1)
}

func TestOpenRejectsCorruptFiles(t *testing.T) {
	dir := t.TempDir()
	lib := openLibrary(t, dir)
	p, err := lib.Put("crate", "json", []byte(sampleSnapshot))
	require.NoError(t, err)
	require.NoError(t, lib.Flush(context.Background()))

	path := filepath.Join(dir, p.ID.String()+".prefab.json")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	// the name field comes first; the last match is inside the snapshot text
	text := string(data)
	i := strings.LastIndex(text, "crate")
	require.Positive(t, i)
	tampered := text[:i] + "crat3" + text[i+len("crate"):]
	require.NoError(t, os.WriteFile(path, []byte(tampered), 0o644))

	_, err = Open(context.Background(), dir, log.Nop())
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestOpenIgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scene.json"), []byte("{}"), 0o644))
	assert.Empty(t, openLibrary(t, dir).List())
}
