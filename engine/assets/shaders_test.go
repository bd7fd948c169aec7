package assets

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeSPIRV(words int) []byte {
	data := make([]byte, 4*(words+1))
	copy(data, spirvMagic)
	for i := 1; i <= words; i++ {
		binary.LittleEndian.PutUint32(data[i*4:], uint32(i))
	}
	return data
}

func TestLoadSPIRVReadsAndCaches(t *testing.T) {
	dir := t.TempDir()
	blob := fakeSPIRV(8)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "triangle.vert.spv"), blob, 0o644))

	store := NewShaderStore(dir)

	loaded, err := store.LoadSPIRV("triangle.vert")
	require.NoError(t, err)
	assert.Equal(t, blob, loaded)
	assert.Equal(t, 1, store.CachedCount())

	// A second load is served from cache even if the file disappears.
	require.NoError(t, os.Remove(filepath.Join(dir, "triangle.vert.spv")))
	loaded, err = store.LoadSPIRV("triangle.vert.spv")
	require.NoError(t, err)
	assert.Equal(t, blob, loaded)
}

func TestLoadSPIRVMissingFile(t *testing.T) {
	store := NewShaderStore(t.TempDir())
	_, err := store.LoadSPIRV("nope.frag")
	assert.Error(t, err)
}

func TestLoadSPIRVRejectsCorruptBlob(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.spv"), []byte("not spirv"), 0o644))

	store := NewShaderStore(dir)
	_, err := store.LoadSPIRV("bad")
	assert.ErrorContains(t, err, "SPIR-V")
}

func TestStoreAnonymousRoundTrip(t *testing.T) {
	store := NewShaderStore(t.TempDir())
	blob := fakeSPIRV(4)

	name, err := store.StoreAnonymous(blob)
	require.NoError(t, err)
	assert.True(t, filepath.Ext(name) == ".spv")

	loaded, err := store.LoadSPIRV(name)
	require.NoError(t, err)
	assert.Equal(t, blob, loaded)
}

func TestStoreAnonymousNamesAreUnique(t *testing.T) {
	store := NewShaderStore(t.TempDir())
	blob := fakeSPIRV(2)

	first, err := store.StoreAnonymous(blob)
	require.NoError(t, err)
	second, err := store.StoreAnonymous(blob)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestInvalidateForcesReread(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reload.spv")
	require.NoError(t, os.WriteFile(path, fakeSPIRV(2), 0o644))

	store := NewShaderStore(dir)
	_, err := store.LoadSPIRV("reload")
	require.NoError(t, err)

	updated := fakeSPIRV(6)
	require.NoError(t, os.WriteFile(path, updated, 0o644))
	store.Invalidate("reload.spv")

	loaded, err := store.LoadSPIRV("reload")
	require.NoError(t, err)
	assert.Equal(t, updated, loaded)
}

func TestWatcherInvalidatesAndNotifies(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "watched.spv")
	require.NoError(t, os.WriteFile(path, fakeSPIRV(2), 0o644))

	store := NewShaderStore(dir)
	_, err := store.LoadSPIRV("watched")
	require.NoError(t, err)

	watcher, err := NewShaderWatcher(store)
	require.NoError(t, err)
	defer watcher.Close()

	updated := fakeSPIRV(5)
	require.NoError(t, os.WriteFile(path, updated, 0o644))

	select {
	case name := <-watcher.Changed():
		assert.Equal(t, "watched.spv", name)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for shader change notification")
	}

	loaded, err := store.LoadSPIRV("watched")
	require.NoError(t, err)
	assert.Equal(t, updated, loaded)
}
