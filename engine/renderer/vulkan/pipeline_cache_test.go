package vulkan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCacheKey() PipelineCacheKey {
	key := PipelineCacheKey{
		VendorID:      0x10de,
		DeviceID:      0x2684,
		DriverID:      4,
		DriverVersion: 0x22580000,
		APIVersion:    uint32(1<<22 | 3<<12), // 1.3
	}
	for i := range key.UUID {
		key.UUID[i] = byte(i)
	}
	return key
}

func TestCacheKeyFileNameUsesDriverID(t *testing.T) {
	name := testCacheKey().FileName()
	assert.Equal(t, "pso_10de_2684_drv_0004_api_1.3_uuid_000102030405060708090a0b0c0d0e0f.bin", name)
}

func TestCacheKeyFileNameFallsBackToDriverVersion(t *testing.T) {
	key := testCacheKey()
	key.DriverID = 0
	assert.Contains(t, key.FileName(), "drvver_22580000")
	assert.NotContains(t, key.FileName(), "drv_0000")
}

func TestCacheKeyFileNameChangesWithEveryComponent(t *testing.T) {
	base := testCacheKey()
	names := map[string]bool{base.FileName(): true}

	mutations := []func(*PipelineCacheKey){
		func(k *PipelineCacheKey) { k.VendorID++ },
		func(k *PipelineCacheKey) { k.DeviceID++ },
		func(k *PipelineCacheKey) { k.DriverID++ },
		func(k *PipelineCacheKey) { k.APIVersion = uint32(1<<22 | 2<<12) },
		func(k *PipelineCacheKey) { k.UUID[15] ^= 0xff },
	}
	for _, mutate := range mutations {
		key := base
		mutate(&key)
		name := key.FileName()
		assert.False(t, names[name], "mutated key produced duplicate name %s", name)
		names[name] = true
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	persistence := PipelineCachePersistence{Dir: t.TempDir(), Key: testCacheKey()}

	blob := []byte("not a real cache blob, but bytes are bytes")
	require.NoError(t, persistence.SaveBlob(blob))
	assert.Equal(t, blob, persistence.LoadSeed())
}

func TestPersistenceSaveOverwritesExisting(t *testing.T) {
	persistence := PipelineCachePersistence{Dir: t.TempDir(), Key: testCacheKey()}

	require.NoError(t, persistence.SaveBlob([]byte("old")))
	require.NoError(t, persistence.SaveBlob([]byte("new and longer")))
	assert.Equal(t, []byte("new and longer"), persistence.LoadSeed())
}

func TestPersistenceLoadSeedMissingFile(t *testing.T) {
	persistence := PipelineCachePersistence{Dir: t.TempDir(), Key: testCacheKey()}
	assert.Nil(t, persistence.LoadSeed())
}

func TestPersistenceLoadSeedEmptyFile(t *testing.T) {
	persistence := PipelineCachePersistence{Dir: t.TempDir(), Key: testCacheKey()}
	require.NoError(t, os.WriteFile(persistence.Path(), nil, 0o644))
	assert.Nil(t, persistence.LoadSeed())
}

func TestPersistenceSaveCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "cache")
	persistence := PipelineCachePersistence{Dir: dir, Key: testCacheKey()}

	require.NoError(t, persistence.SaveBlob([]byte("blob")))
	assert.Equal(t, []byte("blob"), persistence.LoadSeed())
}

func TestPersistenceLeavesNoTempFiles(t *testing.T) {
	persistence := PipelineCachePersistence{Dir: t.TempDir(), Key: testCacheKey()}
	require.NoError(t, persistence.SaveBlob([]byte("blob")))

	entries, err := os.ReadDir(persistence.Dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, persistence.Key.FileName(), entries[0].Name())
}

func TestPersistenceKeysDoNotCollide(t *testing.T) {
	dir := t.TempDir()
	first := PipelineCachePersistence{Dir: dir, Key: testCacheKey()}

	otherKey := testCacheKey()
	otherKey.DeviceID++
	second := PipelineCachePersistence{Dir: dir, Key: otherKey}

	require.NoError(t, first.SaveBlob([]byte("first")))
	require.NoError(t, second.SaveBlob([]byte("second")))

	assert.Equal(t, []byte("first"), first.LoadSeed())
	assert.Equal(t, []byte("second"), second.LoadSeed())
}
