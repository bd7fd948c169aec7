package vulkan

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/pangaea-engine/pangaea/engine/core"
)

// PipelineCacheKey identifies the device and driver a pipeline cache blob was
// produced by. Blobs from a different key are useless to the driver, so the
// key is baked into the file name and a mismatch simply loads nothing.
type PipelineCacheKey struct {
	VendorID      uint32
	DeviceID      uint32
	DriverID      uint32
	DriverVersion uint32
	APIVersion    uint32
	UUID          [16]byte
}

// FileName derives the on-disk name for this key. DriverID is the stable
// discriminator when the driver reports one; otherwise the raw driver version
// stands in, which invalidates the cache on driver upgrades.
func (key PipelineCacheKey) FileName() string {
	driver := fmt.Sprintf("drv_%04x", key.DriverID)
	if key.DriverID == 0 {
		driver = fmt.Sprintf("drvver_%08x", key.DriverVersion)
	}
	version := vk.Version(key.APIVersion)
	return fmt.Sprintf("pso_%04x_%04x_%s_api_%d.%d_uuid_%s.bin",
		key.VendorID,
		key.DeviceID,
		driver,
		version.Major(),
		version.Minor(),
		hex.EncodeToString(key.UUID[:]),
	)
}

// PipelineCacheKeyFromProperties builds the key from device properties.
// driverID comes from VkPhysicalDeviceVulkan12Properties when available and
// is zero otherwise.
func PipelineCacheKeyFromProperties(properties vk.PhysicalDeviceProperties, driverID uint32) PipelineCacheKey {
	key := PipelineCacheKey{
		VendorID:      properties.VendorID,
		DeviceID:      properties.DeviceID,
		DriverID:      driverID,
		DriverVersion: properties.DriverVersion,
		APIVersion:    properties.ApiVersion,
	}
	copy(key.UUID[:], properties.PipelineCacheUUID[:])
	return key
}

// PipelineCachePersistence stores pipeline cache blobs under a directory,
// one file per device/driver key.
type PipelineCachePersistence struct {
	Dir string
	Key PipelineCacheKey
}

func (p *PipelineCachePersistence) Path() string {
	return filepath.Join(p.Dir, p.Key.FileName())
}

// LoadSeed returns the previously saved blob for this key, or nil when none
// exists. A missing or unreadable file is not an error; the driver simply
// starts with a cold cache.
func (p *PipelineCachePersistence) LoadSeed() []byte {
	data, err := os.ReadFile(p.Path())
	if err != nil {
		if !os.IsNotExist(err) {
			core.LogWarn("pipeline cache seed unreadable, starting cold: %v", err)
		}
		return nil
	}
	if len(data) == 0 {
		return nil
	}
	core.LogInfo("Loaded pipeline cache seed (%d bytes).", len(data))
	return data
}

// SaveBlob writes data atomically: a temp file in the same directory is
// synced and renamed over the target. Some filesystems refuse to rename over
// an existing file, so on failure the target is removed and the rename
// retried once.
func (p *PipelineCachePersistence) SaveBlob(data []byte) error {
	if err := os.MkdirAll(p.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create pipeline cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(p.Dir, p.Key.FileName()+".tmp*")
	if err != nil {
		return fmt.Errorf("failed to create pipeline cache temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write pipeline cache blob: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync pipeline cache blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close pipeline cache temp file: %w", err)
	}

	target := p.Path()
	if err := os.Rename(tmpName, target); err != nil {
		if removeErr := os.Remove(target); removeErr != nil && !os.IsNotExist(removeErr) {
			return fmt.Errorf("failed to replace pipeline cache blob: %w", err)
		}
		if err := os.Rename(tmpName, target); err != nil {
			return fmt.Errorf("failed to rename pipeline cache blob: %w", err)
		}
	}
	core.LogInfo("Saved pipeline cache blob (%d bytes) to %s.", len(data), target)
	return nil
}

// VulkanPipelineCache couples a device pipeline cache with its persistence.
type VulkanPipelineCache struct {
	Handle      vk.PipelineCache
	Persistence PipelineCachePersistence
}

// PipelineCacheCreate creates the device cache, seeded from disk when a blob
// for this device/driver key exists. A rejected seed is discarded and the
// cache created empty; stale blobs must never fail startup.
func PipelineCacheCreate(context *VulkanContext, dir string, driverID uint32) (*VulkanPipelineCache, error) {
	cache := &VulkanPipelineCache{
		Persistence: PipelineCachePersistence{
			Dir: dir,
			Key: PipelineCacheKeyFromProperties(context.Device.Properties, driverID),
		},
	}

	seed := cache.Persistence.LoadSeed()
	createInfo := vk.PipelineCacheCreateInfo{
		SType: vk.StructureTypePipelineCacheCreateInfo,
	}
	if len(seed) > 0 {
		createInfo.InitialDataSize = uint(len(seed))
		createInfo.PInitialData = unsafe.Pointer(&seed[0])
	}

	var handle vk.PipelineCache
	res := vk.CreatePipelineCache(context.Device.LogicalDevice, &createInfo, context.Allocator, &handle)
	if res != vk.Success && len(seed) > 0 {
		core.LogWarn("pipeline cache seed rejected (%s), creating empty cache", VulkanResultString(res, false))
		createInfo.InitialDataSize = 0
		createInfo.PInitialData = nil
		res = vk.CreatePipelineCache(context.Device.LogicalDevice, &createInfo, context.Allocator, &handle)
	}
	if res != vk.Success {
		err := fmt.Errorf("failed to create pipeline cache: %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return nil, err
	}
	cache.Handle = handle
	return cache, nil
}

// SaveToDisk snapshots the device cache and persists it.
func (pc *VulkanPipelineCache) SaveToDisk(context *VulkanContext) error {
	var size uint
	if res := vk.GetPipelineCacheData(context.Device.LogicalDevice, pc.Handle, &size, nil); res != vk.Success {
		err := fmt.Errorf("failed to get pipeline cache data size: %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return err
	}
	if size == 0 {
		return nil
	}

	data := make([]byte, size)
	if res := vk.GetPipelineCacheData(context.Device.LogicalDevice, pc.Handle, &size, unsafe.Pointer(&data[0])); res != vk.Success {
		err := fmt.Errorf("failed to get pipeline cache data: %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return err
	}

	return pc.Persistence.SaveBlob(data[:size])
}

func (pc *VulkanPipelineCache) Destroy(context *VulkanContext) {
	if pc.Handle != vk.NullPipelineCache {
		vk.DestroyPipelineCache(context.Device.LogicalDevice, pc.Handle, context.Allocator)
		pc.Handle = vk.NullPipelineCache
	}
}
