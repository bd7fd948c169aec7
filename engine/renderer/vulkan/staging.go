package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/pangaea-engine/pangaea/engine/core"
	"github.com/pangaea-engine/pangaea/engine/renderer"
)

// stagingMinCapacity is the floor for the staging buffer so small uploads do
// not churn through reallocations.
const stagingMinCapacity = 1 * 1024 * 1024

// StagingUploader owns a persistent host-visible buffer used to push data
// into device-local buffers. The buffer is mapped once at creation and stays
// mapped for its whole lifetime; it grows geometrically and never shrinks.
// Uploads are synchronous on the transfer queue.
type StagingUploader struct {
	context  *VulkanContext
	buffer   *VulkanBuffer
	mapped   unsafe.Pointer
	capacity vk.DeviceSize
	coherent bool

	pool  vk.CommandPool
	queue vk.Queue
	fence *VulkanFence
}

// stagingGrowCapacity computes the next capacity for a required upload size.
// Growth is geometric so a long series of slightly larger uploads does not
// reallocate every time.
func stagingGrowCapacity(current, required vk.DeviceSize) vk.DeviceSize {
	next := current * 2
	if next < required {
		next = required
	}
	if next < stagingMinCapacity {
		next = stagingMinCapacity
	}
	return next
}

func NewStagingUploader(context *VulkanContext) (*StagingUploader, error) {
	uploader := &StagingUploader{
		context: context,
		queue:   context.Device.TransferQueue,
	}

	// A dedicated pool on the transfer family keeps uploads off the graphics
	// pool entirely.
	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: uint32(context.Device.TransferQueueIndex),
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateTransientBit),
	}
	if res := vk.CreateCommandPool(context.Device.LogicalDevice, &poolCreateInfo, context.Allocator, &uploader.pool); res != vk.Success {
		err := fmt.Errorf("failed to create transfer command pool: %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return nil, err
	}

	fence, err := NewFence(context, false)
	if err != nil {
		vk.DestroyCommandPool(context.Device.LogicalDevice, uploader.pool, context.Allocator)
		return nil, err
	}
	uploader.fence = fence

	if err := uploader.ensureCapacity(stagingMinCapacity); err != nil {
		uploader.Destroy()
		return nil, err
	}

	return uploader, nil
}

// Capacity reports the current staging buffer size in bytes.
func (su *StagingUploader) Capacity() vk.DeviceSize {
	return su.capacity
}

func (su *StagingUploader) ensureCapacity(required vk.DeviceSize) error {
	if required <= su.capacity && su.buffer != nil {
		return nil
	}

	newCapacity := stagingGrowCapacity(su.capacity, required)

	// Prefer coherent memory; fall back to plain host-visible with explicit
	// flushes when the device offers none.
	buffer, err := BufferCreate(
		su.context,
		newCapacity,
		vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit),
	)
	coherent := true
	if err != nil {
		buffer, err = BufferCreate(
			su.context,
			newCapacity,
			vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit),
			vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit),
		)
		if err != nil {
			return err
		}
		coherent = false
	}

	var mapped unsafe.Pointer
	if res := vk.MapMemory(su.context.Device.LogicalDevice, buffer.Memory, 0, vk.DeviceSize(vk.WholeSize), 0, &mapped); res != vk.Success {
		buffer.BufferDestroy(su.context)
		err := fmt.Errorf("failed to map staging memory: %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return err
	}

	if su.buffer != nil {
		vk.UnmapMemory(su.context.Device.LogicalDevice, su.buffer.Memory)
		su.buffer.BufferDestroy(su.context)
	}
	su.buffer = buffer
	su.mapped = mapped
	su.capacity = newCapacity
	su.coherent = coherent
	core.LogDebug("staging buffer grown to %d bytes", newCapacity)
	return nil
}

// Upload copies data into dst at dstOffset through the staging buffer and
// blocks until the transfer completes. A zero-length upload is a no-op.
func (su *StagingUploader) Upload(dst *VulkanBuffer, dstOffset vk.DeviceSize, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	size := vk.DeviceSize(len(data))

	if err := su.ensureCapacity(size); err != nil {
		return err
	}

	vk.Memcopy(su.mapped, data)

	if !su.coherent {
		flushRange := vk.MappedMemoryRange{
			SType:  vk.StructureTypeMappedMemoryRange,
			Memory: su.buffer.Memory,
			Offset: 0,
			Size:   vk.DeviceSize(vk.WholeSize),
		}
		if res := vk.FlushMappedMemoryRanges(su.context.Device.LogicalDevice, 1, []vk.MappedMemoryRange{flushRange}); res != vk.Success {
			err := fmt.Errorf("failed to flush staging memory: %s", VulkanResultString(res, true))
			core.LogError(err.Error())
			return err
		}
	}

	cb, err := AllocateAndBeginSingleUse(su.context, su.pool)
	if err != nil {
		return err
	}
	// EndSingleUse leaves the buffer allocated when a fence is supplied, so
	// every exit below releases it here.
	defer func() {
		if cb.Handle != nil {
			cb.Free(su.context, su.pool)
		}
	}()

	copyRegion := vk.BufferCopy{
		SrcOffset: 0,
		DstOffset: dstOffset,
		Size:      size,
	}
	vk.CmdCopyBuffer(cb.Handle, su.buffer.Handle, dst.Handle, 1, []vk.BufferCopy{copyRegion})

	if err := cb.EndSingleUse(su.context, su.pool, su.queue, su.fence.Handle); err != nil {
		return err
	}
	if err := su.fence.FenceWait(su.context, renderer.FenceWaitTimeout); err != nil {
		return err
	}
	return su.fence.FenceReset(su.context)
}

func (su *StagingUploader) Destroy() {
	if su.buffer != nil {
		vk.UnmapMemory(su.context.Device.LogicalDevice, su.buffer.Memory)
		su.buffer.BufferDestroy(su.context)
		su.buffer = nil
		su.mapped = nil
	}
	if su.fence != nil {
		su.fence.FenceDestroy(su.context)
		su.fence = nil
	}
	if su.pool != vk.NullCommandPool {
		vk.DestroyCommandPool(su.context.Device.LogicalDevice, su.pool, su.context.Allocator)
		su.pool = vk.NullCommandPool
	}
	su.capacity = 0
}
