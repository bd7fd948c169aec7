package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/pangaea-engine/pangaea/engine/core"
)

// DiagnosticHooks is the optional debug capability of a context. It is
// populated once at context creation and threaded through explicitly; there
// is no file-scope diagnostic state.
type DiagnosticHooks struct {
	Messenger vk.DebugReportCallback
	Enabled   bool
}

type VulkanContext struct {
	// The framebuffer's current width.
	FramebufferWidth uint32
	// The framebuffer's current height.
	FramebufferHeight uint32

	Instance  vk.Instance
	Allocator *vk.AllocationCallbacks
	Surface   vk.Surface

	Diagnostics DiagnosticHooks

	// VSync pins presentation to the display refresh (FIFO); when false the
	// swapchain prefers mailbox presentation where the surface offers it.
	VSync bool

	Device *VulkanDevice

	Swapchain      *VulkanSwapchain
	MainRenderpass *VulkanRenderpass
}

func (vc *VulkanContext) FindMemoryIndex(typeFilter, propertyFlags uint32) int32 {
	var memoryProperties vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(vc.Device.PhysicalDevice, &memoryProperties)
	memoryProperties.Deref()

	for i := uint32(0); i < memoryProperties.MemoryTypeCount; i++ {
		// Check each memory type to see if its bit is set to 1.
		memoryProperties.MemoryTypes[i].Deref()
		if (typeFilter&(1<<i)) != 0 && (uint32(memoryProperties.MemoryTypes[i].PropertyFlags)&propertyFlags) == propertyFlags {
			return int32(i)
		}
	}
	core.LogWarn("Unable to find suitable memory type!")
	return -1
}
