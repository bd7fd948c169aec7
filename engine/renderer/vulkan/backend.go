package vulkan

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"
	"github.com/pangaea-engine/pangaea/engine/core"
	"github.com/pangaea-engine/pangaea/engine/platform"
	"github.com/pangaea-engine/pangaea/engine/renderer"
)

// VulkanRenderer is the device-facing half of the frame loop. Sync objects
// are split by lifetime: acquire semaphores and fences belong to the fixed
// frame slots, render-finished semaphores and command buffers belong to the
// swapchain images and are rebuilt on every recreation.
type VulkanRenderer struct {
	platform *platform.Platform
	context  *VulkanContext
	debug    bool
	cacheDir string

	// Per-slot, fixed at renderer.MaxFramesInFlight.
	imageAvailableSemaphores []vk.Semaphore
	inFlightFences           []*VulkanFence

	// Per-image, sized to the current swapchain.
	renderFinishedSemaphores []vk.Semaphore
	commandBuffers           []*VulkanCommandBuffer

	PipelineCache *VulkanPipelineCache
	Staging       *StagingUploader
	Descriptors   *DescriptorArena

	// UpdateFn refreshes per-frame dynamic inputs before recording. Optional.
	UpdateFn func(imageIndex uint32, deltaTime float64) error
	// RenderFn records draw commands inside the main renderpass. Optional; a
	// nil RenderFn still clears the frame.
	RenderFn func(commandBuffer *VulkanCommandBuffer, imageIndex uint32) error
	// SwapchainRecreatedFn runs after a recreation that replaced the main
	// renderpass. Pipelines created against the old renderpass are invalid
	// and must be rebuilt here. Optional.
	SwapchainRecreatedFn func() error
}

var _ renderer.Backend = (*VulkanRenderer)(nil)

func New(p *platform.Platform, debug, vsync bool, cacheDir string) *VulkanRenderer {
	return &VulkanRenderer{
		platform: p,
		debug:    debug,
		cacheDir: cacheDir,
		context: &VulkanContext{
			Allocator: nil,
			VSync:     vsync,
			Device: &VulkanDevice{
				GraphicsQueueIndex: -1,
				PresentQueueIndex:  -1,
				TransferQueueIndex: -1,
			},
		},
	}
}

func (vr *VulkanRenderer) Initialize(appName string, appWidth, appHeight uint32) error {
	procAddr := glfw.GetVulkanGetInstanceProcAddress()
	if procAddr == nil {
		err := fmt.Errorf("vulkan loader is not available")
		core.LogError(err.Error())
		return err
	}
	vk.SetGetInstanceProcAddr(procAddr)

	if err := vk.Init(); err != nil {
		core.LogError("failed to initialize vulkan bindings: %s", err)
		return err
	}

	vr.context.FramebufferWidth = appWidth
	vr.context.FramebufferHeight = appHeight

	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 2, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(appName),
		PEngineName:        VulkanSafeString("Pangaea Engine"),
	}

	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	requiredExtensions := requiredInstanceExtensions(vr.platform.RequiredExtensions(), runtime.GOOS, vr.debug)
	if runtime.GOOS == "darwin" {
		// MoltenVK devices stay hidden unless portability enumeration is on.
		createInfo.Flags |= 1
	}
	if vr.debug {
		core.LogInfo("Required extensions:")
		for _, name := range requiredExtensions {
			core.LogInfo("  %s", name)
		}
	}
	createInfo.EnabledExtensionCount = uint32(len(requiredExtensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(requiredExtensions)

	var requiredLayers []string
	if vr.debug {
		core.LogInfo("Validation layers enabled. Enumerating...")
		requiredLayers = []string{"VK_LAYER_KHRONOS_validation"}

		var availableLayerCount uint32
		if res := vk.EnumerateInstanceLayerProperties(&availableLayerCount, nil); res != vk.Success {
			err := fmt.Errorf("failed to enumerate instance layers: %s", VulkanResultString(res, true))
			core.LogError(err.Error())
			return err
		}
		availableLayers := make([]vk.LayerProperties, availableLayerCount)
		if res := vk.EnumerateInstanceLayerProperties(&availableLayerCount, availableLayers); res != vk.Success {
			err := fmt.Errorf("failed to enumerate instance layers: %s", VulkanResultString(res, true))
			core.LogError(err.Error())
			return err
		}

		for _, required := range requiredLayers {
			found := false
			for j := range availableLayers {
				availableLayers[j].Deref()
				name := availableLayers[j].LayerName[:]
				if required == string(name[:FindFirstZeroInByteArray(name)]) {
					found = true
					break
				}
			}
			if !found {
				err := fmt.Errorf("required validation layer is missing: %s", required)
				core.LogError(err.Error())
				return err
			}
		}
		core.LogInfo("All required validation layers are present.")
	}
	createInfo.EnabledLayerCount = uint32(len(requiredLayers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(requiredLayers)

	if res := vk.CreateInstance(&createInfo, vr.context.Allocator, &vr.context.Instance); res != vk.Success {
		err := fmt.Errorf("failed to create vulkan instance: %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return err
	}
	if err := vk.InitInstance(vr.context.Instance); err != nil {
		core.LogError(err.Error())
		return err
	}
	core.LogInfo("Vulkan Instance created.")

	if vr.debug {
		core.LogDebug("Creating Vulkan debugger...")
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: dbgCallbackFunc,
		}

		var dbg vk.DebugReportCallback
		if res := vk.CreateDebugReportCallback(vr.context.Instance, &debugCreateInfo, nil, &dbg); res != vk.Success {
			err := fmt.Errorf("failed to create debug report callback: %s", VulkanResultString(res, true))
			core.LogError(err.Error())
			return err
		}
		vr.context.Diagnostics = DiagnosticHooks{Messenger: dbg, Enabled: true}
		core.LogDebug("Vulkan debugger created.")
	}

	core.LogDebug("Creating Vulkan surface...")
	surface, err := vr.platform.Window.CreateWindowSurface(vr.context.Instance, nil)
	if err != nil {
		core.LogError("Vulkan surface creation failed: %s", err)
		return err
	}
	vr.context.Surface = vk.SurfaceFromPointer(surface)
	core.LogDebug("Vulkan surface created.")

	if err := DeviceCreate(vr.context); err != nil {
		return err
	}

	sc, err := SwapchainCreate(vr.context, vr.context.FramebufferWidth, vr.context.FramebufferHeight)
	if err != nil {
		return err
	}
	vr.context.Swapchain = sc

	rp, err := RenderpassCreate(
		vr.context,
		0, 0, float32(vr.context.FramebufferWidth), float32(vr.context.FramebufferHeight),
		0.0, 0.0, 0.2, 1.0,
		1.0,
		0)
	if err != nil {
		return err
	}
	vr.context.MainRenderpass = rp

	if err := vr.regenerateFramebuffers(); err != nil {
		return err
	}
	if err := vr.createCommandBuffers(); err != nil {
		return err
	}

	// Slot sync objects. Fences start signaled so the first wait on each
	// slot falls through.
	slotCount := int(renderer.MaxFramesInFlight)
	vr.imageAvailableSemaphores = make([]vk.Semaphore, slotCount)
	vr.inFlightFences = make([]*VulkanFence, slotCount)
	for i := 0; i < slotCount; i++ {
		semaphoreCreateInfo := vk.SemaphoreCreateInfo{
			SType: vk.StructureTypeSemaphoreCreateInfo,
		}
		if res := vk.CreateSemaphore(vr.context.Device.LogicalDevice, &semaphoreCreateInfo, vr.context.Allocator, &vr.imageAvailableSemaphores[i]); res != vk.Success {
			err := fmt.Errorf("failed to create acquire semaphore: %s", VulkanResultString(res, true))
			core.LogError(err.Error())
			return err
		}

		fence, err := NewFence(vr.context, true)
		if err != nil {
			return err
		}
		vr.inFlightFences[i] = fence
	}

	if err := vr.createImageSync(); err != nil {
		return err
	}

	cache, err := PipelineCacheCreate(vr.context, vr.cacheDir, 0)
	if err != nil {
		return err
	}
	vr.PipelineCache = cache

	staging, err := NewStagingUploader(vr.context)
	if err != nil {
		return err
	}
	vr.Staging = staging

	arena, err := NewDescriptorArena(vr.context, nil)
	if err != nil {
		return err
	}
	vr.Descriptors = arena

	core.LogInfo("Vulkan renderer initialized successfully.")
	return nil
}

func (vr *VulkanRenderer) Shutdown() error {
	vk.DeviceWaitIdle(vr.context.Device.LogicalDevice)

	if vr.PipelineCache != nil {
		if err := vr.PipelineCache.SaveToDisk(vr.context); err != nil {
			core.LogWarn("failed to persist pipeline cache: %v", err)
		}
		vr.PipelineCache.Destroy(vr.context)
		vr.PipelineCache = nil
	}

	if vr.Descriptors != nil {
		vr.Descriptors.Destroy()
		vr.Descriptors = nil
	}
	if vr.Staging != nil {
		vr.Staging.Destroy()
		vr.Staging = nil
	}

	vr.destroyImageSync()

	for i := range vr.inFlightFences {
		if vr.imageAvailableSemaphores[i] != vk.NullSemaphore {
			vk.DestroySemaphore(vr.context.Device.LogicalDevice, vr.imageAvailableSemaphores[i], vr.context.Allocator)
			vr.imageAvailableSemaphores[i] = vk.NullSemaphore
		}
		vr.inFlightFences[i].FenceDestroy(vr.context)
	}
	vr.imageAvailableSemaphores = nil
	vr.inFlightFences = nil

	vr.destroyCommandBuffers()

	vr.context.MainRenderpass.RenderpassDestroy(vr.context)
	vr.context.Swapchain.SwapchainDestroy(vr.context)

	core.LogDebug("Destroying Vulkan device...")
	DeviceDestroy(vr.context)

	core.LogDebug("Destroying Vulkan surface...")
	if vr.context.Surface != vk.NullSurface {
		vk.DestroySurface(vr.context.Instance, vr.context.Surface, vr.context.Allocator)
		vr.context.Surface = vk.NullSurface
	}

	if vr.context.Diagnostics.Enabled {
		core.LogDebug("Destroying Vulkan debugger...")
		if vr.context.Diagnostics.Messenger != vk.NullDebugReportCallback {
			vk.DestroyDebugReportCallback(vr.context.Instance, vr.context.Diagnostics.Messenger, vr.context.Allocator)
		}
		vr.context.Diagnostics = DiagnosticHooks{}
	}

	core.LogDebug("Destroying Vulkan instance...")
	vk.DestroyInstance(vr.context.Instance, vr.context.Allocator)
	return nil
}

// Context exposes the underlying context for pipeline and resource creation.
func (vr *VulkanRenderer) Context() *VulkanContext {
	return vr.context
}

func (vr *VulkanRenderer) ImageCount() uint32 {
	return vr.context.Swapchain.ImageCount
}

func (vr *VulkanRenderer) WaitForSlotFence(slot uint32, timeoutNS uint64) error {
	return vr.inFlightFences[slot].FenceWait(vr.context, timeoutNS)
}

func (vr *VulkanRenderer) ResetSlotFence(slot uint32) error {
	return vr.inFlightFences[slot].FenceReset(vr.context)
}

func (vr *VulkanRenderer) AcquireNextImage(slot uint32, timeoutNS uint64) (uint32, renderer.SurfaceStatus, error) {
	return vr.context.Swapchain.SwapchainAcquireNextImageIndex(
		vr.context,
		timeoutNS,
		vr.imageAvailableSemaphores[slot],
		vk.NullFence)
}

func (vr *VulkanRenderer) UpdateFrameData(imageIndex uint32, deltaTime float64) error {
	if vr.UpdateFn != nil {
		return vr.UpdateFn(imageIndex, deltaTime)
	}
	return nil
}

func (vr *VulkanRenderer) RecordCommands(imageIndex uint32) error {
	commandBuffer := vr.commandBuffers[imageIndex]
	commandBuffer.Reset()
	if err := commandBuffer.Begin(false, false, false); err != nil {
		return err
	}

	viewport := vk.Viewport{
		X:        0.0,
		Y:        0.0,
		Width:    float32(vr.context.FramebufferWidth),
		Height:   float32(vr.context.FramebufferHeight),
		MinDepth: 0.0,
		MaxDepth: 1.0,
	}
	scissor := vk.Rect2D{
		Offset: vk.Offset2D{X: 0, Y: 0},
		Extent: vk.Extent2D{
			Width:  vr.context.FramebufferWidth,
			Height: vr.context.FramebufferHeight,
		},
	}
	vk.CmdSetViewport(commandBuffer.Handle, 0, 1, []vk.Viewport{viewport})
	vk.CmdSetScissor(commandBuffer.Handle, 0, 1, []vk.Rect2D{scissor})

	vr.context.MainRenderpass.W = float32(vr.context.FramebufferWidth)
	vr.context.MainRenderpass.H = float32(vr.context.FramebufferHeight)
	vr.context.MainRenderpass.RenderpassBegin(commandBuffer, vr.context.Swapchain.Framebuffers[imageIndex].Handle)

	if vr.RenderFn != nil {
		if err := vr.RenderFn(commandBuffer, imageIndex); err != nil {
			return err
		}
	}

	vr.context.MainRenderpass.RenderpassEnd(commandBuffer)
	return commandBuffer.End()
}

func (vr *VulkanRenderer) Submit(slot uint32, imageIndex uint32) error {
	commandBuffer := vr.commandBuffers[imageIndex]

	// Color attachment writes hold until the acquire semaphore signals; the
	// image's render-finished semaphore gates presentation.
	submitInfo := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{commandBuffer.Handle},
		WaitSemaphoreCount:   1,
		PWaitSemaphores:      []vk.Semaphore{vr.imageAvailableSemaphores[slot]},
		PWaitDstStageMask:    []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{vr.renderFinishedSemaphores[imageIndex]},
	}

	if res := vk.QueueSubmit(vr.context.Device.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, vr.inFlightFences[slot].Handle); res != vk.Success {
		err := fmt.Errorf("queue submit failed: %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return err
	}
	commandBuffer.UpdateSubmitted()
	return nil
}

func (vr *VulkanRenderer) Present(imageIndex uint32) (renderer.SurfaceStatus, error) {
	return vr.context.Swapchain.SwapchainPresent(
		vr.context,
		vr.context.Device.PresentQueue,
		vr.renderFinishedSemaphores[imageIndex],
		imageIndex)
}

func (vr *VulkanRenderer) RecreateSwapchain(width, height uint32) error {
	vk.DeviceWaitIdle(vr.context.Device.LogicalDevice)

	vr.context.FramebufferWidth = width
	vr.context.FramebufferHeight = height

	sc, err := vr.context.Swapchain.SwapchainRecreate(vr.context, width, height)
	if err != nil {
		return err
	}
	vr.context.Swapchain = sc

	// The surface may report a different format set after recreation. A
	// format change invalidates the renderpass and everything compiled
	// against it.
	renderpassRebuilt := false
	if !vr.context.MainRenderpass.MatchesColorFormat(sc.ImageFormat.Format) {
		core.LogInfo("Swapchain color format changed, rebuilding renderpass.")
		old := vr.context.MainRenderpass
		rp, err := RenderpassCreate(
			vr.context,
			0, 0, float32(width), float32(height),
			old.R, old.G, old.B, old.A,
			old.Depth,
			old.Stencil)
		if err != nil {
			return err
		}
		old.RenderpassDestroy(vr.context)
		vr.context.MainRenderpass = rp
		renderpassRebuilt = true
	}

	vr.context.MainRenderpass.X = 0
	vr.context.MainRenderpass.Y = 0
	vr.context.MainRenderpass.W = float32(width)
	vr.context.MainRenderpass.H = float32(height)

	if err := vr.regenerateFramebuffers(); err != nil {
		return err
	}

	// The image count may have changed, so per-image sync and command
	// buffers are rebuilt from scratch.
	vr.destroyImageSync()
	if err := vr.createImageSync(); err != nil {
		return err
	}
	vr.destroyCommandBuffers()
	if err := vr.createCommandBuffers(); err != nil {
		return err
	}

	if renderpassRebuilt && vr.SwapchainRecreatedFn != nil {
		if err := vr.SwapchainRecreatedFn(); err != nil {
			return err
		}
	}

	core.LogInfo("Swapchain recreated at %dx%d.", width, height)
	return nil
}

// requiredInstanceExtensions assembles the instance extension list: the
// surface extensions the platform needs, the portability extensions MoltenVK
// requires, and the debug report extension when validation is on.
func requiredInstanceExtensions(platformExtensions []string, goos string, debug bool) []string {
	extensions := []string{"VK_KHR_surface"}
	extensions = append(extensions, platformExtensions...)
	if goos == "darwin" {
		extensions = append(extensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
	}
	if debug {
		extensions = append(extensions, vk.ExtDebugReportExtensionName)
	}
	return extensions
}

func (vr *VulkanRenderer) createCommandBuffers() error {
	vr.commandBuffers = make([]*VulkanCommandBuffer, vr.context.Swapchain.ImageCount)
	for i := range vr.commandBuffers {
		cb, err := NewVulkanCommandBuffer(vr.context, vr.context.Device.GraphicsCommandPool, true)
		if err != nil {
			return err
		}
		vr.commandBuffers[i] = cb
	}
	core.LogDebug("Vulkan command buffers created.")
	return nil
}

func (vr *VulkanRenderer) destroyCommandBuffers() {
	for _, cb := range vr.commandBuffers {
		if cb != nil && cb.Handle != nil {
			cb.Free(vr.context, vr.context.Device.GraphicsCommandPool)
		}
	}
	vr.commandBuffers = nil
}

func (vr *VulkanRenderer) createImageSync() error {
	vr.renderFinishedSemaphores = make([]vk.Semaphore, vr.context.Swapchain.ImageCount)
	for i := range vr.renderFinishedSemaphores {
		semaphoreCreateInfo := vk.SemaphoreCreateInfo{
			SType: vk.StructureTypeSemaphoreCreateInfo,
		}
		if res := vk.CreateSemaphore(vr.context.Device.LogicalDevice, &semaphoreCreateInfo, vr.context.Allocator, &vr.renderFinishedSemaphores[i]); res != vk.Success {
			err := fmt.Errorf("failed to create render-finished semaphore: %s", VulkanResultString(res, true))
			core.LogError(err.Error())
			return err
		}
	}
	return nil
}

func (vr *VulkanRenderer) destroyImageSync() {
	for i := range vr.renderFinishedSemaphores {
		if vr.renderFinishedSemaphores[i] != vk.NullSemaphore {
			vk.DestroySemaphore(vr.context.Device.LogicalDevice, vr.renderFinishedSemaphores[i], vr.context.Allocator)
			vr.renderFinishedSemaphores[i] = vk.NullSemaphore
		}
	}
	vr.renderFinishedSemaphores = nil
}

func (vr *VulkanRenderer) regenerateFramebuffers() error {
	swapchain := vr.context.Swapchain
	swapchain.Framebuffers = make([]*VulkanFramebuffer, swapchain.ImageCount)
	for i := 0; i < int(swapchain.ImageCount); i++ {
		attachments := []vk.ImageView{
			swapchain.Views[i],
			swapchain.DepthAttachment.View,
		}
		fb, err := FramebufferCreate(vr.context, vr.context.MainRenderpass, vr.context.FramebufferWidth, vr.context.FramebufferHeight, attachments)
		if err != nil {
			return err
		}
		swapchain.Framebuffers[i] = fb
	}
	return nil
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogInfo("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
