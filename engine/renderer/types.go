package renderer

import "time"

// MaxFramesInFlight is the number of frame slots, i.e. how many frames the CPU
// may record ahead of the GPU. Fixed for the process lifetime; the swapchain
// image count is independent of it and may change across recreations.
const MaxFramesInFlight uint32 = 2

// FenceWaitTimeout bounds every CPU-side fence wait, in nanoseconds. An
// expired wait is treated as fatal by the frame loop.
const FenceWaitTimeout = uint64(5 * time.Second)

// SurfaceStatus classifies the outcome of an acquire or present call.
// OutOfDate and Suboptimal are expected conditions with a local recovery path
// (swapchain recreation); they are never surfaced as errors.
type SurfaceStatus int

const (
	SurfaceOK SurfaceStatus = iota
	SurfaceSuboptimal
	SurfaceOutOfDate
)

func (s SurfaceStatus) String() string {
	switch s {
	case SurfaceSuboptimal:
		return "suboptimal"
	case SurfaceOutOfDate:
		return "out of date"
	default:
		return "ok"
	}
}

// Surface is the window-system collaborator the frame loop needs: the current
// drawable size, a blocking event wait used only while the size is zero, and
// the resize flag polled once per frame.
type Surface interface {
	DrawableSize() (uint32, uint32)
	WaitEvents()
	ConsumeResize() bool
}

// Backend is the device-facing half of the frame loop. Slots index the fixed
// in-flight frame contexts [0, MaxFramesInFlight); images index the current
// swapchain images [0, ImageCount).
//
// Acquire waits are expressed through the slot's acquire semaphore on the GPU
// side; the frame scheduler only observes slot fences.
type Backend interface {
	// ImageCount returns the current swapchain image count. It may change
	// after RecreateSwapchain.
	ImageCount() uint32

	// WaitForSlotFence blocks until slot's last submission completed. Waiting
	// on a slot that has nothing outstanding returns immediately.
	WaitForSlotFence(slot uint32, timeoutNS uint64) error

	// ResetSlotFence puts the slot fence back to the unsignaled state. Must be
	// called immediately before Submit.
	ResetSlotFence(slot uint32) error

	// AcquireNextImage acquires the next presentable image, signaling the
	// slot's acquire semaphore. A non-nil error is fatal.
	AcquireNextImage(slot uint32, timeoutNS uint64) (imageIndex uint32, status SurfaceStatus, err error)

	// UpdateFrameData refreshes per-frame dynamic inputs (e.g. transform
	// buffers) addressed by image index.
	UpdateFrameData(imageIndex uint32, deltaTime float64) error

	// RecordCommands resets and re-records the persistent command buffer
	// bound to the image index.
	RecordCommands(imageIndex uint32) error

	// Submit submits image's command buffer: waits on the slot's acquire
	// semaphore at color output, signals the image's render-finished
	// semaphore, and signals the slot fence on completion.
	Submit(slot uint32, imageIndex uint32) error

	// Present queues the image for presentation, waiting on its
	// render-finished semaphore.
	Present(imageIndex uint32) (SurfaceStatus, error)

	// RecreateSwapchain waits for the device to go idle, then rebuilds the
	// swapchain and every per-image resource for the given drawable size.
	RecreateSwapchain(width, height uint32) error
}
