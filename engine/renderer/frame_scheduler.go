package renderer

import (
	"fmt"

	"github.com/pangaea-engine/pangaea/engine/core"
)

const noSlot int32 = -1

// FrameScheduler drives the acquire/record/submit/present loop over a fixed
// number of in-flight frame slots.
//
// Fences belong to slots: CPU-side reuse of a recording context is bounded by
// MaxFramesInFlight regardless of how many swapchain images exist. Semaphores
// belong to images: GPU-side ordering is about a specific image becoming
// available and its rendering finishing. The imageOwners table bridges the
// two — it remembers which slot last submitted against each image so a new
// slot never races a still-outstanding submission on the same image.
type FrameScheduler struct {
	backend Backend
	surface Surface

	FrameNumber uint64

	currentSlot uint32

	// imageOwners[k] is the slot whose submission last claimed image k, or
	// noSlot. Rebuilt to the new image count on every swapchain recreation.
	imageOwners []int32
}

func NewFrameScheduler(backend Backend, surface Surface) *FrameScheduler {
	fs := &FrameScheduler{
		backend: backend,
		surface: surface,
	}
	fs.resetImageOwners()
	return fs
}

func (fs *FrameScheduler) resetImageOwners() {
	count := fs.backend.ImageCount()
	fs.imageOwners = make([]int32, count)
	for i := range fs.imageOwners {
		fs.imageOwners[i] = noSlot
	}
}

// CurrentSlot returns the frame slot the next DrawFrame call will use.
func (fs *FrameScheduler) CurrentSlot() uint32 {
	return fs.currentSlot
}

// DrawFrame runs one iteration of the frame loop. Out-of-date and suboptimal
// surface conditions are recovered internally by recreating the swapchain; a
// returned error is fatal and the loop must not continue.
func (fs *FrameScheduler) DrawFrame(deltaTime float64) error {
	slot := fs.currentSlot

	// Slot i's previous submission must have fully completed before its
	// recording context is touched again.
	if err := fs.backend.WaitForSlotFence(slot, FenceWaitTimeout); err != nil {
		return fmt.Errorf("frame %d slot %d fence wait: %w", fs.FrameNumber, slot, err)
	}

	imageIndex, status, err := fs.backend.AcquireNextImage(slot, FenceWaitTimeout)
	if err != nil {
		return fmt.Errorf("frame %d acquire: %w", fs.FrameNumber, err)
	}
	if status == SurfaceOutOfDate {
		// Abandon the frame with no submission.
		core.LogDebug("acquire reported out of date, recreating swapchain")
		return fs.recreate()
	}
	// Suboptimal still presents this frame; recreation happens afterwards.
	recreateAfterPresent := status == SurfaceSuboptimal

	// A different slot may still have an outstanding submission against this
	// image when the image count differs from the slot count. Its fence must
	// signal before the image is reused.
	if owner := fs.imageOwners[imageIndex]; owner != noSlot && uint32(owner) != slot {
		if err := fs.backend.WaitForSlotFence(uint32(owner), FenceWaitTimeout); err != nil {
			return fmt.Errorf("frame %d image %d owner fence wait: %w", fs.FrameNumber, imageIndex, err)
		}
	}
	fs.imageOwners[imageIndex] = int32(slot)

	if err := fs.backend.UpdateFrameData(imageIndex, deltaTime); err != nil {
		return fmt.Errorf("frame %d update: %w", fs.FrameNumber, err)
	}

	if err := fs.backend.RecordCommands(imageIndex); err != nil {
		return fmt.Errorf("frame %d record: %w", fs.FrameNumber, err)
	}

	// Unsignal the slot fence only once submission is certain; an early reset
	// would deadlock the next wait on this slot.
	if err := fs.backend.ResetSlotFence(slot); err != nil {
		return fmt.Errorf("frame %d slot %d fence reset: %w", fs.FrameNumber, slot, err)
	}
	if err := fs.backend.Submit(slot, imageIndex); err != nil {
		return fmt.Errorf("frame %d submit: %w", fs.FrameNumber, err)
	}

	status, err = fs.backend.Present(imageIndex)
	if err != nil {
		return fmt.Errorf("frame %d present: %w", fs.FrameNumber, err)
	}

	if status != SurfaceOK || recreateAfterPresent || fs.surface.ConsumeResize() {
		core.LogDebug("present status %s, recreating swapchain", status)
		if err := fs.recreate(); err != nil {
			return err
		}
	}

	fs.currentSlot = (fs.currentSlot + 1) % MaxFramesInFlight
	fs.FrameNumber++
	return nil
}

// recreate rebuilds the swapchain once the drawable is non-degenerate. While
// the window is minimized (either dimension zero) it blocks on the platform
// event source rather than constructing a zero-sized chain.
func (fs *FrameScheduler) recreate() error {
	width, height := fs.surface.DrawableSize()
	for width == 0 || height == 0 {
		fs.surface.WaitEvents()
		width, height = fs.surface.DrawableSize()
	}

	if err := fs.backend.RecreateSwapchain(width, height); err != nil {
		return fmt.Errorf("swapchain recreation: %w", err)
	}

	// Image count may have changed; all previous ownership claims died with
	// the device-idle wait inside RecreateSwapchain.
	fs.resetImageOwners()

	// The resize that triggered this rebuild is consumed.
	fs.surface.ConsumeResize()
	return nil
}
