package vulkan

import (
	"math"
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
)

func TestChooseSurfaceFormatPrefersBGRASrgb(t *testing.T) {
	formats := []vk.SurfaceFormat{
		{Format: vk.FormatR5g6b5UnormPack16, ColorSpace: vk.ColorSpaceSrgbNonlinear},
		{Format: vk.FormatR8g8b8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear},
		{Format: vk.FormatB8g8r8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear},
	}
	chosen := chooseSurfaceFormat(formats)
	assert.Equal(t, vk.FormatB8g8r8a8Srgb, chosen.Format)
	assert.Equal(t, vk.ColorSpaceSrgbNonlinear, chosen.ColorSpace)
}

func TestChooseSurfaceFormatFallsBackToRGBASrgb(t *testing.T) {
	formats := []vk.SurfaceFormat{
		{Format: vk.FormatR5g6b5UnormPack16, ColorSpace: vk.ColorSpaceSrgbNonlinear},
		{Format: vk.FormatR8g8b8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear},
	}
	chosen := chooseSurfaceFormat(formats)
	assert.Equal(t, vk.FormatR8g8b8a8Srgb, chosen.Format)
}

func TestChooseSurfaceFormatSettlesForFirst(t *testing.T) {
	formats := []vk.SurfaceFormat{
		{Format: vk.FormatR5g6b5UnormPack16, ColorSpace: vk.ColorSpaceSrgbNonlinear},
		{Format: vk.FormatA2b10g10r10UnormPack32, ColorSpace: vk.ColorSpaceSrgbNonlinear},
	}
	chosen := chooseSurfaceFormat(formats)
	assert.Equal(t, vk.FormatR5g6b5UnormPack16, chosen.Format)
}

func TestChoosePresentModePrefersMailboxWithoutVsync(t *testing.T) {
	modes := []vk.PresentMode{vk.PresentModeFifo, vk.PresentModeMailbox, vk.PresentModeImmediate}
	assert.Equal(t, vk.PresentModeMailbox, choosePresentMode(modes, false))
}

func TestChoosePresentModeDefaultsToFifo(t *testing.T) {
	modes := []vk.PresentMode{vk.PresentModeImmediate, vk.PresentModeFifoRelaxed}
	assert.Equal(t, vk.PresentModeFifo, choosePresentMode(modes, false))
}

func TestChoosePresentModeVsyncForcesFifo(t *testing.T) {
	modes := []vk.PresentMode{vk.PresentModeMailbox, vk.PresentModeFifo}
	assert.Equal(t, vk.PresentModeFifo, choosePresentMode(modes, true))
}

func TestChooseSwapExtentHonorsFixedSurfaceExtent(t *testing.T) {
	capabilities := vk.SurfaceCapabilities{
		CurrentExtent:  vk.Extent2D{Width: 1280, Height: 720},
		MinImageExtent: vk.Extent2D{Width: 1, Height: 1},
		MaxImageExtent: vk.Extent2D{Width: 4096, Height: 4096},
	}
	extent := chooseSwapExtent(capabilities, 1920, 1080)
	assert.Equal(t, uint32(1280), extent.Width)
	assert.Equal(t, uint32(720), extent.Height)
}

func TestChooseSwapExtentClampsDrawableSize(t *testing.T) {
	capabilities := vk.SurfaceCapabilities{
		CurrentExtent:  vk.Extent2D{Width: math.MaxUint32, Height: math.MaxUint32},
		MinImageExtent: vk.Extent2D{Width: 64, Height: 64},
		MaxImageExtent: vk.Extent2D{Width: 2048, Height: 2048},
	}

	extent := chooseSwapExtent(capabilities, 4000, 32)
	assert.Equal(t, uint32(2048), extent.Width)
	assert.Equal(t, uint32(64), extent.Height)

	extent = chooseSwapExtent(capabilities, 800, 600)
	assert.Equal(t, uint32(800), extent.Width)
	assert.Equal(t, uint32(600), extent.Height)
}

func TestChooseImageCountRequestsOneOverMinimum(t *testing.T) {
	capabilities := vk.SurfaceCapabilities{MinImageCount: 2, MaxImageCount: 8}
	assert.Equal(t, uint32(3), chooseImageCount(capabilities))
}

func TestChooseImageCountClampsToMaximum(t *testing.T) {
	capabilities := vk.SurfaceCapabilities{MinImageCount: 3, MaxImageCount: 3}
	assert.Equal(t, uint32(3), chooseImageCount(capabilities))
}

func TestChooseImageCountIgnoresUnboundedMaximum(t *testing.T) {
	// MaxImageCount of zero means the surface imposes no upper bound.
	capabilities := vk.SurfaceCapabilities{MinImageCount: 4, MaxImageCount: 0}
	assert.Equal(t, uint32(5), chooseImageCount(capabilities))
}
