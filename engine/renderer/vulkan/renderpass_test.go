package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
)

func TestRenderpassMatchesColorFormat(t *testing.T) {
	pass := &VulkanRenderpass{ColorFormat: vk.FormatB8g8r8a8Srgb}
	assert.True(t, pass.MatchesColorFormat(vk.FormatB8g8r8a8Srgb))
	assert.False(t, pass.MatchesColorFormat(vk.FormatR8g8b8a8Srgb))
}

func TestRenderpassStaleAfterSurfaceFormatSetChanges(t *testing.T) {
	// The pass was built against whatever the surface reported at startup.
	initial := chooseSurfaceFormat([]vk.SurfaceFormat{
		{Format: vk.FormatR5g6b5UnormPack16, ColorSpace: vk.ColorSpaceSrgbNonlinear},
	})
	pass := &VulkanRenderpass{ColorFormat: initial.Format}

	// A recreation that requeries the same format set keeps the pass valid.
	same := chooseSurfaceFormat([]vk.SurfaceFormat{
		{Format: vk.FormatR5g6b5UnormPack16, ColorSpace: vk.ColorSpaceSrgbNonlinear},
	})
	assert.True(t, pass.MatchesColorFormat(same.Format))

	// The surface reporting a different format set after recreation must
	// invalidate the pass so its framebuffers are not attached to a pass
	// declaring the old format.
	rechosen := chooseSurfaceFormat([]vk.SurfaceFormat{
		{Format: vk.FormatA2b10g10r10UnormPack32, ColorSpace: vk.ColorSpaceSrgbNonlinear},
	})
	assert.False(t, pass.MatchesColorFormat(rechosen.Format))
}
