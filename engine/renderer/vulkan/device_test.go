package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
)

func TestDepthFormatRequiresOptimalTilingSupport(t *testing.T) {
	flags := vk.FormatFeatureDepthStencilAttachmentBit

	// Linear-only support is useless to an optimal-tiled depth image.
	linearOnly := vk.FormatProperties{
		LinearTilingFeatures: vk.FormatFeatureFlags(flags),
	}
	assert.False(t, depthFormatUsable(linearOnly, flags))

	optimal := vk.FormatProperties{
		OptimalTilingFeatures: vk.FormatFeatureFlags(flags),
	}
	assert.True(t, depthFormatUsable(optimal, flags))

	both := vk.FormatProperties{
		LinearTilingFeatures:  vk.FormatFeatureFlags(flags),
		OptimalTilingFeatures: vk.FormatFeatureFlags(flags),
	}
	assert.True(t, depthFormatUsable(both, flags))
}

func TestDepthFormatUnusableWithoutDepthStencilBit(t *testing.T) {
	flags := vk.FormatFeatureDepthStencilAttachmentBit
	colorOnly := vk.FormatProperties{
		OptimalTilingFeatures: vk.FormatFeatureFlags(vk.FormatFeatureColorAttachmentBit),
	}
	assert.False(t, depthFormatUsable(colorOnly, flags))
}
