package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
)

func TestInstanceExtensionsDarwinGetsPortabilityWithoutDebug(t *testing.T) {
	extensions := requiredInstanceExtensions([]string{"VK_EXT_metal_surface"}, "darwin", false)

	assert.Contains(t, extensions, "VK_KHR_surface")
	assert.Contains(t, extensions, "VK_EXT_metal_surface")
	assert.Contains(t, extensions, "VK_KHR_portability_enumeration")
	assert.Contains(t, extensions, "VK_KHR_get_physical_device_properties2")
	assert.NotContains(t, extensions, vk.ExtDebugReportExtensionName)
}

func TestInstanceExtensionsDebugAddsDebugReport(t *testing.T) {
	extensions := requiredInstanceExtensions([]string{"VK_KHR_xcb_surface"}, "linux", true)

	assert.Contains(t, extensions, "VK_KHR_surface")
	assert.Contains(t, extensions, "VK_KHR_xcb_surface")
	assert.Contains(t, extensions, vk.ExtDebugReportExtensionName)
	assert.NotContains(t, extensions, "VK_KHR_portability_enumeration")
}
