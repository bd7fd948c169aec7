package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
)

func TestStagingGrowCapacityAppliesFloor(t *testing.T) {
	assert.Equal(t, vk.DeviceSize(stagingMinCapacity), stagingGrowCapacity(0, 16))
	assert.Equal(t, vk.DeviceSize(stagingMinCapacity), stagingGrowCapacity(0, stagingMinCapacity))
}

func TestStagingGrowCapacityDoubles(t *testing.T) {
	current := vk.DeviceSize(stagingMinCapacity)
	assert.Equal(t, current*2, stagingGrowCapacity(current, current+1))
}

func TestStagingGrowCapacityJumpsToRequired(t *testing.T) {
	// A single oversized upload must be satisfied in one step.
	current := vk.DeviceSize(stagingMinCapacity)
	required := vk.DeviceSize(16 * 1024 * 1024)
	assert.Equal(t, required, stagingGrowCapacity(current, required))
}

func TestStagingGrowCapacityNeverShrinks(t *testing.T) {
	current := vk.DeviceSize(8 * 1024 * 1024)
	next := stagingGrowCapacity(current, 1024)
	assert.GreaterOrEqual(t, next, current)
}
