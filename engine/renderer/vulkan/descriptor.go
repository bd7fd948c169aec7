package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/pangaea-engine/pangaea/engine/core"
)

// descriptorArenaSetsPerPool is how many sets each backing pool is created
// for. Exhausting a pool appends a new one rather than failing the caller.
const descriptorArenaSetsPerPool = 1024

// DescriptorArena hands out descriptor sets from a growing list of pools.
// Individual sets are never freed; Reset recycles every pool at once, which
// matches per-frame descriptor usage.
type DescriptorArena struct {
	context   *VulkanContext
	poolSizes []vk.DescriptorPoolSize
	pools     []vk.DescriptorPool
	current   vk.DescriptorPool
}

// allocRetryable reports whether a failed set allocation can be satisfied by
// appending a fresh pool.
func allocRetryable(result vk.Result) bool {
	return result == vk.ErrorOutOfPoolMemory || result == vk.ErrorFragmentedPool
}

func NewDescriptorArena(context *VulkanContext, poolSizes []vk.DescriptorPoolSize) (*DescriptorArena, error) {
	if len(poolSizes) == 0 {
		poolSizes = []vk.DescriptorPoolSize{
			{Type: vk.DescriptorTypeUniformBuffer, DescriptorCount: descriptorArenaSetsPerPool},
			{Type: vk.DescriptorTypeCombinedImageSampler, DescriptorCount: descriptorArenaSetsPerPool},
			{Type: vk.DescriptorTypeStorageBuffer, DescriptorCount: descriptorArenaSetsPerPool},
			{Type: vk.DescriptorTypeSampledImage, DescriptorCount: descriptorArenaSetsPerPool},
		}
	}
	arena := &DescriptorArena{
		context:   context,
		poolSizes: poolSizes,
	}
	if err := arena.appendPool(); err != nil {
		return nil, err
	}
	return arena, nil
}

// PoolCount reports how many backing pools the arena has created.
func (da *DescriptorArena) PoolCount() int {
	return len(da.pools)
}

func (da *DescriptorArena) appendPool() error {
	poolCreateInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       descriptorArenaSetsPerPool,
		PoolSizeCount: uint32(len(da.poolSizes)),
		PPoolSizes:    da.poolSizes,
	}

	var pool vk.DescriptorPool
	if res := vk.CreateDescriptorPool(da.context.Device.LogicalDevice, &poolCreateInfo, da.context.Allocator, &pool); res != vk.Success {
		err := fmt.Errorf("failed to create descriptor pool: %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return err
	}
	da.pools = append(da.pools, pool)
	da.current = pool
	core.LogDebug("descriptor arena grown to %d pools", len(da.pools))
	return nil
}

// Allocate returns a descriptor set with the given layout. When the current
// pool is exhausted a new pool is appended and the allocation retried once;
// any other failure is returned to the caller.
func (da *DescriptorArena) Allocate(layout vk.DescriptorSetLayout) (vk.DescriptorSet, error) {
	set, res := da.allocateFrom(da.current, layout)
	if res == vk.Success {
		return set, nil
	}
	if !allocRetryable(res) {
		err := fmt.Errorf("failed to allocate descriptor set: %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return vk.NullDescriptorSet, err
	}

	if err := da.appendPool(); err != nil {
		return vk.NullDescriptorSet, err
	}
	set, res = da.allocateFrom(da.current, layout)
	if res != vk.Success {
		err := fmt.Errorf("%w: fresh pool allocation failed with %s", core.ErrDescriptorPoolExhausted, VulkanResultString(res, true))
		core.LogError(err.Error())
		return vk.NullDescriptorSet, err
	}
	return set, nil
}

func (da *DescriptorArena) allocateFrom(pool vk.DescriptorPool, layout vk.DescriptorSetLayout) (vk.DescriptorSet, vk.Result) {
	allocateInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{layout},
	}
	sets := make([]vk.DescriptorSet, 1)
	res := vk.AllocateDescriptorSets(da.context.Device.LogicalDevice, &allocateInfo, &sets[0])
	return sets[0], res
}

// Reset recycles every pool. All sets handed out so far become invalid; the
// pools themselves are kept for reuse.
func (da *DescriptorArena) Reset() error {
	for _, pool := range da.pools {
		if res := vk.ResetDescriptorPool(da.context.Device.LogicalDevice, pool, 0); res != vk.Success {
			err := fmt.Errorf("failed to reset descriptor pool: %s", VulkanResultString(res, true))
			core.LogError(err.Error())
			return err
		}
	}
	return nil
}

func (da *DescriptorArena) Destroy() {
	for _, pool := range da.pools {
		vk.DestroyDescriptorPool(da.context.Device.LogicalDevice, pool, da.context.Allocator)
	}
	da.pools = nil
	da.current = vk.NullDescriptorPool
}
