package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
)

func validPipelineConfig() *VulkanPipelineConfig {
	return &VulkanPipelineConfig{
		Renderpass: &VulkanRenderpass{},
		Stages: []vk.PipelineShaderStageCreateInfo{
			{SType: vk.StructureTypePipelineShaderStageCreateInfo, Stage: vk.ShaderStageVertexBit},
		},
	}
}

func TestPipelineConfigValidateAcceptsMinimalConfig(t *testing.T) {
	assert.NoError(t, validPipelineConfig().Validate())
}

func TestPipelineConfigValidateRequiresRenderpass(t *testing.T) {
	config := validPipelineConfig()
	config.Renderpass = nil
	assert.ErrorContains(t, config.Validate(), "renderpass")
}

func TestPipelineConfigValidateRequiresStages(t *testing.T) {
	config := validPipelineConfig()
	config.Stages = nil
	assert.ErrorContains(t, config.Validate(), "shader stage")
}

func TestPipelineConfigValidateRequiresStrideWithAttributes(t *testing.T) {
	config := validPipelineConfig()
	config.Attributes = []vk.VertexInputAttributeDescription{
		{Location: 0, Binding: 0, Format: vk.FormatR32g32b32Sfloat},
	}
	config.Stride = 0
	assert.ErrorContains(t, config.Validate(), "stride")

	config.Stride = 12
	assert.NoError(t, config.Validate())
}

func TestPipelineConfigValidateBoundsPushConstantRanges(t *testing.T) {
	config := validPipelineConfig()
	config.PushConstantRanges = make([]vk.PushConstantRange, maxPushConstantRanges+1)
	assert.ErrorContains(t, config.Validate(), "push constant")

	config.PushConstantRanges = config.PushConstantRanges[:maxPushConstantRanges]
	assert.NoError(t, config.Validate())
}
