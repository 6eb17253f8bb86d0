package compose

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompose_Deterministic(t *testing.T) {
	memories := []string{"Use Terraform for provisioning", "Pin image digests in CI"}
	history := "user: hello\nassistant: hi"

	first := Compose(memories, history, "how do I provision a VPC")
	second := Compose(memories, history, "how do I provision a VPC")

	assert.Equal(t, first, second)
}

func TestCompose_SectionsInOrder(t *testing.T) {
	prompt := Compose(
		[]string{"Use Terraform for provisioning"},
		"user: earlier question",
		"how do I provision a VPC",
	)

	memIdx := strings.Index(prompt, "Relevant past knowledge:")
	histIdx := strings.Index(prompt, "Chat history:")
	inputIdx := strings.Index(prompt, "New request from user:")

	assert.Greater(t, memIdx, 0)
	assert.Greater(t, histIdx, memIdx)
	assert.Greater(t, inputIdx, histIdx)

	assert.Contains(t, prompt, "- Use Terraform for provisioning")
	assert.Contains(t, prompt, "user: earlier question")
	assert.Contains(t, prompt, "how do I provision a VPC")
}

func TestCompose_EmptySectionsKeepShape(t *testing.T) {
	prompt := Compose(nil, "", "first ever request")

	// Section headers survive even with nothing to put under them
	assert.Contains(t, prompt, "Relevant past knowledge:")
	assert.Contains(t, prompt, "Chat history:")
	assert.Contains(t, prompt, "New request from user:")
	assert.Contains(t, prompt, "first ever request")
}

func TestCompose_PreservesMemoryOrder(t *testing.T) {
	prompt := Compose([]string{"first", "second", "third"}, "", "query")

	firstIdx := strings.Index(prompt, "- first")
	secondIdx := strings.Index(prompt, "- second")
	thirdIdx := strings.Index(prompt, "- third")

	assert.Greater(t, secondIdx, firstIdx)
	assert.Greater(t, thirdIdx, secondIdx)
}

func TestFormatMemories(t *testing.T) {
	assert.Equal(t, "", FormatMemories(nil))
	assert.Equal(t, "", FormatMemories([]string{}))
	assert.Equal(t, "- only", FormatMemories([]string{"only"}))
	assert.Equal(t, "- a\n- b", FormatMemories([]string{"a", "b"}))
}
