package answer

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ports "github.com/questerhq/quester/quester/answer/ports"
)

func evidenceFixture(n int) []ports.EvidenceItem {
	items := make([]ports.EvidenceItem, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, ports.EvidenceItem{
			Title:   fmt.Sprintf("Result %d", i+1),
			URL:     fmt.Sprintf("https://example.com/%d", i+1),
			Content: fmt.Sprintf("Snippet number %d.", i+1),
			Score:   1.0 - float64(i)*0.1,
			Kind:    ports.KindText,
		})
	}
	return items
}

func TestComposePromptNumbersEvidenceInOrder(t *testing.T) {
	evidence := evidenceFixture(3)
	prompt := ComposePrompt("capital of France", evidence)

	assert.Contains(t, prompt, "capital of France")

	// Markers [1]..[N] appear exactly once each, in ascending positions.
	lastIdx := -1
	for i := 1; i <= len(evidence); i++ {
		marker := fmt.Sprintf("[%d]", i)
		assert.Equal(t, 1, strings.Count(prompt, marker), "marker %s should appear once", marker)
		idx := strings.Index(prompt, marker)
		assert.Greater(t, idx, lastIdx, "marker %s out of order", marker)
		lastIdx = idx
	}
	assert.NotContains(t, prompt, "[4]")

	// Each item contributes its title, URL, and content.
	for _, item := range evidence {
		assert.Contains(t, prompt, item.Title)
		assert.Contains(t, prompt, item.URL)
		assert.Contains(t, prompt, item.Content)
	}
}

func TestComposePromptIsPure(t *testing.T) {
	evidence := evidenceFixture(5)
	first := ComposePrompt("why is the sky blue", evidence)
	second := ComposePrompt("why is the sky blue", evidence)
	require.Equal(t, first, second, "same inputs must produce byte-identical output")
}

func TestComposePromptEmptyEvidence(t *testing.T) {
	prompt := ComposePrompt("anything", nil)
	assert.Contains(t, prompt, "none were supplied")
	assert.Contains(t, prompt, "Requirements:")
	assert.NotContains(t, prompt, "[1]")
}

func TestComposePromptInstructionBlock(t *testing.T) {
	prompt := ComposePrompt("q", evidenceFixture(1))
	assert.Contains(t, prompt, "citation marker")
	assert.Contains(t, prompt, "insufficient")
	assert.Contains(t, prompt, "Markdown")
}
