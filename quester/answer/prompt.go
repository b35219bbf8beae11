package answer

import (
	"fmt"
	"strings"

	ports "github.com/questerhq/quester/quester/answer/ports"
)

// promptInstructions is the fixed block appended to every grounding prompt.
// The [k] citation contract here must match the numbering emitted by
// ComposePrompt: k is the 1-based position of the item in the evidence list.
const promptInstructions = `Requirements:
1. Answer the question accurately, preferring information from the search results above.
2. After each sentence supported by a search result, attach a bracketed citation marker carrying that result's number.
3. If the search results are insufficient to answer, say so explicitly instead of guessing.
4. Format the answer as Markdown.
5. Be concise but complete.

Answer:`

// ComposePrompt binds a query to a fixed, ordinally numbered evidence list.
//
// It is a pure function: the same (query, evidence) pair always produces
// byte-identical output. Evidence items are numbered 1..N in the order
// received; reordering the list after composition invalidates the citation
// contract.
func ComposePrompt(query string, evidence []ports.EvidenceItem) string {
	var b strings.Builder

	b.WriteString("You are an intelligent search assistant. Answer the user's question based on the search results below.\n\n")
	fmt.Fprintf(&b, "Question: %s\n\n", query)

	if len(evidence) == 0 {
		b.WriteString("Search results: none were supplied for this question.\n\n")
	} else {
		b.WriteString("Search results:\n")
		for i, item := range evidence {
			fmt.Fprintf(&b, "\n[%d] %s\nURL: %s\nContent: %s\n", i+1, item.Title, item.URL, item.Content)
		}
		b.WriteString("\n")
	}

	b.WriteString(promptInstructions)
	return b.String()
}
