package retrieval

import (
	"fmt"
	"strings"

	"github.com/ragline/ragline/internal/model"
)

const blockSeparator = "\n\n"

// AssembleContext concatenates ranked candidate texts under maxChars, each
// tagged with its source. A candidate that would overflow the budget is
// omitted whole, never cut mid-text. A non-empty memory excerpt goes first
// and counts against the same budget.
func AssembleContext(ranked []model.RankedCandidate, memoryExcerpt string, maxChars int) string {
	if maxChars <= 0 {
		return ""
	}
	var parts []string
	remaining := maxChars
	if memoryExcerpt != "" && len(memoryExcerpt) <= remaining {
		parts = append(parts, memoryExcerpt)
		remaining -= len(memoryExcerpt)
	}
	for _, cand := range ranked {
		block := fmt.Sprintf("[Source: %s]\n%s", cand.Source(), strings.TrimSpace(cand.Text))
		cost := len(block)
		if len(parts) > 0 {
			cost += len(blockSeparator)
		}
		if cost > remaining {
			break
		}
		parts = append(parts, block)
		remaining -= cost
	}
	return strings.Join(parts, blockSeparator)
}
