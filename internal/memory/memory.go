package memory

import (
	"strings"
	"sync"
	"time"

	"github.com/ragline/ragline/internal/model"
)

// Answers longer than this are shortened in the rendered excerpt; the full
// text stays in the exchange itself.
const excerptAnswerLimit = 240

// Memory is a sliding window of prior exchanges. It holds at most maxItems
// entries; appending past the limit evicts the oldest one.
type Memory struct {
	mu       sync.Mutex
	items    []model.Exchange
	maxItems int
}

func New(maxItems int) *Memory {
	if maxItems <= 0 {
		maxItems = 10
	}
	return &Memory{maxItems: maxItems}
}

func (m *Memory) Append(question, answer string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, model.Exchange{
		Question:  question,
		Answer:    answer,
		Timestamp: time.Now().Unix(),
	})
	if len(m.items) > m.maxItems {
		m.items = m.items[len(m.items)-m.maxItems:]
	}
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = nil
}

// Excerpt renders the history oldest-to-newest for readability. When the
// rendered text would exceed maxChars, the oldest exchanges are dropped
// first; the most recent ones are always retained.
func (m *Memory) Excerpt(maxChars int) string {
	m.mu.Lock()
	items := make([]model.Exchange, len(m.items))
	copy(items, m.items)
	m.mu.Unlock()
	if len(items) == 0 || maxChars <= 0 {
		return ""
	}
	rendered := make([]string, len(items))
	for i, item := range items {
		rendered[i] = renderExchange(item)
	}
	start := 0
	total := excerptLen(rendered)
	for start < len(rendered) && total > maxChars {
		total -= len(rendered[start]) + 1
		start++
	}
	if start >= len(rendered) {
		return ""
	}
	return strings.Join(rendered[start:], "\n")
}

func renderExchange(item model.Exchange) string {
	answer := item.Answer
	if len(answer) > excerptAnswerLimit {
		answer = answer[:excerptAnswerLimit] + "..."
	}
	return "User: " + item.Question + "\nAssistant: " + answer
}

func excerptLen(rendered []string) int {
	total := 0
	for _, r := range rendered {
		total += len(r)
	}
	// Joined with single newlines.
	if len(rendered) > 1 {
		total += len(rendered) - 1
	}
	return total
}
