package retrieval

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ragline/ragline/internal/model"
)

func ranked(pairs ...[2]string) []model.RankedCandidate {
	out := make([]model.RankedCandidate, 0, len(pairs))
	for i, p := range pairs {
		out = append(out, model.RankedCandidate{
			Candidate: model.Candidate{ChunkID: p[0], Text: p[1]},
			Rank:      i,
		})
	}
	return out
}

func TestAssembleContextTagsSources(t *testing.T) {
	got := AssembleContext(ranked([2]string{"doc-1", "first chunk"}, [2]string{"doc-2", "second chunk"}), "", 1000)
	require.Equal(t, "[Source: doc-1]\nfirst chunk\n\n[Source: doc-2]\nsecond chunk", got)
}

func TestAssembleContextRespectsBudget(t *testing.T) {
	big := strings.Repeat("a", 300)
	got := AssembleContext(ranked(
		[2]string{"d1", big},
		[2]string{"d2", big},
		[2]string{"d3", big},
	), "", 700)

	require.LessOrEqual(t, len(got), 700)
	require.Contains(t, got, "[Source: d1]")
	require.Contains(t, got, "[Source: d2]")
	require.NotContains(t, got, "[Source: d3]")
	// The dropped candidate is omitted whole, never truncated.
	require.Equal(t, 2, strings.Count(got, "[Source:"))
}

func TestAssembleContextNeverSplitsCandidate(t *testing.T) {
	got := AssembleContext(ranked([2]string{"d1", strings.Repeat("a", 500)}), "", 100)
	require.Empty(t, got)
}

func TestAssembleContextMemoryFirst(t *testing.T) {
	excerpt := "User: hi\nAssistant: hello"
	got := AssembleContext(ranked([2]string{"d1", "chunk text"}), excerpt, 1000)
	require.True(t, strings.HasPrefix(got, excerpt))
	require.Contains(t, got, "[Source: d1]\nchunk text")
}

func TestAssembleContextOversizedMemorySkipped(t *testing.T) {
	excerpt := strings.Repeat("m", 500)
	got := AssembleContext(ranked([2]string{"d1", "chunk text"}), excerpt, 100)
	require.NotContains(t, got, "m")
	require.Contains(t, got, "[Source: d1]")
}

func TestAssembleContextEmptyInputs(t *testing.T) {
	require.Empty(t, AssembleContext(nil, "", 1000))
	require.Empty(t, AssembleContext(ranked([2]string{"d1", "text"}), "", 0))
}
