package retrieval

import (
	"regexp"
	"sort"
	"strings"

	"github.com/ragline/ragline/internal/model"
)

// Weights for the blended score. Fixed configuration, not learned.
type Weights struct {
	Similarity float64
	Lexical    float64
	Length     float64
}

var DefaultWeights = Weights{
	Similarity: 0.6,
	Lexical:    0.3,
	Length:     0.1,
}

// Candidates in this band score full marks on length; outside it the score
// falls off linearly. Very short chunks carry little context, very long
// ones crowd out everything else in the budget.
const (
	lengthBandLow  = 200
	lengthBandHigh = 1600
)

var termRe = regexp.MustCompile(`[a-z0-9]{3,}`)

var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "but": {}, "for": {}, "with": {}, "was": {},
	"were": {}, "are": {}, "been": {}, "being": {}, "have": {}, "has": {},
	"had": {}, "does": {}, "did": {}, "will": {}, "would": {}, "could": {},
	"should": {}, "what": {}, "when": {}, "where": {}, "which": {}, "who": {},
	"how": {}, "why": {}, "this": {}, "that": {}, "these": {}, "those": {},
	"about": {}, "into": {}, "from": {}, "not": {}, "you": {}, "your": {},
}

// QueryTerms extracts the lower-cased content terms of a query, dropping
// trivial stop-words and anything shorter than three characters.
func QueryTerms(query string) []string {
	words := termRe.FindAllString(strings.ToLower(query), -1)
	terms := make([]string, 0, len(words))
	for _, word := range words {
		if _, ok := stopWords[word]; ok {
			continue
		}
		terms = append(terms, word)
	}
	return terms
}

// BlendScore is a pure function over {native score, candidate text, query
// terms} so it is testable without an index or a provider.
func BlendScore(similarity float32, text string, queryTerms []string, w Weights) float64 {
	return w.Similarity*float64(similarity) +
		w.Lexical*lexicalOverlap(queryTerms, text) +
		w.Length*lengthScore(len(text))
}

func lexicalOverlap(queryTerms []string, text string) float64 {
	if len(queryTerms) == 0 {
		return 0
	}
	textWords := termRe.FindAllString(strings.ToLower(text), -1)
	present := make(map[string]struct{}, len(textWords))
	for _, word := range textWords {
		present[word] = struct{}{}
	}
	hit := 0
	for _, term := range queryTerms {
		if _, ok := present[term]; ok {
			hit++
		}
	}
	return float64(hit) / float64(len(queryTerms))
}

func lengthScore(n int) float64 {
	switch {
	case n <= 0:
		return 0
	case n < lengthBandLow:
		return float64(n) / float64(lengthBandLow)
	case n > lengthBandHigh:
		return float64(lengthBandHigh) / float64(n)
	default:
		return 1
	}
}

// Rerank scores and reorders candidates. The result is deterministic for
// identical inputs: ties on blended score break by native similarity, then
// by the original fetch rank.
func Rerank(candidates []model.Candidate, query string, w Weights) []model.RankedCandidate {
	terms := QueryTerms(query)
	ranked := make([]model.RankedCandidate, 0, len(candidates))
	for i, cand := range candidates {
		ranked = append(ranked, model.RankedCandidate{
			Candidate: cand,
			Blended:   BlendScore(cand.Score, cand.Text, terms, w),
			FetchRank: i,
		})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Blended != ranked[j].Blended {
			return ranked[i].Blended > ranked[j].Blended
		}
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].FetchRank < ranked[j].FetchRank
	})
	for i := range ranked {
		ranked[i].Rank = i
	}
	return ranked
}
