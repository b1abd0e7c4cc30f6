package model

// Candidate is a chunk returned by the similarity index for one query,
// carrying the index's native score. It is never mutated after fetch.
type Candidate struct {
	ChunkID  string            `json:"chunk_id"`
	Text     string            `json:"text"`
	Score    float32           `json:"score"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Source returns the human-readable origin of the candidate, falling back
// to the chunk id when ingestion supplied no source metadata.
func (c Candidate) Source() string {
	if s, ok := c.Metadata["source"]; ok && s != "" {
		return s
	}
	return c.ChunkID
}

// RankedCandidate is a Candidate after re-ranking. FetchRank is the zero
// based position the index returned it at, kept for stable tie breaking.
type RankedCandidate struct {
	Candidate
	Blended   float64 `json:"blended_score"`
	FetchRank int     `json:"fetch_rank"`
	Rank      int     `json:"rank"`
}
