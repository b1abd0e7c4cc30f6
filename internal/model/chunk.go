package model

// Chunk is the unit of retrieval: a bounded span of source document text.
// Parsing and chunking happen upstream, ragline only stores and indexes.
type Chunk struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Mtime    int64             `json:"mtime"`
}
