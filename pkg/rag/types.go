package rag

// Chunk represents a fixed-size window of one page's text
type Chunk struct {
	Source  string // URL of the page the chunk was cut from
	Content string // The actual text content
	Offset  int    // Rune offset in the page text
}

// Corpus holds the ordered chunks of one chatbot session.
// Order is page order, then offset order.
type Corpus struct {
	Chunks []Chunk
}

// Len returns the number of chunks
func (c *Corpus) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Chunks)
}

// SearchResult represents a single search result with score
type SearchResult struct {
	Chunk Chunk
	Score int
}

// Weights holds the lexical scoring bonuses
type Weights struct {
	PhraseBonus   int // Added when the whole question appears in the chunk
	WordBonus     int // Added per question word found in the chunk
	MinWordLength int // Words must be longer than this to count
}

// DefaultWeights returns the stock scoring bonuses
func DefaultWeights() Weights {
	return Weights{
		PhraseBonus:   10,
		WordBonus:     2,
		MinWordLength: 3,
	}
}
