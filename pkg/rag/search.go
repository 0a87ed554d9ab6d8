package rag

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// DefaultTopK is the number of chunks placed in a context
const DefaultTopK = 5

// contextSeparator joins selected chunks into one context string
const contextSeparator = "\n\n"

// Retriever turns a question and a corpus into a context string.
// An empty string means nothing relevant was found.
type Retriever interface {
	Retrieve(question string, corpus *Corpus) string
}

// Score computes the lexical overlap between a lower-cased question and a chunk.
// Containment is by substring, so "policy" matches "policies" but "policy?" does not
// match "policy". Repeated question words count once per occurrence.
func Score(questionLower string, chunk Chunk, w Weights) int {
	chunkLower := strings.ToLower(chunk.Content)
	score := 0

	if strings.Contains(chunkLower, questionLower) {
		score += w.PhraseBonus
	}

	for _, word := range strings.Fields(questionLower) {
		if utf8.RuneCountInString(word) > w.MinWordLength && strings.Contains(chunkLower, word) {
			score += w.WordBonus
		}
	}

	return score
}

// Search scores every chunk of the corpus against the question.
// Returns at most topK results with a positive score, highest first;
// equal scores keep corpus order.
func Search(corpus *Corpus, question string, topK int, w Weights) []SearchResult {
	if corpus.Len() == 0 {
		return nil
	}

	questionLower := strings.ToLower(question)
	results := make([]SearchResult, 0, len(corpus.Chunks))

	for _, chunk := range corpus.Chunks {
		score := Score(questionLower, chunk, w)
		if score > 0 {
			results = append(results, SearchResult{
				Chunk: chunk,
				Score: score,
			})
		}
	}

	// Sort by score descending, ties stay in corpus order
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if topK > 0 && topK < len(results) {
		results = results[:topK]
	}

	return results
}

// JoinContext joins the content of the results with a blank line
func JoinContext(results []SearchResult) string {
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = r.Chunk.Content
	}
	return strings.Join(parts, contextSeparator)
}

// LexicalRetriever ranks chunks by substring overlap with the question
type LexicalRetriever struct {
	TopK    int
	Weights Weights
}

// NewLexicalRetriever creates a retriever with the stock weights and top-k
func NewLexicalRetriever() *LexicalRetriever {
	return &LexicalRetriever{
		TopK:    DefaultTopK,
		Weights: DefaultWeights(),
	}
}

// Retrieve returns the joined context of the best chunks, or "" if none scored
func (r *LexicalRetriever) Retrieve(question string, corpus *Corpus) string {
	topK := r.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	return JoinContext(Search(corpus, question, topK, r.Weights))
}
