package loader

import (
	"github.com/perbu/sitechat/pkg/rag"
	"github.com/perbu/sitechat/pkg/scraper"
)

// DefaultChunkSize is the window size in runes
const DefaultChunkSize = 600

// ChunkDocument splits page text into consecutive non-overlapping windows of
// size runes. The last window may be shorter. Concatenating the chunk contents
// in order gives back the original text.
func ChunkDocument(source, content string, size int) []rag.Chunk {
	if size <= 0 {
		size = DefaultChunkSize
	}

	runes := []rune(content)
	chunks := make([]rag.Chunk, 0, (len(runes)+size-1)/size)

	for offset := 0; offset < len(runes); offset += size {
		end := offset + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, rag.Chunk{
			Source:  source,
			Content: string(runes[offset:end]),
			Offset:  offset,
		})
	}

	return chunks
}

// LoadAndChunkAll chunks every page in input order and returns them as one corpus
func LoadAndChunkAll(pages []scraper.PageResult, size int) *rag.Corpus {
	corpus := &rag.Corpus{}
	for _, page := range pages {
		corpus.Chunks = append(corpus.Chunks, ChunkDocument(page.URL, page.Text, size)...)
	}
	return corpus
}
