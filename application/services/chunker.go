package services

import "strings"

// ChunkFunc splits text into pieces sized for the summarization model
type ChunkFunc func(text string, size int) []string

// ChunkRunes slices text into consecutive chunks of at most size runes.
// Boundaries are counted in runes, not bytes, so multi-byte characters
// never get split and chunk positions line up with how content length
// is measured elsewhere.
func ChunkRunes(text string, size int) []string {
	if text == "" || size <= 0 {
		return nil
	}

	runes := []rune(text)
	chunks := make([]string, 0, (len(runes)+size-1)/size)
	for i := 0; i < len(runes); i += size {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
	}
	return chunks
}

// IsBlank reports whether text is empty or whitespace only
func IsBlank(text string) bool {
	return strings.TrimSpace(text) == ""
}
