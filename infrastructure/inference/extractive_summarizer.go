package inference

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"medmap-backend/application/services"
)

// ExtractiveSummarizer is the dependency-free fallback for environments
// without the ONNX runtime or a downloaded model. It scores sentences by
// word frequency and keeps the highest scoring ones, in source order, within
// the same length bounds the model summarizer is asked for.
type ExtractiveSummarizer struct {
	logger *zap.Logger
}

// NewExtractiveSummarizer creates the fallback summarizer
func NewExtractiveSummarizer(logger *zap.Logger) *ExtractiveSummarizer {
	return &ExtractiveSummarizer{logger: logger}
}

// Summarize selects the most representative sentences from the text.
// maxLength and minLength are word counts.
func (s *ExtractiveSummarizer) Summarize(ctx context.Context, text string, maxLength, minLength int) (string, error) {
	if maxLength <= 0 {
		maxLength = 150
	}
	if minLength < 0 {
		minLength = 0
	}

	sentences := services.SplitSentences(text)
	if len(sentences) == 0 {
		return strings.TrimSpace(text), nil
	}

	frequencies := make(map[string]int)
	tokenized := make([][]string, len(sentences))
	for i, sentence := range sentences {
		tokenized[i] = tokenize(sentence)
		for _, word := range tokenized[i] {
			frequencies[word]++
		}
	}

	// Rank sentence positions by summed word frequency
	type scored struct {
		index int
		score int
	}
	ranked := make([]scored, len(sentences))
	for i, words := range tokenized {
		total := 0
		for _, word := range words {
			total += frequencies[word]
		}
		ranked[i] = scored{index: i, score: total}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	// Take the best sentences until the word budget runs out. One overflow
	// sentence is allowed while the summary is still under the minimum.
	selected := make(map[int]bool)
	wordCount := 0
	for _, candidate := range ranked {
		sentenceWords := len(tokenized[candidate.index])
		if sentenceWords == 0 {
			continue
		}
		if wordCount+sentenceWords > maxLength && wordCount >= minLength {
			continue
		}
		selected[candidate.index] = true
		wordCount += sentenceWords
		if wordCount >= maxLength {
			break
		}
	}

	// Emit in source order so the summary reads naturally
	parts := make([]string, 0, len(selected))
	for i, sentence := range sentences {
		if selected[i] {
			parts = append(parts, strings.TrimSpace(sentence))
		}
	}

	summary := strings.Join(parts, " ")

	s.logger.Debug("Extractive summary built",
		zap.Int("sourceSentences", len(sentences)),
		zap.Int("selectedSentences", len(parts)),
		zap.Int("words", wordCount),
	)

	return summary, nil
}

// tokenize lowercases and strips punctuation from sentence words
func tokenize(sentence string) []string {
	fields := strings.Fields(strings.ToLower(sentence))
	words := make([]string, 0, len(fields))
	for _, field := range fields {
		cleaned := strings.Trim(field, ".,!?;:\"'()[]{}")
		if cleaned != "" {
			words = append(words, cleaned)
		}
	}
	return words
}
