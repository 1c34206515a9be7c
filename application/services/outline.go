package services

import (
	"fmt"
	"regexp"
	"strings"

	"medmap-backend/domain/config"
	"medmap-backend/domain/core/aggregates"
)

// sentenceBoundary matches a sentence terminator followed by whitespace.
// The terminator is captured so it stays attached to its sentence.
var sentenceBoundary = regexp.MustCompile(`([.!?])\s+`)

// SplitSentences splits summary text into trimmed sentences. A sentence
// ends at `.`, `!` or `?` followed by whitespace; the terminator stays
// with the sentence and empty pieces are dropped.
func SplitSentences(text string) []string {
	matches := sentenceBoundary.FindAllStringSubmatchIndex(text, -1)

	var sentences []string
	prev := 0
	for _, m := range matches {
		// m[3] is the end of the captured terminator, m[1] the end of
		// the whitespace run after it
		if s := strings.TrimSpace(text[prev:m[3]]); s != "" {
			sentences = append(sentences, s)
		}
		prev = m[1]
	}
	if s := strings.TrimSpace(text[prev:]); s != "" {
		sentences = append(sentences, s)
	}

	return sentences
}

// OutlineBuilder assembles mind map trees from summary sentences
type OutlineBuilder struct {
	keywords      []string
	maxSubNodes   int
	fallbackCount int
}

// NewOutlineBuilder creates an outline builder from domain configuration
func NewOutlineBuilder(cfg *config.DomainConfig) *OutlineBuilder {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	return &OutlineBuilder{
		keywords:      cfg.TopicKeywords,
		maxSubNodes:   cfg.MaxSubNodesPerTopic,
		fallbackCount: cfg.FallbackTopicCount,
	}
}

// SelectTopics picks the sentences that mention a topic keyword. The
// first keyword hit claims a sentence; duplicate sentence text is never
// selected twice. When nothing matches, the leading sentences stand in
// as topics so the tree is never empty.
func (b *OutlineBuilder) SelectTopics(sentences []string) []string {
	var topics []string
	selected := make(map[string]bool)

	for _, sentence := range sentences {
		lower := strings.ToLower(sentence)
		for _, keyword := range b.keywords {
			if strings.Contains(lower, keyword) && !selected[sentence] {
				topics = append(topics, sentence)
				selected[sentence] = true
				break
			}
		}
	}

	if len(topics) == 0 && len(sentences) > 0 {
		n := b.fallbackCount
		if len(sentences) < n {
			n = len(sentences)
		}
		topics = append(topics, sentences[:n]...)
	}

	return topics
}

// Build runs sentence splitting, topic selection and tree assembly on
// the full summary text
func (b *OutlineBuilder) Build(summary string) *aggregates.MapNode {
	sentences := SplitSentences(summary)
	topics := b.SelectTopics(sentences)
	return b.Assemble(topics, sentences)
}

// Assemble builds the tree: one branch per topic, each claiming up to
// maxSubNodes unused sentences in document order, and a trailing
// "Other Details" branch collecting whatever remains.
func (b *OutlineBuilder) Assemble(topics, sentences []string) *aggregates.MapNode {
	root := aggregates.NewBranchNode(aggregates.RootNodeID, aggregates.RootNodeText)

	// Sentences already placed as a topic or sub-node, by exact text
	used := make(map[string]bool)

	for i, topic := range topics {
		topicNode := aggregates.NewBranchNode(fmt.Sprintf("node-%d", i), topic)
		root.AddChild(topicNode)
		used[topic] = true

		subAdded := 0
		for _, sentence := range sentences {
			if used[sentence] || subAdded >= b.maxSubNodes {
				continue
			}
			topicNode.AddChild(aggregates.NewLeafNode(
				fmt.Sprintf("node-%d-sub-%d", i, subAdded), sentence))
			used[sentence] = true
			subAdded++
		}
	}

	other := aggregates.NewBranchNode(aggregates.OtherNodeID, aggregates.OtherNodeText)
	for _, sentence := range sentences {
		if used[sentence] {
			continue
		}
		other.AddChild(aggregates.NewLeafNode(
			fmt.Sprintf("node-other-sub-%d", len(other.Children)), sentence))
	}
	if len(other.Children) > 0 {
		root.AddChild(other)
	}

	return root
}
