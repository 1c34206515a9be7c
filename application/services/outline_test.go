package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medmap-backend/domain/config"
	"medmap-backend/domain/core/aggregates"
)

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "two sentences",
			text: "The patient has diabetes. Treatment is ongoing.",
			want: []string{"The patient has diabetes.", "Treatment is ongoing."},
		},
		{
			name: "mixed terminators",
			text: "What is lupus? It is an autoimmune disease! Therapy helps.",
			want: []string{"What is lupus?", "It is an autoimmune disease!", "Therapy helps."},
		},
		{
			name: "trailing fragment without terminator",
			text: "First sentence. trailing clause",
			want: []string{"First sentence.", "trailing clause"},
		},
		{
			name: "single sentence no trailing space",
			text: "One sentence.",
			want: []string{"One sentence."},
		},
		{
			name: "newlines between sentences",
			text: "First point.\n\nSecond point.",
			want: []string{"First point.", "Second point."},
		},
		{
			name: "empty text",
			text: "",
			want: nil,
		},
		{
			name: "whitespace only",
			text: "   \n\t  ",
			want: nil,
		},
		{
			name: "no terminator at all",
			text: "just a fragment",
			want: []string{"just a fragment"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitSentences(tt.text)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOutlineBuilder_SelectTopics(t *testing.T) {
	cfg := config.DefaultDomainConfig()
	cfg.TopicKeywords = []string{"disease", "therapy"}
	cfg.FallbackTopicCount = 2

	builder := NewOutlineBuilder(cfg)

	tests := []struct {
		name      string
		sentences []string
		want      []string
	}{
		{
			name: "keyword sentences selected in order",
			sentences: []string{
				"The disease progresses slowly.",
				"Rest is recommended.",
				"Therapy starts in week two.",
			},
			want: []string{"The disease progresses slowly.", "Therapy starts in week two."},
		},
		{
			name: "matching is case insensitive",
			sentences: []string{
				"The DISEASE was identified early.",
				"No further findings.",
			},
			want: []string{"The DISEASE was identified early."},
		},
		{
			name: "duplicate sentence text selected once",
			sentences: []string{
				"Therapy helps.",
				"Therapy helps.",
				"Unrelated remark.",
			},
			want: []string{"Therapy helps."},
		},
		{
			name: "no matches falls back to leading sentences",
			sentences: []string{
				"First remark.",
				"Second remark.",
				"Third remark.",
			},
			want: []string{"First remark.", "Second remark."},
		},
		{
			name:      "fewer sentences than fallback count",
			sentences: []string{"Only remark."},
			want:      []string{"Only remark."},
		},
		{
			name:      "no sentences",
			sentences: nil,
			want:      nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := builder.SelectTopics(tt.sentences)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOutlineBuilder_Assemble(t *testing.T) {
	cfg := config.DefaultDomainConfig()
	cfg.MaxSubNodesPerTopic = 2

	builder := NewOutlineBuilder(cfg)

	sentences := []string{
		"The disease progresses slowly.",
		"Early detection matters.",
		"Rest is part of recovery.",
		"Therapy starts in week two.",
		"Outcomes vary by patient.",
	}
	topics := []string{
		"The disease progresses slowly.",
		"Therapy starts in week two.",
	}

	root := builder.Assemble(topics, sentences)

	require.NotNil(t, root)
	assert.Equal(t, aggregates.RootNodeID, root.ID)
	assert.Equal(t, aggregates.RootNodeText, root.Text)
	require.Len(t, root.Children, 2)

	first := root.Children[0]
	assert.Equal(t, "node-0", first.ID)
	assert.Equal(t, "The disease progresses slowly.", first.Text)
	require.Len(t, first.Children, 2)
	assert.Equal(t, "node-0-sub-0", first.Children[0].ID)
	assert.Equal(t, "Early detection matters.", first.Children[0].Text)
	assert.Equal(t, "node-0-sub-1", first.Children[1].ID)
	assert.Equal(t, "Rest is part of recovery.", first.Children[1].Text)

	second := root.Children[1]
	assert.Equal(t, "node-1", second.ID)
	assert.Equal(t, "Therapy starts in week two.", second.Text)
	require.Len(t, second.Children, 1)
	assert.Equal(t, "node-1-sub-0", second.Children[0].ID)
	assert.Equal(t, "Outcomes vary by patient.", second.Children[0].Text)
}

func TestOutlineBuilder_Assemble_OverflowGoesToOtherBranch(t *testing.T) {
	cfg := config.DefaultDomainConfig()
	cfg.MaxSubNodesPerTopic = 1

	builder := NewOutlineBuilder(cfg)

	sentences := []string{
		"The disease progresses slowly.",
		"Early detection matters.",
		"Rest is part of recovery.",
		"Outcomes vary.",
	}
	topics := []string{"The disease progresses slowly."}

	root := builder.Assemble(topics, sentences)

	require.Len(t, root.Children, 2)

	other := root.Children[1]
	assert.Equal(t, aggregates.OtherNodeID, other.ID)
	assert.Equal(t, aggregates.OtherNodeText, other.Text)
	require.Len(t, other.Children, 2)
	assert.Equal(t, "node-other-sub-0", other.Children[0].ID)
	assert.Equal(t, "Rest is part of recovery.", other.Children[0].Text)
	assert.Equal(t, "node-other-sub-1", other.Children[1].ID)
	assert.Equal(t, "Outcomes vary.", other.Children[1].Text)
}

func TestOutlineBuilder_Assemble_NoLeftoversOmitsOtherBranch(t *testing.T) {
	builder := NewOutlineBuilder(config.DefaultDomainConfig())

	sentences := []string{
		"The disease progresses slowly.",
		"Early detection matters.",
	}
	topics := []string{"The disease progresses slowly."}

	root := builder.Assemble(topics, sentences)

	require.Len(t, root.Children, 1)
	assert.Equal(t, "node-0", root.Children[0].ID)
}

func TestOutlineBuilder_Build(t *testing.T) {
	builder := NewOutlineBuilder(config.DefaultDomainConfig())

	summary := "The disease affects the nervous system. Patients report fatigue. " +
		"Therapy lasts six weeks. Follow-up visits are monthly."

	root := builder.Build(summary)

	require.NotNil(t, root)
	assert.Equal(t, aggregates.RootNodeID, root.ID)
	assert.NotEmpty(t, root.Children)

	// Every sentence from the summary must land somewhere in the tree
	texts := make(map[string]bool)
	root.Walk(func(n *aggregates.MapNode, depth int) bool {
		texts[n.Text] = true
		return true
	})
	for _, sentence := range SplitSentences(summary) {
		assert.True(t, texts[sentence], "sentence %q missing from tree", sentence)
	}

	// IDs must be unique across the assembled tree
	ids := make(map[string]int)
	root.Walk(func(n *aggregates.MapNode, depth int) bool {
		ids[n.ID]++
		return true
	})
	for id, count := range ids {
		assert.Equal(t, 1, count, "node ID %q appears %d times", id, count)
	}
}

func TestOutlineBuilder_Build_EmptySummary(t *testing.T) {
	builder := NewOutlineBuilder(config.DefaultDomainConfig())

	root := builder.Build("")

	require.NotNil(t, root)
	assert.Equal(t, aggregates.RootNodeID, root.ID)
	assert.Empty(t, root.Children)
	assert.Equal(t, 1, root.Count())
}

func TestNewOutlineBuilder_NilConfigUsesDefaults(t *testing.T) {
	builder := NewOutlineBuilder(nil)

	require.NotNil(t, builder)

	// Defaults still produce a tree from keyword-free text
	root := builder.Build("First remark. Second remark. Third remark. Fourth remark.")
	require.NotNil(t, root)
	assert.NotEmpty(t, root.Children)
}
