package aggregates

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medmap-backend/domain/config"
	"medmap-backend/domain/core/valueobjects"
	pkgerrors "medmap-backend/pkg/errors"
)

func TestNewMindMap(t *testing.T) {
	docID := valueobjects.NewDocumentID()

	tests := []struct {
		name    string
		userID  string
		title   string
		root    *MapNode
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid mind map",
			userID:  "user123",
			title:   "Cardiology Notes",
			root:    createTestTree(),
			wantErr: false,
		},
		{
			name:    "empty user ID",
			userID:  "",
			title:   "Cardiology Notes",
			root:    createTestTree(),
			wantErr: true,
			errMsg:  "userID cannot be empty",
		},
		{
			name:    "empty title",
			userID:  "user123",
			title:   "",
			root:    createTestTree(),
			wantErr: true,
			errMsg:  "title is required",
		},
		{
			name:    "whitespace only title",
			userID:  "user123",
			title:   "   \t ",
			root:    createTestTree(),
			wantErr: true,
			errMsg:  "title is required",
		},
		{
			name:    "title over the length limit",
			userID:  "user123",
			title:   strings.Repeat("a", 201),
			root:    createTestTree(),
			wantErr: true,
			errMsg:  "exceeds maximum length",
		},
		{
			name:    "nil root",
			userID:  "user123",
			title:   "Cardiology Notes",
			root:    nil,
			wantErr: true,
			errMsg:  "tree root cannot be nil",
		},
		{
			name:    "root without the root identifier",
			userID:  "user123",
			title:   "Cardiology Notes",
			root:    NewBranchNode("node-0", "Not a root"),
			wantErr: true,
			errMsg:  "root identifier",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewMindMap(tt.userID, docID, tt.title, tt.root, "checksum")

			if tt.wantErr {
				require.Error(t, err)
				if tt.errMsg != "" {
					assert.Contains(t, err.Error(), tt.errMsg)
				}
				assert.Nil(t, m)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, m)

			assert.False(t, m.ID().IsZero())
			assert.Equal(t, tt.userID, m.UserID())
			assert.Equal(t, docID, m.DocumentID())
			assert.Equal(t, tt.title, m.Title())
			assert.Equal(t, "checksum", m.SourceChecksum())
			assert.Equal(t, tt.root.Count(), m.NodeCount())
			assert.Equal(t, 1, m.Version())

			events := m.GetUncommittedEvents()
			require.Len(t, events, 1)
			assert.Equal(t, "mindmap.generated", events[0].GetEventType())
			assert.Equal(t, m.ID().String(), events[0].GetAggregateID())
		})
	}
}

func TestNewMindMapWithConfig_TitleIsTrimmed(t *testing.T) {
	m, err := NewMindMapWithConfig("user123", valueobjects.NewDocumentID(),
		"  Padded Title  ", createTestTree(), "checksum", nil)

	require.NoError(t, err)
	assert.Equal(t, "Padded Title", m.Title())
}

func TestNewMindMapWithConfig_NodeLimit(t *testing.T) {
	cfg := config.DefaultDomainConfig()
	cfg.MaxNodesPerMap = 2

	m, err := NewMindMapWithConfig("user123", valueobjects.NewDocumentID(),
		"Over the limit", createTestTree(), "checksum", cfg)

	require.Error(t, err)
	assert.Nil(t, m)
	assert.ErrorIs(t, err, pkgerrors.ErrMapNodeLimitExceeded)
}

func TestMindMap_Rename(t *testing.T) {
	m := createTestMindMap(t)
	m.MarkEventsAsCommitted()

	err := m.Rename("Updated Title")

	require.NoError(t, err)
	assert.Equal(t, "Updated Title", m.Title())
	assert.Equal(t, 2, m.Version())

	events := m.GetUncommittedEvents()
	require.Len(t, events, 1)
	assert.Equal(t, "mindmap.renamed", events[0].GetEventType())
}

func TestMindMap_Rename_SameTitleIsNoOp(t *testing.T) {
	m := createTestMindMap(t)
	m.MarkEventsAsCommitted()

	err := m.Rename("  " + m.Title() + "  ")

	require.NoError(t, err)
	assert.Equal(t, 1, m.Version())
	assert.Empty(t, m.GetUncommittedEvents())
}

func TestMindMap_Rename_InvalidTitle(t *testing.T) {
	m := createTestMindMap(t)
	original := m.Title()

	tests := []struct {
		name  string
		title string
		errIs error
	}{
		{
			name:  "empty title",
			title: "",
			errIs: pkgerrors.ErrMapTitleRequired,
		},
		{
			name:  "title over the length limit",
			title: strings.Repeat("x", 201),
			errIs: pkgerrors.ErrMapTitleTooLong,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := m.Rename(tt.title)

			require.Error(t, err)
			assert.ErrorIs(t, err, tt.errIs)
			assert.Equal(t, original, m.Title())
			assert.Equal(t, 1, m.Version())
		})
	}
}

func TestMindMap_ReplaceRoot(t *testing.T) {
	m := createTestMindMap(t)
	m.MarkEventsAsCommitted()

	newRoot := NewBranchNode(RootNodeID, RootNodeText)
	newRoot.AddChild(NewLeafNode("node-0", "Fresh topic"))

	err := m.ReplaceRoot(newRoot, "newchecksum")

	require.NoError(t, err)
	assert.Same(t, newRoot, m.Root())
	assert.Equal(t, "newchecksum", m.SourceChecksum())
	assert.Equal(t, 2, m.NodeCount())
	assert.Equal(t, 2, m.Version())

	events := m.GetUncommittedEvents()
	require.Len(t, events, 1)
	assert.Equal(t, "mindmap.generated", events[0].GetEventType())
}

func TestMindMap_ReplaceRoot_InvalidRootKeepsOld(t *testing.T) {
	m := createTestMindMap(t)
	oldRoot := m.Root()

	err := m.ReplaceRoot(NewBranchNode("wrong", "Wrong root"), "newchecksum")

	require.Error(t, err)
	assert.Same(t, oldRoot, m.Root())
	assert.Equal(t, 1, m.Version())
}

func TestMindMap_MarkDeleted(t *testing.T) {
	m := createTestMindMap(t)
	m.MarkEventsAsCommitted()

	m.MarkDeleted()

	events := m.GetUncommittedEvents()
	require.Len(t, events, 1)
	assert.Equal(t, "mindmap.deleted", events[0].GetEventType())
	assert.Equal(t, m.ID().String(), events[0].GetAggregateID())
}

func TestMindMap_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(m *MindMap)
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid map",
			mutate:  func(m *MindMap) {},
			wantErr: false,
		},
		{
			name:    "nil root",
			mutate:  func(m *MindMap) { m.root = nil },
			wantErr: true,
			errMsg:  "root cannot be nil",
		},
		{
			name:    "root without root identifier",
			mutate:  func(m *MindMap) { m.root.ID = "other" },
			wantErr: true,
			errMsg:  "root identifier",
		},
		{
			name:    "root without children array",
			mutate:  func(m *MindMap) { m.root.Children = nil },
			wantErr: true,
			errMsg:  "children array",
		},
		{
			name: "duplicate node IDs",
			mutate: func(m *MindMap) {
				m.root.Children[0].Children[0].ID = m.root.Children[0].ID
			},
			wantErr: true,
			errMsg:  "duplicate node id",
		},
		{
			name: "empty node text",
			mutate: func(m *MindMap) {
				m.root.Children[0].Text = ""
			},
			wantErr: true,
			errMsg:  "empty node text",
		},
		{
			name:    "node count mismatch",
			mutate:  func(m *MindMap) { m.nodeCount = 99 },
			wantErr: true,
			errMsg:  "node count mismatch",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := createTestMindMap(t)
			tt.mutate(m)

			err := m.Validate()

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMindMap_EventLifecycle(t *testing.T) {
	m := createTestMindMap(t)

	events := m.GetUncommittedEvents()
	require.Len(t, events, 1)

	// The returned slice is a copy; mutating it must not touch the aggregate
	events[0] = nil
	fresh := m.GetUncommittedEvents()
	require.Len(t, fresh, 1)
	assert.NotNil(t, fresh[0])

	m.MarkEventsAsCommitted()
	assert.Empty(t, m.GetUncommittedEvents())
}

func TestReconstructMindMap(t *testing.T) {
	id := valueobjects.NewMapID()
	docID := valueobjects.NewDocumentID()
	root := createTestTree()

	m, err := ReconstructMindMap(id, "user123", docID, "Stored Title", root, "checksum", 4,
		testTime(t, "2026-01-02T10:00:00Z"), testTime(t, "2026-01-05T10:00:00Z"))

	require.NoError(t, err)
	assert.Equal(t, id, m.ID())
	assert.Equal(t, "Stored Title", m.Title())
	assert.Equal(t, 4, m.Version())
	assert.Equal(t, root.Count(), m.NodeCount())
	assert.Equal(t, testTime(t, "2026-01-02T10:00:00Z"), m.CreatedAt())
	assert.Equal(t, testTime(t, "2026-01-05T10:00:00Z"), m.UpdatedAt())
	assert.Empty(t, m.GetUncommittedEvents(), "reconstruction must not emit events")
}

func TestReconstructMindMap_Invalid(t *testing.T) {
	id := valueobjects.NewMapID()
	docID := valueobjects.NewDocumentID()
	now := testTime(t, "2026-01-02T10:00:00Z")

	tests := []struct {
		name   string
		id     valueobjects.MapID
		userID string
		root   *MapNode
	}{
		{name: "zero map ID", id: valueobjects.MapID{}, userID: "user123", root: createTestTree()},
		{name: "empty user ID", id: id, userID: "", root: createTestTree()},
		{name: "nil root", id: id, userID: "user123", root: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := ReconstructMindMap(tt.id, tt.userID, docID, "Title", tt.root, "checksum", 1, now, now)

			assert.Error(t, err)
			assert.Nil(t, m)
		})
	}
}

func TestReconstructMindMap_VersionFloor(t *testing.T) {
	now := testTime(t, "2026-01-02T10:00:00Z")

	m, err := ReconstructMindMap(valueobjects.NewMapID(), "user123", valueobjects.NewDocumentID(),
		"Title", createTestTree(), "checksum", 0, now, now)

	require.NoError(t, err)
	assert.Equal(t, 1, m.Version())
}

func TestMapNode_AddChild_PromotesLeaf(t *testing.T) {
	leaf := NewLeafNode("node-1", "A leaf")
	require.True(t, leaf.IsLeaf())

	leaf.AddChild(NewLeafNode("node-1-sub-0", "Child"))

	assert.False(t, leaf.IsLeaf())
	require.Len(t, leaf.Children, 1)
}

func TestMapNode_CountAndDepth(t *testing.T) {
	tests := []struct {
		name      string
		node      *MapNode
		wantCount int
		wantDepth int
	}{
		{
			name:      "single leaf",
			node:      NewLeafNode("root", "alone"),
			wantCount: 1,
			wantDepth: 1,
		},
		{
			name:      "empty branch",
			node:      NewBranchNode("root", "empty"),
			wantCount: 1,
			wantDepth: 1,
		},
		{
			name:      "three level tree",
			node:      createTestTree(),
			wantCount: 3,
			wantDepth: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantCount, tt.node.Count())
			assert.Equal(t, tt.wantDepth, tt.node.Depth())
		})
	}
}

func TestMapNode_Find(t *testing.T) {
	root := createTestTree()

	found := root.Find("node-0-sub-0")
	require.NotNil(t, found)
	assert.Equal(t, "First detail", found.Text)

	assert.Same(t, root, root.Find(RootNodeID))
	assert.Nil(t, root.Find("missing"))
}

func TestMapNode_Walk(t *testing.T) {
	root := createTestTree()

	var visited []string
	var depths []int
	root.Walk(func(n *MapNode, depth int) bool {
		visited = append(visited, n.ID)
		depths = append(depths, depth)
		return true
	})

	assert.Equal(t, []string{RootNodeID, "node-0", "node-0-sub-0"}, visited)
	assert.Equal(t, []int{0, 1, 2}, depths)
}

func TestMapNode_Walk_EarlyStop(t *testing.T) {
	root := createTestTree()

	var visited []string
	root.Walk(func(n *MapNode, depth int) bool {
		visited = append(visited, n.ID)
		return n.ID != "node-0"
	})

	assert.Equal(t, []string{RootNodeID, "node-0"}, visited)
}

func TestMapNode_MarshalJSON(t *testing.T) {
	leaf := NewLeafNode("node-0-sub-0", "A leaf")
	branch := NewBranchNode("node-0", "A branch")

	leafJSON, err := json.Marshal(leaf)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"node-0-sub-0","text":"A leaf"}`, string(leafJSON))
	assert.NotContains(t, string(leafJSON), "children")

	branchJSON, err := json.Marshal(branch)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"node-0","text":"A branch","children":[]}`, string(branchJSON))
}

// createTestTree builds a minimal valid tree: root, one topic, one leaf
func createTestTree() *MapNode {
	root := NewBranchNode(RootNodeID, RootNodeText)
	topic := NewBranchNode("node-0", "First topic")
	topic.AddChild(NewLeafNode("node-0-sub-0", "First detail"))
	root.AddChild(topic)
	return root
}

func createTestMindMap(t *testing.T) *MindMap {
	t.Helper()
	m, err := NewMindMap("user123", valueobjects.NewDocumentID(), "Test Map", createTestTree(), "checksum")
	require.NoError(t, err)
	return m
}

func testTime(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, value)
	require.NoError(t, err)
	return ts
}
