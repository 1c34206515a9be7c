package aggregates

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"medmap-backend/domain/config"
	"medmap-backend/domain/core/valueobjects"
	"medmap-backend/domain/events"
	pkgerrors "medmap-backend/pkg/errors"
)

// Well-known node identifiers in the generated tree. Topic nodes are
// numbered "node-{i}", their leaves "node-{i}-sub-{n}", and sentences
// that matched no topic collect under the "node-other" branch.
const (
	RootNodeID    = "root"
	RootNodeText  = "Medical Document Overview"
	OtherNodeID   = "node-other"
	OtherNodeText = "Other Details"
)

// MapNode is a single node in the mind map tree.
// Branch nodes carry a children array even when it is empty; leaf nodes
// have no children key at all. Marshalling preserves that distinction.
type MapNode struct {
	ID       string     `json:"id"`
	Text     string     `json:"text"`
	Children []*MapNode `json:"children"`
}

// NewLeafNode creates a node without a children array
func NewLeafNode(id, text string) *MapNode {
	return &MapNode{ID: id, Text: text}
}

// NewBranchNode creates a node with an empty children array
func NewBranchNode(id, text string) *MapNode {
	return &MapNode{ID: id, Text: text, Children: []*MapNode{}}
}

// AddChild appends a child node, promoting a leaf to a branch
func (n *MapNode) AddChild(child *MapNode) {
	if n.Children == nil {
		n.Children = []*MapNode{}
	}
	n.Children = append(n.Children, child)
}

// IsLeaf reports whether the node has no children array
func (n *MapNode) IsLeaf() bool {
	return n.Children == nil
}

// Count returns the number of nodes in this subtree including itself
func (n *MapNode) Count() int {
	count := 1
	for _, child := range n.Children {
		count += child.Count()
	}
	return count
}

// Depth returns the height of this subtree, 1 for a single node
func (n *MapNode) Depth() int {
	max := 0
	for _, child := range n.Children {
		if d := child.Depth(); d > max {
			max = d
		}
	}
	return max + 1
}

// Find returns the first node with the given ID in preorder, or nil
func (n *MapNode) Find(id string) *MapNode {
	if n.ID == id {
		return n
	}
	for _, child := range n.Children {
		if found := child.Find(id); found != nil {
			return found
		}
	}
	return nil
}

// Walk visits every node in preorder with its depth, root at depth 0.
// Returning false from the visitor stops the traversal.
func (n *MapNode) Walk(visit func(node *MapNode, depth int) bool) {
	n.walk(visit, 0)
}

func (n *MapNode) walk(visit func(node *MapNode, depth int) bool, depth int) bool {
	if !visit(n, depth) {
		return false
	}
	for _, child := range n.Children {
		if !child.walk(visit, depth+1) {
			return false
		}
	}
	return true
}

// MarshalJSON emits the children key only for branch nodes so that
// leaves round-trip without one
func (n *MapNode) MarshalJSON() ([]byte, error) {
	if n.Children == nil {
		return json.Marshal(struct {
			ID   string `json:"id"`
			Text string `json:"text"`
		}{ID: n.ID, Text: n.Text})
	}
	return json.Marshal(struct {
		ID       string     `json:"id"`
		Text     string     `json:"text"`
		Children []*MapNode `json:"children"`
	}{ID: n.ID, Text: n.Text, Children: n.Children})
}

// MindMap is the aggregate root for a generated mind map.
// It ensures consistency boundaries for the whole tree.
type MindMap struct {
	id             valueobjects.MapID
	userID         string
	documentID     valueobjects.DocumentID
	title          string
	root           *MapNode
	sourceChecksum string
	nodeCount      int
	createdAt      time.Time
	updatedAt      time.Time
	version        int
	events         []events.DomainEvent
}

// NewMindMap creates a new mind map aggregate from a generated tree
func NewMindMap(userID string, documentID valueobjects.DocumentID, title string, root *MapNode, sourceChecksum string) (*MindMap, error) {
	return NewMindMapWithConfig(userID, documentID, title, root, sourceChecksum, config.DefaultDomainConfig())
}

// NewMindMapWithConfig creates a new mind map validated against configuration
func NewMindMapWithConfig(userID string, documentID valueobjects.DocumentID, title string, root *MapNode, sourceChecksum string, cfg *config.DomainConfig) (*MindMap, error) {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}

	if userID == "" {
		return nil, pkgerrors.NewValidationError("userID cannot be empty")
	}

	title = strings.TrimSpace(title)
	if err := validateTitle(title, cfg); err != nil {
		return nil, err
	}

	if err := validateRoot(root, cfg); err != nil {
		return nil, err
	}

	now := time.Now()
	m := &MindMap{
		id:             valueobjects.NewMapID(),
		userID:         userID,
		documentID:     documentID,
		title:          title,
		root:           root,
		sourceChecksum: sourceChecksum,
		nodeCount:      root.Count(),
		createdAt:      now,
		updatedAt:      now,
		version:        1,
		events:         []events.DomainEvent{},
	}

	m.addEvent(events.NewMindMapGenerated(m.id, documentID, userID, m.nodeCount, now))

	return m, nil
}

// ReconstructMindMap recreates a mind map from stored data with preserved
// timestamps and version
func ReconstructMindMap(
	id valueobjects.MapID,
	userID string,
	documentID valueobjects.DocumentID,
	title string,
	root *MapNode,
	sourceChecksum string,
	version int,
	createdAt, updatedAt time.Time,
) (*MindMap, error) {
	if id.IsZero() || userID == "" {
		return nil, errors.New("required fields missing for mind map reconstruction")
	}
	if root == nil {
		return nil, errors.New("mind map root cannot be nil")
	}
	if version < 1 {
		version = 1
	}

	m := &MindMap{
		id:             id,
		userID:         userID,
		documentID:     documentID,
		title:          title,
		root:           root,
		sourceChecksum: sourceChecksum,
		nodeCount:      root.Count(),
		createdAt:      createdAt,
		updatedAt:      updatedAt,
		version:        version,
		events:         []events.DomainEvent{},
	}

	return m, nil
}

// ID returns the map's unique identifier
func (m *MindMap) ID() valueobjects.MapID {
	return m.id
}

// UserID returns the owner's ID
func (m *MindMap) UserID() string {
	return m.userID
}

// DocumentID returns the source document's identifier
func (m *MindMap) DocumentID() valueobjects.DocumentID {
	return m.documentID
}

// Title returns the map's title
func (m *MindMap) Title() string {
	return m.title
}

// Root returns the root node of the tree
func (m *MindMap) Root() *MapNode {
	return m.root
}

// SourceChecksum returns the SHA-256 checksum of the source text the
// tree was generated from
func (m *MindMap) SourceChecksum() string {
	return m.sourceChecksum
}

// NodeCount returns the total number of nodes in the tree
func (m *MindMap) NodeCount() int {
	return m.nodeCount
}

// Version returns the map's version for optimistic locking
func (m *MindMap) Version() int {
	return m.version
}

// CreatedAt returns when the map was first generated
func (m *MindMap) CreatedAt() time.Time {
	return m.createdAt
}

// UpdatedAt returns when the map was last changed
func (m *MindMap) UpdatedAt() time.Time {
	return m.updatedAt
}

// Rename changes the map's title
func (m *MindMap) Rename(newTitle string) error {
	return m.RenameWithConfig(newTitle, config.DefaultDomainConfig())
}

// RenameWithConfig changes the map's title validated against configuration
func (m *MindMap) RenameWithConfig(newTitle string, cfg *config.DomainConfig) error {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}

	newTitle = strings.TrimSpace(newTitle)
	if err := validateTitle(newTitle, cfg); err != nil {
		return err
	}

	if newTitle == m.title {
		return nil // No change needed
	}

	oldTitle := m.title
	m.title = newTitle
	m.updatedAt = time.Now()
	m.version++

	m.addEvent(events.NewMindMapRenamed(m.id, m.userID, oldTitle, newTitle, m.updatedAt))

	return nil
}

// ReplaceRoot swaps in a freshly generated tree, used on regeneration
func (m *MindMap) ReplaceRoot(root *MapNode, sourceChecksum string) error {
	return m.ReplaceRootWithConfig(root, sourceChecksum, config.DefaultDomainConfig())
}

// ReplaceRootWithConfig swaps in a freshly generated tree validated
// against configuration
func (m *MindMap) ReplaceRootWithConfig(root *MapNode, sourceChecksum string, cfg *config.DomainConfig) error {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}

	if err := validateRoot(root, cfg); err != nil {
		return err
	}

	m.root = root
	m.sourceChecksum = sourceChecksum
	m.nodeCount = root.Count()
	m.updatedAt = time.Now()
	m.version++

	m.addEvent(events.NewMindMapGenerated(m.id, m.documentID, m.userID, m.nodeCount, m.updatedAt))

	return nil
}

// MarkDeleted records the deletion event before the repository removes the map
func (m *MindMap) MarkDeleted() {
	m.updatedAt = time.Now()
	m.addEvent(events.NewMindMapDeleted(m.id, m.userID, m.title, m.updatedAt))
}

// Validate ensures mind map invariants
func (m *MindMap) Validate() error {
	if m.root == nil {
		return errors.New("mind map root cannot be nil")
	}
	if m.root.ID != RootNodeID {
		return errors.New("tree root must have the root identifier")
	}
	if m.root.IsLeaf() {
		return errors.New("tree root must carry a children array")
	}

	// Check for duplicate node IDs and empty node text
	seen := make(map[string]bool)
	duplicate := ""
	emptyText := ""
	m.root.Walk(func(node *MapNode, _ int) bool {
		if seen[node.ID] {
			duplicate = node.ID
			return false
		}
		seen[node.ID] = true
		if node.Text == "" {
			emptyText = node.ID
			return false
		}
		return true
	})
	if duplicate != "" {
		return errors.New("duplicate node id: " + duplicate)
	}
	if emptyText != "" {
		return errors.New("empty node text: " + emptyText)
	}

	// Check count consistency
	if m.root.Count() != m.nodeCount {
		return errors.New("node count mismatch")
	}

	return nil
}

// GetUncommittedEvents returns all uncommitted domain events
func (m *MindMap) GetUncommittedEvents() []events.DomainEvent {
	allEvents := make([]events.DomainEvent, len(m.events))
	copy(allEvents, m.events)
	return allEvents
}

// MarkEventsAsCommitted clears all uncommitted events
func (m *MindMap) MarkEventsAsCommitted() {
	m.events = []events.DomainEvent{}
}

// Private helper methods

func (m *MindMap) addEvent(event events.DomainEvent) {
	m.events = append(m.events, event)
}

func validateTitle(title string, cfg *config.DomainConfig) error {
	if title == "" {
		return pkgerrors.ErrMapTitleRequired
	}
	if utf8.RuneCountInString(title) > cfg.MaxTitleLength {
		return pkgerrors.ErrMapTitleTooLong
	}
	return nil
}

func validateRoot(root *MapNode, cfg *config.DomainConfig) error {
	if root == nil {
		return pkgerrors.NewValidationError("tree root cannot be nil")
	}
	if root.ID != RootNodeID {
		return pkgerrors.NewValidationError("tree root must have the root identifier")
	}
	if count := root.Count(); count > cfg.MaxNodesPerMap {
		return pkgerrors.ErrMapNodeLimitExceeded
	}
	return nil
}
