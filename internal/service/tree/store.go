// Package tree holds a workspace's file tree: an in-memory mirror of the
// folders and files collections, plus the mutation engine that issues
// tree changes against the remote store.
package tree

import (
	"sort"
	"strings"
	"sync"

	"codecollab/internal/config"
	"codecollab/internal/domain/models"
	"codecollab/internal/feed"
)

// Store mirrors one workspace's folders and files. The remote store is
// authoritative: every snapshot fully replaces the local copy of its
// document, and local state is never merged back.
//
// Folder and file IDs share one namespace (both are UUIDs), so a single
// node map serves both collections.
type Store struct {
	workspaceID string

	mu    sync.RWMutex
	nodes map[string]*models.Node
}

// NewStore creates an empty mirror for the workspace.
func NewStore(workspaceID string) *Store {
	return &Store{
		workspaceID: workspaceID,
		nodes:       make(map[string]*models.Node),
	}
}

// ApplySnapshot reconciles one feed event into the mirror. Snapshots from
// the folders collection become folder nodes, files collection file nodes;
// snapshots from other collections are ignored.
func (s *Store) ApplySnapshot(snap feed.Snapshot) {
	var node *models.Node
	switch {
	case strings.HasSuffix(snap.Collection, "/folders"):
		node = models.FolderFromDoc(s.workspaceID, snap.DocID, snap.Fields)
	case strings.HasSuffix(snap.Collection, "/files"):
		node = models.FileFromDoc(s.workspaceID, snap.DocID, snap.Fields)
	default:
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if snap.Deleted {
		delete(s.nodes, snap.DocID)
		return
	}
	s.nodes[snap.DocID] = node
}

// Get returns a copy of the node, if present.
func (s *Store) Get(nodeID string) (*models.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	node, ok := s.nodes[nodeID]
	if !ok {
		return nil, false
	}
	cp := *node
	return &cp, true
}

// Len returns the number of nodes in the mirror.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

// ChildrenOf returns the direct children of a folder (empty parentID for
// the root level), folders and files together, ordered by name then ID so
// listings are stable across clients.
func (s *Store) ChildrenOf(parentID string) []*models.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var children []*models.Node
	for _, node := range s.nodes {
		if node.ParentID == parentID {
			cp := *node
			children = append(children, &cp)
		}
	}
	sort.Slice(children, func(i, j int) bool {
		if children[i].Name != children[j].Name {
			return children[i].Name < children[j].Name
		}
		return children[i].ID < children[j].ID
	})
	return children
}

// PathAncestors returns the node's ancestor chain from the root down to
// the node itself. The walk is depth-bounded: remote state can be
// transiently cyclic while concurrent moves reconcile, and a bounded walk
// returns the partial chain instead of spinning.
func (s *Store) PathAncestors(nodeID string) []*models.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var chain []*models.Node
	currentID := nodeID
	for range config.MaxTreeDepth {
		node, ok := s.nodes[currentID]
		if !ok {
			break
		}
		cp := *node
		chain = append(chain, &cp)
		if node.ParentID == "" {
			break
		}
		currentID = node.ParentID
	}

	// Collected node -> root; callers want root -> node.
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// IsDescendant reports whether candidate sits anywhere under the subtree
// rooted at of. A node is not its own descendant. The ancestor walk is
// bounded like PathAncestors.
func (s *Store) IsDescendant(candidateID, ofID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	currentID := candidateID
	for range config.MaxTreeDepth {
		node, ok := s.nodes[currentID]
		if !ok || node.ParentID == "" {
			return false
		}
		if node.ParentID == ofID {
			return true
		}
		currentID = node.ParentID
	}
	return false
}

// SnapshotDescendants returns every node under the given folder as copies
// taken at call time, deepest-first (a folder always follows its own
// contents). Cascading deletes iterate this snapshot so the walk is
// unaffected by concurrent feed events; nodes created mid-cascade by
// another client are not guaranteed to be included.
func (s *Store) SnapshotDescendants(folderID string) []*models.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	children := make(map[string][]*models.Node, len(s.nodes))
	for _, node := range s.nodes {
		children[node.ParentID] = append(children[node.ParentID], node)
	}

	var out []*models.Node
	var walk func(id string, depth int)
	walk = func(id string, depth int) {
		if depth > config.MaxTreeDepth {
			return
		}
		for _, child := range children[id] {
			if child.IsFolder() {
				walk(child.ID, depth+1)
			}
			cp := *child
			out = append(out, &cp)
		}
	}
	walk(folderID, 0)
	return out
}
