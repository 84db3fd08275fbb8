package tree

import (
	"testing"

	"codecollab/internal/domain/models"
	"codecollab/internal/feed"
)

const testWorkspace = "ws1"

// seed applies nodes to the store as if they arrived on the feed.
func seed(s *Store, nodes ...*models.Node) {
	for _, n := range nodes {
		collection := feed.FilesOf(testWorkspace)
		if n.IsFolder() {
			collection = feed.FoldersOf(testWorkspace)
		}
		s.ApplySnapshot(feed.Snapshot{Collection: collection, DocID: n.ID, Fields: n.Fields()})
	}
}

func folder(id, name, parentID string) *models.Node {
	return &models.Node{ID: id, WorkspaceID: testWorkspace, Kind: models.NodeFolder, Name: name, ParentID: parentID}
}

func file(id, name, parentID string) *models.Node {
	return &models.Node{ID: id, WorkspaceID: testWorkspace, Kind: models.NodeFile, Name: name, ParentID: parentID}
}

func TestChildrenOfOrdering(t *testing.T) {
	s := NewStore(testWorkspace)
	seed(s,
		folder("f-docs", "docs", ""),
		file("a-readme", "readme", ""),
		file("b-readme", "readme", ""), // same name, ID breaks the tie
		folder("f-src", "alpha", ""),
		file("nested", "inner", "f-docs"),
	)

	children := s.ChildrenOf("")
	got := make([]string, len(children))
	for i, c := range children {
		got[i] = c.ID
	}
	want := []string{"f-src", "f-docs", "a-readme", "b-readme"}
	if len(got) != len(want) {
		t.Fatalf("ChildrenOf(root) = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ChildrenOf(root) = %v, want %v", got, want)
		}
	}
}

func TestDeletedSnapshotRemovesNode(t *testing.T) {
	s := NewStore(testWorkspace)
	seed(s, file("f1", "main.go", ""))

	s.ApplySnapshot(feed.Snapshot{Collection: feed.FilesOf(testWorkspace), DocID: "f1", Deleted: true})
	if _, ok := s.Get("f1"); ok {
		t.Error("node still present after tombstone")
	}
}

func TestSnapshotIsFullReplacement(t *testing.T) {
	s := NewStore(testWorkspace)
	seed(s, folder("A", "alpha", ""))

	// A later snapshot with no parent field resets the parent, it does
	// not merge with the prior local copy.
	s.ApplySnapshot(feed.Snapshot{
		Collection: feed.FoldersOf(testWorkspace),
		DocID:      "A",
		Fields:     map[string]any{"name": "renamed"},
	})
	node, ok := s.Get("A")
	if !ok {
		t.Fatal("node missing")
	}
	if node.Name != "renamed" || node.ParentID != "" {
		t.Errorf("node = %+v, want name=renamed parent=root", node)
	}
}

func TestPathAncestors(t *testing.T) {
	s := NewStore(testWorkspace)
	seed(s,
		folder("A", "a", ""),
		folder("B", "b", "A"),
		file("f1", "deep.go", "B"),
	)

	chain := s.PathAncestors("f1")
	got := make([]string, len(chain))
	for i, n := range chain {
		got[i] = n.ID
	}
	want := []string{"A", "B", "f1"}
	if len(got) != len(want) {
		t.Fatalf("PathAncestors = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("PathAncestors = %v, want %v", got, want)
		}
	}
}

func TestIsDescendant(t *testing.T) {
	s := NewStore(testWorkspace)
	seed(s,
		folder("A", "a", ""),
		folder("B", "b", "A"),
		folder("C", "c", "B"),
		folder("X", "x", ""),
	)

	tests := []struct {
		name      string
		candidate string
		of        string
		want      bool
	}{
		{"direct child", "B", "A", true},
		{"transitive", "C", "A", true},
		{"reverse", "A", "C", false},
		{"sibling tree", "X", "A", false},
		{"self", "A", "A", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.IsDescendant(tt.candidate, tt.of); got != tt.want {
				t.Errorf("IsDescendant(%s, %s) = %v, want %v", tt.candidate, tt.of, got, tt.want)
			}
		})
	}
}

func TestIsDescendantTerminatesOnCyclicState(t *testing.T) {
	s := NewStore(testWorkspace)
	// Concurrent moves can leave the mirror transiently cyclic.
	seed(s,
		folder("A", "a", "B"),
		folder("B", "b", "A"),
	)

	if got := s.IsDescendant("A", "missing"); got {
		t.Error("IsDescendant reported true inside a cycle not containing the target")
	}
	// The bounded walk must also return, not spin, for PathAncestors.
	if chain := s.PathAncestors("A"); len(chain) == 0 {
		t.Error("PathAncestors returned nothing for a reachable node")
	}
}

func TestSnapshotDescendantsDeepestFirst(t *testing.T) {
	s := NewStore(testWorkspace)
	seed(s,
		folder("F", "top", ""),
		folder("S", "sub", "F"),
		file("f1", "one.go", "F"),
		file("f2", "two.go", "S"),
	)

	nodes := s.SnapshotDescendants("F")
	if len(nodes) != 3 {
		t.Fatalf("SnapshotDescendants returned %d nodes, want 3", len(nodes))
	}
	pos := make(map[string]int, len(nodes))
	for i, n := range nodes {
		pos[n.ID] = i
	}
	if pos["f2"] > pos["S"] {
		t.Errorf("folder S at %d precedes its contents f2 at %d", pos["S"], pos["f2"])
	}
}
