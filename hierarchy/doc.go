// Package hierarchy models the parent/child structure of a coding system as a
// directed acyclic graph and resolves the status of every concept given a set
// of explicitly included and excluded ("defining") concepts.
//
// A Hierarchy is built once for a bounded subgraph of interest, never for a
// whole coding system. After construction its adjacency maps are read-only;
// only the memoized ancestor and descendant closures grow.
//
// # Status resolution
//
// NodeStatus applies a nearest-ancestor-wins rule:
//
//	+    the node is itself included
//	-    the node is itself excluded
//	(+)  the nearest marked ancestors are all included
//	(-)  the nearest marked ancestors are all excluded
//	?    no ancestor is marked
//	!    nearest marked ancestors on incomparable lineages disagree
//
// A conflict is reported, never resolved silently.
//
// Example usage:
//
//	h := hierarchy.New("a", []hierarchy.Edge{{Parent: "a", Child: "b"}, {Parent: "b", Child: "c"}})
//	status := h.NodeStatus("c", hierarchy.NewCodeSet("a"), hierarchy.NewCodeSet("b"))
//	// status == hierarchy.StatusExcludedByAncestor
package hierarchy
