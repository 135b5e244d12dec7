// Package codelists resolves clinical codelists against coding-system
// hierarchies.
//
// A codelist is defined by a handful of marked concepts: a concept marked
// included pulls in its descendants, a concept marked excluded removes them,
// and the nearest marked ancestor wins. This module answers both directions:
// given the marks, the status of every concept; given a target set of codes,
// a small set of marks that reproduces it.
//
// # Quick Start
//
//	import (
//	    "github.com/opensafely-core/opencodelists-sub001/codeset"
//	    "github.com/opensafely-core/opencodelists-sub001/definition"
//	    "github.com/opensafely-core/opencodelists-sub001/hierarchy"
//	)
//
//	h, err := hierarchy.FromCodes(ctx, codingSystem, codes)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	def, err := definition.FromCodes(hierarchy.NewCodeSet(codes...), h, definition.DefaultNoiseTolerance)
//	fmt.Println(def.Query()) // e.g. [73211009< ~46635009<]
//
//	cs, err := codeset.FromCodes(hierarchy.NewCodeSet(codes...), h)
//	for _, entry := range cs.WalkDefiningTree(nil) {
//	    fmt.Println(entry.Depth, entry.Status, entry.Code)
//	}
//
// # Packages
//
//   - hierarchy: the concept DAG, memoised closures and status resolution
//   - definition: rule lists and their compaction, and the ancestor-set form
//   - codeset: the presentation-facing status map, defining tree and edits
//   - terminology: in-memory coding systems loaded from FHIR or YAML
//   - store: cached hierarchy records in memory and in Badger
//
// # Functional Options
//
//	opts := codelists.NewOptions(
//	    codelists.WithNoiseTolerance(0.25),
//	    codelists.WithStorePath("/var/lib/codelists"),
//	)
//
// # Metrics
//
// Metrics counts hierarchy builds, store hits and derivations with atomic
// counters and implements prometheus.Collector.
package codelists
