package service

import (
	"context"
)

// Edge is a single parent/child relationship between two concepts.
type Edge struct {
	Parent string
	Child  string
}

// --- Small Interfaces (Go idiom: 1-2 methods per interface) ---

// AncestorSource returns every edge on a path from any ancestor down to one of
// the seed codes.
type AncestorSource interface {
	AncestorRelationships(ctx context.Context, codes []string) ([]Edge, error)
}

// DescendantSource returns every edge on a path from one of the seed codes
// down to any of its descendants.
type DescendantSource interface {
	DescendantRelationships(ctx context.Context, codes []string) ([]Edge, error)
}

// RelationshipSource combines both directions of relationship lookup.
type RelationshipSource interface {
	AncestorSource
	DescendantSource
}

// CodingSystem is the capability a hierarchy needs from a coding system:
// relationship lookups plus the code that sits above every concept.
type CodingSystem interface {
	RelationshipSource

	// Root returns the code of the concept all other concepts descend from.
	Root() string
}

// CodingSystemRegistry looks up coding systems by identifier.
type CodingSystemRegistry interface {
	CodingSystem(id string) (CodingSystem, bool)
}
