// Package service defines the narrow collaborator interfaces the codelist
// engine consumes.
//
// The engine never fetches relationship data itself. A caller supplies a
// CodingSystem (backed by a database, a terminology server or an in-memory
// fixture) and the hierarchy package asks it for the edges around a set of
// seed codes.
package service
