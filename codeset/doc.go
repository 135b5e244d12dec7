// Package codeset provides the presentation-facing view of a codelist: the
// status of every concept that is marked or sits below a marked concept, the
// tree of defining concepts, and in-order edits.
//
// Example usage:
//
//	cs, err := codeset.FromCodes(codes, h)
//	if err != nil {
//	    return err
//	}
//	for _, entry := range cs.WalkDefiningTree(nil) {
//	    fmt.Printf("%s%s %s\n", strings.Repeat("  ", entry.Depth), entry.Status, entry.Code)
//	}
package codeset
