// Package definition converts between a codelist's membership set and the
// compact rules that describe it.
//
// Two representations are provided:
//
//   - Definition: an ordered list of rules such as "include 128133004 and its
//     descendants" or "exclude 35185008". FromCodes derives a small rule list
//     from an arbitrary set of codes; Codes resolves the rules back.
//   - Definition2: a symmetric pair of included and excluded ancestor sets,
//     each mark applying to a whole subtree. Statuses are resolved through
//     hierarchy.NodeStatus.
//
// Rules are serialized as fragments: the code, prefixed with "~" when the
// rule excludes and suffixed with "<" when it covers descendants.
//
//	128133004<   include 128133004 and every descendant
//	~35185008    exclude 35185008 only
//	~35185008<   exclude 35185008 and every descendant
package definition
