// Package ptree provides a flattened, path-addressed representation of
// nested JSON-like values.
//
// A Tree is an ordered list of entries, each holding a normalized
// slash-delimited path and a leaf value. Paths accept '.' and '/' as
// interchangeable separators:
//
//	"users/u1/name"  // canonical form
//	"users.u1.name"  // same path
//	"/users/u1/"     // same path, surrounding slashes trimmed
//
// No two entries share a path and no live entry is an ancestor of
// another: setting "a" purges "a/b" and setting "a/b" purges "a".
//
// # Usage
//
//	t, _ := ptree.From(map[string]any{"name": "Bob", "tags": []any{"x"}})
//	_ = t.Set("address.city", "Rome")
//	t.Get("address")   // map[string]any{"city": "Rome"}
//	t.Build()          // the whole nested value
//
//	d := old.Diff(t)   // entries whose value differs, holding t's values
//
// Trees are not safe for concurrent mutation.
package ptree
