// Package refjson serializes and deserializes JSON for object graphs that
// contain cycles, shared sub-objects, or self-references.
//
// The baseline JSON grammar cannot express object identity. refjson layers a
// small metadata protocol over it: in Preserve mode, every composite value
// (pointer, map, or slice) that is written receives a "$id" the first time it
// is encountered, and every later occurrence is written as a reference object
// {"$ref": "<id>"}. Arrays carrying an identifier are wrapped as
// {"$id": "<N>", "$values": [...]}. On read, the same sentinels are
// recognized, an identifier table is built as the document streams by, and
// references are grafted back into the graph, including references that point
// at a composite which is still being populated.
//
// Two further modes are available: Default performs no tracking and relies on
// the depth ceiling to surface runaway recursion, and Ignore suppresses any
// member that would re-enter a composite already on the traversal path.
//
// The streaming token layer underneath both drivers is
// github.com/go-faster/jx.
package refjson
