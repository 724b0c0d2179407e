package refjson

// Kind classifies what a slot or value is, structurally, for dispatch and
// error reporting.
type Kind uint8

const (
	// KindUndefined is the zero value of Kind
	KindUndefined Kind = iota
	// KindLeaf represents a string, number, boolean or null
	KindLeaf
	// KindObject represents a schema-driven object
	KindObject
	// KindDictionary represents a key-keyed map
	KindDictionary
	// KindArray represents an array or slice
	KindArray
	// KindReference represents a reference object {"$ref": "<id>"}
	KindReference
	// KindPreservedArray represents an array-wrapping object
	// {"$id": "<N>", "$values": [...]}
	KindPreservedArray
)

var kindNames = map[Kind]string{
	KindUndefined:      "undefined",
	KindLeaf:           "leaf",
	KindObject:         "object",
	KindDictionary:     "dictionary",
	KindArray:          "array",
	KindReference:      "reference",
	KindPreservedArray: "preserved array",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return ""
}
