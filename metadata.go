package refjson

import "github.com/tidwall/gjson"

// Metadata property names. A property is metadata only by exact byte
// equality with one of these after unescaping; any other "$"-prefixed name
// is a regular property outside a preserved-array wrapper.
const (
	idProperty     = "$id"
	refProperty    = "$ref"
	valuesProperty = "$values"
)

type metadataKind uint8

const (
	metadataNone metadataKind = iota
	metadataID
	metadataRef
	metadataValues
)

var metadataNames = map[metadataKind]string{
	metadataNone:   "",
	metadataID:     idProperty,
	metadataRef:    refProperty,
	metadataValues: valuesProperty,
}

func (m metadataKind) String() string { return metadataNames[m] }

// classifyMetadata classifies a raw, unescaped property name. The jx decoder
// hands keys with escapes already resolved, so byte comparison suffices.
func classifyMetadata(name []byte) metadataKind {
	if len(name) == 0 || name[0] != '$' {
		return metadataNone
	}
	switch string(name) {
	case idProperty:
		return metadataID
	case refProperty:
		return metadataRef
	case valuesProperty:
		return metadataValues
	}
	return metadataNone
}

// IsReferenceJSON reports whether data is a reference object, i.e. an object
// whose "$ref" member is a string. It is a lexical probe; it does not verify
// that "$ref" is the sole member.
func IsReferenceJSON(data []byte) bool {
	r := gjson.GetBytes(data, refProperty)
	return r.Type == gjson.String
}

// IsPreservedArrayJSON reports whether data is an array-wrapping object: an
// object whose "$id" member is a string and whose "$values" member is an
// array.
func IsPreservedArrayJSON(data []byte) bool {
	id := gjson.GetBytes(data, idProperty)
	vals := gjson.GetBytes(data, valuesProperty)
	return id.Type == gjson.String && vals.IsArray()
}
