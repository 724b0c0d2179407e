package refjson

import (
	"strconv"
	"strings"

	"github.com/chanced/jsonpointer"
)

// Location is the path from the document root to the member currently being
// read or written. It renders JSON-path style ("$.foo.bar[3].$id") and also
// carries a jsonpointer.Pointer for callers that prefer RFC 6901 form.
//
// Location is a value; Append* return a derived Location and leave the
// receiver untouched, so a frame can hold its own and hand extensions to its
// children.
type Location struct {
	path string
	ptr  jsonpointer.Pointer
}

// Root is the Location of the document root.
func Root() Location {
	return Location{path: "$"}
}

func (l Location) String() string {
	if l.path == "" {
		return "$"
	}
	return l.path
}

// Pointer returns the RFC 6901 form of the location.
func (l Location) Pointer() jsonpointer.Pointer {
	return l.ptr
}

// AppendProperty returns the location of the named object property. Names
// containing '.' or '[' are bracketed and quoted so the rendered path stays
// unambiguous.
func (l Location) AppendProperty(name string) Location {
	var b strings.Builder
	b.WriteString(l.String())
	if strings.ContainsAny(name, ".[]'") {
		b.WriteString("['")
		b.WriteString(name)
		b.WriteString("']")
	} else {
		b.WriteByte('.')
		b.WriteString(name)
	}
	return Location{
		path: b.String(),
		ptr:  l.ptr.AppendString(name),
	}
}

// AppendIndex returns the location of the i-th array element.
func (l Location) AppendIndex(i int) Location {
	s := strconv.Itoa(i)
	return Location{
		path: l.String() + "[" + s + "]",
		ptr:  l.ptr.AppendString(s),
	}
}
