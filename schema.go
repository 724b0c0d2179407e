package refjson

import (
	"reflect"
	"strings"
	"sync"
)

// property is a single JSON member of a schema-driven object, in declared
// order.
type property struct {
	name      string
	index     []int
	typ       reflect.Type
	omitempty bool
}

// typeSchema is the cached shape of a struct type: its ordered properties and
// a name lookup. Schemas are built once per type and shared by every
// operation; the cache is the only process-wide state in the package.
type typeSchema struct {
	typ        reflect.Type
	properties []property
	byName     map[string]int
}

var schemaCache sync.Map // reflect.Type -> *typeSchema

func schemaFor(t reflect.Type) *typeSchema {
	if s, ok := schemaCache.Load(t); ok {
		return s.(*typeSchema)
	}
	s := &typeSchema{typ: t, byName: map[string]int{}}
	collectProperties(s, t, nil)
	actual, _ := schemaCache.LoadOrStore(t, s)
	return actual.(*typeSchema)
}

// collectProperties walks t's fields in declaration order, honoring json
// tags. Anonymous struct fields are flattened recursively, the way callers of
// encoding/json expect; anonymous pointer fields are treated as named
// members since a nil embedded pointer has no addressable fields.
func collectProperties(s *typeSchema, t reflect.Type, index []int) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" && !f.Anonymous {
			continue
		}
		tag := f.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")
		if f.Anonymous && name == "" && f.Type.Kind() == reflect.Struct {
			collectProperties(s, f.Type, append(append([]int{}, index...), i))
			continue
		}
		if f.PkgPath != "" {
			continue
		}
		if name == "" {
			name = f.Name
		}
		if prev, ok := s.byName[name]; ok {
			// shallower declaration wins; drop the deeper duplicate
			if len(s.properties[prev].index) <= len(index)+1 {
				continue
			}
			s.properties = append(s.properties[:prev], s.properties[prev+1:]...)
			delete(s.byName, name)
			for n, j := range s.byName {
				if j > prev {
					s.byName[n] = j - 1
				}
			}
		}
		s.byName[name] = len(s.properties)
		s.properties = append(s.properties, property{
			name:      name,
			index:     append(append([]int{}, index...), i),
			typ:       f.Type,
			omitempty: hasOption(opts, "omitempty"),
		})
	}
}

func hasOption(opts, name string) bool {
	for opts != "" {
		var o string
		o, opts, _ = strings.Cut(opts, ",")
		if o == name {
			return true
		}
	}
	return false
}

func (s *typeSchema) lookup(name string) (property, bool) {
	i, ok := s.byName[name]
	if !ok {
		return property{}, false
	}
	return s.properties[i], true
}

// identity distinguishes composites by runtime identity rather than
// equality. Pointers and maps key on their address; slices key on the data
// pointer plus length, since distinct slices may share a backing array.
type identity struct {
	ptr uintptr
	typ reflect.Type
	len int
}

// identityOf returns the identity key for v, and whether v participates in
// identity tracking at all. Value-type composites — non-pointer structs and
// fixed arrays — do not: they are serialized by value each time.
func identityOf(v reflect.Value) (identity, bool) {
	if v.IsValid() && v.Type() == rawMessageType {
		return identity{}, false
	}
	// json.Marshaler output is a leaf; the composite behind it is not tracked
	if v.IsValid() && v.Type().Implements(marshalerType) {
		return identity{}, false
	}
	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return identity{}, false
		}
		// fixed arrays are value composites even behind a pointer; they are
		// emitted inline so the read side never faces preserving a
		// fixed-capacity collection it cannot grow
		switch v.Type().Elem().Kind() {
		case reflect.Struct, reflect.Map, reflect.Slice, reflect.Interface:
			return identity{ptr: v.Pointer(), typ: v.Type()}, true
		}
		return identity{}, false
	case reflect.Map:
		if v.IsNil() {
			return identity{}, false
		}
		return identity{ptr: v.Pointer(), typ: v.Type()}, true
	case reflect.Slice:
		if v.IsNil() {
			return identity{}, false
		}
		return identity{ptr: v.Pointer(), typ: v.Type(), len: v.Len()}, true
	}
	return identity{}, false
}

// isEmptyValue mirrors encoding/json's omitempty test.
func isEmptyValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Array, reflect.Map, reflect.Slice, reflect.String:
		return v.Len() == 0
	case reflect.Bool:
		return !v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	case reflect.Interface, reflect.Pointer:
		return v.IsNil()
	}
	return false
}
