package refjson

import (
	"encoding/json"
	"reflect"
	"sort"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// Marshal serializes v according to opts, applying the configured reference
// handling to every composite in the graph. No partial output is returned on
// failure.
func Marshal(v interface{}, opts Options) ([]byte, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	var e jx.Encoder
	enc := &encoder{
		e:        &e,
		opts:     opts,
		resolver: newRefResolver(opts.ReferenceHandling),
	}
	if err := enc.encodeRoot(reflect.ValueOf(v), Root()); err != nil {
		return nil, err
	}
	return e.Bytes(), nil
}

// encoder drives a single write operation: a recursive traversal over a
// jx.Encoder, consulting the resolver at every composite boundary. All of
// its state dies with the operation.
type encoder struct {
	e        *jx.Encoder
	opts     Options
	resolver *refResolver
	depth    int
}

// push enforces the depth ceiling on composite entry. In Default mode a
// blown ceiling on finite input means the graph loops; the other modes
// detect cycles structurally, so there it is a plain depth failure.
func (enc *encoder) push(loc Location) error {
	enc.depth++
	if enc.depth > enc.opts.maxDepth() {
		if enc.opts.ReferenceHandling == ReferenceDefault {
			return NewError(ErrCycleDetected, loc)
		}
		return NewError(ErrDepthExceeded, loc)
	}
	return nil
}

func (enc *encoder) pop() { enc.depth-- }

func (enc *encoder) encodeRoot(v reflect.Value, loc Location) error {
	_, err := enc.encodeMember(v, loc)
	return err
}

// encodeProperty writes one object member. The member may be suppressed
// before its key is written: a cyclic value in Ignore mode, or a null value
// under IgnoreNullValues, omits the property entirely.
func (enc *encoder) encodeProperty(name string, v reflect.Value, loc Location) error {
	uv := unwrapInterface(v)
	if isNullValue(uv) {
		if enc.opts.IgnoreNullValues {
			return nil
		}
		enc.e.FieldStart(name)
		enc.e.Null()
		return nil
	}
	if _, ok := identityOf(uv); ok {
		dec, id := enc.resolver.enter(uv)
		if dec == skipEmit {
			return nil
		}
		enc.e.FieldStart(name)
		if dec == emitAsRef {
			enc.writeRef(id)
			return nil
		}
		err := enc.encodeComposite(uv, id, loc)
		enc.resolver.exit(uv)
		return err
	}
	enc.e.FieldStart(name)
	return enc.encodeInline(uv, loc)
}

// encodeMember writes one array element or the root value. Elements report
// suppression so the collection loop can skip the slot; null elements are
// emitted as null regardless of IgnoreNullValues, which applies to object
// properties only.
func (enc *encoder) encodeMember(v reflect.Value, loc Location) (skipped bool, err error) {
	uv := unwrapInterface(v)
	if isNullValue(uv) {
		enc.e.Null()
		return false, nil
	}
	if _, ok := identityOf(uv); ok {
		dec, id := enc.resolver.enter(uv)
		switch dec {
		case skipEmit:
			return true, nil
		case emitAsRef:
			enc.writeRef(id)
			return false, nil
		}
		err = enc.encodeComposite(uv, id, loc)
		enc.resolver.exit(uv)
		return false, err
	}
	return false, enc.encodeInline(uv, loc)
}

// encodeComposite writes an identity-tracked composite in full. id is the
// identifier assigned by the resolver, empty outside Preserve mode.
func (enc *encoder) encodeComposite(v reflect.Value, id string, loc Location) error {
	if err := enc.push(loc); err != nil {
		return err
	}
	defer enc.pop()
	switch v.Kind() {
	case reflect.Pointer:
		pv := v.Elem()
		switch pv.Kind() {
		case reflect.Struct:
			return enc.encodeObject(pv, id, loc)
		case reflect.Map:
			return enc.encodeMap(pv, id, loc)
		case reflect.Slice:
			return enc.encodeArray(pv, id, loc)
		case reflect.Interface:
			_, err := enc.encodeMember(pv, loc)
			return err
		}
	case reflect.Map:
		return enc.encodeMap(v, id, loc)
	case reflect.Slice:
		return enc.encodeArray(v, id, loc)
	}
	return &UnsupportedTypeError{Type: v.Type(), Path: loc}
}

// encodeInline writes a leaf or a value-type composite. Value composites are
// emitted in place each time they occur; they carry no $id and are never
// replaced by $ref.
func (enc *encoder) encodeInline(v reflect.Value, loc Location) error {
	if v.Type() == rawMessageType {
		enc.e.Raw(jx.Raw(v.Bytes()))
		return nil
	}
	if m, ok := marshalerOf(v); ok {
		raw, err := m.MarshalJSON()
		if err != nil {
			return errors.Wrap(err, "refjson: MarshalJSON")
		}
		enc.e.Raw(jx.Raw(raw))
		return nil
	}
	switch v.Kind() {
	case reflect.Bool:
		enc.e.Bool(v.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		enc.e.Int64(v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		enc.e.UInt64(v.Uint())
	case reflect.Float32, reflect.Float64:
		enc.e.Float64(v.Float())
	case reflect.String:
		// Number carries its own MarshalJSON and is handled above
		if v.Type() == numberType {
			enc.e.Raw(jx.Raw(v.String()))
			return nil
		}
		enc.e.Str(v.String())
	case reflect.Struct:
		if err := enc.push(loc); err != nil {
			return err
		}
		defer enc.pop()
		return enc.encodeObject(v, "", loc)
	case reflect.Array:
		if err := enc.push(loc); err != nil {
			return err
		}
		defer enc.pop()
		return enc.encodeArray(v, "", loc)
	case reflect.Pointer:
		// pointer to a leaf, to a fixed array, or to another pointer
		_, err := enc.encodeMember(v.Elem(), loc)
		return err
	default:
		return &UnsupportedTypeError{Type: v.Type(), Path: loc}
	}
	return nil
}

// encodeObject emits a schema-driven object, properties in declared order,
// with $id first when assigned.
func (enc *encoder) encodeObject(v reflect.Value, id string, loc Location) error {
	enc.e.ObjStart()
	if id != "" {
		enc.e.FieldStart(idProperty)
		enc.e.Str(id)
	}
	s := schemaFor(v.Type())
	for _, p := range s.properties {
		fv := v.FieldByIndex(p.index)
		if p.omitempty && isEmptyValue(fv) {
			continue
		}
		if err := enc.encodeProperty(p.name, fv, loc.AppendProperty(p.name)); err != nil {
			return err
		}
	}
	enc.e.ObjEnd()
	return nil
}

// encodeMap emits a dictionary with keys in sorted order so that identifier
// allocation is deterministic for a given input.
func (enc *encoder) encodeMap(v reflect.Value, id string, loc Location) error {
	enc.e.ObjStart()
	if id != "" {
		enc.e.FieldStart(idProperty)
		enc.e.Str(id)
	}
	keys := v.MapKeys()
	rendered := make([]string, len(keys))
	byName := make(map[string]reflect.Value, len(keys))
	for i, k := range keys {
		s, err := mapKeyString(k, loc)
		if err != nil {
			return err
		}
		rendered[i] = s
		byName[s] = k
	}
	sort.Strings(rendered)
	for _, name := range rendered {
		if err := enc.encodeProperty(name, v.MapIndex(byName[name]), loc.AppendProperty(name)); err != nil {
			return err
		}
	}
	enc.e.ObjEnd()
	return nil
}

// encodeArray emits a collection. With an identifier assigned, the array is
// wrapped as {"$id": id, "$values": [...]}; those two members only, in that
// order.
func (enc *encoder) encodeArray(v reflect.Value, id string, loc Location) error {
	if id != "" {
		enc.e.ObjStart()
		enc.e.FieldStart(idProperty)
		enc.e.Str(id)
		enc.e.FieldStart(valuesProperty)
	}
	enc.e.ArrStart()
	for i := 0; i < v.Len(); i++ {
		if _, err := enc.encodeMember(v.Index(i), loc.AppendIndex(i)); err != nil {
			return err
		}
	}
	enc.e.ArrEnd()
	if id != "" {
		enc.e.ObjEnd()
	}
	return nil
}

func (enc *encoder) writeRef(id string) {
	enc.e.ObjStart()
	enc.e.FieldStart(refProperty)
	enc.e.Str(id)
	enc.e.ObjEnd()
}

var (
	marshalerType = reflect.TypeOf((*json.Marshaler)(nil)).Elem()
)

// marshalerOf returns v's json.Marshaler when the type provides one.
// Marshaler output is treated as a leaf: it participates in no identity
// tracking.
func marshalerOf(v reflect.Value) (json.Marshaler, bool) {
	if !v.IsValid() {
		return nil, false
	}
	if v.Type().Implements(marshalerType) {
		if v.Kind() == reflect.Pointer && v.IsNil() {
			return nil, false
		}
		return v.Interface().(json.Marshaler), true
	}
	if v.CanAddr() && v.Addr().Type().Implements(marshalerType) {
		return v.Addr().Interface().(json.Marshaler), true
	}
	return nil, false
}

// unwrapInterface strips interface wrappers; pointers are left in place
// since they carry identity.
func unwrapInterface(v reflect.Value) reflect.Value {
	for v.IsValid() && v.Kind() == reflect.Interface && !v.IsNil() {
		v = v.Elem()
	}
	return v
}

// isNullValue reports whether v serializes as JSON null. A null preserved
// composite is written as null, never wrapped.
func isNullValue(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return v.IsNil()
	}
	return false
}

func mapKeyString(k reflect.Value, loc Location) (string, error) {
	switch k.Kind() {
	case reflect.String:
		return k.String(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(k.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(k.Uint(), 10), nil
	}
	return "", &UnsupportedTypeError{Type: k.Type(), Path: loc}
}
