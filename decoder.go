package refjson

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// Unmarshal deserializes data into v according to opts. v must be a non-nil
// pointer. When the reference handling is ReferencePreserve, "$id", "$ref"
// and "$values" are interpreted and identity relationships are
// reconstructed; otherwise "$"-prefixed names are ordinary properties.
//
// On failure v's target is zeroed: no partially populated object is left
// behind.
func Unmarshal(data []byte, v interface{}, opts Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return &json.InvalidUnmarshalError{Type: reflect.TypeOf(v)}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return NewError(ErrIncompleteInput, Root())
	}
	dec := &decoder{opts: opts, refs: newRefTable()}
	d := jx.DecodeBytes(data)
	root := rv.Elem()
	err := dec.decodeValue(d, root, slotTarget{root}, Root())
	if err == nil {
		// deferred patches: grafts recorded against referents that were
		// still growing when the reference was read
		for _, p := range dec.patches {
			if err = p(); err != nil {
				break
			}
		}
	}
	if err != nil {
		root.Set(reflect.Zero(root.Type()))
		return err
	}
	return nil
}

// decoder drives a single read operation. The reference table, patch list
// and depth counter live exactly as long as the operation.
type decoder struct {
	opts    Options
	refs    *refTable
	patches []func() error
	depth   int
}

func (dec *decoder) preserving() bool { return dec.opts.preserving() }

func (dec *decoder) push(loc Location) error {
	dec.depth++
	if dec.depth > dec.opts.maxDepth() {
		return NewError(ErrDepthExceeded, loc)
	}
	return nil
}

func (dec *decoder) pop() { dec.depth-- }

// wrap normalizes errors crossing the jx boundary: truncation becomes
// ErrIncompleteInput, already-shaped failures pass through untouched.
func (dec *decoder) wrap(err error, loc Location) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	var re *ResolutionError
	if errors.As(err, &re) {
		return err
	}
	var ute *json.UnmarshalTypeError
	if errors.As(err, &ute) {
		return err
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return NewError(fmt.Errorf("%w: %w", ErrIncompleteInput, err), loc)
	}
	return NewError(errors.Wrap(err, "refjson: decode"), loc)
}

func (dec *decoder) decodeValue(d *jx.Decoder, slot reflect.Value, tgt patchTarget, loc Location) error {
	if !dec.preserving() {
		if u, ok := unmarshalerOf(slot); ok {
			raw, err := d.Raw()
			if err != nil {
				return dec.wrap(err, loc)
			}
			if err := u.UnmarshalJSON(raw); err != nil {
				return dec.wrap(err, loc)
			}
			return nil
		}
	}
	if slot.Type() == rawMessageType ||
		(slot.Kind() == reflect.Pointer && slot.Type().Elem() == rawMessageType) {
		raw, err := d.Raw()
		if err != nil {
			return dec.wrap(err, loc)
		}
		allocate(slot).SetBytes(append([]byte(nil), raw...))
		return nil
	}
	switch d.Next() {
	case jx.Invalid:
		return NewError(ErrIncompleteInput, loc)
	case jx.Null:
		if err := d.Null(); err != nil {
			return dec.wrap(err, loc)
		}
		slot.Set(reflect.Zero(slot.Type()))
		return nil
	case jx.Bool:
		return dec.decodeBool(d, slot, loc)
	case jx.String:
		return dec.decodeString(d, slot, loc)
	case jx.Number:
		return dec.decodeNumber(d, slot, loc)
	case jx.Array:
		return dec.decodeArrayValue(d, slot, loc)
	case jx.Object:
		return dec.decodeObjectValue(d, slot, tgt, loc)
	}
	return NewError(ErrIncompleteInput, loc)
}

// decodeObjectValue dispatches a StartObject token on the slot's expected
// shape. An object at an array-like slot is either a reference or a
// preserved-array wrapper; an object at a fixed-capacity slot cannot be
// preserved at all.
func (dec *decoder) decodeObjectValue(d *jx.Decoder, slot reflect.Value, tgt patchTarget, loc Location) error {
	base := slot.Type()
	for base.Kind() == reflect.Pointer {
		base = base.Elem()
	}
	switch base.Kind() {
	case reflect.Struct:
		return dec.decodeStructObject(d, slot, tgt, loc)
	case reflect.Map:
		return dec.decodeMapObject(d, slot, tgt, loc)
	case reflect.Slice:
		if dec.preserving() {
			return dec.decodePreservedArray(d, slot, tgt, loc)
		}
		return newTypeError("object", slot.Type(), loc)
	case reflect.Array:
		if dec.preserving() {
			return newError(ErrUnresolvableTypeForPreservation, loc, "fixed-capacity collection %s", base)
		}
		return newTypeError("object", slot.Type(), loc)
	case reflect.Interface:
		if base.NumMethod() == 0 {
			return dec.decodeAnyObject(d, slot, tgt, loc)
		}
	}
	return newTypeError("object", slot.Type(), loc)
}

// decodeStructObject populates a schema-driven object. Materialization is
// deferred until the first event that proves the object is not a reference:
// a "$id", a regular property, or the end of the object. A "$id" is
// tolerated out of first position; within one object it may appear once.
func (dec *decoder) decodeStructObject(d *jx.Decoder, slot reflect.Value, tgt patchTarget, loc Location) error {
	if err := dec.push(loc); err != nil {
		return err
	}
	defer dec.pop()

	var (
		sv           reflect.Value
		handle       reflect.Value
		schema       *typeSchema
		sawID        bool
		sawRef       bool
		materialized bool
		refID        string
		count        int
	)
	materialize := func() {
		if materialized {
			return
		}
		s := slot
		for s.Kind() == reflect.Pointer {
			if s.IsNil() {
				s.Set(reflect.New(s.Type().Elem()))
			}
			handle = s
			s = s.Elem()
		}
		sv = s
		if !handle.IsValid() {
			handle = sv.Addr()
		}
		schema = schemaFor(sv.Type())
		materialized = true
	}

	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		md := metadataNone
		if dec.preserving() {
			md = classifyMetadata(key)
		}
		if sawRef {
			return NewError(ErrReferenceObjectHasOtherProperties, loc)
		}
		switch md {
		case metadataID:
			mloc := loc.AppendProperty(idProperty)
			if sawID {
				return newError(ErrDuplicateIdentifier, mloc, "object declares $id more than once")
			}
			if d.Next() != jx.String {
				return newError(ErrUnexpectedMetadata, mloc, "$id must be a string")
			}
			id, err := d.Str()
			if err != nil {
				return dec.wrap(err, mloc)
			}
			materialize()
			if _, err := dec.refs.register(id, KindObject, handle, true, mloc); err != nil {
				return err
			}
			sawID = true
			count++
			return nil
		case metadataRef:
			mloc := loc.AppendProperty(refProperty)
			if count > 0 {
				return NewError(ErrReferenceObjectHasOtherProperties, loc)
			}
			if d.Next() != jx.String {
				return newError(ErrUnexpectedMetadata, mloc, "$ref must be a string")
			}
			id, err := d.Str()
			if err != nil {
				return dec.wrap(err, mloc)
			}
			refID = id
			sawRef = true
			count++
			return nil
		case metadataValues:
			return newError(ErrUnexpectedMetadata, loc.AppendProperty(valuesProperty), "$values outside an array context")
		}
		name := string(key)
		ploc := loc.AppendProperty(name)
		count++
		materialize()
		p, ok := schema.lookup(name)
		if !ok {
			return dec.wrap(d.Skip(), ploc)
		}
		fv := fieldByIndex(sv, p.index)
		return dec.decodeValue(d, fv, slotTarget{fv}, ploc)
	})
	if err != nil {
		return dec.wrap(err, loc)
	}
	if sawRef {
		return dec.graft(refID, tgt, loc)
	}
	materialize()
	return nil
}

// decodeMapObject populates a dictionary. The map handle is stable from
// allocation, so a "$id" registers it immediately and descendants may refer
// back while entries are still streaming in.
func (dec *decoder) decodeMapObject(d *jx.Decoder, slot reflect.Value, tgt patchTarget, loc Location) error {
	if err := dec.push(loc); err != nil {
		return err
	}
	defer dec.pop()

	base := slot.Type()
	for base.Kind() == reflect.Pointer {
		base = base.Elem()
	}
	var (
		m            reflect.Value
		handle       reflect.Value
		sawID        bool
		sawRef       bool
		materialized bool
		refID        string
		count        int
	)
	materialize := func() {
		if materialized {
			return
		}
		s := slot
		for s.Kind() == reflect.Pointer {
			if s.IsNil() {
				s.Set(reflect.New(s.Type().Elem()))
			}
			handle = s
			s = s.Elem()
		}
		if s.IsNil() {
			s.Set(reflect.MakeMap(s.Type()))
		}
		m = s
		materialized = true
	}

	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		md := metadataNone
		if dec.preserving() {
			md = classifyMetadata(key)
		}
		if sawRef {
			return NewError(ErrReferenceObjectHasOtherProperties, loc)
		}
		switch md {
		case metadataID:
			mloc := loc.AppendProperty(idProperty)
			if sawID {
				return newError(ErrDuplicateIdentifier, mloc, "object declares $id more than once")
			}
			if d.Next() != jx.String {
				return newError(ErrUnexpectedMetadata, mloc, "$id must be a string")
			}
			id, err := d.Str()
			if err != nil {
				return dec.wrap(err, mloc)
			}
			materialize()
			e, err := dec.refs.register(id, KindDictionary, m, true, mloc)
			if err != nil {
				return err
			}
			e.ptr = handle
			sawID = true
			count++
			return nil
		case metadataRef:
			mloc := loc.AppendProperty(refProperty)
			if count > 0 {
				return NewError(ErrReferenceObjectHasOtherProperties, loc)
			}
			if d.Next() != jx.String {
				return newError(ErrUnexpectedMetadata, mloc, "$ref must be a string")
			}
			id, err := d.Str()
			if err != nil {
				return dec.wrap(err, mloc)
			}
			refID = id
			sawRef = true
			count++
			return nil
		case metadataValues:
			return newError(ErrUnexpectedMetadata, loc.AppendProperty(valuesProperty), "$values outside an array context")
		}
		name := string(key)
		ploc := loc.AppendProperty(name)
		count++
		materialize()
		kv, err := parseMapKey(name, base.Key(), ploc)
		if err != nil {
			return err
		}
		ev := reflect.New(base.Elem()).Elem()
		if err := dec.decodeValue(d, ev, mapTarget{m: m, key: kv, tmp: ev}, ploc); err != nil {
			return err
		}
		m.SetMapIndex(kv, ev)
		return nil
	})
	if err != nil {
		return dec.wrap(err, loc)
	}
	if sawRef {
		return dec.graft(refID, tgt, loc)
	}
	materialize()
	return nil
}

// decodeAnyObject handles a StartObject at an untyped slot. Materialization
// is genuinely deferred here: until the first non-metadata event the object
// may still turn out to be a reference, a preserved array, or a dictionary.
func (dec *decoder) decodeAnyObject(d *jx.Decoder, slot reflect.Value, tgt patchTarget, loc Location) error {
	if err := dec.push(loc); err != nil {
		return err
	}
	defer dec.pop()

	var (
		m         reflect.Value
		entry     *tableEntry
		builder   *arrayBuilder
		sawID     bool
		sawRef    bool
		sawValues bool
		refID     string
		count     int
	)
	ensureMap := func() {
		if m.IsValid() {
			return
		}
		m = reflect.MakeMap(mapStringAnyType)
		if entry != nil {
			entry.kind = KindDictionary
			entry.value = m
			entry.final = true
		}
	}

	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		md := metadataNone
		if dec.preserving() {
			md = classifyMetadata(key)
		}
		if sawRef {
			return NewError(ErrReferenceObjectHasOtherProperties, loc)
		}
		switch md {
		case metadataID:
			mloc := loc.AppendProperty(idProperty)
			if sawID {
				return newError(ErrDuplicateIdentifier, mloc, "object declares $id more than once")
			}
			if sawValues {
				return newError(ErrUnexpectedMetadata, mloc, "$id must precede $values")
			}
			if d.Next() != jx.String {
				return newError(ErrUnexpectedMetadata, mloc, "$id must be a string")
			}
			id, err := d.Str()
			if err != nil {
				return dec.wrap(err, mloc)
			}
			if m.IsValid() {
				e, err := dec.refs.register(id, KindDictionary, m, true, mloc)
				if err != nil {
					return err
				}
				entry = e
			} else {
				e, err := dec.refs.register(id, KindUndefined, reflect.Value{}, false, mloc)
				if err != nil {
					return err
				}
				entry = e
			}
			sawID = true
			count++
			return nil
		case metadataRef:
			mloc := loc.AppendProperty(refProperty)
			if count > 0 {
				return NewError(ErrReferenceObjectHasOtherProperties, loc)
			}
			if d.Next() != jx.String {
				return newError(ErrUnexpectedMetadata, mloc, "$ref must be a string")
			}
			id, err := d.Str()
			if err != nil {
				return dec.wrap(err, mloc)
			}
			refID = id
			sawRef = true
			count++
			return nil
		case metadataValues:
			vloc := loc.AppendProperty(valuesProperty)
			if sawValues {
				return newError(ErrPreservedArrayMalformed, vloc, "duplicate $values")
			}
			if !sawID || m.IsValid() {
				return newError(ErrUnexpectedMetadata, vloc, "$values requires a sibling $id")
			}
			switch d.Next() {
			case jx.Null:
				return newError(ErrPreservedArrayMalformed, vloc, "$values must be an array; got null")
			case jx.Array:
			default:
				return newError(ErrPreservedArrayMalformed, vloc, "$values must be an array")
			}
			builder = newArrayBuilder(sliceAnyType)
			entry.kind = KindArray
			entry.builder = builder
			if err := dec.decodeElements(d, builder, vloc); err != nil {
				return err
			}
			sawValues = true
			count++
			return nil
		}
		name := string(key)
		ploc := loc.AppendProperty(name)
		if sawValues {
			if len(name) > 0 && name[0] == '$' {
				return newError(ErrUnexpectedMetadata, ploc, "%q is not permitted inside a preserved array", name)
			}
			return newError(ErrPreservedArrayMalformed, ploc, "property %q is not permitted inside a preserved array", name)
		}
		count++
		ensureMap()
		kv := reflect.ValueOf(name)
		ev := reflect.New(anyType).Elem()
		if err := dec.decodeValue(d, ev, mapTarget{m: m, key: kv, tmp: ev}, ploc); err != nil {
			return err
		}
		m.SetMapIndex(kv, ev)
		return nil
	})
	if err != nil {
		return dec.wrap(err, loc)
	}
	if sawRef {
		return dec.graft(refID, tgt, loc)
	}
	if sawValues {
		final := builder.slice
		entry.value = final
		entry.final = true
		allocate(slot).Set(final)
		return nil
	}
	ensureMap()
	allocate(slot).Set(m)
	return nil
}

// decodePreservedArray handles a StartObject at an array-like slot: either a
// reference object or an array-wrapping object carrying exactly "$id" then
// "$values". The wrapper's own EndObject closes nothing in the result; it is
// consumed once the inner array ends.
func (dec *decoder) decodePreservedArray(d *jx.Decoder, slot reflect.Value, tgt patchTarget, loc Location) error {
	if err := dec.push(loc); err != nil {
		return err
	}
	defer dec.pop()

	base := slot.Type()
	for base.Kind() == reflect.Pointer {
		base = base.Elem()
	}
	var (
		entry     *tableEntry
		builder   *arrayBuilder
		sawID     bool
		sawRef    bool
		sawValues bool
		refID     string
		count     int
	)
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		md := classifyMetadata(key)
		if sawRef {
			return NewError(ErrReferenceObjectHasOtherProperties, loc)
		}
		switch md {
		case metadataRef:
			mloc := loc.AppendProperty(refProperty)
			if count > 0 {
				return NewError(ErrReferenceObjectHasOtherProperties, loc)
			}
			if d.Next() != jx.String {
				return newError(ErrUnexpectedMetadata, mloc, "$ref must be a string")
			}
			id, err := d.Str()
			if err != nil {
				return dec.wrap(err, mloc)
			}
			refID = id
			sawRef = true
			count++
			return nil
		case metadataID:
			mloc := loc.AppendProperty(idProperty)
			if sawID {
				return newError(ErrDuplicateIdentifier, mloc, "object declares $id more than once")
			}
			if count > 0 {
				return newError(ErrUnexpectedMetadata, mloc, "$id must be the first property of a preserved array")
			}
			if d.Next() != jx.String {
				return newError(ErrUnexpectedMetadata, mloc, "$id must be a string")
			}
			id, err := d.Str()
			if err != nil {
				return dec.wrap(err, mloc)
			}
			builder = newArrayBuilder(base)
			e, err := dec.refs.register(id, KindArray, reflect.Value{}, false, mloc)
			if err != nil {
				return err
			}
			e.builder = builder
			entry = e
			sawID = true
			count++
			return nil
		case metadataValues:
			vloc := loc.AppendProperty(valuesProperty)
			if !sawID {
				return newError(ErrPreservedArrayMalformed, vloc, "missing $id")
			}
			if sawValues {
				return newError(ErrPreservedArrayMalformed, vloc, "duplicate $values")
			}
			switch d.Next() {
			case jx.Null:
				return newError(ErrPreservedArrayMalformed, vloc, "$values must be an array; got null")
			case jx.Array:
			default:
				return newError(ErrPreservedArrayMalformed, vloc, "$values must be an array")
			}
			if err := dec.decodeElements(d, builder, vloc); err != nil {
				return err
			}
			sawValues = true
			count++
			return nil
		}
		name := string(key)
		ploc := loc.AppendProperty(name)
		if len(name) > 0 && name[0] == '$' {
			return newError(ErrUnexpectedMetadata, ploc, "%q is not permitted inside a preserved array", name)
		}
		return newError(ErrPreservedArrayMalformed, ploc, "property %q is not permitted inside a preserved array", name)
	})
	if err != nil {
		return dec.wrap(err, loc)
	}
	if sawRef {
		return dec.graft(refID, tgt, loc)
	}
	if !sawID {
		return newError(ErrPreservedArrayMalformed, loc, "missing $id")
	}
	if !sawValues {
		return newError(ErrPreservedArrayMalformed, loc, "missing $values")
	}
	final := builder.slice
	s := slot
	for s.Kind() == reflect.Pointer {
		if s.IsNil() {
			s.Set(reflect.New(s.Type().Elem()))
		}
		entry.ptr = s
		s = s.Elem()
	}
	s.Set(final)
	entry.value = final
	entry.final = true
	return nil
}

// decodeElements streams one array's elements into a builder. Elements are
// decoded into a temporary and appended afterwards; a graft that fires while
// the temporary is still pending lands on it, and one that fires after the
// operation goes through the builder by index.
func (dec *decoder) decodeElements(d *jx.Decoder, builder *arrayBuilder, loc Location) error {
	elemType := builder.elemType()
	err := d.Arr(func(d *jx.Decoder) error {
		idx := builder.len()
		ev := reflect.New(elemType).Elem()
		if err := dec.decodeValue(d, ev, elemTarget{b: builder, index: idx, tmp: ev}, loc.AppendIndex(idx)); err != nil {
			return err
		}
		builder.append(ev)
		return nil
	})
	return dec.wrap(err, loc)
}

// decodeArrayValue handles a StartArray token: a plain, unwrapped
// collection.
func (dec *decoder) decodeArrayValue(d *jx.Decoder, slot reflect.Value, loc Location) error {
	if err := dec.push(loc); err != nil {
		return err
	}
	defer dec.pop()

	base := slot.Type()
	for base.Kind() == reflect.Pointer {
		base = base.Elem()
	}
	switch base.Kind() {
	case reflect.Slice:
		builder := newArrayBuilder(base)
		if err := dec.decodeElements(d, builder, loc); err != nil {
			return err
		}
		allocate(slot).Set(builder.slice)
		return nil
	case reflect.Array:
		av := allocate(slot)
		i := 0
		err := d.Arr(func(d *jx.Decoder) error {
			if i >= av.Len() {
				eloc := loc.AppendIndex(i)
				i++
				return dec.wrap(d.Skip(), eloc)
			}
			es := av.Index(i)
			eloc := loc.AppendIndex(i)
			i++
			return dec.decodeValue(d, es, slotTarget{es}, eloc)
		})
		return dec.wrap(err, loc)
	case reflect.Interface:
		if base.NumMethod() == 0 {
			builder := newArrayBuilder(sliceAnyType)
			if err := dec.decodeElements(d, builder, loc); err != nil {
				return err
			}
			allocate(slot).Set(builder.slice)
			return nil
		}
	}
	return newTypeError("array", slot.Type(), loc)
}

func (dec *decoder) decodeBool(d *jx.Decoder, slot reflect.Value, loc Location) error {
	b, err := d.Bool()
	if err != nil {
		return dec.wrap(err, loc)
	}
	av := allocate(slot)
	if isAny(av) {
		av.Set(reflect.ValueOf(b))
		return nil
	}
	if av.Kind() != reflect.Bool {
		return newTypeError("bool", slot.Type(), loc)
	}
	av.SetBool(b)
	return nil
}

func (dec *decoder) decodeString(d *jx.Decoder, slot reflect.Value, loc Location) error {
	s, err := d.Str()
	if err != nil {
		return dec.wrap(err, loc)
	}
	av := allocate(slot)
	if isAny(av) {
		av.Set(reflect.ValueOf(s))
		return nil
	}
	switch av.Kind() {
	case reflect.String:
		if av.Type() == numberType || av.Type() == ownNumberType {
			return newTypeError("string", slot.Type(), loc)
		}
		av.SetString(s)
		return nil
	case reflect.Slice:
		if av.Type().Elem().Kind() == reflect.Uint8 {
			b, err := base64.StdEncoding.DecodeString(s)
			if err != nil {
				return NewError(errors.Wrap(err, "refjson: base64"), loc)
			}
			av.SetBytes(b)
			return nil
		}
	}
	return newTypeError("string", slot.Type(), loc)
}

func (dec *decoder) decodeNumber(d *jx.Decoder, slot reflect.Value, loc Location) error {
	n, err := d.Num()
	if err != nil {
		return dec.wrap(err, loc)
	}
	av := allocate(slot)
	if isAny(av) {
		f, err := n.Float64()
		if err != nil {
			return dec.wrap(err, loc)
		}
		av.Set(reflect.ValueOf(f))
		return nil
	}
	switch av.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := n.Int64()
		if err != nil || av.OverflowInt(i) {
			return newTypeError("number "+n.String(), slot.Type(), loc)
		}
		av.SetInt(i)
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		i, err := n.Int64()
		if err != nil || i < 0 || av.OverflowUint(uint64(i)) {
			return newTypeError("number "+n.String(), slot.Type(), loc)
		}
		av.SetUint(uint64(i))
		return nil
	case reflect.Float32, reflect.Float64:
		f, err := n.Float64()
		if err != nil || av.OverflowFloat(f) {
			return newTypeError("number "+n.String(), slot.Type(), loc)
		}
		av.SetFloat(f)
		return nil
	case reflect.String:
		if av.Type() == numberType || av.Type() == ownNumberType {
			av.SetString(n.String())
			return nil
		}
	}
	return newTypeError("number", slot.Type(), loc)
}

// graft resolves a reference into a slot. An unknown identifier yields null
// rather than failing; a referent that is still growing is patched in at the
// end of the operation.
func (dec *decoder) graft(id string, tgt patchTarget, loc Location) error {
	e, ok := dec.refs.lookup(id)
	if !ok {
		return tgt.assign(reflect.Zero(tgt.typ()))
	}
	if e.final {
		v, err := dec.adaptReferent(e, tgt.typ(), id, loc)
		if err != nil {
			return err
		}
		return tgt.assign(v)
	}
	dec.patches = append(dec.patches, func() error {
		v, err := dec.adaptReferent(e, tgt.typ(), id, loc)
		if err != nil {
			return err
		}
		return tgt.assign(v)
	})
	return nil
}

// adaptReferent shapes a referent for the slot expecting it. Slices may be
// dereferenced or re-pointered freely since the backing array carries the
// identity; a struct referent grafted into a value-type slot would sever
// identity and is rejected.
func (dec *decoder) adaptReferent(e *tableEntry, target reflect.Type, id string, loc Location) (reflect.Value, error) {
	v := e.value
	if !v.IsValid() && e.builder != nil {
		v = e.builder.slice
	}
	if !v.IsValid() {
		return reflect.Value{}, newError(ErrUnexpectedMetadata, loc, "$ref %q resolved before its referent was constructed", id)
	}
	if v.Type().AssignableTo(target) {
		return v, nil
	}
	if target.Kind() == reflect.Pointer {
		if e.ptr.IsValid() && e.ptr.Type().AssignableTo(target) {
			return e.ptr, nil
		}
		if v.Type().AssignableTo(target.Elem()) {
			switch v.Kind() {
			case reflect.Slice, reflect.Map:
				p := reflect.New(v.Type())
				p.Elem().Set(v)
				return p, nil
			}
		}
	}
	if v.Kind() == reflect.Pointer {
		ev := v.Elem()
		if ev.Type().AssignableTo(target) {
			if ev.Kind() == reflect.Struct {
				return reflect.Value{}, newError(ErrUnexpectedMetadata, loc, "$ref %q cannot be grafted into value-type slot %s", id, target)
			}
			return ev, nil
		}
	}
	return reflect.Value{}, newResolutionError(loc, id, target, v.Type())
}

var (
	anyType          = reflect.TypeOf((*interface{})(nil)).Elem()
	mapStringAnyType = reflect.TypeOf(map[string]interface{}{})
	sliceAnyType     = reflect.TypeOf([]interface{}{})
	unmarshalerType  = reflect.TypeOf((*json.Unmarshaler)(nil)).Elem()
)

func isAny(v reflect.Value) bool {
	return v.Kind() == reflect.Interface && v.NumMethod() == 0
}

// allocate strips the slot's pointer chain, allocating as it goes, and
// returns the innermost addressable value.
func allocate(slot reflect.Value) reflect.Value {
	for slot.Kind() == reflect.Pointer {
		if slot.IsNil() {
			slot.Set(reflect.New(slot.Type().Elem()))
		}
		slot = slot.Elem()
	}
	return slot
}

func fieldByIndex(v reflect.Value, index []int) reflect.Value {
	for _, i := range index {
		v = v.Field(i)
	}
	return v
}

func parseMapKey(name string, keyType reflect.Type, loc Location) (reflect.Value, error) {
	k := reflect.New(keyType).Elem()
	switch keyType.Kind() {
	case reflect.String:
		k.SetString(name)
		return k, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := strconv.ParseInt(name, 10, 64)
		if err != nil || k.OverflowInt(i) {
			return reflect.Value{}, newTypeError("object key "+strconv.Quote(name), keyType, loc)
		}
		k.SetInt(i)
		return k, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u, err := strconv.ParseUint(name, 10, 64)
		if err != nil || k.OverflowUint(u) {
			return reflect.Value{}, newTypeError("object key "+strconv.Quote(name), keyType, loc)
		}
		k.SetUint(u)
		return k, nil
	}
	return reflect.Value{}, newTypeError("object key "+strconv.Quote(name), keyType, loc)
}

func newTypeError(value string, t reflect.Type, loc Location) error {
	return NewError(&json.UnmarshalTypeError{Value: value, Type: t}, loc)
}

// unmarshalerOf returns slot's json.Unmarshaler when the type provides one.
// Custom unmarshalers are honored only outside Preserve mode; metadata
// cannot be tracked across an opaque unmarshal.
func unmarshalerOf(slot reflect.Value) (json.Unmarshaler, bool) {
	if slot.Kind() == reflect.Pointer && slot.Type().Implements(unmarshalerType) {
		if slot.IsNil() {
			slot.Set(reflect.New(slot.Type().Elem()))
		}
		return slot.Interface().(json.Unmarshaler), true
	}
	if slot.CanAddr() && slot.Addr().Type().Implements(unmarshalerType) {
		return slot.Addr().Interface().(json.Unmarshaler), true
	}
	return nil, false
}
