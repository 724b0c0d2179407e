// Package yamlutil bridges YAML documents into the refjson reference
// machinery by transcoding through JSON. Reference metadata ("$id", "$ref",
// "$values") survives the transcoding as ordinary mapping keys.
package yamlutil

import (
	"reflect"

	"github.com/chanced/dynamic"
	"github.com/chanced/refjson"
	"sigs.k8s.io/yaml"
)

// Marshal serializes v with opts and renders the result as YAML.
func Marshal(v interface{}, opts refjson.Options) ([]byte, error) {
	j, err := refjson.Marshal(v, opts)
	if err != nil {
		return nil, err
	}
	return yaml.JSONToYAML(j)
}

// Unmarshal transcodes YAML to JSON and deserializes it into out with opts,
// reconstructing identity relationships when opts preserve references.
func Unmarshal(data []byte, out interface{}, opts refjson.Options) error {
	j, err := yaml.YAMLToJSON(data)
	if err != nil {
		return err
	}
	return refjson.Unmarshal(j, out, opts)
}

// Normalize prepares a YAML-decoded value graph for refjson.Marshal. Older
// YAML decoders produce map[interface{}]interface{} mappings, which the
// serializer rejects; Normalize re-keys those as strings.
//
// Normalization is identity-aware the way the serializer is: string-keyed
// maps and slices are rewritten in place so that composites shared across
// the graph keep their identity and still deduplicate under Preserve mode,
// and composites already on the walk are not re-entered, so cyclic graphs
// normalize without recursing forever. A re-keyed mapping is necessarily a
// fresh map; every occurrence of the original resolves to the same
// replacement, so sharing survives the re-keying too.
func Normalize(v interface{}) (interface{}, error) {
	n := normalizer{done: map[composite]interface{}{}}
	return n.value(v)
}

// composite identifies a map or slice the way the serializer keys its
// preserved set: by address, plus length for slices since distinct slices
// may share a backing array.
type composite struct {
	ptr uintptr
	len int
}

type normalizer struct {
	done map[composite]interface{}
}

func (n *normalizer) value(v interface{}) (interface{}, error) {
	switch t := v.(type) {
	case map[interface{}]interface{}:
		key := composite{ptr: reflect.ValueOf(t).Pointer()}
		if out, ok := n.done[key]; ok {
			return out, nil
		}
		out := make(map[string]interface{}, len(t))
		n.done[key] = out
		for k, val := range t {
			ks := new(dynamic.String)
			if err := ks.Set(k); err != nil {
				return nil, err
			}
			nv, err := n.value(val)
			if err != nil {
				return nil, err
			}
			out[ks.String()] = nv
		}
		return out, nil
	case map[string]interface{}:
		key := composite{ptr: reflect.ValueOf(t).Pointer()}
		if _, ok := n.done[key]; ok {
			return t, nil
		}
		n.done[key] = t
		for k, val := range t {
			nv, err := n.value(val)
			if err != nil {
				return nil, err
			}
			t[k] = nv
		}
		return t, nil
	case []interface{}:
		key := composite{ptr: reflect.ValueOf(t).Pointer(), len: len(t)}
		if _, ok := n.done[key]; ok {
			return t, nil
		}
		n.done[key] = t
		for i, val := range t {
			nv, err := n.value(val)
			if err != nil {
				return nil, err
			}
			t[i] = nv
		}
		return t, nil
	default:
		return v, nil
	}
}
