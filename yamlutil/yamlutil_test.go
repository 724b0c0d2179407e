package yamlutil_test

import (
	"testing"

	"github.com/chanced/refjson"
	"github.com/chanced/refjson/yamlutil"
	"github.com/stretchr/testify/require"
)

type node struct {
	Name string `json:"name"`
	Next *node  `json:"next"`
}

func TestYAMLRoundTripPreservesReferences(t *testing.T) {
	assert := require.New(t)
	n := &node{Name: "loop"}
	n.Next = n

	opts := refjson.Options{ReferenceHandling: refjson.ReferencePreserve}
	y, err := yamlutil.Marshal(n, opts)
	assert.NoError(err)
	assert.Contains(string(y), "$id")
	assert.Contains(string(y), "$ref")

	var result *node
	assert.NoError(yamlutil.Unmarshal(y, &result, opts))
	assert.Same(result, result.Next)
	assert.Equal("loop", result.Name)
}

func TestUnmarshalYAMLDocument(t *testing.T) {
	assert := require.New(t)
	doc := "$id: \"1\"\nname: x\nself:\n  $ref: \"1\"\n"

	var result map[string]interface{}
	opts := refjson.Options{ReferenceHandling: refjson.ReferencePreserve}
	assert.NoError(yamlutil.Unmarshal([]byte(doc), &result, opts))
	assert.Equal("x", result["name"])
	inner, ok := result["self"].(map[string]interface{})
	assert.True(ok)
	inner["name"] = "y"
	assert.Equal("y", result["name"])
}

func TestNormalizeCoercesKeys(t *testing.T) {
	assert := require.New(t)
	v, err := yamlutil.Normalize(map[interface{}]interface{}{
		1:    "one",
		"$2": []interface{}{map[interface{}]interface{}{"k": true}},
	})
	assert.NoError(err)
	m, ok := v.(map[string]interface{})
	assert.True(ok)
	assert.Equal("one", m["1"])
	inner := m["$2"].([]interface{})[0].(map[string]interface{})
	assert.Equal(true, inner["k"])
}

func TestNormalizeKeepsSharingAndCycles(t *testing.T) {
	assert := require.New(t)

	shared := map[interface{}]interface{}{"name": "s"}
	root := map[string]interface{}{"a": shared, "b": shared}
	root["self"] = root

	v, err := yamlutil.Normalize(root)
	assert.NoError(err)
	m := v.(map[string]interface{})

	// both occurrences of the re-keyed mapping resolve to one replacement,
	// so Preserve-mode marshaling still deduplicates it
	a := m["a"].(map[string]interface{})
	a["name"] = "changed"
	assert.Equal("changed", m["b"].(map[string]interface{})["name"])

	data, err := refjson.Marshal(m, refjson.Options{ReferenceHandling: refjson.ReferencePreserve})
	assert.NoError(err)
	assert.Equal(`{"$id":"1","a":{"$id":"2","name":"changed"},"b":{"$ref":"2"},"self":{"$ref":"1"}}`, string(data))
}
