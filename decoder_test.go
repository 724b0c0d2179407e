package refjson_test

import (
	"testing"

	"github.com/chanced/refjson"
	"github.com/stretchr/testify/require"
)

func TestDuplicateIdentifierAcrossDocument(t *testing.T) {
	assert := require.New(t)
	data := []byte(`{"$id":"1","Name":"X","Manager":{"$id":"1","Name":"Y"}}`)
	var result *employee
	err := refjson.Unmarshal(data, &result, preserve())
	assert.ErrorIs(err, refjson.ErrDuplicateIdentifier)
	assert.Nil(result)
}

func TestDuplicateIdentifierWithinObject(t *testing.T) {
	assert := require.New(t)
	data := []byte(`{"$id":"1","$id":"2","Name":"X"}`)
	var result *employee
	err := refjson.Unmarshal(data, &result, preserve())
	assert.ErrorIs(err, refjson.ErrDuplicateIdentifier)
}

func TestIdentifierToleratedOutOfFirstPosition(t *testing.T) {
	assert := require.New(t)
	data := []byte(`{"Name":"X","$id":"1","Manager":{"$ref":"1"}}`)
	var result *employee
	assert.NoError(refjson.Unmarshal(data, &result, preserve()))
	assert.Same(result, result.Manager)
}

func TestRefBesideIdentifierFatal(t *testing.T) {
	assert := require.New(t)
	data := []byte(`{"Manager":{"$id":"2","$ref":"2"}}`)
	var result *employee
	err := refjson.Unmarshal(data, &result, preserve())
	assert.ErrorIs(err, refjson.ErrReferenceObjectHasOtherProperties)
}

func TestRefBeforeOtherPropertyFatal(t *testing.T) {
	assert := require.New(t)
	data := []byte(`{"Manager":{"$ref":"1","$id":"2"}}`)
	var result *employee
	err := refjson.Unmarshal(data, &result, preserve())
	assert.ErrorIs(err, refjson.ErrReferenceObjectHasOtherProperties)
}

func TestIdMustBeString(t *testing.T) {
	assert := require.New(t)
	data := []byte(`{"$id":1,"Name":"X"}`)
	var result *employee
	err := refjson.Unmarshal(data, &result, preserve())
	assert.ErrorIs(err, refjson.ErrUnexpectedMetadata)
}

func TestRefMustBeString(t *testing.T) {
	assert := require.New(t)
	data := []byte(`{"Manager":{"$ref":7}}`)
	var result *employee
	err := refjson.Unmarshal(data, &result, preserve())
	assert.ErrorIs(err, refjson.ErrUnexpectedMetadata)
}

func TestValuesOutsideArrayContext(t *testing.T) {
	assert := require.New(t)
	data := []byte(`{"$id":"1","$values":[1,2]}`)
	var result *employee
	err := refjson.Unmarshal(data, &result, preserve())
	assert.ErrorIs(err, refjson.ErrUnexpectedMetadata)
	var perr *refjson.Error
	assert.ErrorAs(err, &perr)
	assert.Equal("$.$values", perr.Path.String())
}

func TestPreservedArrayMissingID(t *testing.T) {
	assert := require.New(t)
	data := []byte(`{"$values":[1,2]}`)
	var result []int
	err := refjson.Unmarshal(data, &result, preserve())
	assert.ErrorIs(err, refjson.ErrPreservedArrayMalformed)
}

func TestPreservedArrayMissingValues(t *testing.T) {
	assert := require.New(t)
	data := []byte(`{"$id":"1"}`)
	var result []int
	err := refjson.Unmarshal(data, &result, preserve())
	assert.ErrorIs(err, refjson.ErrPreservedArrayMalformed)
}

func TestPreservedArrayNullValues(t *testing.T) {
	assert := require.New(t)
	data := []byte(`{"$id":"1","$values":null}`)
	var result []int
	err := refjson.Unmarshal(data, &result, preserve())
	assert.ErrorIs(err, refjson.ErrPreservedArrayMalformed)
}

func TestPreservedArrayRegularPropertyFatal(t *testing.T) {
	assert := require.New(t)
	data := []byte(`{"$id":"1","$values":[1],"extra":true}`)
	var result []int
	err := refjson.Unmarshal(data, &result, preserve())
	assert.ErrorIs(err, refjson.ErrPreservedArrayMalformed)
}

func TestPreservedArrayDollarPropertyFatal(t *testing.T) {
	assert := require.New(t)
	data := []byte(`{"$id":"1","$values":[1],"$extra":true}`)
	var result []int
	err := refjson.Unmarshal(data, &result, preserve())
	assert.ErrorIs(err, refjson.ErrUnexpectedMetadata)
}

func TestPreservedArrayIntoTypedSlice(t *testing.T) {
	assert := require.New(t)
	data := []byte(`{"$id":"1","$values":[1,2,3]}`)
	var result []int
	assert.NoError(refjson.Unmarshal(data, &result, preserve()))
	assert.Equal([]int{1, 2, 3}, result)
}

func TestFixedCapacityPreservationFatal(t *testing.T) {
	assert := require.New(t)
	data := []byte(`{"$id":"1","$values":[1,2]}`)
	var result [2]int
	err := refjson.Unmarshal(data, &result, preserve())
	assert.ErrorIs(err, refjson.ErrUnresolvableTypeForPreservation)
}

type fixedHolder struct {
	A [2]*person `json:"A"`
}

func TestPreservationInsideFixedCollection(t *testing.T) {
	assert := require.New(t)
	data := []byte(`{"A":[{"$id":"1","Name":"x"},{"$ref":"1"}]}`)
	var result fixedHolder
	assert.NoError(refjson.Unmarshal(data, &result, preserve()))
	assert.Same(result.A[0], result.A[1])
	assert.Equal("x", result.A[0].Name)
}

func TestRefIntoValueTypeSlotFatal(t *testing.T) {
	assert := require.New(t)
	type holder struct {
		A *person `json:"A"`
		B person  `json:"B"`
	}
	data := []byte(`{"A":{"$id":"1","Name":"x"},"B":{"$ref":"1"}}`)
	var result holder
	err := refjson.Unmarshal(data, &result, preserve())
	assert.ErrorIs(err, refjson.ErrUnexpectedMetadata)
}

func TestIncompatibleReferentFatal(t *testing.T) {
	assert := require.New(t)
	type holder struct {
		A *person `json:"A"`
		B []int   `json:"B"`
	}
	data := []byte(`{"A":{"$id":"1","Name":"x"},"B":{"$ref":"1"}}`)
	var result holder
	err := refjson.Unmarshal(data, &result, preserve())
	assert.ErrorIs(err, refjson.ErrInvalidResolution)
	var rerr *refjson.ResolutionError
	assert.ErrorAs(err, &rerr)
	assert.Equal("1", rerr.ID)
}

func TestIncompleteInput(t *testing.T) {
	assert := require.New(t)
	for _, data := range []string{``, `   `, `{"$id":"1","Name"`, `{"Name":"X"`, `[1,2`} {
		var result interface{}
		err := refjson.Unmarshal([]byte(data), &result, preserve())
		assert.ErrorIs(err, refjson.ErrIncompleteInput, "input %q", data)
	}
}

func TestMetadataInertWithoutPreserve(t *testing.T) {
	assert := require.New(t)
	data := []byte(`{"$id":"1","$ref":"2","$values":[1],"x":true}`)
	var result map[string]interface{}
	assert.NoError(refjson.Unmarshal(data, &result, refjson.Options{}))
	assert.Equal("1", result["$id"])
	assert.Equal("2", result["$ref"])
	assert.Equal([]interface{}{1.0}, result["$values"])
	assert.Equal(true, result["x"])
}

func TestUnknownDollarNameIsRegularProperty(t *testing.T) {
	assert := require.New(t)
	data := []byte(`{"$id":"1","$foo":42,"x":"y"}`)
	var result map[string]interface{}
	assert.NoError(refjson.Unmarshal(data, &result, preserve()))
	assert.Equal(42.0, result["$foo"])
	assert.Equal("y", result["x"])
	assert.NotContains(result, "$id")
}

func TestAnySlotPreservedArray(t *testing.T) {
	assert := require.New(t)
	data := []byte(`{"$id":"1","$values":[1,"a",true]}`)
	var result interface{}
	assert.NoError(refjson.Unmarshal(data, &result, preserve()))
	assert.Equal([]interface{}{1.0, "a", true}, result)
}

func TestAnySlotReferenceGraph(t *testing.T) {
	assert := require.New(t)
	data := []byte(`{"$id":"1","left":{"$id":"2","name":"n"},"right":{"$ref":"2"}}`)
	var result interface{}
	assert.NoError(refjson.Unmarshal(data, &result, preserve()))
	m := result.(map[string]interface{})
	left := m["left"].(map[string]interface{})
	right := m["right"].(map[string]interface{})
	assert.Equal("n", left["name"])
	assert.Equal("n", right["name"])
	left["name"] = "changed"
	assert.Equal("changed", right["name"])
}

func TestRootReference(t *testing.T) {
	assert := require.New(t)
	// a root-level $ref against nothing upstream resolves to null
	var result *employee
	assert.NoError(refjson.Unmarshal([]byte(`{"$ref":"9"}`), &result, preserve()))
	assert.Nil(result)
}

func TestReadDepthExceeded(t *testing.T) {
	assert := require.New(t)
	data := []byte(`{"a":{"a":{"a":{"a":{"a":1}}}}}`)
	var result map[string]interface{}
	err := refjson.Unmarshal(data, &result, refjson.Options{
		ReferenceHandling: refjson.ReferencePreserve,
		MaxDepth:          3,
	})
	assert.ErrorIs(err, refjson.ErrDepthExceeded)
}

func TestUnmarshalLeafMismatchHasPath(t *testing.T) {
	assert := require.New(t)
	data := []byte(`{"Name":7}`)
	var result person
	err := refjson.Unmarshal(data, &result, preserve())
	assert.Error(err)
	var perr *refjson.Error
	assert.ErrorAs(err, &perr)
	assert.Equal("$.Name", perr.Path.String())
}

func TestUnmarshalNumberPrecision(t *testing.T) {
	assert := require.New(t)
	type ledger struct {
		N refjson.Number `json:"n"`
	}
	var result ledger
	assert.NoError(refjson.Unmarshal([]byte(`{"n":12345678901234567890.5}`), &result, preserve()))
	assert.Equal("12345678901234567890.5", result.N.String())
}
