package refjson_test

import (
	"testing"

	"github.com/chanced/refjson"
	"github.com/stretchr/testify/require"
)

func TestOptionsValidate(t *testing.T) {
	assert := require.New(t)

	assert.NoError(refjson.Options{}.Validate())
	assert.NoError(refjson.Options{ReferenceHandling: refjson.ReferenceIgnore}.Validate())
	assert.NoError(refjson.Options{ReferenceHandling: refjson.ReferencePreserve, MaxDepth: 12}.Validate())

	err := refjson.Options{ReferenceHandling: refjson.ReferenceHandling(7)}.Validate()
	assert.ErrorIs(err, refjson.ErrInvalidReferenceHandling)

	err = refjson.Options{MaxDepth: -1}.Validate()
	assert.ErrorIs(err, refjson.ErrInvalidReferenceHandling)

	_, err = refjson.Marshal(map[string]int{}, refjson.Options{ReferenceHandling: refjson.ReferenceHandling(9)})
	assert.ErrorIs(err, refjson.ErrInvalidReferenceHandling)

	var out interface{}
	err = refjson.Unmarshal([]byte(`{}`), &out, refjson.Options{ReferenceHandling: refjson.ReferenceHandling(9)})
	assert.ErrorIs(err, refjson.ErrInvalidReferenceHandling)
}

func TestReferenceHandlingString(t *testing.T) {
	assert := require.New(t)
	assert.Equal("Default", refjson.ReferenceDefault.String())
	assert.Equal("Ignore", refjson.ReferenceIgnore.String())
	assert.Equal("Preserve", refjson.ReferencePreserve.String())
	assert.Equal("ReferenceHandling(9)", refjson.ReferenceHandling(9).String())
	assert.False(refjson.ReferenceHandling(9).IsValid())
}
