package refjson_test

import (
	"testing"

	"github.com/chanced/refjson"
	"github.com/stretchr/testify/require"
)

func TestLocation(t *testing.T) {
	assert := require.New(t)

	root := refjson.Root()
	assert.Equal("$", root.String())

	l := root.AppendProperty("foo").AppendProperty("bar").AppendIndex(3).AppendProperty("$id")
	assert.Equal("$.foo.bar[3].$id", l.String())
	assert.Equal("/foo/bar/3/$id", l.Pointer().String())

	// appends derive; the receiver is untouched
	base := root.AppendProperty("a")
	_ = base.AppendProperty("b")
	assert.Equal("$.a", base.String())

	quoted := root.AppendProperty("dotted.name")
	assert.Equal("$['dotted.name']", quoted.String())
}
