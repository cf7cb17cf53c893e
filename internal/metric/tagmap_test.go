package metric

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTagMapSetGet(t *testing.T) {
	var tm TagMap
	tm.Set("host", "a")
	tm.Set("env", "prod")

	v, ok := tm.Get("host")
	assert.True(t, ok)
	assert.Equal(t, "a", v)

	_, ok = tm.Get("missing")
	assert.False(t, ok)
	assert.Equal(t, 2, tm.Len())
}

func TestTagMapOrderIndependentEquality(t *testing.T) {
	a := NewTagMap(map[string]string{"b": "2", "a": "1"})
	b := NewTagMap(map[string]string{"a": "1", "b": "2"})
	assert.True(t, a.Equal(b))
}

func TestTagMapMergeDoesNotOverwrite(t *testing.T) {
	var dst TagMap
	dst.Set("host", "left")
	var src TagMap
	src.Set("host", "right")
	src.Set("env", "prod")

	dst.Merge(src)

	v, _ := dst.Get("host")
	assert.Equal(t, "left", v)
	v, _ = dst.Get("env")
	assert.Equal(t, "prod", v)
}

func TestTagMapCloneIsIndependent(t *testing.T) {
	var a TagMap
	a.Set("k", "v1")
	b := a.Clone()
	b.Set("k", "v2")

	v, _ := a.Get("k")
	assert.Equal(t, "v1", v)
	v, _ = b.Get("k")
	assert.Equal(t, "v2", v)
}
