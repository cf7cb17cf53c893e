package valve

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValveDefaultsOpen(t *testing.T) {
	v := New()
	assert.True(t, v.IsOpen())
	assert.Equal(t, Open, v.State())
}

func TestValveSetClosed(t *testing.T) {
	v := New()
	v.Set(Closed)
	assert.False(t, v.IsOpen())
	assert.Equal(t, "closed", v.State().String())
}
