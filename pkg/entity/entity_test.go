package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeWeightDefault(t *testing.T) {
	n := Node{ID: 1, Attrs: AttrMap{}}
	assert.Equal(t, 1.0, n.Weight())

	n.Attrs[AttrWeight] = Float64Value(4.5)
	assert.Equal(t, 4.5, n.Weight())
}

func TestHLinkOther(t *testing.T) {
	h := HLink{A: 1, B: 2}
	assert.Equal(t, ID(2), h.Other(1))
	assert.Equal(t, ID(1), h.Other(2))
}

func TestAttrMapEqual(t *testing.T) {
	a := AttrMap{"x": Float64Value(1), "y": StringValue("hi")}
	b := AttrMap{"x": Float64Value(1), "y": StringValue("hi")}
	c := AttrMap{"x": Float64Value(2), "y": StringValue("hi")}

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(AttrMap{"x": Float64Value(1)}))
}

func TestValueCompare(t *testing.T) {
	cmp, err := Float64Value(1).Compare(Float64Value(2))
	require.NoError(t, err)
	assert.Equal(t, -1, cmp)

	cmp, err = Int32Value(5).Compare(Float64Value(5))
	require.NoError(t, err)
	assert.Equal(t, 0, cmp)

	_, err = BoolValue(true).Compare(BoolValue(false))
	assert.Error(t, err)
}

func TestInvalidID(t *testing.T) {
	assert.False(t, InvalidID.Valid())
	assert.True(t, ID(1).Valid())
}
