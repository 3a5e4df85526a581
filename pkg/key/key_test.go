package key

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/pantry/pkg/types"
)

type product struct {
	ID       string
	Category string
	Tags     []string
	secret   string
}

type lookup struct {
	ProductID string
}

func TestNewExtractsTypedValue(t *testing.T) {
	k := New("ProductID", func(r lookup) string { return r.ProductID })

	v, err := k.Value(lookup{ProductID: "p1"})
	require.NoError(t, err)
	assert.Equal(t, "p1", v)
	assert.Equal(t, "key.lookup.ProductID", k.String())
}

func TestValueRejectsWrongType(t *testing.T) {
	k := New("ID", func(p product) string { return p.ID })

	_, err := k.Value(lookup{})
	assert.ErrorIs(t, err, types.ErrTypeMismatch)

	_, err = k.Value(nil)
	assert.ErrorIs(t, err, types.ErrTypeMismatch)
}

func TestFieldReadsStructsAndPointers(t *testing.T) {
	byValue, err := Field[product]("Category")
	require.NoError(t, err)
	v, err := byValue.Value(product{Category: "tea"})
	require.NoError(t, err)
	assert.Equal(t, "tea", v)

	byPointer, err := Field[*product]("ID")
	require.NoError(t, err)
	v, err = byPointer.Value(&product{ID: "p2"})
	require.NoError(t, err)
	assert.Equal(t, "p2", v)

	v, err = byPointer.Value((*product)(nil))
	require.NoError(t, err)
	assert.Equal(t, "", v)
}

func TestFieldErrors(t *testing.T) {
	tests := []struct {
		name  string
		field string
		want  error
	}{
		{name: "missing field", field: "Price", want: ErrNoField},
		{name: "unexported field", field: "secret", want: ErrNoField},
		{name: "slice field", field: "Tags", want: ErrNotComparable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Field[product](tt.field)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := Field[int]("X")
	assert.ErrorIs(t, err, ErrNoField)
}

func TestZeroKey(t *testing.T) {
	var k Key
	assert.True(t, k.IsZero())
	_, err := k.Value(product{})
	assert.ErrorIs(t, err, types.ErrConfiguration)
}
