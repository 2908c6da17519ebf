package dmx

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttrType_WireTags(t *testing.T) {
	// The binary tag assignment is normative: singles 1..14 in kind
	// order, arrays at single+14.
	assert.Equal(t, AttrType(1), TypeElement)
	assert.Equal(t, AttrType(2), TypeInt)
	assert.Equal(t, AttrType(3), TypeFloat)
	assert.Equal(t, AttrType(4), TypeBool)
	assert.Equal(t, AttrType(5), TypeString)
	assert.Equal(t, AttrType(6), TypeBinary)
	assert.Equal(t, AttrType(7), TypeTime)
	assert.Equal(t, AttrType(8), TypeColor)
	assert.Equal(t, AttrType(9), TypeVector2)
	assert.Equal(t, AttrType(10), TypeVector3)
	assert.Equal(t, AttrType(11), TypeVector4)
	assert.Equal(t, AttrType(12), TypeQAngle)
	assert.Equal(t, AttrType(13), TypeQuaternion)
	assert.Equal(t, AttrType(14), TypeMatrix)
	assert.Equal(t, AttrType(15), TypeElementArray)
	assert.Equal(t, AttrType(28), TypeMatrixArray)

	for single := TypeElement; single <= TypeMatrix; single++ {
		assert.Equal(t, single+14, single.Array())
		assert.Equal(t, single, single.Array().Elem())
		assert.False(t, single.IsArray())
		assert.True(t, single.Array().IsArray())
	}
}

func TestAttrType_Keywords(t *testing.T) {
	tests := []struct {
		typ AttrType
		kw  string
	}{
		{TypeElement, "element"},
		{TypeInt, "int"},
		{TypeFloat, "float"},
		{TypeBool, "bool"},
		{TypeString, "string"},
		{TypeBinary, "binary"},
		{TypeTime, "time"},
		{TypeColor, "color"},
		{TypeVector2, "vector2"},
		{TypeVector3, "vector3"},
		{TypeVector4, "vector4"},
		{TypeQAngle, "qangle"},
		{TypeQuaternion, "quaternion"},
		{TypeMatrix, "matrix"},
		{TypeIntArray, "int_array"},
		{TypeQAngleArray, "qangle_array"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.kw, tt.typ.String())
		back, ok := TypeFromKeyword(tt.kw)
		require.True(t, ok, tt.kw)
		assert.Equal(t, tt.typ, back)
	}

	_, ok := TypeFromKeyword("elementid")
	assert.False(t, ok)
	_, ok = TypeFromKeyword("int_array_array")
	assert.False(t, ok)
}

func TestValue_Accessors(t *testing.T) {
	v := Int(42)
	n, err := v.AsInt()
	require.NoError(t, err)
	assert.Equal(t, int32(42), n)

	// No implicit coercion across kinds.
	_, err = v.AsFloat()
	assert.Error(t, err)
	_, err = v.AsIntArray()
	assert.Error(t, err)

	f, err := Float(0.5).AsFloat()
	require.NoError(t, err)
	assert.Equal(t, float32(0.5), f)

	s, err := Str("hi").AsStr()
	require.NoError(t, err)
	assert.Equal(t, "hi", s)

	d, err := Time(1500 * time.Millisecond).AsTime()
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, d)

	m, err := MatrixValue(Matrix{0: 1, 5: 1, 10: 1, 15: 1}).AsMatrix()
	require.NoError(t, err)
	assert.Equal(t, float32(1), m[15])
}

func TestValue_ElementRef(t *testing.T) {
	id := uuid.New()
	v := ElementValue(id)
	got, err := v.AsElement()
	require.NoError(t, err)
	assert.Equal(t, id, got)
	assert.False(t, v.IsNullElement())

	null := NullElement()
	got, err = null.AsElement()
	require.NoError(t, err)
	assert.Equal(t, uuid.Nil, got)
	assert.True(t, null.IsNullElement())
}

func TestValue_Equal(t *testing.T) {
	id := uuid.New()
	tests := []struct {
		name string
		a, b *Value
		want bool
	}{
		{"same int", Int(7), Int(7), true},
		{"different int", Int(7), Int(8), false},
		{"kind mismatch", Int(7), Float(7), false},
		{"binary", Binary([]byte{1, 2}), Binary([]byte{1, 2}), true},
		{"binary differs", Binary([]byte{1, 2}), Binary([]byte{1, 3}), false},
		{"element", ElementValue(id), ElementValue(id), true},
		{"element vs null", ElementValue(id), NullElement(), false},
		{"int array", IntArray([]int32{1, 2}), IntArray([]int32{1, 2}), true},
		{"int array order", IntArray([]int32{1, 2}), IntArray([]int32{2, 1}), false},
		{"empty vs nil slice", StrArray(nil), StrArray([]string{}), true},
		{"vector3 array", Vector3Array([]Vector3{{1, 0, 0}}), Vector3Array([]Vector3{{1, 0, 0}}), true},
		{"binary array", BinaryArray([][]byte{{1}, {2}}), BinaryArray([][]byte{{1}, {2}}), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Equal(tt.b))
			assert.Equal(t, tt.want, tt.b.Equal(tt.a))
		})
	}
}

func TestValue_ArrayLen(t *testing.T) {
	assert.Equal(t, 3, IntArray([]int32{1, 2, 3}).ArrayLen())
	assert.Equal(t, 0, IntArray(nil).ArrayLen())
	assert.Equal(t, 0, Int(1).ArrayLen())
	assert.Equal(t, 2, ElementArray([]uuid.UUID{uuid.New(), uuid.Nil}).ArrayLen())
}

func TestValue_RefTargets(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	assert.Equal(t, []uuid.UUID{a}, ElementValue(a).refTargets())
	assert.Empty(t, NullElement().refTargets())
	assert.Equal(t, []uuid.UUID{a, b}, ElementArray([]uuid.UUID{a, uuid.Nil, b}).refTargets())
	assert.Empty(t, Int(1).refTargets())
}
