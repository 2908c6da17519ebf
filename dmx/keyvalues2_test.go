package dmx

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kv2Header(flat bool) *Header {
	enc := EncodingKeyValues2
	if flat {
		enc = EncodingKeyValues2Flat
	}
	return &Header{Encoding: enc, EncodingVersion: 1, Format: "dmx", FormatVersion: 1}
}

func TestKeyValues2_Cycle(t *testing.T) {
	aid := uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	bid := uuid.MustParse("00000000-0000-0000-0000-00000000000b")
	a := NewElementWithID("a", "DmElement", aid)
	b := NewElementWithID("b", "DmElement", bid)
	a.Set("peer", ElementValue(bid))
	b.Set("peer", ElementValue(aid))
	doc := NewDocument(a)
	doc.Insert(b)

	var buf bytes.Buffer
	require.NoError(t, Serialize(&buf, doc, kv2Header(false)))
	text := buf.String()

	// A is the only top-level literal; B inlines inside A's peer; the
	// cycle closes with a bare reference back to A.
	assert.Equal(t, 2, strings.Count(text, `"id" "elementid"`))
	assert.Contains(t, text, `"peer" "DmElement"`)
	assert.Contains(t, text, `"peer" "element" "00000000-0000-0000-0000-00000000000a"`)

	_, got, err := Deserialize(&buf)
	require.NoError(t, err)
	require.Equal(t, 2, got.Len())
	assert.Equal(t, aid, got.Root().ID())

	peer, err := got.Root().Get("peer").AsElement()
	require.NoError(t, err)
	assert.Equal(t, bid, peer)

	back, err := got.Get(peer).Get("peer").AsElement()
	require.NoError(t, err)
	assert.Equal(t, aid, back)
}

func TestKeyValues2Flat_SharedChild(t *testing.T) {
	root := NewElement("root", "DmElement")
	doc := NewDocument(root)
	c := NewElement("shared", "DmeChild")
	doc.SetChild(root, "left", c)
	root.Set("right", ElementValue(c.ID()))

	var buf bytes.Buffer
	require.NoError(t, Serialize(&buf, doc, kv2Header(true)))
	text := buf.String()

	// Root and C once each at top level; both slots are bare references.
	assert.Equal(t, 2, strings.Count(text, `"id" "elementid"`))
	assert.Contains(t, text, `"left" "element" "`+c.ID().String()+`"`)
	assert.Contains(t, text, `"right" "element" "`+c.ID().String()+`"`)

	_, got, err := Deserialize(&buf)
	require.NoError(t, err)
	require.Equal(t, 2, got.Len())

	left, err := got.Root().Get("left").AsElement()
	require.NoError(t, err)
	right, err := got.Root().Get("right").AsElement()
	require.NoError(t, err)
	assert.Equal(t, left, right)
	assert.Same(t, got.Get(left), got.Get(right))
	assert.Equal(t, "DmeChild", got.Get(left).Class())
}

func TestKeyValues2_ForwardBareReference(t *testing.T) {
	input := `<!-- dmx encoding keyvalues2_flat 1 format dmx 1 -->
"DmElement"
{
	"id" "elementid" "00000000-0000-0000-0000-000000000001"
	"name" "string" "root"
	"next" "element" "00000000-0000-0000-0000-000000000002"
}

"DmElement"
{
	"id" "elementid" "00000000-0000-0000-0000-000000000002"
	"name" "string" "second"
}
`
	_, doc, err := Deserialize(strings.NewReader(input))
	require.NoError(t, err)
	require.Equal(t, 2, doc.Len())

	next, err := doc.Root().Get("next").AsElement()
	require.NoError(t, err)
	assert.Equal(t, "second", doc.Get(next).Name())
}

func TestKeyValues2_DanglingReference(t *testing.T) {
	input := `<!-- dmx encoding keyvalues2 1 format dmx 1 -->
"DmElement"
{
	"id" "elementid" "00000000-0000-0000-0000-000000000001"
	"name" "string" "root"
	"next" "element" "00000000-0000-0000-0000-00000000dead"
}
`
	_, doc, err := Deserialize(strings.NewReader(input))
	assert.ErrorIs(t, err, ErrDanglingReference)
	assert.Nil(t, doc)
}

func TestKeyValues2_CommentsAndEscapes(t *testing.T) {
	input := `<!-- dmx encoding keyvalues2 1 format dmx 1 -->
// top comment
"DmElement"
{
	"id" "elementid" "00000000-0000-0000-0000-000000000001" // trailing comment
	"name" "string" "line\none\ttab \"quoted\" back\\slash"
	"count" "int" "-7"
}
`
	_, doc, err := Deserialize(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, "line\none\ttab \"quoted\" back\\slash", doc.Root().Name())

	n, err := doc.Root().Get("count").AsInt()
	require.NoError(t, err)
	assert.Equal(t, int32(-7), n)
}

func TestKeyValues2_ScalarPayloads(t *testing.T) {
	input := `<!-- dmx encoding keyvalues2 1 format dmx 1 -->
"DmElement"
{
	"id" "elementid" "00000000-0000-0000-0000-000000000001"
	"flag" "bool" "1"
	"off" "bool" "0"
	"blob" "binary" "DEADbeef"
	"when" "time" "1.5"
	"tint" "color" "255 0 128 255"
	"spin" "qangle" "10 20 30"
	"basis" "matrix" "1 0 0 0 0 1 0 0 0 0 1 0 0 0 0 1"
	"null" "element" ""
}
`
	_, doc, err := Deserialize(strings.NewReader(input))
	require.NoError(t, err)
	e := doc.Root()

	flag, err := e.Get("flag").AsBool()
	require.NoError(t, err)
	assert.True(t, flag)
	off, err := e.Get("off").AsBool()
	require.NoError(t, err)
	assert.False(t, off)

	blob, err := e.Get("blob").AsBinary()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, blob)

	when, err := e.Get("when").AsTime()
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, when)

	tint, err := e.Get("tint").AsColor()
	require.NoError(t, err)
	assert.Equal(t, Color{R: 255, G: 0, B: 128, A: 255}, tint)

	spin, err := e.Get("spin").AsQAngle()
	require.NoError(t, err)
	assert.Equal(t, QAngle{Pitch: 10, Yaw: 20, Roll: 30}, spin)

	basis, err := e.Get("basis").AsMatrix()
	require.NoError(t, err)
	assert.Equal(t, Matrix{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}, basis)

	assert.True(t, e.Get("null").IsNullElement())
}

func TestKeyValues2_MissingIDGenerated(t *testing.T) {
	input := `<!-- dmx encoding keyvalues2 1 format dmx 1 -->
"DmElement"
{
	"name" "string" "anonymous"
}
`
	_, doc, err := Deserialize(strings.NewReader(input))
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, doc.Root().ID())
	assert.Equal(t, "anonymous", doc.Root().Name())
}

func TestKeyValues2_ParseErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{
			name: "id wrong type",
			body: `"DmElement" { "id" "string" "x" }`,
			want: ErrSyntax,
		},
		{
			name: "bad uuid",
			body: `"DmElement" { "id" "elementid" "not-a-uuid" }`,
			want: ErrBadUUID,
		},
		{
			name: "non-canonical uuid",
			body: `"DmElement" { "id" "elementid" "{00000000-0000-0000-0000-000000000001}" }`,
			want: ErrBadUUID,
		},
		{
			name: "name wrong type",
			body: `"DmElement" { "name" "int" "5" }`,
			want: ErrSyntax,
		},
		{
			name: "unterminated string",
			body: `"DmElement" { "name" "string" "never ends`,
			want: ErrBadString,
		},
		{
			name: "unknown escape",
			body: `"DmElement" { "name" "string" "bad \x escape" }`,
			want: ErrBadString,
		},
		{
			name: "stray punctuation",
			body: `"DmElement" { ] }`,
			want: ErrSyntax,
		},
		{
			name: "empty document",
			body: ``,
			want: ErrSyntax,
		},
		{
			name: "unexpected eof",
			body: `"DmElement" {`,
			want: ErrSyntax,
		},
		{
			name: "bad int literal",
			body: `"DmElement" { "n" "int" "twelve" }`,
			want: ErrSyntax,
		},
		{
			name: "wrong tuple arity",
			body: `"DmElement" { "v" "vector3" "1 2" }`,
			want: ErrSyntax,
		},
		{
			name: "elementid outside id",
			body: `"DmElement" { "ref" "elementid" "00000000-0000-0000-0000-000000000001" }`,
			want: ErrSyntax,
		},
		{
			name: "duplicate element id",
			body: `"DmElement" { "id" "elementid" "00000000-0000-0000-0000-000000000001" }
"DmElement" { "id" "elementid" "00000000-0000-0000-0000-000000000001" }`,
			want: ErrSyntax,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := "<!-- dmx encoding keyvalues2 1 format dmx 1 -->\n" + tt.body
			_, _, err := Deserialize(strings.NewReader(input))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestKeyValues2_ElementArrayMixedForms(t *testing.T) {
	input := `<!-- dmx encoding keyvalues2 1 format dmx 1 -->
"DmElement"
{
	"id" "elementid" "00000000-0000-0000-0000-000000000001"
	"kids" "element_array"
	[
		"DmeChild"
		{
			"id" "elementid" "00000000-0000-0000-0000-000000000002"
			"name" "string" "inline"
		},
		"element" "00000000-0000-0000-0000-000000000002",
		"element" ""
	]
}
`
	_, doc, err := Deserialize(strings.NewReader(input))
	require.NoError(t, err)

	kids, err := doc.Root().Get("kids").AsElementArray()
	require.NoError(t, err)
	require.Len(t, kids, 3)
	assert.Equal(t, kids[0], kids[1])
	assert.Equal(t, uuid.Nil, kids[2])
	assert.Equal(t, "inline", doc.Get(kids[0]).Name())
}

func TestKeyValues2_NameRoundTrip(t *testing.T) {
	root := NewElement("weird \"name\"\twith\nescapes", "DmElement")
	doc := NewDocument(root)

	var buf bytes.Buffer
	require.NoError(t, Serialize(&buf, doc, kv2Header(false)))
	_, got, err := Deserialize(&buf)
	require.NoError(t, err)
	assert.Equal(t, root.Name(), got.Root().Name())
}

func TestKeyValues2_EncodeDanglingReference(t *testing.T) {
	root := NewElement("root", "DmElement")
	root.Set("ghost", ElementValue(uuid.New()))
	doc := NewDocument(root)

	err := Serialize(&bytes.Buffer{}, doc, kv2Header(true))
	assert.ErrorIs(t, err, ErrDanglingReference)
}
