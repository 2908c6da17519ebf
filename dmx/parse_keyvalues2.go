package dmx

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// kv2Parser builds the element graph from a keyvalues2 body. Both text
// variants parse identically: bare references are recorded as pending
// UUIDs during pass 1 and checked against the defined set in pass 2, so
// forward and cyclic references need no special handling.
type kv2Parser struct {
	lex *lexer

	elements map[uuid.UUID]*Element
	order    []uuid.UUID
	pending  map[uuid.UUID]string // referenced UUID -> "element.key" for diagnostics
}

func decodeKeyValues2(r *bufio.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("dmx: read: %w", err)
	}

	p := &kv2Parser{
		lex:      newLexer(string(data)),
		elements: make(map[uuid.UUID]*Element),
		pending:  make(map[uuid.UUID]string),
	}

	var root uuid.UUID
	haveRoot := false
	for {
		tok, err := p.lex.next()
		if err != nil {
			return nil, err
		}
		if tok.typ == tokEOF {
			break
		}
		if tok.typ != tokString {
			return nil, p.errAt(tok, "expected element class")
		}
		if err := p.expect(tokLBrace); err != nil {
			return nil, err
		}
		id, err := p.parseElementBody(tok.val)
		if err != nil {
			return nil, err
		}
		if !haveRoot {
			root, haveRoot = id, true
		}
	}

	if !haveRoot {
		return nil, fmt.Errorf("%w: no elements in document", ErrSyntax)
	}

	// Pass 2: every pending reference must have been defined by now.
	for id, site := range p.pending {
		if p.elements[id] == nil {
			return nil, fmt.Errorf("%w: %s -> %s", ErrDanglingReference, site, id)
		}
	}

	doc := NewDocument(p.elements[root])
	for _, id := range p.order {
		if id != root {
			doc.Insert(p.elements[id])
		}
	}
	return doc, nil
}

func (p *kv2Parser) errAt(tok token, format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	return fmt.Errorf("%w: %s, got %s at %d:%d", ErrSyntax, msg, tok, tok.line, tok.col)
}

func (p *kv2Parser) expect(want tokenType) error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	if tok.typ != want {
		return p.errAt(tok, "expected %s", want)
	}
	return nil
}

func (p *kv2Parser) stringToken() (token, error) {
	tok, err := p.lex.next()
	if err != nil {
		return token{}, err
	}
	if tok.typ != tokString {
		return token{}, p.errAt(tok, "expected quoted string")
	}
	return tok, nil
}

// parseElementBody consumes an element literal after its opening brace
// and registers the element. The returned UUID is the literal's declared
// id, or a fresh one when the file carries none.
func (p *kv2Parser) parseElementBody(class string) (uuid.UUID, error) {
	el := NewElementWithID("", class, uuid.Nil)
	id := uuid.Nil

	for {
		tok, err := p.lex.next()
		if err != nil {
			return uuid.Nil, err
		}
		switch tok.typ {
		case tokRBrace:
			if id == uuid.Nil {
				id = uuid.New()
			}
			if p.elements[id] != nil {
				return uuid.Nil, fmt.Errorf("%w: duplicate element id %s", ErrSyntax, id)
			}
			el.id = id
			p.elements[id] = el
			p.order = append(p.order, id)
			return id, nil

		case tokString:
			if err := p.parseAttribute(el, tok.val, &id); err != nil {
				return uuid.Nil, err
			}

		default:
			return uuid.Nil, p.errAt(tok, "expected attribute or closing brace")
		}
	}
}

func (p *kv2Parser) parseAttribute(el *Element, key string, id *uuid.UUID) error {
	typeTok, err := p.stringToken()
	if err != nil {
		return err
	}
	kw := typeTok.val

	switch key {
	case "id":
		if kw != "elementid" {
			return p.errAt(typeTok, "id attribute must have type elementid")
		}
		valTok, err := p.stringToken()
		if err != nil {
			return err
		}
		parsed, err := parseCanonicalUUID(valTok.val)
		if err != nil {
			return err
		}
		*id = parsed
		return nil

	case "name":
		if kw != "string" {
			return p.errAt(typeTok, "name attribute must have type string")
		}
		valTok, err := p.stringToken()
		if err != nil {
			return err
		}
		el.SetName(valTok.val)
		return nil
	}

	if kw == "element" {
		return p.parseElementRef(el, key)
	}
	if kw == "element_array" {
		return p.parseElementRefArray(el, key)
	}
	if kw == "elementid" {
		return p.errAt(typeTok, "elementid is only valid for the id attribute")
	}

	if t, ok := TypeFromKeyword(kw); ok {
		if t.IsArray() {
			return p.parseScalarArray(el, key, t)
		}
		valTok, err := p.stringToken()
		if err != nil {
			return err
		}
		v, err := parseScalarPayload(t, valTok.val)
		if err != nil {
			return err
		}
		el.Set(key, v)
		return nil
	}

	// Unrecognized type keyword: an inline element literal whose class
	// is the keyword itself.
	if err := p.expect(tokLBrace); err != nil {
		return err
	}
	childID, err := p.parseElementBody(kw)
	if err != nil {
		return err
	}
	el.Set(key, ElementValue(childID))
	return nil
}

// parseElementRef handles `"key" "element" "<uuid>"` — a bare reference
// or, with an empty value, the null sentinel.
func (p *kv2Parser) parseElementRef(el *Element, key string) error {
	valTok, err := p.stringToken()
	if err != nil {
		return err
	}
	if valTok.val == "" {
		el.Set(key, NullElement())
		return nil
	}
	target, err := parseCanonicalUUID(valTok.val)
	if err != nil {
		return err
	}
	p.notePending(target, el, key)
	el.Set(key, ElementValue(target))
	return nil
}

func (p *kv2Parser) parseElementRefArray(el *Element, key string) error {
	if err := p.expect(tokLBracket); err != nil {
		return err
	}

	var ids []uuid.UUID
	for {
		tok, err := p.lex.next()
		if err != nil {
			return err
		}
		switch tok.typ {
		case tokRBracket:
			el.Set(key, ElementArray(ids))
			return nil

		case tokString:
			next, err := p.lex.next()
			if err != nil {
				return err
			}
			switch next.typ {
			case tokLBrace:
				// Inline literal; the first token was its class.
				childID, err := p.parseElementBody(tok.val)
				if err != nil {
					return err
				}
				ids = append(ids, childID)
			case tokString:
				if tok.val != "element" {
					return p.errAt(tok, "expected element reference or literal")
				}
				if next.val == "" {
					ids = append(ids, uuid.Nil)
					continue
				}
				target, err := parseCanonicalUUID(next.val)
				if err != nil {
					return err
				}
				p.notePending(target, el, key)
				ids = append(ids, target)
			default:
				return p.errAt(next, "expected element reference or literal")
			}

		default:
			return p.errAt(tok, "expected array item or closing bracket")
		}
	}
}

func (p *kv2Parser) parseScalarArray(el *Element, key string, t AttrType) error {
	if err := p.expect(tokLBracket); err != nil {
		return err
	}

	values := newArrayBuilder(t.Elem())
	for {
		tok, err := p.lex.next()
		if err != nil {
			return err
		}
		switch tok.typ {
		case tokRBracket:
			el.Set(key, values.finish())
			return nil
		case tokString:
			v, err := parseScalarPayload(t.Elem(), tok.val)
			if err != nil {
				return err
			}
			values.append(v)
		default:
			return p.errAt(tok, "expected array item or closing bracket")
		}
	}
}

func (p *kv2Parser) notePending(target uuid.UUID, el *Element, key string) {
	if _, ok := p.pending[target]; !ok {
		p.pending[target] = fmt.Sprintf("%s.%s", el.Class(), key)
	}
}

// parseCanonicalUUID accepts only the 36-character canonical form.
func parseCanonicalUUID(s string) (uuid.UUID, error) {
	if len(s) != 36 {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrBadUUID, s)
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrBadUUID, s)
	}
	return id, nil
}

// ============================================================
// Scalar payload parsing
// ============================================================

func payloadErr(t AttrType, s string) error {
	return fmt.Errorf("%w: bad %s literal %q", ErrSyntax, t, s)
}

// fields splits a tuple payload and checks the component count.
func fields(t AttrType, s string, n int) ([]string, error) {
	parts := strings.Fields(s)
	if len(parts) != n {
		return nil, payloadErr(t, s)
	}
	return parts, nil
}

func parseF32(t AttrType, s string) (float32, error) {
	f, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return 0, payloadErr(t, s)
	}
	return float32(f), nil
}

func parseU8(t AttrType, s string) (uint8, error) {
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, payloadErr(t, s)
	}
	return uint8(n), nil
}

func parseScalarPayload(t AttrType, s string) (*Value, error) {
	switch t {
	case TypeInt:
		n, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return nil, payloadErr(t, s)
		}
		return Int(int32(n)), nil

	case TypeFloat:
		f, err := parseF32(t, s)
		if err != nil {
			return nil, err
		}
		return Float(f), nil

	case TypeBool:
		n, err := strconv.ParseUint(s, 10, 8)
		if err != nil {
			return nil, payloadErr(t, s)
		}
		return Bool(n != 0), nil

	case TypeString:
		return Str(s), nil

	case TypeBinary:
		clean := strings.Map(func(r rune) rune {
			switch r {
			case ' ', '\t', '\r', '\n':
				return -1
			}
			return r
		}, s)
		buf, err := hex.DecodeString(clean)
		if err != nil {
			return nil, payloadErr(t, s)
		}
		return Binary(buf), nil

	case TypeTime:
		sec, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, payloadErr(t, s)
		}
		ticks := int32(math.Round(sec * 10000))
		return Time(time.Duration(ticks) * timeTick), nil

	case TypeColor:
		parts, err := fields(t, s, 4)
		if err != nil {
			return nil, err
		}
		var c Color
		if c.R, err = parseU8(t, parts[0]); err != nil {
			return nil, err
		}
		if c.G, err = parseU8(t, parts[1]); err != nil {
			return nil, err
		}
		if c.B, err = parseU8(t, parts[2]); err != nil {
			return nil, err
		}
		if c.A, err = parseU8(t, parts[3]); err != nil {
			return nil, err
		}
		return ColorValue(c), nil

	case TypeVector2:
		parts, err := fields(t, s, 2)
		if err != nil {
			return nil, err
		}
		var v Vector2
		if v.X, err = parseF32(t, parts[0]); err != nil {
			return nil, err
		}
		if v.Y, err = parseF32(t, parts[1]); err != nil {
			return nil, err
		}
		return Vector2Value(v), nil

	case TypeVector3:
		parts, err := fields(t, s, 3)
		if err != nil {
			return nil, err
		}
		var v Vector3
		if v.X, err = parseF32(t, parts[0]); err != nil {
			return nil, err
		}
		if v.Y, err = parseF32(t, parts[1]); err != nil {
			return nil, err
		}
		if v.Z, err = parseF32(t, parts[2]); err != nil {
			return nil, err
		}
		return Vector3Value(v), nil

	case TypeVector4:
		parts, err := fields(t, s, 4)
		if err != nil {
			return nil, err
		}
		var v Vector4
		if v.X, err = parseF32(t, parts[0]); err != nil {
			return nil, err
		}
		if v.Y, err = parseF32(t, parts[1]); err != nil {
			return nil, err
		}
		if v.Z, err = parseF32(t, parts[2]); err != nil {
			return nil, err
		}
		if v.W, err = parseF32(t, parts[3]); err != nil {
			return nil, err
		}
		return Vector4Value(v), nil

	case TypeQAngle:
		parts, err := fields(t, s, 3)
		if err != nil {
			return nil, err
		}
		var a QAngle
		if a.Pitch, err = parseF32(t, parts[0]); err != nil {
			return nil, err
		}
		if a.Yaw, err = parseF32(t, parts[1]); err != nil {
			return nil, err
		}
		if a.Roll, err = parseF32(t, parts[2]); err != nil {
			return nil, err
		}
		return QAngleValue(a), nil

	case TypeQuaternion:
		parts, err := fields(t, s, 4)
		if err != nil {
			return nil, err
		}
		var q Quaternion
		if q.X, err = parseF32(t, parts[0]); err != nil {
			return nil, err
		}
		if q.Y, err = parseF32(t, parts[1]); err != nil {
			return nil, err
		}
		if q.Z, err = parseF32(t, parts[2]); err != nil {
			return nil, err
		}
		if q.W, err = parseF32(t, parts[3]); err != nil {
			return nil, err
		}
		return QuaternionValue(q), nil

	case TypeMatrix:
		parts, err := fields(t, s, 16)
		if err != nil {
			return nil, err
		}
		var m Matrix
		for i, part := range parts {
			if m[i], err = parseF32(t, part); err != nil {
				return nil, err
			}
		}
		return MatrixValue(m), nil
	}

	return nil, fmt.Errorf("%w: keyword %q", ErrUnknownType, t)
}

// arrayBuilder accumulates parsed single values into the matching
// homogeneous array value.
type arrayBuilder struct {
	elem   AttrType
	values []*Value
}

func newArrayBuilder(elem AttrType) *arrayBuilder {
	return &arrayBuilder{elem: elem}
}

func (b *arrayBuilder) append(v *Value) {
	b.values = append(b.values, v)
}

func (b *arrayBuilder) finish() *Value {
	n := len(b.values)
	switch b.elem {
	case TypeInt:
		out := make([]int32, n)
		for i, v := range b.values {
			out[i] = v.intVal
		}
		return IntArray(out)
	case TypeFloat:
		out := make([]float32, n)
		for i, v := range b.values {
			out[i] = v.floatVal
		}
		return FloatArray(out)
	case TypeBool:
		out := make([]bool, n)
		for i, v := range b.values {
			out[i] = v.boolVal
		}
		return BoolArray(out)
	case TypeString:
		out := make([]string, n)
		for i, v := range b.values {
			out[i] = v.strVal
		}
		return StrArray(out)
	case TypeBinary:
		out := make([][]byte, n)
		for i, v := range b.values {
			out[i] = v.binVal
		}
		return BinaryArray(out)
	case TypeTime:
		out := make([]time.Duration, n)
		for i, v := range b.values {
			out[i] = v.timeVal
		}
		return TimeArray(out)
	case TypeColor:
		out := make([]Color, n)
		for i, v := range b.values {
			out[i] = v.colorVal
		}
		return ColorArray(out)
	case TypeVector2:
		out := make([]Vector2, n)
		for i, v := range b.values {
			out[i] = v.vec2Val
		}
		return Vector2Array(out)
	case TypeVector3:
		out := make([]Vector3, n)
		for i, v := range b.values {
			out[i] = v.vec3Val
		}
		return Vector3Array(out)
	case TypeVector4:
		out := make([]Vector4, n)
		for i, v := range b.values {
			out[i] = v.vec4Val
		}
		return Vector4Array(out)
	case TypeQAngle:
		out := make([]QAngle, n)
		for i, v := range b.values {
			out[i] = v.angVal
		}
		return QAngleArray(out)
	case TypeQuaternion:
		out := make([]Quaternion, n)
		for i, v := range b.values {
			out[i] = v.quatVal
		}
		return QuaternionArray(out)
	default:
		out := make([]Matrix, n)
		for i, v := range b.values {
			out[i] = v.matVal
		}
		return MatrixArray(out)
	}
}
