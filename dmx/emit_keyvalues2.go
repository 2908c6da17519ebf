package dmx

import (
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// kv2Emitter writes the textual encodings. Non-flat mode inlines each
// element's literal at the slot where the BFS first referenced it and
// emits bare references everywhere else; flat mode emits every element
// as a top-level literal and only bare references. The inline sites form
// a tree over the reachable elements, so the nesting recursion
// terminates even on cyclic graphs.
type kv2Emitter struct {
	sb    strings.Builder
	depth int

	doc   *Document
	sites map[uuid.UUID]refSite
}

func encodeKeyValues2(w io.Writer, doc *Document, h *Header, flat bool) error {
	if err := doc.Validate(); err != nil {
		return err
	}

	var sites map[uuid.UUID]refSite
	if !flat {
		sites = make(map[uuid.UUID]refSite)
	}
	order := doc.reachable(sites)

	em := &kv2Emitter{doc: doc, sites: sites}
	em.sb.WriteString(h.String())
	em.sb.WriteByte('\n')

	if flat {
		for _, e := range order {
			em.elementLiteral(e)
			em.sb.WriteByte('\n')
		}
	} else {
		em.elementLiteral(order[0])
		em.sb.WriteByte('\n')
	}

	if _, err := io.WriteString(w, em.sb.String()); err != nil {
		return fmt.Errorf("dmx: write: %w", err)
	}
	return nil
}

func (em *kv2Emitter) tabs() {
	for i := 0; i < em.depth; i++ {
		em.sb.WriteByte('\t')
	}
}

func (em *kv2Emitter) line(s string) {
	em.tabs()
	em.sb.WriteString(s)
	em.sb.WriteByte('\n')
}

func (em *kv2Emitter) open(ch byte) {
	em.tabs()
	em.sb.WriteByte(ch)
	em.sb.WriteByte('\n')
	em.depth++
}

// close ends a brace or bracket block; trailer carries a list comma.
func (em *kv2Emitter) close(ch byte, trailer string) {
	em.depth--
	em.tabs()
	em.sb.WriteByte(ch)
	em.sb.WriteString(trailer)
	em.sb.WriteByte('\n')
}

// elementLiteral writes a top-level `"<class>" { ... }` literal.
// Inlined attribute literals go through literalBody directly, with the
// `"key" "class"` line written by the caller.
func (em *kv2Emitter) elementLiteral(e *Element) {
	em.line(quoteKV2(e.Class()))
	em.literalBody(e, "")
}

func (em *kv2Emitter) literalBody(e *Element, trailer string) {
	em.open('{')
	em.line(fmt.Sprintf("%q %q %q", "id", "elementid", e.ID()))
	em.line(fmt.Sprintf("%q %q %s", "name", "string", quoteKV2(e.Name())))
	for _, a := range e.Attrs() {
		// The id and name rows above own these keys.
		if a.Key == "id" || a.Key == "name" {
			continue
		}
		em.attribute(e, a)
	}
	em.close('}', trailer)
}

func (em *kv2Emitter) attribute(e *Element, a Attr) {
	t := a.Value.Type()
	switch t {
	case TypeElement:
		em.elementAttr(e, a)
	case TypeElementArray:
		em.elementArrayAttr(e, a)
	default:
		if t.IsArray() {
			em.line(fmt.Sprintf("%s %q", quoteKV2(a.Key), t.String()))
			em.scalarArray(a.Value)
			return
		}
		em.line(fmt.Sprintf("%s %q %s", quoteKV2(a.Key), t.String(), quoteKV2(scalarPayload(a.Value))))
	}
}

// inlineHere reports whether this slot is the target's first-reference
// site, i.e. where the non-flat encoding places the literal.
func (em *kv2Emitter) inlineHere(owner uuid.UUID, key string, index int, target uuid.UUID) bool {
	if em.sites == nil {
		return false
	}
	return em.sites[target] == refSite{owner: owner, key: key, index: index}
}

func (em *kv2Emitter) elementAttr(e *Element, a Attr) {
	target := a.Value.elemVal
	if target == uuid.Nil {
		em.line(fmt.Sprintf("%s %q %q", quoteKV2(a.Key), "element", ""))
		return
	}
	if em.inlineHere(e.ID(), a.Key, -1, target) {
		child := em.doc.Get(target)
		em.line(fmt.Sprintf("%s %s", quoteKV2(a.Key), quoteKV2(child.Class())))
		em.literalBody(child, "")
		return
	}
	em.line(fmt.Sprintf("%s %q %q", quoteKV2(a.Key), "element", target.String()))
}

func (em *kv2Emitter) elementArrayAttr(e *Element, a Attr) {
	em.line(fmt.Sprintf("%s %q", quoteKV2(a.Key), "element_array"))
	em.open('[')
	last := len(a.Value.elemArr) - 1
	for i, target := range a.Value.elemArr {
		comma := ","
		if i == last {
			comma = ""
		}
		switch {
		case target == uuid.Nil:
			em.line(fmt.Sprintf("%q %q%s", "element", "", comma))
		case em.inlineHere(e.ID(), a.Key, i, target):
			child := em.doc.Get(target)
			em.line(quoteKV2(child.Class()))
			em.literalBody(child, comma)
		default:
			em.line(fmt.Sprintf("%q %q%s", "element", target.String(), comma))
		}
	}
	em.close(']', "")
}

func (em *kv2Emitter) scalarArray(v *Value) {
	em.open('[')
	n := v.ArrayLen()
	for i := 0; i < n; i++ {
		comma := ","
		if i == n-1 {
			comma = ""
		}
		em.line(quoteKV2(arrayItemPayload(v, i)) + comma)
	}
	em.close(']', "")
}

// ============================================================
// Payload formatting
// ============================================================

func formatF32(f float32) string {
	return strconv.FormatFloat(float64(f), 'g', -1, 32)
}

func formatColor(c Color) string {
	return fmt.Sprintf("%d %d %d %d", c.R, c.G, c.B, c.A)
}

func formatVector2(v Vector2) string {
	return formatF32(v.X) + " " + formatF32(v.Y)
}

func formatVector3(v Vector3) string {
	return formatF32(v.X) + " " + formatF32(v.Y) + " " + formatF32(v.Z)
}

func formatVector4(v Vector4) string {
	return formatF32(v.X) + " " + formatF32(v.Y) + " " + formatF32(v.Z) + " " + formatF32(v.W)
}

func formatQAngle(a QAngle) string {
	return formatF32(a.Pitch) + " " + formatF32(a.Yaw) + " " + formatF32(a.Roll)
}

func formatQuaternion(q Quaternion) string {
	return formatF32(q.X) + " " + formatF32(q.Y) + " " + formatF32(q.Z) + " " + formatF32(q.W)
}

func formatMatrix(m Matrix) string {
	parts := make([]string, len(m))
	for i, f := range m {
		parts[i] = formatF32(f)
	}
	return strings.Join(parts, " ")
}

// formatTime prints seconds; the value is already tick-aligned, so the
// shortest float64 representation round-trips the tick count exactly.
func formatTime(v *Value, i int) string {
	d := v.timeVal
	if i >= 0 {
		d = v.timeArr[i]
	}
	return strconv.FormatFloat(float64(d/timeTick)/10000, 'g', -1, 64)
}

func scalarPayload(v *Value) string {
	switch v.typ {
	case TypeInt:
		return strconv.FormatInt(int64(v.intVal), 10)
	case TypeFloat:
		return formatF32(v.floatVal)
	case TypeBool:
		if v.boolVal {
			return "1"
		}
		return "0"
	case TypeString:
		return v.strVal
	case TypeBinary:
		return hex.EncodeToString(v.binVal)
	case TypeTime:
		return formatTime(v, -1)
	case TypeColor:
		return formatColor(v.colorVal)
	case TypeVector2:
		return formatVector2(v.vec2Val)
	case TypeVector3:
		return formatVector3(v.vec3Val)
	case TypeVector4:
		return formatVector4(v.vec4Val)
	case TypeQAngle:
		return formatQAngle(v.angVal)
	case TypeQuaternion:
		return formatQuaternion(v.quatVal)
	case TypeMatrix:
		return formatMatrix(v.matVal)
	default:
		return ""
	}
}

func arrayItemPayload(v *Value, i int) string {
	switch v.typ {
	case TypeIntArray:
		return strconv.FormatInt(int64(v.intArr[i]), 10)
	case TypeFloatArray:
		return formatF32(v.floatArr[i])
	case TypeBoolArray:
		if v.boolArr[i] {
			return "1"
		}
		return "0"
	case TypeStringArray:
		return v.strArr[i]
	case TypeBinaryArray:
		return hex.EncodeToString(v.binArr[i])
	case TypeTimeArray:
		return formatTime(v, i)
	case TypeColorArray:
		return formatColor(v.colorArr[i])
	case TypeVector2Array:
		return formatVector2(v.vec2Arr[i])
	case TypeVector3Array:
		return formatVector3(v.vec3Arr[i])
	case TypeVector4Array:
		return formatVector4(v.vec4Arr[i])
	case TypeQAngleArray:
		return formatQAngle(v.angArr[i])
	case TypeQuaternionArray:
		return formatQuaternion(v.quatArr[i])
	case TypeMatrixArray:
		return formatMatrix(v.matArr[i])
	default:
		return ""
	}
}

// quoteKV2 wraps s in double quotes with the format's escapes.
func quoteKV2(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch ch := s[i]; ch {
		case '\\':
			sb.WriteString(`\\`)
		case '"':
			sb.WriteString(`\"`)
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			sb.WriteByte(ch)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}
