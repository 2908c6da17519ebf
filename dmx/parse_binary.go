package dmx

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// maxArrayLen caps declared array and table lengths. A count above this
// cannot come from a well-formed file and would otherwise let a few
// corrupt bytes drive allocation.
const maxArrayLen = 1 << 27

// binaryReader decodes the little-endian binary body. The version
// selects string pooling: version 1 inlines every string NUL-terminated,
// versions 2-5 reference a front-loaded pool by u32 index.
type binaryReader struct {
	r       *bufio.Reader
	version int
	pool    []string
}

func (br *binaryReader) u8() (byte, error) {
	b, err := br.r.ReadByte()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	return b, nil
}

func (br *binaryReader) bytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(br.r, buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	return buf, nil
}

func (br *binaryReader) u32() (uint32, error) {
	buf, err := br.bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf), nil
}

func (br *binaryReader) i32() (int32, error) {
	v, err := br.u32()
	return int32(v), err
}

func (br *binaryReader) f32() (float32, error) {
	v, err := br.u32()
	return math.Float32frombits(v), err
}

// cstring reads a NUL-terminated UTF-8 string.
func (br *binaryReader) cstring() (string, error) {
	buf, err := br.r.ReadBytes(0)
	if err != nil {
		return "", fmt.Errorf("%w: unterminated string", ErrTruncated)
	}
	buf = buf[:len(buf)-1]
	if !utf8.Valid(buf) {
		return "", fmt.Errorf("%w: invalid UTF-8", ErrBadString)
	}
	return string(buf), nil
}

func (br *binaryReader) uuid() (uuid.UUID, error) {
	buf, err := br.bytes(16)
	if err != nil {
		return uuid.Nil, err
	}
	return uuidFromBytesLE(buf), nil
}

// count reads a u32 length and rejects implausible values.
func (br *binaryReader) count() (int, error) {
	n, err := br.u32()
	if err != nil {
		return 0, err
	}
	if n > maxArrayLen {
		return 0, fmt.Errorf("%w: declared length %d", ErrInvalidArray, n)
	}
	return int(n), nil
}

// getString resolves a string reference: a pool index at version >= 2,
// an inline NUL-terminated string at version 1.
func (br *binaryReader) getString() (string, error) {
	if br.version < 2 {
		return br.cstring()
	}
	idx, err := br.u32()
	if err != nil {
		return "", err
	}
	if int(idx) >= len(br.pool) {
		return "", fmt.Errorf("%w: pool index %d out of range (pool size %d)", ErrBadString, idx, len(br.pool))
	}
	return br.pool[idx], nil
}

func (br *binaryReader) readPool() error {
	if br.version < 2 {
		return nil
	}
	n, err := br.count()
	if err != nil {
		return err
	}
	br.pool = make([]string, 0, n)
	for i := 0; i < n; i++ {
		s, err := br.cstring()
		if err != nil {
			return err
		}
		br.pool = append(br.pool, s)
	}
	return nil
}

// readPrefixStrings consumes the version-5 prefix-string block. The
// strings are format-level headers some DMX consumers place before the
// pool; this package reads past them.
func (br *binaryReader) readPrefixStrings() error {
	if br.version < 5 {
		return nil
	}
	n, err := br.count()
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if _, err := br.cstring(); err != nil {
			return err
		}
	}
	return nil
}

func decodeBinary(r *bufio.Reader, h *Header) (*Document, error) {
	br := &binaryReader{r: r, version: h.EncodingVersion}

	if err := br.readPrefixStrings(); err != nil {
		return nil, err
	}
	if err := br.readPool(); err != nil {
		return nil, err
	}

	dirCount, err := br.count()
	if err != nil {
		return nil, err
	}
	if dirCount == 0 {
		return nil, fmt.Errorf("%w: empty element directory", ErrSyntax)
	}

	// Pass 1: materialize every element from the directory so that
	// forward and cyclic references resolve in pass 2.
	dir := make([]*Element, 0, dirCount)
	seen := make(map[uuid.UUID]bool, dirCount)
	for i := 0; i < dirCount; i++ {
		class, err := br.getString()
		if err != nil {
			return nil, err
		}
		name, err := br.getString()
		if err != nil {
			return nil, err
		}
		id, err := br.uuid()
		if err != nil {
			return nil, err
		}
		if seen[id] {
			return nil, fmt.Errorf("%w: duplicate element id %s", ErrSyntax, id)
		}
		seen[id] = true
		dir = append(dir, NewElementWithID(name, class, id))
	}

	// Pass 2: attribute bodies in directory order.
	for _, e := range dir {
		attrCount, err := br.count()
		if err != nil {
			return nil, err
		}
		for i := 0; i < attrCount; i++ {
			key, err := br.getString()
			if err != nil {
				return nil, err
			}
			tag, err := br.u8()
			if err != nil {
				return nil, err
			}
			v, err := br.readValue(AttrType(tag), dir)
			if err != nil {
				return nil, err
			}
			e.Set(key, v)
		}
	}

	doc := NewDocument(dir[0])
	for _, e := range dir[1:] {
		doc.Insert(e)
	}
	return doc, nil
}

// elementRef resolves a signed directory index into a target UUID.
func (br *binaryReader) elementRef(dir []*Element) (uuid.UUID, error) {
	idx, err := br.i32()
	if err != nil {
		return uuid.Nil, err
	}
	switch {
	case idx == -1:
		return uuid.Nil, nil
	case idx == -2:
		return uuid.Nil, ErrExternalReference
	case idx < 0 || int(idx) >= len(dir):
		return uuid.Nil, fmt.Errorf("%w: element index %d out of range", ErrDanglingReference, idx)
	}
	return dir[idx].ID(), nil
}

// asArrayErr reclassifies truncation inside a length-prefixed array as
// an inconsistent declared length.
func asArrayErr(err error) error {
	if errors.Is(err, ErrTruncated) {
		return fmt.Errorf("%w: %v", ErrInvalidArray, err)
	}
	return err
}

func (br *binaryReader) readValue(t AttrType, dir []*Element) (*Value, error) {
	switch t {
	case TypeElement:
		id, err := br.elementRef(dir)
		if err != nil {
			return nil, err
		}
		return ElementValue(id), nil

	case TypeInt:
		v, err := br.i32()
		if err != nil {
			return nil, err
		}
		return Int(v), nil

	case TypeFloat:
		v, err := br.f32()
		if err != nil {
			return nil, err
		}
		return Float(v), nil

	case TypeBool:
		b, err := br.u8()
		if err != nil {
			return nil, err
		}
		return Bool(b != 0), nil

	case TypeString:
		s, err := br.getString()
		if err != nil {
			return nil, err
		}
		return Str(s), nil

	case TypeBinary:
		n, err := br.count()
		if err != nil {
			return nil, err
		}
		buf, err := br.bytes(n)
		if err != nil {
			return nil, asArrayErr(err)
		}
		return Binary(buf), nil

	case TypeTime:
		ticks, err := br.i32()
		if err != nil {
			return nil, err
		}
		return Time(time.Duration(ticks) * timeTick), nil

	case TypeColor:
		buf, err := br.bytes(4)
		if err != nil {
			return nil, err
		}
		return ColorValue(Color{R: buf[0], G: buf[1], B: buf[2], A: buf[3]}), nil

	case TypeVector2:
		v, err := br.readVector2()
		if err != nil {
			return nil, err
		}
		return Vector2Value(v), nil

	case TypeVector3:
		v, err := br.readVector3()
		if err != nil {
			return nil, err
		}
		return Vector3Value(v), nil

	case TypeVector4:
		v, err := br.readVector4()
		if err != nil {
			return nil, err
		}
		return Vector4Value(v), nil

	case TypeQAngle:
		v, err := br.readVector3()
		if err != nil {
			return nil, err
		}
		return QAngleValue(QAngle{Pitch: v.X, Yaw: v.Y, Roll: v.Z}), nil

	case TypeQuaternion:
		v, err := br.readVector4()
		if err != nil {
			return nil, err
		}
		return QuaternionValue(Quaternion{X: v.X, Y: v.Y, Z: v.Z, W: v.W}), nil

	case TypeMatrix:
		m, err := br.readMatrix()
		if err != nil {
			return nil, err
		}
		return MatrixValue(m), nil
	}

	if t.IsArray() {
		return br.readArray(t, dir)
	}
	return nil, fmt.Errorf("%w: tag %d", ErrUnknownType, uint8(t))
}

func (br *binaryReader) readArray(t AttrType, dir []*Element) (*Value, error) {
	n, err := br.count()
	if err != nil {
		return nil, err
	}

	switch t {
	case TypeElementArray:
		out := make([]uuid.UUID, 0, n)
		for i := 0; i < n; i++ {
			id, err := br.elementRef(dir)
			if err != nil {
				return nil, asArrayErr(err)
			}
			out = append(out, id)
		}
		return ElementArray(out), nil

	case TypeIntArray:
		out := make([]int32, 0, n)
		for i := 0; i < n; i++ {
			v, err := br.i32()
			if err != nil {
				return nil, asArrayErr(err)
			}
			out = append(out, v)
		}
		return IntArray(out), nil

	case TypeFloatArray:
		out := make([]float32, 0, n)
		for i := 0; i < n; i++ {
			v, err := br.f32()
			if err != nil {
				return nil, asArrayErr(err)
			}
			out = append(out, v)
		}
		return FloatArray(out), nil

	case TypeBoolArray:
		buf, err := br.bytes(n)
		if err != nil {
			return nil, asArrayErr(err)
		}
		out := make([]bool, n)
		for i, b := range buf {
			out[i] = b != 0
		}
		return BoolArray(out), nil

	case TypeStringArray:
		out := make([]string, 0, n)
		for i := 0; i < n; i++ {
			s, err := br.getString()
			if err != nil {
				return nil, asArrayErr(err)
			}
			out = append(out, s)
		}
		return StrArray(out), nil

	case TypeBinaryArray:
		out := make([][]byte, 0, n)
		for i := 0; i < n; i++ {
			itemLen, err := br.count()
			if err != nil {
				return nil, asArrayErr(err)
			}
			buf, err := br.bytes(itemLen)
			if err != nil {
				return nil, asArrayErr(err)
			}
			out = append(out, buf)
		}
		return BinaryArray(out), nil

	case TypeTimeArray:
		out := make([]time.Duration, 0, n)
		for i := 0; i < n; i++ {
			ticks, err := br.i32()
			if err != nil {
				return nil, asArrayErr(err)
			}
			out = append(out, time.Duration(ticks)*timeTick)
		}
		return TimeArray(out), nil

	case TypeColorArray:
		out := make([]Color, 0, n)
		for i := 0; i < n; i++ {
			buf, err := br.bytes(4)
			if err != nil {
				return nil, asArrayErr(err)
			}
			out = append(out, Color{R: buf[0], G: buf[1], B: buf[2], A: buf[3]})
		}
		return ColorArray(out), nil

	case TypeVector2Array:
		out := make([]Vector2, 0, n)
		for i := 0; i < n; i++ {
			v, err := br.readVector2()
			if err != nil {
				return nil, asArrayErr(err)
			}
			out = append(out, v)
		}
		return Vector2Array(out), nil

	case TypeVector3Array:
		out := make([]Vector3, 0, n)
		for i := 0; i < n; i++ {
			v, err := br.readVector3()
			if err != nil {
				return nil, asArrayErr(err)
			}
			out = append(out, v)
		}
		return Vector3Array(out), nil

	case TypeVector4Array:
		out := make([]Vector4, 0, n)
		for i := 0; i < n; i++ {
			v, err := br.readVector4()
			if err != nil {
				return nil, asArrayErr(err)
			}
			out = append(out, v)
		}
		return Vector4Array(out), nil

	case TypeQAngleArray:
		out := make([]QAngle, 0, n)
		for i := 0; i < n; i++ {
			v, err := br.readVector3()
			if err != nil {
				return nil, asArrayErr(err)
			}
			out = append(out, QAngle{Pitch: v.X, Yaw: v.Y, Roll: v.Z})
		}
		return QAngleArray(out), nil

	case TypeQuaternionArray:
		out := make([]Quaternion, 0, n)
		for i := 0; i < n; i++ {
			v, err := br.readVector4()
			if err != nil {
				return nil, asArrayErr(err)
			}
			out = append(out, Quaternion{X: v.X, Y: v.Y, Z: v.Z, W: v.W})
		}
		return QuaternionArray(out), nil

	case TypeMatrixArray:
		out := make([]Matrix, 0, n)
		for i := 0; i < n; i++ {
			m, err := br.readMatrix()
			if err != nil {
				return nil, asArrayErr(err)
			}
			out = append(out, m)
		}
		return MatrixArray(out), nil
	}

	return nil, fmt.Errorf("%w: tag %d", ErrUnknownType, uint8(t))
}

func (br *binaryReader) readVector2() (Vector2, error) {
	var v Vector2
	var err error
	if v.X, err = br.f32(); err != nil {
		return v, err
	}
	v.Y, err = br.f32()
	return v, err
}

func (br *binaryReader) readVector3() (Vector3, error) {
	var v Vector3
	var err error
	if v.X, err = br.f32(); err != nil {
		return v, err
	}
	if v.Y, err = br.f32(); err != nil {
		return v, err
	}
	v.Z, err = br.f32()
	return v, err
}

func (br *binaryReader) readVector4() (Vector4, error) {
	var v Vector4
	var err error
	if v.X, err = br.f32(); err != nil {
		return v, err
	}
	if v.Y, err = br.f32(); err != nil {
		return v, err
	}
	if v.Z, err = br.f32(); err != nil {
		return v, err
	}
	v.W, err = br.f32()
	return v, err
}

func (br *binaryReader) readMatrix() (Matrix, error) {
	var m Matrix
	for i := range m {
		f, err := br.f32()
		if err != nil {
			return m, err
		}
		m[i] = f
	}
	return m, nil
}

// DMX stores UUIDs in GUID mixed-endian layout: the first three groups
// byte-swapped, the last eight bytes as-is.
func uuidBytesLE(id uuid.UUID) [16]byte {
	var b [16]byte
	b[0], b[1], b[2], b[3] = id[3], id[2], id[1], id[0]
	b[4], b[5] = id[5], id[4]
	b[6], b[7] = id[7], id[6]
	copy(b[8:], id[8:])
	return b
}

func uuidFromBytesLE(buf []byte) uuid.UUID {
	var id uuid.UUID
	id[0], id[1], id[2], id[3] = buf[3], buf[2], buf[1], buf[0]
	id[4], id[5] = buf[5], buf[4]
	id[6], id[7] = buf[7], buf[6]
	copy(id[8:], buf[8:])
	return id
}
