package dmx

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/google/uuid"
)

// binaryWriter builds the binary body in memory. Pool layout and
// directory order depend only on graph content, so the output is
// byte-deterministic for a fixed (graph, header) pair.
type binaryWriter struct {
	buf     bytes.Buffer
	version int

	poolIndex map[string]uint32
	poolList  []string
}

func (bw *binaryWriter) u8(v byte) {
	bw.buf.WriteByte(v)
}

func (bw *binaryWriter) u32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	bw.buf.Write(b[:])
}

func (bw *binaryWriter) i32(v int32) {
	bw.u32(uint32(v))
}

func (bw *binaryWriter) f32(v float32) {
	bw.u32(math.Float32bits(v))
}

func (bw *binaryWriter) cstring(s string) {
	bw.buf.WriteString(s)
	bw.buf.WriteByte(0)
}

func (bw *binaryWriter) uuid(id uuid.UUID) {
	b := uuidBytesLE(id)
	bw.buf.Write(b[:])
}

// intern records a string in the pool on first sight.
func (bw *binaryWriter) intern(s string) {
	if bw.version < 2 {
		return
	}
	if _, ok := bw.poolIndex[s]; ok {
		return
	}
	bw.poolIndex[s] = uint32(len(bw.poolList))
	bw.poolList = append(bw.poolList, s)
}

// putString writes a string reference: a pool index at version >= 2, an
// inline NUL-terminated string at version 1. Every string written here
// was interned during the gather pass.
func (bw *binaryWriter) putString(s string) {
	if bw.version < 2 {
		bw.cstring(s)
		return
	}
	bw.u32(bw.poolIndex[s])
}

// gatherStrings fills the pool in first-sight order over the directory,
// element by element: class, name, then each attribute's key followed by
// its string payloads.
func (bw *binaryWriter) gatherStrings(order []*Element) {
	for _, e := range order {
		bw.intern(e.Class())
		bw.intern(e.Name())
		for _, a := range e.Attrs() {
			bw.intern(a.Key)
			switch a.Value.Type() {
			case TypeString:
				bw.intern(a.Value.strVal)
			case TypeStringArray:
				for _, s := range a.Value.strArr {
					bw.intern(s)
				}
			}
		}
	}
}

func encodeBinary(w io.Writer, doc *Document, h *Header) error {
	if err := doc.Validate(); err != nil {
		return err
	}

	order := doc.reachable(nil)
	index := make(map[uuid.UUID]int32, len(order))
	for i, e := range order {
		index[e.ID()] = int32(i)
	}

	bw := &binaryWriter{version: h.EncodingVersion, poolIndex: make(map[string]uint32)}

	bw.buf.WriteString(h.String())
	bw.buf.WriteByte('\n')

	if bw.version >= 5 {
		bw.u32(0) // no prefix strings
	}
	if bw.version >= 2 {
		bw.gatherStrings(order)
		bw.u32(uint32(len(bw.poolList)))
		for _, s := range bw.poolList {
			bw.cstring(s)
		}
	}

	bw.u32(uint32(len(order)))
	for _, e := range order {
		bw.putString(e.Class())
		bw.putString(e.Name())
		bw.uuid(e.ID())
	}

	for _, e := range order {
		bw.u32(uint32(e.Len()))
		for _, a := range e.Attrs() {
			bw.putString(a.Key)
			bw.u8(uint8(a.Value.Type()))
			bw.writeValue(a.Value, index)
		}
	}

	if _, err := w.Write(bw.buf.Bytes()); err != nil {
		return fmt.Errorf("dmx: write: %w", err)
	}
	return nil
}

// elementRef writes a directory index, or -1 for the null sentinel.
func (bw *binaryWriter) elementRef(id uuid.UUID, index map[uuid.UUID]int32) {
	if id == uuid.Nil {
		bw.i32(-1)
		return
	}
	bw.i32(index[id])
}

func (bw *binaryWriter) writeValue(v *Value, index map[uuid.UUID]int32) {
	switch v.typ {
	case TypeElement:
		bw.elementRef(v.elemVal, index)
	case TypeInt:
		bw.i32(v.intVal)
	case TypeFloat:
		bw.f32(v.floatVal)
	case TypeBool:
		if v.boolVal {
			bw.u8(1)
		} else {
			bw.u8(0)
		}
	case TypeString:
		bw.putString(v.strVal)
	case TypeBinary:
		bw.u32(uint32(len(v.binVal)))
		bw.buf.Write(v.binVal)
	case TypeTime:
		bw.i32(int32(v.timeVal / timeTick))
	case TypeColor:
		bw.u8(v.colorVal.R)
		bw.u8(v.colorVal.G)
		bw.u8(v.colorVal.B)
		bw.u8(v.colorVal.A)
	case TypeVector2:
		bw.f32(v.vec2Val.X)
		bw.f32(v.vec2Val.Y)
	case TypeVector3:
		bw.f32(v.vec3Val.X)
		bw.f32(v.vec3Val.Y)
		bw.f32(v.vec3Val.Z)
	case TypeVector4:
		bw.f32(v.vec4Val.X)
		bw.f32(v.vec4Val.Y)
		bw.f32(v.vec4Val.Z)
		bw.f32(v.vec4Val.W)
	case TypeQAngle:
		bw.f32(v.angVal.Pitch)
		bw.f32(v.angVal.Yaw)
		bw.f32(v.angVal.Roll)
	case TypeQuaternion:
		bw.f32(v.quatVal.X)
		bw.f32(v.quatVal.Y)
		bw.f32(v.quatVal.Z)
		bw.f32(v.quatVal.W)
	case TypeMatrix:
		for _, f := range v.matVal {
			bw.f32(f)
		}

	case TypeElementArray:
		bw.u32(uint32(len(v.elemArr)))
		for _, id := range v.elemArr {
			bw.elementRef(id, index)
		}
	case TypeIntArray:
		bw.u32(uint32(len(v.intArr)))
		for _, n := range v.intArr {
			bw.i32(n)
		}
	case TypeFloatArray:
		bw.u32(uint32(len(v.floatArr)))
		for _, f := range v.floatArr {
			bw.f32(f)
		}
	case TypeBoolArray:
		bw.u32(uint32(len(v.boolArr)))
		for _, b := range v.boolArr {
			if b {
				bw.u8(1)
			} else {
				bw.u8(0)
			}
		}
	case TypeStringArray:
		bw.u32(uint32(len(v.strArr)))
		for _, s := range v.strArr {
			bw.putString(s)
		}
	case TypeBinaryArray:
		bw.u32(uint32(len(v.binArr)))
		for _, b := range v.binArr {
			bw.u32(uint32(len(b)))
			bw.buf.Write(b)
		}
	case TypeTimeArray:
		bw.u32(uint32(len(v.timeArr)))
		for _, d := range v.timeArr {
			bw.i32(int32(d / timeTick))
		}
	case TypeColorArray:
		bw.u32(uint32(len(v.colorArr)))
		for _, c := range v.colorArr {
			bw.u8(c.R)
			bw.u8(c.G)
			bw.u8(c.B)
			bw.u8(c.A)
		}
	case TypeVector2Array:
		bw.u32(uint32(len(v.vec2Arr)))
		for _, p := range v.vec2Arr {
			bw.f32(p.X)
			bw.f32(p.Y)
		}
	case TypeVector3Array:
		bw.u32(uint32(len(v.vec3Arr)))
		for _, p := range v.vec3Arr {
			bw.f32(p.X)
			bw.f32(p.Y)
			bw.f32(p.Z)
		}
	case TypeVector4Array:
		bw.u32(uint32(len(v.vec4Arr)))
		for _, p := range v.vec4Arr {
			bw.f32(p.X)
			bw.f32(p.Y)
			bw.f32(p.Z)
			bw.f32(p.W)
		}
	case TypeQAngleArray:
		bw.u32(uint32(len(v.angArr)))
		for _, p := range v.angArr {
			bw.f32(p.Pitch)
			bw.f32(p.Yaw)
			bw.f32(p.Roll)
		}
	case TypeQuaternionArray:
		bw.u32(uint32(len(v.quatArr)))
		for _, p := range v.quatArr {
			bw.f32(p.X)
			bw.f32(p.Y)
			bw.f32(p.Z)
			bw.f32(p.W)
		}
	case TypeMatrixArray:
		bw.u32(uint32(len(v.matArr)))
		for _, m := range v.matArr {
			for _, f := range m {
				bw.f32(f)
			}
		}
	}
}
