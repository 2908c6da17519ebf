package dmx

import (
	"bufio"
	"io"
)

// Serialize encodes doc to w using the encoding selected by h. The
// output is a pure function of (doc, h): encoding the same graph with
// the same header produces byte-identical output across runs.
func Serialize(w io.Writer, doc *Document, h *Header) error {
	if err := h.checkSupported(); err != nil {
		return err
	}
	switch h.Encoding {
	case EncodingBinary:
		return encodeBinary(w, doc, h)
	case EncodingKeyValues2:
		return encodeKeyValues2(w, doc, h, false)
	default:
		return encodeKeyValues2(w, doc, h, true)
	}
}

// Deserialize reads a complete DMX document from r. The header line
// selects the body decoder. On failure no document is returned.
func Deserialize(r io.Reader) (*Header, *Document, error) {
	br := bufio.NewReader(r)
	line, err := readHeaderLine(br)
	if err != nil {
		return nil, nil, err
	}
	h, err := ParseHeader(line)
	if err != nil {
		return nil, nil, err
	}
	if err := h.checkSupported(); err != nil {
		return nil, nil, err
	}

	var doc *Document
	switch h.Encoding {
	case EncodingBinary:
		doc, err = decodeBinary(br, h)
	default:
		doc, err = decodeKeyValues2(br)
	}
	if err != nil {
		return nil, nil, err
	}
	return h, doc, nil
}
