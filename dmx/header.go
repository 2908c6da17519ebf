package dmx

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
)

// Encoding names accepted in the header line.
const (
	EncodingBinary         = "binary"
	EncodingKeyValues2     = "keyvalues2"
	EncodingKeyValues2Flat = "keyvalues2_flat"
)

// maxHeaderLen bounds the header scan so a binary garbage file cannot
// make the reader chew through megabytes looking for a newline.
const maxHeaderLen = 168

// Header is the one-line file preamble declaring the encoding family,
// encoding version, format family, and format version.
type Header struct {
	Encoding        string
	EncodingVersion int
	Format          string
	FormatVersion   int
}

// String returns the canonical header line, without the trailing newline:
//
//	<!-- dmx encoding <name> <ver> format <fname> <fver> -->
func (h *Header) String() string {
	return fmt.Sprintf("<!-- dmx encoding %s %d format %s %d -->",
		h.Encoding, h.EncodingVersion, h.Format, h.FormatVersion)
}

// ParseHeader extracts the four header fields by fixed token position.
// Legacy "<!-- DMXVersion binary_vN -->" preambles are accepted and
// normalized to a modern header with format "dmx" 1.
func ParseHeader(line string) (*Header, error) {
	tokens := strings.Fields(strings.TrimSpace(line))

	if len(tokens) == 4 && tokens[0] == "<!--" && tokens[1] == "DMXVersion" && tokens[3] == "-->" {
		return parseLegacyHeader(tokens[2])
	}

	if len(tokens) != 9 ||
		tokens[0] != "<!--" || tokens[1] != "dmx" || tokens[2] != "encoding" ||
		tokens[5] != "format" || tokens[8] != "-->" {
		return nil, fmt.Errorf("%w: %q", ErrBadHeader, line)
	}

	encVer, err := strconv.Atoi(tokens[4])
	if err != nil || encVer < 1 {
		return nil, fmt.Errorf("%w: encoding version %q", ErrBadHeader, tokens[4])
	}
	fmtVer, err := strconv.Atoi(tokens[7])
	if err != nil || fmtVer < 1 {
		return nil, fmt.Errorf("%w: format version %q", ErrBadHeader, tokens[7])
	}

	return &Header{
		Encoding:        tokens[3],
		EncodingVersion: encVer,
		Format:          tokens[6],
		FormatVersion:   fmtVer,
	}, nil
}

func parseLegacyHeader(name string) (*Header, error) {
	var version int
	switch name {
	case "binary_v1":
		version = 1
	case "binary_v2":
		version = 2
	default:
		return nil, fmt.Errorf("%w: legacy encoding %q", ErrUnsupportedEncoding, name)
	}
	return &Header{
		Encoding:        EncodingBinary,
		EncodingVersion: version,
		Format:          "dmx",
		FormatVersion:   1,
	}, nil
}

// checkSupported rejects encoding names and versions this package does
// not implement.
func (h *Header) checkSupported() error {
	switch h.Encoding {
	case EncodingBinary:
		if h.EncodingVersion < 1 || h.EncodingVersion > 5 {
			return fmt.Errorf("%w: binary version %d", ErrUnsupportedEncoding, h.EncodingVersion)
		}
	case EncodingKeyValues2, EncodingKeyValues2Flat:
		if h.EncodingVersion != 1 {
			return fmt.Errorf("%w: %s version %d", ErrUnsupportedEncoding, h.Encoding, h.EncodingVersion)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedEncoding, h.Encoding)
	}
	return nil
}

// readHeaderLine consumes bytes up to and including the first '\n' and
// returns the line without the terminator.
func readHeaderLine(r *bufio.Reader) (string, error) {
	var sb strings.Builder
	for sb.Len() <= maxHeaderLen {
		b, err := r.ReadByte()
		if err != nil {
			return "", fmt.Errorf("%w: missing newline", ErrBadHeader)
		}
		if b == '\n' {
			return sb.String(), nil
		}
		sb.WriteByte(b)
	}
	return "", fmt.Errorf("%w: header longer than %d bytes", ErrBadHeader, maxHeaderLen)
}
