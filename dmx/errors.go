package dmx

import "errors"

// Codec errors. Every decode, encode, and header error wraps one of these
// sentinels, so callers can branch with errors.Is. Failures of the
// underlying reader or writer wrap that I/O error instead, and the typed
// accessors on Value return plain errors. All errors are terminal for the
// operation; no partially-constructed document is ever returned alongside
// one.
var (
	// ErrBadHeader reports a malformed header line.
	ErrBadHeader = errors.New("dmx: bad header")

	// ErrUnsupportedEncoding reports an unknown encoding name or a
	// version outside the supported range.
	ErrUnsupportedEncoding = errors.New("dmx: unsupported encoding")

	// ErrTruncated reports input that ended in the middle of a record.
	ErrTruncated = errors.New("dmx: truncated input")

	// ErrUnknownType reports an unrecognized binary type tag or text
	// type keyword.
	ErrUnknownType = errors.New("dmx: unknown attribute type")

	// ErrBadString reports invalid UTF-8 in a binary string, an
	// unterminated or badly escaped keyvalues2 string, or a string-pool
	// index out of range. A binary string whose NUL terminator is cut off
	// by the end of input reports ErrTruncated.
	ErrBadString = errors.New("dmx: bad string")

	// ErrBadUUID reports a text UUID that is not in 36-character
	// canonical form. A binary UUID cut short by the end of input reports
	// ErrTruncated.
	ErrBadUUID = errors.New("dmx: bad uuid")

	// ErrDanglingReference reports an element reference whose target is
	// not part of the document.
	ErrDanglingReference = errors.New("dmx: dangling element reference")

	// ErrExternalReference reports the binary encoding's -2 "external
	// element" sentinel, which this package does not support.
	ErrExternalReference = errors.New("dmx: external element reference")

	// ErrInvalidArray reports an array whose declared length is
	// inconsistent with the remaining input.
	ErrInvalidArray = errors.New("dmx: invalid array length")

	// ErrSyntax reports a structural error in a keyvalues2 body or a
	// document with no elements.
	ErrSyntax = errors.New("dmx: syntax error")
)
