// Package dicom implements the DICOM Part 10 file parser and the binary
// reader/writer primitives shared by the DIMSE layers.
package dicom

import "errors"

// ErrUnexpectedEndOfData indicates the input ended before a complete
// structure could be read: a file shorter than preamble+prefix, or a value
// whose declared length runs past the end of the buffer.
var ErrUnexpectedEndOfData = errors.New("unexpected end of data")

// ErrInvalidDicmPrefix indicates bytes 128..132 are not "DICM".
//
// DICOM Standard Reference:
// https://dicom.nema.org/medical/dicom/current/output/html/part10.html#sect_7.1
var ErrInvalidDicmPrefix = errors.New("invalid DICM prefix")

// ErrUnsupportedTransferSyntax indicates the (0002,0010) UID names an
// encoding this parser does not handle.
var ErrUnsupportedTransferSyntax = errors.New("unsupported transfer syntax")

// ErrMalformedElement indicates a structurally invalid data element: bad VR,
// impossible length, sequence nesting beyond the depth limit, or items
// overrunning their sequence's declared length.
var ErrMalformedElement = errors.New("malformed data element")

// ErrUnsupportedUndefinedLength indicates an undefined length (0xFFFFFFFF)
// on an element that is neither a sequence nor encapsulated pixel data.
//
// DICOM Standard Reference:
// https://dicom.nema.org/medical/dicom/current/output/html/part05.html#sect_7.5
var ErrUnsupportedUndefinedLength = errors.New("undefined length on non-sequence element")
