package dicom

import (
	"encoding/binary"
	"fmt"

	"github.com/pacsforge/dicomnet/dicom/uid"
)

// TransferSyntax describes the encoding of a DICOM dataset.
type TransferSyntax struct {
	UID          string
	ExplicitVR   bool
	ByteOrder    binary.ByteOrder
	Encapsulated bool // pixel data carried as undefined-length fragments
	Deflated     bool // dataset compressed with raw DEFLATE (RFC 1951)
}

// LookupTransferSyntax maps a transfer syntax UID to its encoding
// parameters. Encapsulated (JPEG-family and RLE) syntaxes are recognized so
// their framing can be parsed; fragment contents stay opaque.
func LookupTransferSyntax(tsUID string) (*TransferSyntax, error) {
	switch tsUID {
	case uid.ImplicitVRLittleEndian:
		return &TransferSyntax{UID: tsUID, ExplicitVR: false, ByteOrder: binary.LittleEndian}, nil
	case uid.ExplicitVRLittleEndian:
		return &TransferSyntax{UID: tsUID, ExplicitVR: true, ByteOrder: binary.LittleEndian}, nil
	case uid.ExplicitVRBigEndian:
		return &TransferSyntax{UID: tsUID, ExplicitVR: true, ByteOrder: binary.BigEndian}, nil
	case uid.DeflatedExplicitVRLittle:
		return &TransferSyntax{UID: tsUID, ExplicitVR: true, ByteOrder: binary.LittleEndian, Deflated: true}, nil
	}
	if uid.IsEncapsulated(tsUID) {
		return &TransferSyntax{UID: tsUID, ExplicitVR: true, ByteOrder: binary.LittleEndian, Encapsulated: true}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedTransferSyntax, tsUID)
}
