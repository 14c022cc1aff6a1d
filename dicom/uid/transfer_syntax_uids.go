package uid

// Transfer syntax UIDs (DICOM Part 6, Annex A).
const (
	ImplicitVRLittleEndian   = "1.2.840.10008.1.2"
	ExplicitVRLittleEndian   = "1.2.840.10008.1.2.1"
	ExplicitVRBigEndian      = "1.2.840.10008.1.2.2" // retired
	DeflatedExplicitVRLittle = "1.2.840.10008.1.2.1.99"
	JPEGBaseline8Bit         = "1.2.840.10008.1.2.4.50"
	JPEGExtended12Bit        = "1.2.840.10008.1.2.4.51"
	JPEGLossless             = "1.2.840.10008.1.2.4.57"
	JPEGLosslessSV1          = "1.2.840.10008.1.2.4.70"
	JPEG2000Lossless         = "1.2.840.10008.1.2.4.90"
	JPEG2000                 = "1.2.840.10008.1.2.4.91"
	HTJ2KLossless            = "1.2.840.10008.1.2.4.201"
	HTJ2K                    = "1.2.840.10008.1.2.4.203"
	RLELossless              = "1.2.840.10008.1.2.5"
)

// encapsulated lists the transfer syntaxes whose pixel data is carried as
// undefined-length fragments. Fragment contents stay opaque in this module.
var encapsulated = map[string]struct{}{
	JPEGBaseline8Bit: {}, JPEGExtended12Bit: {}, JPEGLossless: {},
	JPEGLosslessSV1: {}, JPEG2000Lossless: {}, JPEG2000: {},
	HTJ2KLossless: {}, HTJ2K: {}, RLELossless: {},
}

// IsEncapsulated reports whether the transfer syntax carries encapsulated
// (fragmented) pixel data.
func IsEncapsulated(ts string) bool {
	_, ok := encapsulated[ts]
	return ok
}

// StandardTransferSyntaxes lists the uncompressed transfer syntaxes this
// module proposes by default during association negotiation.
var StandardTransferSyntaxes = []string{
	ExplicitVRLittleEndian,
	ImplicitVRLittleEndian,
}
