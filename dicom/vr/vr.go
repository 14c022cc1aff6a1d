// Package vr defines DICOM Value Representations (VRs) and their encoding
// properties.
//
// A VR is the two-character code that governs how a data element's value
// bytes are interpreted, padded, and length-encoded.
//
// See DICOM Part 5, Section 6.2:
// https://dicom.nema.org/medical/dicom/current/output/html/part05.html#sect_6.2
package vr

import "fmt"

// VR is a DICOM Value Representation, stored as its two-character code.
type VR string

// Standard DICOM Value Representations as defined in Part 5, Section 6.2.
const (
	ApplicationEntity           VR = "AE"
	AgeString                   VR = "AS"
	AttributeTag                VR = "AT"
	CodeString                  VR = "CS"
	Date                        VR = "DA"
	DecimalString               VR = "DS"
	DateTime                    VR = "DT"
	FloatingPointSingle         VR = "FL"
	FloatingPointDouble         VR = "FD"
	IntegerString               VR = "IS"
	LongString                  VR = "LO"
	LongText                    VR = "LT"
	OtherByte                   VR = "OB"
	OtherDouble                 VR = "OD"
	OtherFloat                  VR = "OF"
	OtherLong                   VR = "OL"
	OtherVeryLong               VR = "OV"
	OtherWord                   VR = "OW"
	PersonName                  VR = "PN"
	ShortString                 VR = "SH"
	SignedLong                  VR = "SL"
	SequenceOfItems             VR = "SQ"
	SignedShort                 VR = "SS"
	ShortText                   VR = "ST"
	SignedVeryLong              VR = "SV"
	Time                        VR = "TM"
	UnlimitedCharacters         VR = "UC"
	UniqueIdentifier            VR = "UI"
	UnsignedLong                VR = "UL"
	Unknown                     VR = "UN"
	UniversalResourceIdentifier VR = "UR"
	UnsignedShort               VR = "US"
	UnlimitedText               VR = "UT"
	UnsignedVeryLong            VR = "UV"
)

// all is the closed set of recognized VR codes.
var all = map[VR]struct{}{
	ApplicationEntity: {}, AgeString: {}, AttributeTag: {}, CodeString: {},
	Date: {}, DecimalString: {}, DateTime: {}, FloatingPointSingle: {},
	FloatingPointDouble: {}, IntegerString: {}, LongString: {}, LongText: {},
	OtherByte: {}, OtherDouble: {}, OtherFloat: {}, OtherLong: {},
	OtherVeryLong: {}, OtherWord: {}, PersonName: {}, ShortString: {},
	SignedLong: {}, SequenceOfItems: {}, SignedShort: {}, ShortText: {},
	SignedVeryLong: {}, Time: {}, UnlimitedCharacters: {}, UniqueIdentifier: {},
	UnsignedLong: {}, Unknown: {}, UniversalResourceIdentifier: {},
	UnsignedShort: {}, UnlimitedText: {}, UnsignedVeryLong: {},
}

// String returns the two-character code of the VR.
func (v VR) String() string {
	return string(v)
}

// IsValid returns true if the given string is a recognized VR code.
func IsValid(s string) bool {
	_, ok := all[VR(s)]
	return ok
}

// Parse parses a two-character VR code.
func Parse(s string) (VR, error) {
	if IsValid(s) {
		return VR(s), nil
	}
	return "", fmt.Errorf("invalid VR: %q", s)
}

// Uses32BitLength returns true if this VR is encoded with two reserved bytes
// followed by a 32-bit value length in Explicit VR transfer syntaxes, as
// opposed to the standard 16-bit length.
//
// See DICOM Part 5, Section 7.1.2.
func (v VR) Uses32BitLength() bool {
	switch v {
	case OtherByte, OtherDouble, OtherFloat, OtherLong, OtherVeryLong, OtherWord,
		SequenceOfItems, UnlimitedCharacters, Unknown, UniversalResourceIdentifier, UnlimitedText:
		return true
	default:
		return false
	}
}

// PaddingByte returns the byte used to pad odd-length values for this VR.
// String VRs pad with space, UI and binary VRs pad with null.
func (v VR) PaddingByte() byte {
	switch v {
	case UniqueIdentifier, OtherByte, OtherDouble, OtherFloat, OtherLong,
		OtherVeryLong, OtherWord, Unknown:
		return 0x00
	default:
		return ' '
	}
}

// IsString returns true for character-string VRs.
func (v VR) IsString() bool {
	switch v {
	case ApplicationEntity, AgeString, CodeString, Date, DecimalString, DateTime,
		IntegerString, LongString, LongText, PersonName, ShortString, ShortText,
		Time, UnlimitedCharacters, UniqueIdentifier, UniversalResourceIdentifier,
		UnlimitedText:
		return true
	default:
		return false
	}
}

// IsInteger returns true for fixed-width integer VRs (including AT).
func (v VR) IsInteger() bool {
	switch v {
	case SignedShort, UnsignedShort, SignedLong, UnsignedLong,
		SignedVeryLong, UnsignedVeryLong, AttributeTag:
		return true
	default:
		return false
	}
}

// IsFloat returns true for floating-point VRs.
func (v VR) IsFloat() bool {
	return v == FloatingPointSingle || v == FloatingPointDouble
}

// IsBinary returns true for opaque binary VRs.
func (v VR) IsBinary() bool {
	switch v {
	case OtherByte, OtherDouble, OtherFloat, OtherLong, OtherVeryLong, OtherWord, Unknown:
		return true
	default:
		return false
	}
}

// FixedWidth returns the number of bytes per value for fixed-width numeric
// VRs, or 0 for variable-width VRs.
func (v VR) FixedWidth() int {
	switch v {
	case SignedShort, UnsignedShort:
		return 2
	case SignedLong, UnsignedLong, AttributeTag, FloatingPointSingle:
		return 4
	case SignedVeryLong, UnsignedVeryLong, FloatingPointDouble:
		return 8
	default:
		return 0
	}
}
