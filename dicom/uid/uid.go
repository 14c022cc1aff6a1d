// Package uid defines the DICOM unique identifiers used by this module:
// transfer syntaxes, SOP classes, and the implementation identity advertised
// during association negotiation.
//
// See DICOM Part 6, Annex A:
// https://dicom.nema.org/medical/dicom/current/output/html/part06.html#chapter_A
package uid

import "strings"

// ApplicationContextName is the single application context defined by the
// DICOM standard (Part 7, Annex A.2.1).
const ApplicationContextName = "1.2.840.10008.3.1.1.1"

// Implementation identity advertised in the User Information item.
const (
	ImplementationClassUID    = "1.2.826.0.1.3680043.10.1462.1"
	ImplementationVersionName = "DICOMNET_1.0"
)

// MaxLength is the maximum byte length of a UID per DICOM Part 5.
const MaxLength = 64

// IsValid reports whether s is a syntactically valid UID: non-empty, at most
// 64 bytes, dot-separated numeric components with no leading '+'/'-' signs.
// Components may not be empty; multi-digit components may not start with '0'.
func IsValid(s string) bool {
	if s == "" || len(s) > MaxLength {
		return false
	}
	for _, comp := range strings.Split(s, ".") {
		if comp == "" {
			return false
		}
		if len(comp) > 1 && comp[0] == '0' {
			return false
		}
		for _, c := range comp {
			if c < '0' || c > '9' {
				return false
			}
		}
	}
	return true
}

// Trim removes the trailing null padding DICOM uses to even out UID values.
func Trim(s string) string {
	return strings.TrimRight(s, "\x00")
}
