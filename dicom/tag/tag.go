// Package tag defines DICOM element tags and the compact data dictionary
// used for Implicit VR lookup.
//
// A Tag identifies a data element as a (group, element) pair. Tags are
// ordered first by group, then by element.
//
// See DICOM Part 5, Section 7.1:
// https://dicom.nema.org/medical/dicom/current/output/html/part05.html#sect_7.1
package tag

import (
	"fmt"
	"strings"

	"github.com/pacsforge/dicomnet/dicom/vr"
)

// MetadataGroup is the group number of File Meta Information elements.
const MetadataGroup = 0x0002

// CommandGroup is the group number of DIMSE command set elements.
const CommandGroup = 0x0000

// Tag represents a DICOM element tag as a (group, element) pair.
type Tag struct {
	Group   uint16
	Element uint16
}

// Reserved tags defined by DICOM Part 5, Section 7.5.
var (
	// Item introduces one item of a sequence or one encapsulated fragment.
	Item = Tag{0xFFFE, 0xE000}
	// ItemDelimitation terminates an undefined-length item.
	ItemDelimitation = Tag{0xFFFE, 0xE00D}
	// SequenceDelimitation terminates an undefined-length sequence or
	// encapsulated pixel data.
	SequenceDelimitation = Tag{0xFFFE, 0xE0DD}
	// PixelData is the pixel data element (7FE0,0010).
	PixelData = Tag{0x7FE0, 0x0010}
	// TransferSyntaxUID is the File Meta element (0002,0010).
	TransferSyntaxUID = Tag{0x0002, 0x0010}
	// FileMetaGroupLength is the File Meta element (0002,0000).
	FileMetaGroupLength = Tag{0x0002, 0x0000}
	// CommandGroupLength is the command set element (0000,0000).
	CommandGroupLength = Tag{0x0000, 0x0000}
)

// New creates a Tag with the given group and element numbers.
func New(group, element uint16) Tag {
	return Tag{Group: group, Element: element}
}

// Equals returns true if this tag equals the provided tag.
func (t Tag) Equals(other Tag) bool {
	return t.Group == other.Group && t.Element == other.Element
}

// Compare returns -1, 0, or 1 if t < other, t == other, or t > other.
// Tags are ordered first by group, then by element.
func (t Tag) Compare(other Tag) int {
	switch {
	case t.Uint32() < other.Uint32():
		return -1
	case t.Uint32() > other.Uint32():
		return 1
	default:
		return 0
	}
}

// String formats the tag as "(GGGG,EEEE)" in uppercase hexadecimal.
func (t Tag) String() string {
	return fmt.Sprintf("(%04X,%04X)", t.Group, t.Element)
}

// Uint32 packs the tag into a uint32 with the group in the upper 16 bits.
func (t Tag) Uint32() uint32 {
	return uint32(t.Group)<<16 | uint32(t.Element)
}

// IsPrivate returns true for private elements (odd group number).
func (t Tag) IsPrivate() bool {
	return t.Group%2 == 1
}

// IsMetaElement returns true for File Meta Information elements (group 0002).
func (t Tag) IsMetaElement() bool {
	return t.Group == MetadataGroup
}

// IsCommandElement returns true for DIMSE command set elements (group 0000).
func (t Tag) IsCommandElement() bool {
	return t.Group == CommandGroup
}

// IsDelimiter returns true for the Item, Item Delimitation, and Sequence
// Delimitation tags.
func (t Tag) IsDelimiter() bool {
	return t.Group == 0xFFFE
}

// Parse parses a tag string in the format "(GGGG,EEEE)" or "GGGG,EEEE".
func Parse(s string) (Tag, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "(")
	s = strings.TrimSuffix(s, ")")

	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return Tag{}, fmt.Errorf("invalid tag format: %q, expected (GGGG,EEEE)", s)
	}

	var group, element uint16
	if _, err := fmt.Sscanf(strings.TrimSpace(parts[0]), "%x", &group); err != nil {
		return Tag{}, fmt.Errorf("invalid group number: %w", err)
	}
	if _, err := fmt.Sscanf(strings.TrimSpace(parts[1]), "%x", &element); err != nil {
		return Tag{}, fmt.Errorf("invalid element number: %w", err)
	}

	return New(group, element), nil
}

// Info stores the data dictionary entry for a tag.
type Info struct {
	Tag Tag
	// VRs lists the possible encodings for this tag; at least one entry.
	VRs []vr.VR
	// Name is the human-readable name, e.g. "Pixel Data".
	Name string
	// Keyword is the identifier form, e.g. "PixelData".
	Keyword string
	// VM is the value multiplicity, e.g. "1" or "1-n".
	VM string
	// Retired marks tags retired by the standard.
	Retired bool
}

// Find returns the dictionary entry for the given tag.
//
// For even-numbered groups with element 0x0000 not present in the dictionary
// a GenericGroupLength entry is synthesized, per the standard convention that
// (gggg,0000) carries the group length.
func Find(t Tag) (Info, error) {
	if info, ok := dict[t]; ok {
		return info, nil
	}
	if t.Group%2 == 0 && t.Element == 0x0000 {
		return Info{
			Tag:     t,
			VRs:     []vr.VR{vr.UnsignedLong},
			Name:    "Generic Group Length",
			Keyword: "GenericGroupLength",
			VM:      "1",
		}, nil
	}
	return Info{}, fmt.Errorf("tag %s not found in dictionary", t)
}

// FindByKeyword searches the dictionary by keyword or name.
func FindByKeyword(keyword string) (Info, error) {
	if keyword == "" {
		return Info{}, fmt.Errorf("keyword cannot be empty")
	}
	for _, info := range dict {
		if info.Keyword == keyword || info.Name == keyword {
			return info, nil
		}
	}
	return Info{}, fmt.Errorf("tag with keyword %q not found in dictionary", keyword)
}

// MustFind is like Find but panics for unknown tags. Use only for tags
// guaranteed to be in the dictionary.
func MustFind(t Tag) Info {
	info, err := Find(t)
	if err != nil {
		panic(fmt.Sprintf("tag %s not found: %v", t, err))
	}
	return info
}
