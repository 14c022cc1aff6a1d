// Package element provides the DICOM data element type.
//
// A data element is a tag, a VR, and a value. Sequence (SQ) elements carry
// ordered items, each an ordered list of nested elements. The encapsulated
// pixel-data element carries compressed fragments and the Basic Offset Table
// instead of a plain value.
//
// DICOM Standard Reference:
// https://dicom.nema.org/medical/dicom/current/output/html/part05.html#sect_7.1
package element

import (
	"fmt"
	"strings"

	"github.com/pacsforge/dicomnet/dicom/tag"
	"github.com/pacsforge/dicomnet/dicom/value"
	"github.com/pacsforge/dicomnet/dicom/vr"
)

// Element represents a DICOM data element.
//
// At most one of the sequence items and the pixel fragments is populated:
// items only for VR SQ, fragments only for the (7FE0,0010) pixel-data tag.
type Element struct {
	tag       tag.Tag
	vr        vr.VR
	value     value.Value
	items     []*Item
	fragments *PixelFragments
}

// Item is one item of a sequence: an ordered list of nested elements.
// Item boundaries and ordering are preserved exactly as parsed.
type Item struct {
	elements []*Element
}

// NewItem creates an item from an ordered element list.
func NewItem(elements []*Element) *Item {
	return &Item{elements: elements}
}

// Elements returns the item's elements in parse order.
func (it *Item) Elements() []*Element { return it.elements }

// Get returns the first element with the given tag, or nil.
func (it *Item) Get(t tag.Tag) *Element {
	for _, e := range it.elements {
		if e.Tag().Equals(t) {
			return e
		}
	}
	return nil
}

// PixelFragments holds encapsulated pixel data: the Basic Offset Table frame
// offsets (always little-endian on the wire, regardless of the dataset byte
// order) and the opaque compressed fragments in wire order.
type PixelFragments struct {
	Offsets   []uint32
	Fragments [][]byte
}

// NewElement creates a plain data element. The value's VR must match.
func NewElement(t tag.Tag, v vr.VR, val value.Value) (*Element, error) {
	if val == nil {
		return nil, fmt.Errorf("value cannot be nil")
	}
	if val.VR() != v {
		return nil, fmt.Errorf("value VR %s does not match element VR %s", val.VR(), v)
	}
	return &Element{tag: t, vr: v, value: val}, nil
}

// NewSequenceElement creates an SQ element from ordered items.
func NewSequenceElement(t tag.Tag, items []*Item) *Element {
	val, _ := value.NewBytesValue(vr.SequenceOfItems, nil)
	return &Element{tag: t, vr: vr.SequenceOfItems, value: val, items: items}
}

// NewPixelFragmentsElement creates the encapsulated pixel-data element.
// The VR must be OB or OW and the tag must be (7FE0,0010).
func NewPixelFragmentsElement(t tag.Tag, v vr.VR, frags *PixelFragments) (*Element, error) {
	if !t.Equals(tag.PixelData) {
		return nil, fmt.Errorf("encapsulated fragments require tag %s, got %s", tag.PixelData, t)
	}
	if v != vr.OtherByte && v != vr.OtherWord {
		return nil, fmt.Errorf("encapsulated fragments require VR OB or OW, got %s", v)
	}
	val, _ := value.NewBytesValue(v, nil)
	return &Element{tag: t, vr: v, value: val, fragments: frags}, nil
}

// Tag returns the DICOM tag of this element.
func (e *Element) Tag() tag.Tag { return e.tag }

// VR returns the Value Representation of this element.
func (e *Element) VR() vr.VR { return e.vr }

// Value returns the element value. For SQ and encapsulated pixel data this
// is an empty placeholder; use Items or Fragments instead.
func (e *Element) Value() value.Value { return e.value }

// Items returns the sequence items, or nil for non-SQ elements.
func (e *Element) Items() []*Item { return e.items }

// Fragments returns the encapsulated pixel fragments, or nil.
func (e *Element) Fragments() *PixelFragments { return e.fragments }

// IsSequence returns true for SQ elements.
func (e *Element) IsSequence() bool { return e.vr == vr.SequenceOfItems }

// IsEncapsulated returns true when the element carries pixel fragments.
func (e *Element) IsEncapsulated() bool { return e.fragments != nil }

// Name returns the dictionary name, or "" for unknown and private tags.
func (e *Element) Name() string {
	info, err := tag.Find(e.tag)
	if err != nil {
		return ""
	}
	return info.Name
}

// Keyword returns the dictionary keyword, or "" for unknown tags.
func (e *Element) Keyword() string {
	info, err := tag.Find(e.tag)
	if err != nil {
		return ""
	}
	return info.Keyword
}

// String formats the element as "(GGGG,EEEE) VR [Name] = value".
func (e *Element) String() string {
	var sb strings.Builder
	sb.WriteString(e.tag.String())
	sb.WriteString(" ")
	sb.WriteString(e.vr.String())
	if name := e.Name(); name != "" {
		fmt.Fprintf(&sb, " [%s]", name)
	}
	switch {
	case e.IsSequence():
		fmt.Fprintf(&sb, " = %d items", len(e.items))
	case e.IsEncapsulated():
		fmt.Fprintf(&sb, " = %d fragments", len(e.fragments.Fragments))
	default:
		fmt.Fprintf(&sb, " = %s", e.value.String())
	}
	return sb.String()
}

// Equals reports deep equality of two elements, including sequence items and
// fragments.
func (e *Element) Equals(other *Element) bool {
	if other == nil || !e.tag.Equals(other.tag) || e.vr != other.vr {
		return false
	}
	if len(e.items) != len(other.items) {
		return false
	}
	for i := range e.items {
		a, b := e.items[i].elements, other.items[i].elements
		if len(a) != len(b) {
			return false
		}
		for j := range a {
			if !a[j].Equals(b[j]) {
				return false
			}
		}
	}
	if (e.fragments == nil) != (other.fragments == nil) {
		return false
	}
	if e.fragments != nil {
		if len(e.fragments.Offsets) != len(other.fragments.Offsets) ||
			len(e.fragments.Fragments) != len(other.fragments.Fragments) {
			return false
		}
		for i := range e.fragments.Offsets {
			if e.fragments.Offsets[i] != other.fragments.Offsets[i] {
				return false
			}
		}
		for i := range e.fragments.Fragments {
			if string(e.fragments.Fragments[i]) != string(other.fragments.Fragments[i]) {
				return false
			}
		}
	}
	return e.value.Equals(other.value)
}
