package dicom

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/pacsforge/dicomnet/dicom/element"
	"github.com/pacsforge/dicomnet/dicom/tag"
	"github.com/pacsforge/dicomnet/dicom/value"
	"github.com/pacsforge/dicomnet/dicom/vr"
)

// MaxSequenceDepth bounds recursive sequence nesting against adversarial
// inputs.
const MaxSequenceDepth = 64

// undefinedLength marks sequences, items, and encapsulated pixel data whose
// extent is delimited rather than declared.
const undefinedLength = 0xFFFFFFFF

// ElementParser reads DICOM data elements from a binary stream.
//
// Element structure varies by VR and transfer syntax:
//   - Explicit VR (16-bit length): Tag(4) + VR(2) + Length(2) + Value
//   - Explicit VR (32-bit length): Tag(4) + VR(2) + Reserved(2) + Length(4) + Value
//   - Implicit VR: Tag(4) + Length(4) + Value, VR from the dictionary
//
// Sequences are parsed recursively into ordered items, preserving item
// boundaries. Encapsulated pixel data is parsed into its Basic Offset Table
// and opaque fragments.
//
// DICOM Standard Reference:
// https://dicom.nema.org/medical/dicom/current/output/html/part05.html#sect_7.1.2
type ElementParser struct {
	reader *Reader
	ts     *TransferSyntax
	depth  int
}

// NewElementParser creates an element parser for the given transfer syntax.
func NewElementParser(reader *Reader, ts *TransferSyntax) *ElementParser {
	return &ElementParser{reader: reader, ts: ts}
}

// ReadElement reads the next data element. Returns io.EOF at a clean end of
// stream.
func (p *ElementParser) ReadElement() (*element.Element, error) {
	t, err := p.readTag()
	if err != nil {
		return nil, err
	}
	return p.readElementBody(t)
}

func (p *ElementParser) readElementBody(t tag.Tag) (*element.Element, error) {
	if t.IsDelimiter() {
		return nil, fmt.Errorf("%w: delimiter %s outside sequence", ErrMalformedElement, t)
	}

	v, length, err := p.readVRAndLength(t)
	if err != nil {
		return nil, err
	}

	if length == undefinedLength {
		switch {
		case v == vr.SequenceOfItems:
			items, err := p.readDelimitedItems(t)
			if err != nil {
				return nil, err
			}
			return element.NewSequenceElement(t, items), nil
		case (v == vr.OtherByte || v == vr.OtherWord) && t.Equals(tag.PixelData):
			frags, err := p.readEncapsulatedPixelData(t)
			if err != nil {
				return nil, err
			}
			return element.NewPixelFragmentsElement(t, v, frags)
		default:
			return nil, fmt.Errorf("%w: tag %s VR %s", ErrUnsupportedUndefinedLength, t, v)
		}
	}

	if rem := p.reader.Remaining(); rem >= 0 && int64(length) > rem {
		return nil, fmt.Errorf("%w: element %s declares %d bytes, %d remain",
			ErrUnexpectedEndOfData, t, length, rem)
	}

	if v == vr.SequenceOfItems {
		items, err := p.readDefinedLengthItems(t, length)
		if err != nil {
			return nil, err
		}
		return element.NewSequenceElement(t, items), nil
	}

	val, err := p.readValue(t, v, length)
	if err != nil {
		return nil, err
	}
	return element.NewElement(t, v, val)
}

// readVRAndLength reads the VR (explicit from the stream, implicit from the
// dictionary) and the value length field.
func (p *ElementParser) readVRAndLength(t tag.Tag) (vr.VR, uint32, error) {
	if p.ts.ExplicitVR {
		vrStr, err := p.reader.ReadString(2)
		if err != nil {
			return "", 0, fmt.Errorf("read VR for tag %s: %w", t, unexpectedEOF(err))
		}
		v, err := vr.Parse(vrStr)
		if err != nil {
			return "", 0, fmt.Errorf("%w: tag %s: %v", ErrMalformedElement, t, err)
		}
		if v.Uses32BitLength() {
			// 2 reserved bytes, then a 32-bit length.
			if _, err := p.reader.ReadUint16(); err != nil {
				return "", 0, fmt.Errorf("read reserved bytes for tag %s: %w", t, unexpectedEOF(err))
			}
			length, err := p.reader.ReadUint32()
			if err != nil {
				return "", 0, fmt.Errorf("read length for tag %s: %w", t, unexpectedEOF(err))
			}
			return v, length, nil
		}
		length16, err := p.reader.ReadUint16()
		if err != nil {
			return "", 0, fmt.Errorf("read length for tag %s: %w", t, unexpectedEOF(err))
		}
		return v, uint32(length16), nil
	}

	// Implicit VR: dictionary lookup, unknown tags decode as UN.
	v := vr.Unknown
	if info, err := tag.Find(t); err == nil && len(info.VRs) > 0 {
		v = info.VRs[0]
	}
	length, err := p.reader.ReadUint32()
	if err != nil {
		return "", 0, fmt.Errorf("read length for tag %s: %w", t, unexpectedEOF(err))
	}
	return v, length, nil
}

func (p *ElementParser) readTag() (tag.Tag, error) {
	group, err := p.reader.ReadUint16()
	if err != nil {
		return tag.Tag{}, err
	}
	elem, err := p.reader.ReadUint16()
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return tag.Tag{}, fmt.Errorf("read tag element: %w", err)
	}
	return tag.New(group, elem), nil
}

// readDelimitedItems parses the items of an undefined-length sequence,
// terminated by the Sequence Delimitation Item.
func (p *ElementParser) readDelimitedItems(seqTag tag.Tag) ([]*element.Item, error) {
	if err := p.enterSequence(seqTag); err != nil {
		return nil, err
	}
	defer p.leaveSequence()

	var items []*element.Item
	for {
		t, err := p.readTag()
		if err != nil {
			return nil, fmt.Errorf("sequence %s: %w", seqTag, unexpectedEOF(err))
		}
		if t.Equals(tag.SequenceDelimitation) {
			if _, err := p.reader.ReadUint32(); err != nil {
				return nil, fmt.Errorf("sequence %s delimiter: %w", seqTag, unexpectedEOF(err))
			}
			return items, nil
		}
		item, err := p.readItem(seqTag, t)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
}

// readDefinedLengthItems parses the items of a sequence with a declared byte
// length. Items overrunning the declared boundary are malformed.
func (p *ElementParser) readDefinedLengthItems(seqTag tag.Tag, length uint32) ([]*element.Item, error) {
	if err := p.enterSequence(seqTag); err != nil {
		return nil, err
	}
	defer p.leaveSequence()

	var items []*element.Item
	start := p.reader.Position()
	for uint32(p.reader.Position()-start) < length {
		t, err := p.readTag()
		if err != nil {
			return nil, fmt.Errorf("sequence %s: %w", seqTag, unexpectedEOF(err))
		}
		item, err := p.readItem(seqTag, t)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if consumed := uint32(p.reader.Position() - start); consumed != length {
		return nil, fmt.Errorf("%w: sequence %s items span %d bytes, declared %d",
			ErrMalformedElement, seqTag, consumed, length)
	}
	return items, nil
}

// readItem parses one sequence item whose introducer tag has already been
// consumed.
func (p *ElementParser) readItem(seqTag, introducer tag.Tag) (*element.Item, error) {
	if !introducer.Equals(tag.Item) {
		return nil, fmt.Errorf("%w: sequence %s: expected item tag, got %s",
			ErrMalformedElement, seqTag, introducer)
	}
	itemLen, err := p.reader.ReadUint32()
	if err != nil {
		return nil, fmt.Errorf("sequence %s item length: %w", seqTag, unexpectedEOF(err))
	}

	var elements []*element.Element
	if itemLen == undefinedLength {
		// Delimited item: elements until the Item Delimitation Item.
		for {
			t, err := p.readTag()
			if err != nil {
				return nil, fmt.Errorf("sequence %s item: %w", seqTag, unexpectedEOF(err))
			}
			if t.Equals(tag.ItemDelimitation) {
				if _, err := p.reader.ReadUint32(); err != nil {
					return nil, fmt.Errorf("sequence %s item delimiter: %w", seqTag, unexpectedEOF(err))
				}
				return element.NewItem(elements), nil
			}
			elem, err := p.readElementBody(t)
			if err != nil {
				return nil, err
			}
			elements = append(elements, elem)
		}
	}

	if rem := p.reader.Remaining(); rem >= 0 && int64(itemLen) > rem {
		return nil, fmt.Errorf("%w: sequence %s item declares %d bytes, %d remain",
			ErrUnexpectedEndOfData, seqTag, itemLen, rem)
	}
	start := p.reader.Position()
	for uint32(p.reader.Position()-start) < itemLen {
		elem, err := p.ReadElement()
		if err != nil {
			return nil, fmt.Errorf("sequence %s item: %w", seqTag, unexpectedEOF(err))
		}
		elements = append(elements, elem)
	}
	if consumed := uint32(p.reader.Position() - start); consumed != itemLen {
		return nil, fmt.Errorf("%w: sequence %s item spans %d bytes, declared %d",
			ErrMalformedElement, seqTag, consumed, itemLen)
	}
	return element.NewItem(elements), nil
}

// readEncapsulatedPixelData parses encapsulated pixel data: the Basic Offset
// Table item followed by compressed fragments, terminated by the Sequence
// Delimitation Item. BOT offsets are little-endian regardless of the dataset
// byte order. Fragment contents are not decoded.
//
// DICOM Standard Reference:
// https://dicom.nema.org/medical/dicom/current/output/html/part05.html#sect_A.4
func (p *ElementParser) readEncapsulatedPixelData(pdTag tag.Tag) (*element.PixelFragments, error) {
	frags := &element.PixelFragments{}
	first := true
	for {
		t, err := p.readTag()
		if err != nil {
			return nil, fmt.Errorf("encapsulated pixel data: %w", unexpectedEOF(err))
		}
		if t.Equals(tag.SequenceDelimitation) {
			if _, err := p.reader.ReadUint32(); err != nil {
				return nil, fmt.Errorf("encapsulated pixel data delimiter: %w", unexpectedEOF(err))
			}
			return frags, nil
		}
		if !t.Equals(tag.Item) {
			return nil, fmt.Errorf("%w: encapsulated pixel data %s: unexpected tag %s",
				ErrMalformedElement, pdTag, t)
		}
		itemLen, err := p.reader.ReadUint32()
		if err != nil {
			return nil, fmt.Errorf("encapsulated item length: %w", unexpectedEOF(err))
		}
		if rem := p.reader.Remaining(); rem >= 0 && int64(itemLen) > rem {
			return nil, fmt.Errorf("%w: encapsulated item declares %d bytes, %d remain",
				ErrUnexpectedEndOfData, itemLen, rem)
		}
		data, err := p.reader.ReadBytes(int(itemLen))
		if err != nil {
			return nil, fmt.Errorf("encapsulated item data: %w", unexpectedEOF(err))
		}

		if first {
			// First item is the Basic Offset Table.
			first = false
			if itemLen%4 != 0 {
				return nil, fmt.Errorf("%w: basic offset table length %d not a multiple of 4",
					ErrMalformedElement, itemLen)
			}
			for i := 0; i < len(data); i += 4 {
				frags.Offsets = append(frags.Offsets, binary.LittleEndian.Uint32(data[i:]))
			}
			continue
		}
		frags.Fragments = append(frags.Fragments, data)
	}
}

func (p *ElementParser) enterSequence(seqTag tag.Tag) error {
	if p.depth >= MaxSequenceDepth {
		return fmt.Errorf("%w: sequence %s exceeds depth limit %d",
			ErrMalformedElement, seqTag, MaxSequenceDepth)
	}
	p.depth++
	return nil
}

func (p *ElementParser) leaveSequence() {
	p.depth--
}

// readValue reads and decodes the value field for non-sequence VRs.
func (p *ElementParser) readValue(t tag.Tag, v vr.VR, length uint32) (value.Value, error) {
	if length == 0 {
		return emptyValue(v)
	}

	switch {
	case v.IsString():
		data, err := p.reader.ReadBytes(int(length))
		if err != nil {
			return nil, fmt.Errorf("read string value for %s: %w", t, unexpectedEOF(err))
		}
		str := strings.TrimRight(string(data), "\x00 ")
		var values []string
		if str != "" {
			values = strings.Split(str, "\\")
		}
		return value.NewStringValue(v, values)

	case v.IsInteger():
		return p.readIntValue(t, v, length)

	case v.IsFloat():
		return p.readFloatValue(t, v, length)

	default:
		data, err := p.reader.ReadBytes(int(length))
		if err != nil {
			return nil, fmt.Errorf("read binary value for %s: %w", t, unexpectedEOF(err))
		}
		return value.NewBytesValue(v, data)
	}
}

func (p *ElementParser) readIntValue(t tag.Tag, v vr.VR, length uint32) (value.Value, error) {
	width := v.FixedWidth()
	if int(length)%width != 0 {
		return nil, fmt.Errorf("%w: tag %s length %d not a multiple of %d",
			ErrMalformedElement, t, length, width)
	}
	count := int(length) / width
	values := make([]int64, 0, count)
	for i := 0; i < count; i++ {
		var n int64
		switch v {
		case vr.SignedShort:
			u, err := p.reader.ReadUint16()
			if err != nil {
				return nil, unexpectedEOF(err)
			}
			n = int64(int16(u))
		case vr.UnsignedShort:
			u, err := p.reader.ReadUint16()
			if err != nil {
				return nil, unexpectedEOF(err)
			}
			n = int64(u)
		case vr.SignedLong:
			u, err := p.reader.ReadUint32()
			if err != nil {
				return nil, unexpectedEOF(err)
			}
			n = int64(int32(u))
		case vr.UnsignedLong, vr.AttributeTag:
			u, err := p.reader.ReadUint32()
			if err != nil {
				return nil, unexpectedEOF(err)
			}
			n = int64(u)
		case vr.SignedVeryLong, vr.UnsignedVeryLong:
			u, err := p.reader.ReadUint64()
			if err != nil {
				return nil, unexpectedEOF(err)
			}
			n = int64(u)
		}
		values = append(values, n)
	}
	return value.NewIntValue(v, values)
}

func (p *ElementParser) readFloatValue(t tag.Tag, v vr.VR, length uint32) (value.Value, error) {
	width := v.FixedWidth()
	if int(length)%width != 0 {
		return nil, fmt.Errorf("%w: tag %s length %d not a multiple of %d",
			ErrMalformedElement, t, length, width)
	}
	count := int(length) / width
	values := make([]float64, 0, count)
	for i := 0; i < count; i++ {
		if v == vr.FloatingPointSingle {
			bits, err := p.reader.ReadUint32()
			if err != nil {
				return nil, unexpectedEOF(err)
			}
			values = append(values, float64(math.Float32frombits(bits)))
		} else {
			bits, err := p.reader.ReadUint64()
			if err != nil {
				return nil, unexpectedEOF(err)
			}
			values = append(values, math.Float64frombits(bits))
		}
	}
	return value.NewFloatValue(v, values)
}

func emptyValue(v vr.VR) (value.Value, error) {
	switch {
	case v.IsString():
		return value.NewStringValue(v, nil)
	case v.IsInteger():
		return value.NewIntValue(v, nil)
	case v.IsFloat():
		return value.NewFloatValue(v, nil)
	default:
		return value.NewBytesValue(v, []byte{})
	}
}

// unexpectedEOF maps a clean EOF inside a structure to ErrUnexpectedEndOfData
// so truncation surfaces as one error kind.
func unexpectedEOF(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return ErrUnexpectedEndOfData
	}
	return err
}
