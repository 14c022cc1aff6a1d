package dicom

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pacsforge/dicomnet/dicom/element"
	"github.com/pacsforge/dicomnet/dicom/tag"
	"github.com/pacsforge/dicomnet/dicom/value"
)

// DataSet is a collection of DICOM data elements indexed by tag with stable
// tag-order iteration.
//
// Datasets have value semantics for concurrent use: parsers emit final
// datasets, mutation happens before a dataset is shared, and Copy produces
// an independent view sharing the immutable elements.
type DataSet struct {
	elements map[tag.Tag]*element.Element
}

// NewDataSet creates an empty dataset.
func NewDataSet() *DataSet {
	return &DataSet{elements: make(map[tag.Tag]*element.Element)}
}

// Add inserts or replaces an element.
func (ds *DataSet) Add(elem *element.Element) error {
	if elem == nil {
		return fmt.Errorf("cannot add nil element")
	}
	ds.elements[elem.Tag()] = elem
	return nil
}

// Get retrieves an element by tag.
func (ds *DataSet) Get(t tag.Tag) (*element.Element, error) {
	elem, ok := ds.elements[t]
	if !ok {
		return nil, fmt.Errorf("element with tag %s not found", t)
	}
	return elem, nil
}

// GetString returns the first string value of the element at t, or "" when
// the element is absent or not string-valued.
func (ds *DataSet) GetString(t tag.Tag) string {
	elem, ok := ds.elements[t]
	if !ok {
		return ""
	}
	switch v := elem.Value().(type) {
	case *value.StringValue:
		return v.First()
	case *value.BytesValue:
		return strings.TrimRight(string(v.Data()), "\x00 ")
	default:
		return v.String()
	}
}

// GetUint16 returns the first integer value of the element at t as uint16.
func (ds *DataSet) GetUint16(t tag.Tag) (uint16, bool) {
	elem, ok := ds.elements[t]
	if !ok {
		return 0, false
	}
	switch v := elem.Value().(type) {
	case *value.IntValue:
		if len(v.Ints()) == 0 {
			return 0, false
		}
		return uint16(v.First()), true
	case *value.BytesValue:
		// Unknown command tags decode as bytes; interpret as LE uint16.
		if b := v.Data(); len(b) == 2 {
			return uint16(b[0]) | uint16(b[1])<<8, true
		}
	}
	return 0, false
}

// Contains reports whether an element with the given tag exists.
func (ds *DataSet) Contains(t tag.Tag) bool {
	_, ok := ds.elements[t]
	return ok
}

// Remove deletes an element by tag.
func (ds *DataSet) Remove(t tag.Tag) error {
	if !ds.Contains(t) {
		return fmt.Errorf("element with tag %s not found", t)
	}
	delete(ds.elements, t)
	return nil
}

// Len returns the number of elements.
func (ds *DataSet) Len() int {
	return len(ds.elements)
}

// Tags returns all tags in ascending order.
func (ds *DataSet) Tags() []tag.Tag {
	tags := make([]tag.Tag, 0, len(ds.elements))
	for t := range ds.elements {
		tags = append(tags, t)
	}
	sort.Slice(tags, func(i, j int) bool {
		return tags[i].Compare(tags[j]) < 0
	})
	return tags
}

// Elements returns all elements sorted by tag. The slice is a copy.
func (ds *DataSet) Elements() []*element.Element {
	tags := ds.Tags()
	elements := make([]*element.Element, len(tags))
	for i, t := range tags {
		elements[i] = ds.elements[t]
	}
	return elements
}

// Copy returns an independent dataset sharing the same immutable elements.
func (ds *DataSet) Copy() *DataSet {
	copied := NewDataSet()
	for t, elem := range ds.elements {
		copied.elements[t] = elem
	}
	return copied
}

// Merge copies elements from other into this dataset, replacing duplicates.
func (ds *DataSet) Merge(other *DataSet) error {
	if other == nil {
		return fmt.Errorf("cannot merge nil dataset")
	}
	for t, elem := range other.elements {
		ds.elements[t] = elem
	}
	return nil
}

// String returns a human-readable listing in tag order.
func (ds *DataSet) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "DataSet with %d elements:\n", ds.Len())
	for _, elem := range ds.Elements() {
		sb.WriteString("  ")
		sb.WriteString(elem.String())
		sb.WriteString("\n")
	}
	return sb.String()
}
