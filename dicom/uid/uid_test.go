package uid_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pacsforge/dicomnet/dicom/uid"
)

func TestIsValid(t *testing.T) {
	assert.True(t, uid.IsValid("1.2.840.10008.1.2.1"))
	assert.True(t, uid.IsValid("1"))
	assert.False(t, uid.IsValid(""))
	assert.False(t, uid.IsValid("1..2"))
	assert.False(t, uid.IsValid("1.02.3"))
	assert.False(t, uid.IsValid("1.2.a"))
	assert.False(t, uid.IsValid("1.2.840.10008.1.2.1.999999999999999999999999999999999999999999999999999999999999"))
}

func TestTrim(t *testing.T) {
	assert.Equal(t, "1.2.3", uid.Trim("1.2.3\x00"))
	assert.Equal(t, "1.2.3", uid.Trim("1.2.3"))
}

func TestIsEncapsulated(t *testing.T) {
	assert.True(t, uid.IsEncapsulated(uid.JPEGBaseline8Bit))
	assert.True(t, uid.IsEncapsulated(uid.JPEG2000))
	assert.True(t, uid.IsEncapsulated(uid.RLELossless))
	assert.False(t, uid.IsEncapsulated(uid.ExplicitVRLittleEndian))
	assert.False(t, uid.IsEncapsulated(uid.ImplicitVRLittleEndian))
	assert.False(t, uid.IsEncapsulated(uid.DeflatedExplicitVRLittle))
}
