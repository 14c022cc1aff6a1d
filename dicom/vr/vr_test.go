package vr_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pacsforge/dicomnet/dicom/vr"
)

func TestParse(t *testing.T) {
	v, err := vr.Parse("SQ")
	require.NoError(t, err)
	assert.Equal(t, vr.SequenceOfItems, v)

	_, err = vr.Parse("ZZ")
	require.Error(t, err)
	_, err = vr.Parse("")
	require.Error(t, err)
}

// TestUses32BitLength pins the split between 16- and 32-bit explicit
// lengths.
func TestUses32BitLength(t *testing.T) {
	long := []vr.VR{
		vr.OtherByte, vr.OtherDouble, vr.OtherFloat, vr.OtherLong, vr.OtherWord,
		vr.SequenceOfItems, vr.Unknown, vr.UnlimitedText,
	}
	for _, v := range long {
		assert.True(t, v.Uses32BitLength(), "%s", v)
	}
	short := []vr.VR{
		vr.ApplicationEntity, vr.CodeString, vr.Date, vr.DecimalString,
		vr.PersonName, vr.ShortString, vr.UniqueIdentifier, vr.UnsignedShort,
		vr.SignedLong, vr.FloatingPointDouble, vr.Time,
	}
	for _, v := range short {
		assert.False(t, v.Uses32BitLength(), "%s", v)
	}
}

func TestClassification(t *testing.T) {
	assert.True(t, vr.PersonName.IsString())
	assert.True(t, vr.UnsignedShort.IsInteger())
	assert.True(t, vr.FloatingPointSingle.IsFloat())
	assert.True(t, vr.OtherWord.IsBinary())
	assert.False(t, vr.SequenceOfItems.IsString())
	assert.False(t, vr.SequenceOfItems.IsBinary())
}

func TestPaddingByte(t *testing.T) {
	assert.Equal(t, byte(0x00), vr.UniqueIdentifier.PaddingByte())
	assert.Equal(t, byte(0x00), vr.OtherByte.PaddingByte())
	assert.Equal(t, byte(' '), vr.PersonName.PaddingByte())
	assert.Equal(t, byte(' '), vr.CodeString.PaddingByte())
}

func TestFixedWidth(t *testing.T) {
	assert.Equal(t, 2, vr.UnsignedShort.FixedWidth())
	assert.Equal(t, 4, vr.UnsignedLong.FixedWidth())
	assert.Equal(t, 4, vr.FloatingPointSingle.FixedWidth())
	assert.Equal(t, 8, vr.FloatingPointDouble.FixedWidth())
	assert.Equal(t, 0, vr.PersonName.FixedWidth())
}
