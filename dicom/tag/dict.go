package tag

import "github.com/pacsforge/dicomnet/dicom/vr"

// dict is the data dictionary subset carried by this module: the DIMSE
// command set elements (group 0000), File Meta Information (group 0002), and
// the identification, patient, study, series, instance, and image elements
// needed for Implicit VR parsing of the supported services. Unknown tags
// decode with VR UN.
var dict = map[Tag]Info{
	// Group 0000 — command set (DICOM Part 7, Section E.1)
	{0x0000, 0x0000}: {Tag{0x0000, 0x0000}, []vr.VR{vr.UnsignedLong}, "Command Group Length", "CommandGroupLength", "1", false},
	{0x0000, 0x0002}: {Tag{0x0000, 0x0002}, []vr.VR{vr.UniqueIdentifier}, "Affected SOP Class UID", "AffectedSOPClassUID", "1", false},
	{0x0000, 0x0003}: {Tag{0x0000, 0x0003}, []vr.VR{vr.UniqueIdentifier}, "Requested SOP Class UID", "RequestedSOPClassUID", "1", false},
	{0x0000, 0x0100}: {Tag{0x0000, 0x0100}, []vr.VR{vr.UnsignedShort}, "Command Field", "CommandField", "1", false},
	{0x0000, 0x0110}: {Tag{0x0000, 0x0110}, []vr.VR{vr.UnsignedShort}, "Message ID", "MessageID", "1", false},
	{0x0000, 0x0120}: {Tag{0x0000, 0x0120}, []vr.VR{vr.UnsignedShort}, "Message ID Being Responded To", "MessageIDBeingRespondedTo", "1", false},
	{0x0000, 0x0600}: {Tag{0x0000, 0x0600}, []vr.VR{vr.ApplicationEntity}, "Move Destination", "MoveDestination", "1", false},
	{0x0000, 0x0700}: {Tag{0x0000, 0x0700}, []vr.VR{vr.UnsignedShort}, "Priority", "Priority", "1", false},
	{0x0000, 0x0800}: {Tag{0x0000, 0x0800}, []vr.VR{vr.UnsignedShort}, "Command Data Set Type", "CommandDataSetType", "1", false},
	{0x0000, 0x0900}: {Tag{0x0000, 0x0900}, []vr.VR{vr.UnsignedShort}, "Status", "Status", "1", false},
	{0x0000, 0x0901}: {Tag{0x0000, 0x0901}, []vr.VR{vr.AttributeTag}, "Offending Element", "OffendingElement", "1-n", false},
	{0x0000, 0x0902}: {Tag{0x0000, 0x0902}, []vr.VR{vr.LongString}, "Error Comment", "ErrorComment", "1", false},
	{0x0000, 0x0903}: {Tag{0x0000, 0x0903}, []vr.VR{vr.UnsignedShort}, "Error ID", "ErrorID", "1", false},
	{0x0000, 0x1000}: {Tag{0x0000, 0x1000}, []vr.VR{vr.UniqueIdentifier}, "Affected SOP Instance UID", "AffectedSOPInstanceUID", "1", false},
	{0x0000, 0x1001}: {Tag{0x0000, 0x1001}, []vr.VR{vr.UniqueIdentifier}, "Requested SOP Instance UID", "RequestedSOPInstanceUID", "1", false},
	{0x0000, 0x1020}: {Tag{0x0000, 0x1020}, []vr.VR{vr.UnsignedShort}, "Number of Remaining Sub-operations", "NumberOfRemainingSuboperations", "1", false},
	{0x0000, 0x1021}: {Tag{0x0000, 0x1021}, []vr.VR{vr.UnsignedShort}, "Number of Completed Sub-operations", "NumberOfCompletedSuboperations", "1", false},
	{0x0000, 0x1022}: {Tag{0x0000, 0x1022}, []vr.VR{vr.UnsignedShort}, "Number of Failed Sub-operations", "NumberOfFailedSuboperations", "1", false},
	{0x0000, 0x1023}: {Tag{0x0000, 0x1023}, []vr.VR{vr.UnsignedShort}, "Number of Warning Sub-operations", "NumberOfWarningSuboperations", "1", false},
	{0x0000, 0x1030}: {Tag{0x0000, 0x1030}, []vr.VR{vr.ApplicationEntity}, "Move Originator Application Entity Title", "MoveOriginatorApplicationEntityTitle", "1", false},
	{0x0000, 0x1031}: {Tag{0x0000, 0x1031}, []vr.VR{vr.UnsignedShort}, "Move Originator Message ID", "MoveOriginatorMessageID", "1", false},

	// Group 0002 — File Meta Information (DICOM Part 10, Section 7.1)
	{0x0002, 0x0000}: {Tag{0x0002, 0x0000}, []vr.VR{vr.UnsignedLong}, "File Meta Information Group Length", "FileMetaInformationGroupLength", "1", false},
	{0x0002, 0x0001}: {Tag{0x0002, 0x0001}, []vr.VR{vr.OtherByte}, "File Meta Information Version", "FileMetaInformationVersion", "1", false},
	{0x0002, 0x0002}: {Tag{0x0002, 0x0002}, []vr.VR{vr.UniqueIdentifier}, "Media Storage SOP Class UID", "MediaStorageSOPClassUID", "1", false},
	{0x0002, 0x0003}: {Tag{0x0002, 0x0003}, []vr.VR{vr.UniqueIdentifier}, "Media Storage SOP Instance UID", "MediaStorageSOPInstanceUID", "1", false},
	{0x0002, 0x0010}: {Tag{0x0002, 0x0010}, []vr.VR{vr.UniqueIdentifier}, "Transfer Syntax UID", "TransferSyntaxUID", "1", false},
	{0x0002, 0x0012}: {Tag{0x0002, 0x0012}, []vr.VR{vr.UniqueIdentifier}, "Implementation Class UID", "ImplementationClassUID", "1", false},
	{0x0002, 0x0013}: {Tag{0x0002, 0x0013}, []vr.VR{vr.ShortString}, "Implementation Version Name", "ImplementationVersionName", "1", false},
	{0x0002, 0x0016}: {Tag{0x0002, 0x0016}, []vr.VR{vr.ApplicationEntity}, "Source Application Entity Title", "SourceApplicationEntityTitle", "1", false},

	// Identification
	{0x0008, 0x0005}: {Tag{0x0008, 0x0005}, []vr.VR{vr.CodeString}, "Specific Character Set", "SpecificCharacterSet", "1-n", false},
	{0x0008, 0x0008}: {Tag{0x0008, 0x0008}, []vr.VR{vr.CodeString}, "Image Type", "ImageType", "2-n", false},
	{0x0008, 0x0016}: {Tag{0x0008, 0x0016}, []vr.VR{vr.UniqueIdentifier}, "SOP Class UID", "SOPClassUID", "1", false},
	{0x0008, 0x0018}: {Tag{0x0008, 0x0018}, []vr.VR{vr.UniqueIdentifier}, "SOP Instance UID", "SOPInstanceUID", "1", false},
	{0x0008, 0x0020}: {Tag{0x0008, 0x0020}, []vr.VR{vr.Date}, "Study Date", "StudyDate", "1", false},
	{0x0008, 0x0030}: {Tag{0x0008, 0x0030}, []vr.VR{vr.Time}, "Study Time", "StudyTime", "1", false},
	{0x0008, 0x0050}: {Tag{0x0008, 0x0050}, []vr.VR{vr.ShortString}, "Accession Number", "AccessionNumber", "1", false},
	{0x0008, 0x0052}: {Tag{0x0008, 0x0052}, []vr.VR{vr.CodeString}, "Query/Retrieve Level", "QueryRetrieveLevel", "1", false},
	{0x0008, 0x0054}: {Tag{0x0008, 0x0054}, []vr.VR{vr.ApplicationEntity}, "Retrieve AE Title", "RetrieveAETitle", "1-n", false},
	{0x0008, 0x0060}: {Tag{0x0008, 0x0060}, []vr.VR{vr.CodeString}, "Modality", "Modality", "1", false},
	{0x0008, 0x0070}: {Tag{0x0008, 0x0070}, []vr.VR{vr.LongString}, "Manufacturer", "Manufacturer", "1", false},
	{0x0008, 0x0090}: {Tag{0x0008, 0x0090}, []vr.VR{vr.PersonName}, "Referring Physician's Name", "ReferringPhysicianName", "1", false},
	{0x0008, 0x103E}: {Tag{0x0008, 0x103E}, []vr.VR{vr.LongString}, "Series Description", "SeriesDescription", "1", false},
	{0x0008, 0x1030}: {Tag{0x0008, 0x1030}, []vr.VR{vr.LongString}, "Study Description", "StudyDescription", "1", false},
	{0x0008, 0x1115}: {Tag{0x0008, 0x1115}, []vr.VR{vr.SequenceOfItems}, "Referenced Series Sequence", "ReferencedSeriesSequence", "1", false},
	{0x0008, 0x1140}: {Tag{0x0008, 0x1140}, []vr.VR{vr.SequenceOfItems}, "Referenced Image Sequence", "ReferencedImageSequence", "1", false},
	{0x0008, 0x1150}: {Tag{0x0008, 0x1150}, []vr.VR{vr.UniqueIdentifier}, "Referenced SOP Class UID", "ReferencedSOPClassUID", "1", false},
	{0x0008, 0x1155}: {Tag{0x0008, 0x1155}, []vr.VR{vr.UniqueIdentifier}, "Referenced SOP Instance UID", "ReferencedSOPInstanceUID", "1", false},

	// Patient
	{0x0010, 0x0010}: {Tag{0x0010, 0x0010}, []vr.VR{vr.PersonName}, "Patient's Name", "PatientName", "1", false},
	{0x0010, 0x0020}: {Tag{0x0010, 0x0020}, []vr.VR{vr.LongString}, "Patient ID", "PatientID", "1", false},
	{0x0010, 0x0030}: {Tag{0x0010, 0x0030}, []vr.VR{vr.Date}, "Patient's Birth Date", "PatientBirthDate", "1", false},
	{0x0010, 0x0040}: {Tag{0x0010, 0x0040}, []vr.VR{vr.CodeString}, "Patient's Sex", "PatientSex", "1", false},

	// Study / series / instance
	{0x0020, 0x000D}: {Tag{0x0020, 0x000D}, []vr.VR{vr.UniqueIdentifier}, "Study Instance UID", "StudyInstanceUID", "1", false},
	{0x0020, 0x000E}: {Tag{0x0020, 0x000E}, []vr.VR{vr.UniqueIdentifier}, "Series Instance UID", "SeriesInstanceUID", "1", false},
	{0x0020, 0x0010}: {Tag{0x0020, 0x0010}, []vr.VR{vr.ShortString}, "Study ID", "StudyID", "1", false},
	{0x0020, 0x0011}: {Tag{0x0020, 0x0011}, []vr.VR{vr.IntegerString}, "Series Number", "SeriesNumber", "1", false},
	{0x0020, 0x0013}: {Tag{0x0020, 0x0013}, []vr.VR{vr.IntegerString}, "Instance Number", "InstanceNumber", "1", false},

	// Image pixel module
	{0x0028, 0x0002}: {Tag{0x0028, 0x0002}, []vr.VR{vr.UnsignedShort}, "Samples per Pixel", "SamplesPerPixel", "1", false},
	{0x0028, 0x0004}: {Tag{0x0028, 0x0004}, []vr.VR{vr.CodeString}, "Photometric Interpretation", "PhotometricInterpretation", "1", false},
	{0x0028, 0x0008}: {Tag{0x0028, 0x0008}, []vr.VR{vr.IntegerString}, "Number of Frames", "NumberOfFrames", "1", false},
	{0x0028, 0x0010}: {Tag{0x0028, 0x0010}, []vr.VR{vr.UnsignedShort}, "Rows", "Rows", "1", false},
	{0x0028, 0x0011}: {Tag{0x0028, 0x0011}, []vr.VR{vr.UnsignedShort}, "Columns", "Columns", "1", false},
	{0x0028, 0x0100}: {Tag{0x0028, 0x0100}, []vr.VR{vr.UnsignedShort}, "Bits Allocated", "BitsAllocated", "1", false},
	{0x0028, 0x0101}: {Tag{0x0028, 0x0101}, []vr.VR{vr.UnsignedShort}, "Bits Stored", "BitsStored", "1", false},
	{0x0028, 0x0102}: {Tag{0x0028, 0x0102}, []vr.VR{vr.UnsignedShort}, "High Bit", "HighBit", "1", false},
	{0x0028, 0x0103}: {Tag{0x0028, 0x0103}, []vr.VR{vr.UnsignedShort}, "Pixel Representation", "PixelRepresentation", "1", false},

	// Pixel data
	{0x7FE0, 0x0010}: {Tag{0x7FE0, 0x0010}, []vr.VR{vr.OtherWord, vr.OtherByte}, "Pixel Data", "PixelData", "1", false},
}
