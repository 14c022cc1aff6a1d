package uid

// SOP class UIDs for the services supported by this module
// (DICOM Part 6, Annex A; Part 4, Annex B/C).
const (
	Verification = "1.2.840.10008.1.1"

	// Storage SOP classes
	ComputedRadiographyImageStorage        = "1.2.840.10008.5.1.4.1.1.1"
	DigitalXRayImageStorage                = "1.2.840.10008.5.1.4.1.1.1.1"
	CTImageStorage                         = "1.2.840.10008.5.1.4.1.1.2"
	EnhancedCTImageStorage                 = "1.2.840.10008.5.1.4.1.1.2.1"
	MRImageStorage                         = "1.2.840.10008.5.1.4.1.1.4"
	EnhancedMRImageStorage                 = "1.2.840.10008.5.1.4.1.1.4.1"
	UltrasoundImageStorage                 = "1.2.840.10008.5.1.4.1.1.6.1"
	SecondaryCaptureImageStorage           = "1.2.840.10008.5.1.4.1.1.7"
	XRayAngiographicImageStorage           = "1.2.840.10008.5.1.4.1.1.12.1"
	NuclearMedicineImageStorage            = "1.2.840.10008.5.1.4.1.1.20"
	PositronEmissionTomographyImageStorage = "1.2.840.10008.5.1.4.1.1.128"

	// Query/Retrieve SOP classes (study root)
	StudyRootQueryRetrieveFind = "1.2.840.10008.5.1.4.1.2.2.1"
	StudyRootQueryRetrieveMove = "1.2.840.10008.5.1.4.1.2.2.2"
	StudyRootQueryRetrieveGet  = "1.2.840.10008.5.1.4.1.2.2.3"

	// Query/Retrieve SOP classes (patient root)
	PatientRootQueryRetrieveFind = "1.2.840.10008.5.1.4.1.2.1.1"
	PatientRootQueryRetrieveMove = "1.2.840.10008.5.1.4.1.2.1.2"
	PatientRootQueryRetrieveGet  = "1.2.840.10008.5.1.4.1.2.1.3"

	// Storage commitment
	StorageCommitmentPushModel = "1.2.840.10008.1.20.1"
)

// StandardStorageClasses lists the storage SOP classes proposed by default
// when building C-STORE presentation contexts.
var StandardStorageClasses = []string{
	CTImageStorage,
	MRImageStorage,
	SecondaryCaptureImageStorage,
	ComputedRadiographyImageStorage,
	DigitalXRayImageStorage,
	UltrasoundImageStorage,
}
