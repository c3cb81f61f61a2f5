package constants

// ExtractionMethod records which technique produced a document's text or fields.
type ExtractionMethod string

// Stable values (stored in reports).
const (
	MethodText   ExtractionMethod = "text"   // embedded PDF text layer
	MethodOCR    ExtractionMethod = "ocr"    // tesseract over rendered pages
	MethodVision ExtractionMethod = "vision" // vision model over rendered pages
	MethodNone   ExtractionMethod = "none"   // nothing usable
)

// ReportStatus is the outcome of one batch.
type ReportStatus string

const (
	ReportStatusOK           ReportStatus = "ok"
	ReportStatusDivergencies ReportStatus = "divergencies"
	ReportStatusError        ReportStatus = "error"
)

// RecordStatus is the outcome of one document inside a batch.
type RecordStatus string

const (
	RecordStatusOK     RecordStatus = "ok"
	RecordStatusFailed RecordStatus = "failed"
)

// DivergencyKind classifies a cross-document finding.
type DivergencyKind string

const (
	DivergencyMissingField     DivergencyKind = "missing_field"
	DivergencyInconsistentData DivergencyKind = "inconsistent_data"
	DivergencyInvalidFormat    DivergencyKind = "invalid_format"
	DivergencyAnomaly          DivergencyKind = "anomaly"
)

// ValidDivergencyKind reports whether k is one of the known kinds.
func ValidDivergencyKind(k DivergencyKind) bool {
	switch k {
	case DivergencyMissingField, DivergencyInconsistentData, DivergencyInvalidFormat, DivergencyAnomaly:
		return true
	}
	return false
}
