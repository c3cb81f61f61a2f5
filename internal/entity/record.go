package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/insurance-validator/constants"
)

// ExtractionMetadata describes how a record's fields were obtained.
type ExtractionMetadata struct {
	Method       constants.ExtractionMethod `json:"method"`
	TextLength   int                        `json:"textLength"`
	Confidence   float64                    `json:"confidence"`
	OCRTimeMs    int64                      `json:"ocrTimeMs"`
	RenderTimeMs int64                      `json:"renderTimeMs"`
}

// Record is the final extraction result for one document.
type Record struct {
	FileName       string                 `json:"fileName"`
	PersonalFields Fields                 `json:"personalData"`
	VehicleFields  Fields                 `json:"vehicleData"`
	Metadata       ExtractionMetadata     `json:"metadata"`
	Status         constants.RecordStatus `json:"status"`
	Error          string                 `json:"error,omitempty"`
}

// NewRecord returns an ok record with every field null.
func NewRecord(fileName string) Record {
	return Record{
		FileName:       fileName,
		PersonalFields: NewFields(constants.PersonalFields),
		VehicleFields:  NewFields(constants.VehicleFields),
		Metadata:       ExtractionMetadata{Method: constants.MethodNone},
		Status:         constants.RecordStatusOK,
	}
}

// FailedRecord marks a document that could not be processed.
func FailedRecord(fileName string, err error) Record {
	r := NewRecord(fileName)
	r.Status = constants.RecordStatusFailed
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

// Value returns the value for name from the group that holds it.
func (r Record) Value(name constants.FieldName) *string {
	if constants.IsPersonal(name) {
		return r.PersonalFields[name]
	}
	return r.VehicleFields[name]
}

// HasData reports whether any personal or vehicle field holds a value.
func (r Record) HasData() bool {
	return r.PersonalFields.HasAny() || r.VehicleFields.HasAny()
}

// Failed reports whether the document failed processing.
func (r Record) Failed() bool {
	return r.Status == constants.RecordStatusFailed
}

// Divergency is a field-level conflict between documents of one batch.
type Divergency struct {
	Kind        constants.DivergencyKind `json:"type"`
	Field       constants.FieldName      `json:"field"`
	Files       []string                 `json:"files"`
	Values      map[string]string        `json:"values"`
	Description string                   `json:"description"`
}

// Report is the structured outcome of one batch.
type Report struct {
	ID           uuid.UUID              `json:"id"`
	Status       constants.ReportStatus `json:"status"`
	Message      string                 `json:"message"`
	Records      []Record               `json:"records"`
	Divergencies []Divergency           `json:"divergencies"`
	Timestamp    time.Time              `json:"timestamp"`
}

// ErrorReport builds a status=error report with no partial data.
func ErrorReport(message string, at time.Time) Report {
	return Report{
		Status:       constants.ReportStatusError,
		Message:      message,
		Records:      []Record{},
		Divergencies: []Divergency{},
		Timestamp:    at,
	}
}
