package pipeline

import (
	"unicode/utf8"

	"github.com/joseph-ayodele/insurance-validator/internal/entity"
)

// State is a step of the per-document extraction machine.
type State string

const (
	StateTextAttempt State = "TEXT_ATTEMPT"
	StateDecide      State = "DECIDE"
	StateTextPath    State = "TEXT_PATH"
	StateVisionPath  State = "VISION_PATH"
	StateDone        State = "DONE"
)

// Thresholds are the guards of the machine's transitions.
type Thresholds struct {
	TextLayerMinChars int     // embedded text is trusted above this length; default 50
	MinConfidence     float64 // below this the attempt escalates to vision; default 80
}

func (t Thresholds) withDefaults() Thresholds {
	if t.TextLayerMinChars <= 0 {
		t.TextLayerMinChars = 50
	}
	if t.MinConfidence <= 0 {
		t.MinConfidence = 80
	}
	return t
}

// LowConfidence reports whether an attempt's confidence is under the threshold.
func (t Thresholds) LowConfidence(a entity.ExtractionAttempt) bool {
	return a.Confidence < t.withDefaults().MinConfidence
}

// Decide is the DECIDE transition: empty or low-confidence text goes to
// the vision path, anything else to the text path.
func Decide(a entity.ExtractionAttempt, t Thresholds) State {
	if utf8.RuneCountInString(a.Text) == 0 || t.LowConfidence(a) {
		return StateVisionPath
	}
	return StateTextPath
}
