// Package analysis derives structured findings from the text of a scanned medical report.
//
// The engine runs two passes over the lower-cased lines of a document:
//   - a keyword scan that reports which known diseases are mentioned
//   - a context scan that opens a medication entry for every numbered line
//     ("1. Metformin") and fills its dosage and frequency from the lines
//     immediately below it
//
// Keywords, the numbered-line pattern, the markers and the lookahead window are
// configuration (see Vocabulary), so alternate vocabularies can be loaded from YAML.
//
// An Engine performs no I/O and keeps no state between calls; it is safe to share
// between goroutines.
package analysis

import (
	"regexp"
)

var defaultEngine = MustNewEngine(DefaultVocabulary())

// Analysis is the result of analyzing one document.
type Analysis struct {
	Diseases    []string          `json:"diseases"`
	Medications []MedicationEntry `json:"medications"`
}

// Engine analyzes report text with a fixed vocabulary.
type Engine struct {
	keywords        []string
	entry           *regexp.Regexp
	dosageMarker    string
	frequencyMarker string
	window          int
}

// NewEngine validates the vocabulary and compiles its entry pattern.
func NewEngine(v Vocabulary) (*Engine, error) {
	re, err := v.compile()
	if err != nil {
		return nil, err
	}

	keywords := make([]string, len(v.Diseases))
	copy(keywords, v.Diseases)

	return &Engine{
		keywords:        keywords,
		entry:           re,
		dosageMarker:    canonical(v.DosageMarker),
		frequencyMarker: canonical(v.FrequencyMarker),
		window:          v.Window,
	}, nil
}

// MustNewEngine is like NewEngine but panics on an invalid vocabulary.
func MustNewEngine(v Vocabulary) *Engine {
	e, err := NewEngine(v)
	if err != nil {
		panic(err)
	}
	return e
}

// Analyze returns the diseases and medications found in text. Empty text gives
// empty lists.
func (e *Engine) Analyze(text string) Analysis {
	lines := Normalize(text)

	return Analysis{
		Diseases:    DetectDiseases(lines, e.keywords),
		Medications: e.parseMedications(lines),
	}
}

func (e *Engine) parseMedications(lines []string) []MedicationEntry {
	s := &medicationScanner{
		entry:           e.entry,
		dosageMarker:    e.dosageMarker,
		frequencyMarker: e.frequencyMarker,
		window:          e.window,
		title:           titleCaser(),
	}
	return s.scan(lines)
}

// Analyze runs the default vocabulary over text.
func Analyze(text string) Analysis {
	return defaultEngine.Analyze(text)
}
