package analysis

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultEntryPattern matches a numbered prescription line such as "1. Acetaminophen"
	// and captures the first word token after the number. Whitespace includes
	// vertical tabs and Unicode spaces such as U+00A0, which OCR output contains.
	DefaultEntryPattern = `^[\s\v\p{Z}]*\p{Nd}+\.[\s\v\p{Z}]*([\p{L}\p{N}_]+)`

	// DefaultDosageMarker introduces the dosage of the preceding medication.
	DefaultDosageMarker = "dosage:"

	// DefaultFrequencyMarker introduces the frequency of the preceding medication.
	DefaultFrequencyMarker = "frequency:"

	// DefaultWindow is the number of lines after an entry line searched for markers.
	DefaultWindow = 3
)

// ErrInvalidVocabulary is returned when a vocabulary cannot drive the engine.
var ErrInvalidVocabulary = errors.New("invalid analysis vocabulary")

// defaultDiseases is the keyword list recognized when no vocabulary file is configured.
var defaultDiseases = []string{
	"fever", "cough", "headache", "infection", "diabetes", "hypertension",
	"anemia", "gastritis", "bronchitis", "pneumonia", "fracture",
}

// Vocabulary holds the keyword and pattern configuration of the engine.
type Vocabulary struct {
	// Diseases are matched case-insensitively as substrings of each line.
	Diseases []string `yaml:"diseases"`

	// EntryPattern opens a medication entry. The first capture group is the name.
	EntryPattern string `yaml:"entry_pattern"`

	DosageMarker    string `yaml:"dosage_marker"`
	FrequencyMarker string `yaml:"frequency_marker"`

	// Window is how many lines after an entry line are searched for markers.
	Window int `yaml:"window"`
}

// DefaultVocabulary returns the built-in keyword list and prescription patterns.
func DefaultVocabulary() Vocabulary {
	diseases := make([]string, len(defaultDiseases))
	copy(diseases, defaultDiseases)

	return Vocabulary{
		Diseases:        diseases,
		EntryPattern:    DefaultEntryPattern,
		DosageMarker:    DefaultDosageMarker,
		FrequencyMarker: DefaultFrequencyMarker,
		Window:          DefaultWindow,
	}
}

// ParseVocabulary reads a YAML vocabulary. Fields left out keep their defaults.
func ParseVocabulary(data []byte) (Vocabulary, error) {
	raw := struct {
		Diseases        []string `yaml:"diseases"`
		EntryPattern    string   `yaml:"entry_pattern"`
		DosageMarker    string   `yaml:"dosage_marker"`
		FrequencyMarker string   `yaml:"frequency_marker"`
		Window          *int     `yaml:"window"`
	}{}

	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Vocabulary{}, fmt.Errorf("%w: %v", ErrInvalidVocabulary, err)
	}

	v := DefaultVocabulary()
	if len(raw.Diseases) > 0 {
		v.Diseases = raw.Diseases
	}
	if raw.EntryPattern != "" {
		v.EntryPattern = raw.EntryPattern
	}
	if raw.DosageMarker != "" {
		v.DosageMarker = raw.DosageMarker
	}
	if raw.FrequencyMarker != "" {
		v.FrequencyMarker = raw.FrequencyMarker
	}
	if raw.Window != nil {
		v.Window = *raw.Window
	}

	if err := v.Validate(); err != nil {
		return Vocabulary{}, err
	}
	return v, nil
}

// LoadVocabulary reads a YAML vocabulary file.
func LoadVocabulary(path string) (Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Vocabulary{}, fmt.Errorf("failed to read vocabulary file %s: %w", path, err)
	}
	return ParseVocabulary(data)
}

// Validate checks that the vocabulary can be compiled into an engine.
func (v Vocabulary) Validate() error {
	_, err := v.compile()
	return err
}

func (v Vocabulary) compile() (*regexp.Regexp, error) {
	hasKeyword := false
	for _, d := range v.Diseases {
		if canonical(d) != "" {
			hasKeyword = true
			break
		}
	}
	if !hasKeyword {
		return nil, fmt.Errorf("%w: no disease keywords", ErrInvalidVocabulary)
	}

	if strings.TrimSpace(v.DosageMarker) == "" || strings.TrimSpace(v.FrequencyMarker) == "" {
		return nil, fmt.Errorf("%w: dosage and frequency markers are required", ErrInvalidVocabulary)
	}

	if v.Window < 0 {
		return nil, fmt.Errorf("%w: window must not be negative (got %d)", ErrInvalidVocabulary, v.Window)
	}

	re, err := regexp.Compile(v.EntryPattern)
	if err != nil {
		return nil, fmt.Errorf("%w: entry pattern: %v", ErrInvalidVocabulary, err)
	}
	if re.NumSubexp() < 1 {
		return nil, fmt.Errorf("%w: entry pattern %q has no capture group", ErrInvalidVocabulary, v.EntryPattern)
	}

	return re, nil
}
