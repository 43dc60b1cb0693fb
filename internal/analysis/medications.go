package analysis

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
)

// MedicationEntry is a prescribed medication with the details found below it.
type MedicationEntry struct {
	Name      string `json:"name"`
	Dosage    string `json:"dosage"`
	Frequency string `json:"frequency"`
}

type scanState int

const (
	stateScanning scanState = iota
	stateEntry
)

// cursor is the position of the scan. In stateEntry it also holds the open
// entry, the line that opened it and the last line of its window.
type cursor struct {
	state  scanState
	pos    int
	origin int
	end    int
	entry  MedicationEntry
}

// medicationScanner walks the lines with an explicit state machine. After an
// entry is finalized the scan resumes on the line below the entry line, so close
// entries may share window lines.
type medicationScanner struct {
	entry           *regexp.Regexp
	dosageMarker    string
	frequencyMarker string
	window          int
	title           cases.Caser
}

// step applies one transition and returns the next cursor. A finalized entry is
// returned with ok set.
//
// Scanning: the line under the cursor either opens an entry, moving to
// stateEntry on the line below it, or the cursor moves on one line.
// Entry: the next window line fills dosage and frequency; once the cursor is
// past the window the entry is finalized and scanning resumes at origin+1.
func (s *medicationScanner) step(lines []string, c cursor) (next cursor, med MedicationEntry, ok bool) {
	switch c.state {
	case stateEntry:
		if c.pos > c.end {
			return cursor{state: stateScanning, pos: c.origin + 1}, c.entry, true
		}
		if value, found := markerValue(lines[c.pos], s.dosageMarker); found {
			c.entry.Dosage = value
		}
		if value, found := markerValue(lines[c.pos], s.frequencyMarker); found {
			c.entry.Frequency = value
		}
		c.pos++
		return c, MedicationEntry{}, false

	default:
		match := s.entry.FindStringSubmatch(lines[c.pos])
		if len(match) < 2 || match[1] == "" {
			c.pos++
			return c, MedicationEntry{}, false
		}

		end := c.pos + s.window
		if end > len(lines)-1 {
			end = len(lines) - 1
		}
		return cursor{
			state:  stateEntry,
			pos:    c.pos + 1,
			origin: c.pos,
			end:    end,
			entry:  MedicationEntry{Name: s.title.String(match[1])},
		}, MedicationEntry{}, false
	}
}

func (s *medicationScanner) scan(lines []string) []MedicationEntry {
	meds := []MedicationEntry{}
	c := cursor{state: stateScanning}
	for c.state == stateEntry || c.pos < len(lines) {
		var med MedicationEntry
		var ok bool
		c, med, ok = s.step(lines, c)
		if ok {
			meds = append(meds, med)
		}
	}
	return meds
}

// markerValue returns the trimmed text after the first marker on the line, cut
// short at a repeated marker.
func markerValue(line, marker string) (string, bool) {
	_, after, found := strings.Cut(line, marker)
	if !found {
		return "", false
	}
	if idx := strings.Index(after, marker); idx >= 0 {
		after = after[:idx]
	}
	return strings.TrimSpace(after), true
}

// ParseMedications runs the default prescription patterns over normalized lines.
func ParseMedications(lines []string) []MedicationEntry {
	return defaultEngine.parseMedications(lines)
}
