package trends

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

const (
	// DefaultKeyField is the disease label column of the data.gov.in outbreak dataset.
	DefaultKeyField = "disease_disease_condition"

	// DefaultValueField is the outbreak count column of the data.gov.in outbreak dataset.
	DefaultValueField = "nos_of_outbreaks"
)

// Record is one raw object from the source's "records" array.
type Record map[string]any

// OutbreakRecord is the total number of outbreaks reported for one disease.
type OutbreakRecord struct {
	Disease   string  `json:"disease"`
	Outbreaks float64 `json:"outbreaks"`
}

// TieBreak decides the order of diseases with equal totals.
type TieBreak int

const (
	// TieBreakKey orders equal totals by disease label, ascending.
	TieBreakKey TieBreak = iota

	// TieBreakFirstSeen keeps equal totals in the order their label first appeared.
	TieBreakFirstSeen
)

// ParseTieBreak accepts "key" or "first-seen".
func ParseTieBreak(s string) (TieBreak, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "key":
		return TieBreakKey, nil
	case "first-seen", "first_seen", "firstseen":
		return TieBreakFirstSeen, nil
	default:
		return TieBreakKey, fmt.Errorf("unknown tie-break %q (want key or first-seen)", s)
	}
}

// String implements fmt.Stringer.
func (t TieBreak) String() string {
	if t == TieBreakFirstSeen {
		return "first-seen"
	}
	return "key"
}

// Aggregator groups raw records by a key field and sums a numeric field.
type Aggregator struct {
	KeyField   string
	ValueField string
	TieBreak   TieBreak
}

// DefaultAggregator returns an aggregator for the data.gov.in outbreak dataset.
func DefaultAggregator() Aggregator {
	return Aggregator{
		KeyField:   DefaultKeyField,
		ValueField: DefaultValueField,
		TieBreak:   TieBreakKey,
	}
}

// Aggregate sums the outbreak counts per disease and sorts the totals, highest
// first. A single unparseable count, a blank key or a total that overflows
// fails the whole call. No records gives an empty list.
func (a Aggregator) Aggregate(records []Record) ([]OutbreakRecord, error) {
	totals := make(map[string]float64)
	var order []string

	for i, rec := range records {
		key, ok := groupKey(rec[a.KeyField])
		if !ok {
			return nil, &FieldError{Index: i, Field: a.KeyField}
		}

		raw := rec[a.ValueField]
		value, err := coerce(raw)
		if err != nil {
			return nil, &CoercionError{Index: i, Field: a.ValueField, Value: raw}
		}

		if _, seen := totals[key]; !seen {
			order = append(order, key)
		}
		totals[key] += value
		if math.IsInf(totals[key], 0) {
			return nil, &TrendError{
				Op:      "Aggregate",
				Err:     ErrNumericCoercion,
				Details: fmt.Sprintf("total for %q overflows at record %d", key, i),
			}
		}
	}

	if a.TieBreak == TieBreakKey {
		sort.Strings(order)
	}

	result := make([]OutbreakRecord, 0, len(order))
	for _, key := range order {
		result = append(result, OutbreakRecord{Disease: key, Outbreaks: totals[key]})
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Outbreaks > result[j].Outbreaks
	})

	return result, nil
}

// Top returns the first n records, or all of them when n is not positive.
func Top(records []OutbreakRecord, n int) []OutbreakRecord {
	if n <= 0 || n >= len(records) {
		return records
	}
	return records[:n]
}

func groupKey(v any) (string, bool) {
	switch k := v.(type) {
	case nil:
		return "", false
	case string:
		return k, strings.TrimSpace(k) != ""
	case json.Number:
		return k.String(), true
	default:
		return fmt.Sprint(k), true
	}
}

// coerce reads JSON numbers and numeric strings. Blank, null, boolean and
// non-finite values are rejected.
func coerce(v any) (float64, error) {
	var f float64

	switch n := v.(type) {
	case json.Number:
		parsed, err := strconv.ParseFloat(n.String(), 64)
		if err != nil {
			return 0, err
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, err
		}
		f = parsed
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("non-finite value %v", f)
	}
	return f, nil
}
