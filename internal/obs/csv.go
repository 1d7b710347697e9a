package obs

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
)

// LoadStats reports what the loader had to drop or repair. Counts feed the
// metrics registry so data-quality problems stay visible.
type LoadStats struct {
	Rows      int
	Malformed int
}

var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02",
}

// ReadCSV loads observations from CSV with a header row containing at least
// patient_id, time, channel, value and optionally ref. Rows with an
// unparsable patient id or timestamp are dropped and counted; an unparsable
// value loads as NaN so the rule evaluators can exclude it per-rule.
func ReadCSV(r io.Reader) (Table, LoadStats, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, LoadStats{}, fmt.Errorf("read csv header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"patient_id", "time", "channel", "value"} {
		if _, ok := col[required]; !ok {
			return nil, LoadStats{}, fmt.Errorf("csv is missing required column %q", required)
		}
	}

	var (
		tab   Table
		stats LoadStats
	)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, stats, fmt.Errorf("read csv record: %w", err)
		}
		stats.Rows++

		patient, err := strconv.ParseInt(strings.TrimSpace(rec[col["patient_id"]]), 10, 64)
		if err != nil {
			stats.Malformed++
			continue
		}
		ts, err := parseTime(rec[col["time"]])
		if err != nil {
			stats.Malformed++
			continue
		}

		o := Observation{
			PatientID: patient,
			Time:      ts,
			Channel:   strings.TrimSpace(rec[col["channel"]]),
		}
		if v, err := parseValue(rec[col["value"]]); err == nil {
			o.Value = v
		} else {
			o.Value = math.NaN()
			stats.Malformed++
		}
		if i, ok := col["ref"]; ok && i < len(rec) {
			if ref, ok := ParseRef(rec[i]); ok {
				o.Ref = &ref
			}
		}
		tab = append(tab, o)
	}
	return tab, stats, nil
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func parseValue(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty value")
	}
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
}

// ParseRef normalizes a reference-text cell to a numeric bound. Source data
// writes these as comparison strings with decimal commas, mostly "<8,0".
func ParseRef(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "<>=≤≥ ")
	s = strings.ReplaceAll(s, ",", ".")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
