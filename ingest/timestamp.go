package ingest

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// TimeColumnCandidates are checked in order, case-sensitively, before any
// content sniffing.
var TimeColumnCandidates = []string{
	"timestamp", "time", "datetime", "date", "ts",
	"Timestamp", "Time", "Datetime", "Date", "TS",
	"Unnamed: 0",
}

const (
	detectSampleRows = 200
	detectMinShare   = 0.8
	numericFailShare = 0.5
	plausibleMinYear = 2000
	plausibleMaxYear = 2100
)

// Zone-less layouts parse as UTC. A fractional second after the seconds
// field is accepted by time.Parse even when the layout omits it.
var calendarLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05-0700",
	"2006-01-02 15:04:05 -0700 MST",
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006/01/02 15:04",
	"2006-01-02",
	"2006/01/02",
}

func parseCalendar(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range calendarLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

func plausible(ts time.Time) bool {
	y := ts.Year()
	return y >= plausibleMinYear && y <= plausibleMaxYear
}

func fromEpoch(f float64, unit time.Duration) (time.Time, bool) {
	whole := math.Trunc(f)
	limit := float64(math.MaxInt64 / int64(unit))
	if math.Abs(whole) >= limit {
		return time.Time{}, false
	}
	ns := int64(whole)*int64(unit) + int64(math.Round((f-whole)*float64(unit)))
	return time.Unix(0, ns).UTC(), true
}

// ParseTimestamps parses a raw time column. Calendar text is tried first;
// when more than half of the values fail, the column is read as epoch
// numbers and the unit (ms or s) producing more plausible dates wins, ties
// going to milliseconds. ok[i] is false for values that could not be parsed.
func ParseTimestamps(raw []string) ([]time.Time, []bool) {
	out := make([]time.Time, len(raw))
	ok := make([]bool, len(raw))
	if len(raw) == 0 {
		return out, ok
	}

	failed := 0
	for i, s := range raw {
		out[i], ok[i] = parseCalendar(s)
		if !ok[i] {
			failed++
		}
	}
	if float64(failed)/float64(len(raw)) <= numericFailShare {
		return out, ok
	}

	nums := make([]float64, len(raw))
	isNum := make([]bool, len(raw))
	anyNum := false
	for i, s := range raw {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
			nums[i], isNum[i] = f, true
			anyNum = true
		}
	}
	if !anyNum {
		return out, ok
	}

	ms := make([]time.Time, len(raw))
	sec := make([]time.Time, len(raw))
	var msValid, secValid int
	for i := range raw {
		if !isNum[i] {
			continue
		}
		if ts, good := fromEpoch(nums[i], time.Millisecond); good && plausible(ts) {
			ms[i] = ts
			msValid++
		}
		if ts, good := fromEpoch(nums[i], time.Second); good && plausible(ts) {
			sec[i] = ts
			secValid++
		}
	}

	chosen := ms
	if secValid > msValid {
		chosen = sec
	}
	for i := range raw {
		out[i] = chosen[i]
		ok[i] = !chosen[i].IsZero()
	}
	return out, ok
}

// DetectTimestampColumn returns the index of the time axis column: the first
// candidate name present, otherwise the first column whose sampled values
// parse as calendar dates more than 80% of the time.
func DetectTimestampColumn(header []string, rows [][]string) (int, error) {
	for _, cand := range TimeColumnCandidates {
		for i, h := range header {
			if h == cand {
				return i, nil
			}
		}
	}

	for col := range header {
		sampled, parsed := 0, 0
		for _, row := range rows {
			if sampled >= detectSampleRows {
				break
			}
			if col >= len(row) || strings.TrimSpace(row[col]) == "" {
				continue
			}
			sampled++
			if _, ok := parseCalendar(row[col]); ok {
				parsed++
			}
		}
		if sampled > 0 && float64(parsed)/float64(sampled) > detectMinShare {
			return col, nil
		}
	}

	return -1, ErrMissingTimestampColumn
}
