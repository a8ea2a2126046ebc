package table

import (
	"math"
	"strconv"
	"strings"
)

// Kind identifies what a cell holds
type Kind uint8

const (
	KindMissing Kind = iota
	KindNumber
	KindBool
	KindText
)

// Value is a single CSV cell after coercion
type Value struct {
	Kind Kind
	Num  float64
	Str  string
}

// Missing returns an empty cell
func Missing() Value { return Value{} }

// Number returns a numeric cell
func Number(f float64) Value { return Value{Kind: KindNumber, Num: f} }

// Bool returns a boolean cell stored as 0/1
func Bool(b bool) Value {
	if b {
		return Value{Kind: KindBool, Num: 1}
	}
	return Value{Kind: KindBool, Num: 0}
}

// Text returns a categorical cell
func Text(s string) Value { return Value{Kind: KindText, Str: s} }

// IsMissing reports whether the cell is empty
func (v Value) IsMissing() bool { return v.Kind == KindMissing }

// Float returns the numeric reading of the cell. Bools read as 0/1, text and
// missing cells are not numeric.
func (v Value) Float() (float64, bool) {
	switch v.Kind {
	case KindNumber, KindBool:
		return v.Num, true
	}
	return 0, false
}

// Active reports whether the cell signals a trigger: a non-zero number, a true
// bool, or a text cell holding a true-like token.
func (v Value) Active() bool {
	switch v.Kind {
	case KindNumber, KindBool:
		return v.Num != 0
	case KindText:
		b, ok := BoolToken(v.Str)
		return ok && b
	}
	return false
}

// String formats the cell for CSV output; missing cells are empty
func (v Value) String() string {
	switch v.Kind {
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	case KindBool:
		if v.Num != 0 {
			return "1"
		}
		return "0"
	case KindText:
		return v.Str
	}
	return ""
}

var missingTokens = map[string]bool{
	"":     true,
	"nan":  true,
	"na":   true,
	"n/a":  true,
	"null": true,
	"none": true,
	"nat":  true,
}

var boolTokens = map[string]bool{
	"true":  true,
	"t":     true,
	"yes":   true,
	"y":     true,
	"on":    true,
	"false": false,
	"f":     false,
	"no":    false,
	"n":     false,
	"off":   false,
	// door contacts: closed is consistent with someone being inside
	"open":   false,
	"closed": true,
}

// IsMissingToken reports whether s is read back as a missing cell
func IsMissingToken(s string) bool {
	return missingTokens[strings.ToLower(strings.TrimSpace(s))]
}

// BoolToken maps a boolean-like token to its truth value
func BoolToken(s string) (bool, bool) {
	b, ok := boolTokens[strings.ToLower(strings.TrimSpace(s))]
	return b, ok
}

// ParseCell types raw CSV text as missing, numeric or text. Boolean-like
// tokens are left as text here; NormalizeColumn decides on them per column.
func ParseCell(raw string) Value {
	s := strings.TrimSpace(raw)
	if IsMissingToken(s) {
		return Missing()
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if math.IsInf(f, 0) {
			return Missing()
		}
		return Number(f)
	}
	return Text(s)
}

// NormalizeColumn converts boolean-like text in a non-numeric column to Bool
// cells. Numeric columns and unmatched text are returned unchanged.
func NormalizeColumn(values []Value) []Value {
	if isNumeric(values) {
		return values
	}
	out := make([]Value, len(values))
	for i, v := range values {
		if v.Kind == KindText {
			if b, ok := BoolToken(v.Str); ok {
				out[i] = Bool(b)
				continue
			}
		}
		out[i] = v
	}
	return out
}

func isNumeric(values []Value) bool {
	for _, v := range values {
		if v.Kind == KindText {
			return false
		}
	}
	return true
}
