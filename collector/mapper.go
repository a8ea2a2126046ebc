package collector

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"room_occupancy/config"
)

// Reading is one key/value pair received from a topic
type Reading struct {
	Topic string
	Key   string
	Value string
}

// mapping is one compiled field routing rule
type mapping struct {
	pattern  *regexp.Regexp
	template string
}

// FieldMapper routes "<topic>/<key>" to a snapshot column. Rules are tried
// in order; the first match wins and its field template may reference
// capture groups ($1, ${name}).
type FieldMapper struct {
	rules []mapping
}

// NewFieldMapper compiles the configured rules
func NewFieldMapper(rules []config.FieldMapping) (*FieldMapper, error) {
	m := &FieldMapper{rules: make([]mapping, 0, len(rules))}
	for i, r := range rules {
		re, err := regexp.Compile(r.Match)
		if err != nil {
			return nil, fmt.Errorf("mapping %d (%q): %w", i, r.Match, err)
		}
		if r.Field == "" {
			return nil, fmt.Errorf("mapping %d (%q): empty field", i, r.Match)
		}
		m.rules = append(m.rules, mapping{pattern: re, template: r.Field})
	}
	return m, nil
}

// Map returns the column for a reading, or false when no rule matches
func (m *FieldMapper) Map(topic, key string) (string, bool) {
	subject := topic + "/" + key
	for _, r := range m.rules {
		match := r.pattern.FindStringSubmatchIndex(subject)
		if match == nil {
			continue
		}
		field := r.pattern.ExpandString(nil, r.template, subject, match)
		if len(field) == 0 {
			continue
		}
		return string(field), true
	}
	return "", false
}

// DecodePayload splits a message into readings. A JSON object yields one
// reading per key; any other payload becomes a single reading under "value".
func DecodePayload(topic string, payload []byte) []Reading {
	var obj map[string]interface{}
	if err := json.Unmarshal(payload, &obj); err == nil && obj != nil {
		out := make([]Reading, 0, len(obj))
		for k, v := range obj {
			if s, ok := formatValue(v); ok {
				out = append(out, Reading{Topic: topic, Key: k, Value: s})
			}
		}
		return out
	}

	var scalar interface{}
	if err := json.Unmarshal(payload, &scalar); err == nil {
		if s, ok := formatValue(scalar); ok {
			return []Reading{{Topic: topic, Key: "value", Value: s}}
		}
		return nil
	}
	text := strings.TrimSpace(string(payload))
	if text == "" {
		return nil
	}
	return []Reading{{Topic: topic, Key: "value", Value: text}}
}

// formatValue renders a JSON scalar as a CSV cell; bools become 1/0 so the
// ingestor reads them as numeric flags. Nested values are skipped.
func formatValue(v interface{}) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case bool:
		if x {
			return "1", true
		}
		return "0", true
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), true
	case string:
		return x, true
	}
	return "", false
}
