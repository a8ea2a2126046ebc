package labeler

import (
	"regexp"
	"sort"
	"strings"
)

// ColumnKind is the role a column plays in a generated rule
type ColumnKind string

const (
	KindTrigger ColumnKind = "trigger"
	KindCO2     ColumnKind = "co2"
)

// GenRule maps a column name pattern to a role
type GenRule struct {
	Pattern *regexp.Regexp
	Kind    ColumnKind
}

// DefaultGenRules recognise the event and CO2 sensors of the testbed
var DefaultGenRules = []GenRule{
	{Pattern: regexp.MustCompile(`(?i)(^|[_\W])(pir|motion|thermal|presence)([_\W]|\d|$)`), Kind: KindTrigger},
	{Pattern: regexp.MustCompile(`(?i)(^|[_\W])sound(_trig|_amp)?([_\W]|\d|$)`), Kind: KindTrigger},
	{Pattern: regexp.MustCompile(`(?i)(^|[_\W])co2([_\W]|\d|$)`), Kind: KindCO2},
}

// derivedFeature matches columns produced by feature augmentation
var derivedFeature = regexp.MustCompile(`__(mean|std|diff)\d`)

// GenOptions configures rule generation from a header
type GenOptions struct {
	// Keywords maps a room name to extra substrings identifying its columns;
	// the room name itself always matches. Rule order follows RoomOrder.
	RoomOrder []string
	Keywords  map[string][]string
	Rules     []GenRule
	NoneLabel string
}

// Generate builds label rules from a CSV header. A column belongs to a room
// when its lowercased name contains the room name or one of its keywords and
// its role is decided by the first matching GenRule. Derived feature columns
// are ignored.
func Generate(header []string, opts GenOptions) *Rules {
	genRules := opts.Rules
	if len(genRules) == 0 {
		genRules = DefaultGenRules
	}

	rules := DefaultRules()
	rules.DropIfMultiTrue = true
	if opts.NoneLabel != "" {
		rules.NoneLabel = opts.NoneLabel
	}

	for _, room := range opts.RoomOrder {
		keys := append([]string{strings.ToLower(room)}, lower(opts.Keywords[room])...)
		r := Room{Name: room, TriggerColumns: []string{}}
		for _, col := range header {
			if derivedFeature.MatchString(col) || !containsAny(strings.ToLower(col), keys) {
				continue
			}
			switch classify(col, genRules) {
			case KindTrigger:
				r.TriggerColumns = append(r.TriggerColumns, col)
			case KindCO2:
				r.CO2Columns = append(r.CO2Columns, col)
			}
		}
		sort.Strings(r.TriggerColumns)
		sort.Strings(r.CO2Columns)
		rules.Rooms = append(rules.Rooms, r)
	}
	return &rules
}

func classify(col string, rules []GenRule) ColumnKind {
	for _, r := range rules {
		if r.Pattern.MatchString(col) {
			return r.Kind
		}
	}
	return ""
}

func containsAny(s string, keys []string) bool {
	for _, k := range keys {
		if k != "" && strings.Contains(s, k) {
			return true
		}
	}
	return false
}

func lower(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}
