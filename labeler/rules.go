package labeler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"room_occupancy/table"
)

// Policy decides the label when several rooms are active at once
type Policy string

const (
	PolicyScore    Policy = "score"
	PolicyPriority Policy = "priority"
	PolicyFirst    Policy = "first"
	PolicyDrop     Policy = "drop"
)

// ErrUnknownPolicy is returned for an unrecognised resolve_multi value
var ErrUnknownPolicy = errors.New("unknown resolve_multi policy")

// Room is one room trigger rule
type Room struct {
	Name           string   `json:"name"`
	TriggerColumns []string `json:"trigger_columns"`
	CO2Columns     []string `json:"co2_columns,omitempty"`
}

// Rules is the label configuration, loaded once per run
type Rules struct {
	Rooms            []Room   `json:"rooms"`
	NoneLabel        string   `json:"none_label"`
	ResolveMulti     Policy   `json:"resolve_multi"`
	DropIfMultiTrue  bool     `json:"drop_if_multi_true,omitempty"`
	Priority         []string `json:"priority,omitempty"`
	PIRWindowSec     int      `json:"pir_window_sec"`
	StickyAfterSec   int      `json:"sticky_after_sec"`
	CO2WindowSec     int      `json:"co2_window_sec"`
	CO2RisePPMPerMin float64  `json:"co2_rise_ppm_per_min"`
	CO2StickySec     int      `json:"co2_sticky_sec"`
}

// DefaultRules returns the parameter defaults with no rooms
func DefaultRules() Rules {
	return Rules{
		NoneLabel:        "unknown",
		ResolveMulti:     PolicyScore,
		PIRWindowSec:     10,
		StickyAfterSec:   30,
		CO2WindowSec:     120,
		CO2RisePPMPerMin: 20,
		CO2StickySec:     90,
	}
}

type legacyRoom struct {
	AnyTrue        []string `json:"any_true"`
	TriggerColumns []string `json:"trigger_columns"`
	CO2Columns     []string `json:"co2_columns"`
}

type rawRules struct {
	Rooms            []Room          `json:"rooms"`
	LabelRules       json.RawMessage `json:"label_rules"`
	CO2ColumnsRaw    json.RawMessage `json:"co2_columns"`
	NoneLabel        *string         `json:"none_label"`
	ResolveMulti     *Policy         `json:"resolve_multi"`
	DropIfMultiTrue  bool            `json:"drop_if_multi_true"`
	Priority         []string        `json:"priority"`
	PIRWindowSec     *int            `json:"pir_window_sec"`
	StickyAfterSec   *int            `json:"sticky_after_sec"`
	CO2WindowSec     *int            `json:"co2_window_sec"`
	CO2RisePPMPerMin *float64        `json:"co2_rise_ppm_per_min"`
	CO2StickySec     *int            `json:"co2_sticky_sec"`
}

// UnmarshalJSON accepts the ordered "rooms" list and also the older
// "label_rules" object form ({"room": {"any_true": [...]}} with a top-level
// "co2_columns" map). Object key order is kept as rule order.
func (r *Rules) UnmarshalJSON(data []byte) error {
	var raw rawRules
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := DefaultRules()
	out.Rooms = raw.Rooms
	if len(raw.LabelRules) > 0 && !bytes.Equal(raw.LabelRules, []byte("null")) {
		legacy, err := decodeOrderedRooms(raw.LabelRules)
		if err != nil {
			return fmt.Errorf("label_rules: %w", err)
		}
		out.Rooms = append(out.Rooms, legacy...)
	}
	if len(raw.CO2ColumnsRaw) > 0 && !bytes.Equal(raw.CO2ColumnsRaw, []byte("null")) {
		var byRoom map[string][]string
		if err := json.Unmarshal(raw.CO2ColumnsRaw, &byRoom); err != nil {
			return fmt.Errorf("co2_columns: %w", err)
		}
		for i := range out.Rooms {
			if cols, ok := byRoom[out.Rooms[i].Name]; ok {
				out.Rooms[i].CO2Columns = append(out.Rooms[i].CO2Columns, cols...)
			}
		}
	}

	if raw.NoneLabel != nil {
		out.NoneLabel = *raw.NoneLabel
	}
	if raw.ResolveMulti != nil {
		out.ResolveMulti = *raw.ResolveMulti
	}
	out.DropIfMultiTrue = raw.DropIfMultiTrue
	out.Priority = raw.Priority
	if raw.PIRWindowSec != nil {
		out.PIRWindowSec = *raw.PIRWindowSec
	}
	if raw.StickyAfterSec != nil {
		out.StickyAfterSec = *raw.StickyAfterSec
	}
	if raw.CO2WindowSec != nil {
		out.CO2WindowSec = *raw.CO2WindowSec
	}
	if raw.CO2RisePPMPerMin != nil {
		out.CO2RisePPMPerMin = *raw.CO2RisePPMPerMin
	}
	if raw.CO2StickySec != nil {
		out.CO2StickySec = *raw.CO2StickySec
	}

	*r = out
	return nil
}

func decodeOrderedRooms(data []byte) ([]Room, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected an object")
	}

	var rooms []Room
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		name, _ := tok.(string)
		var lr legacyRoom
		if err := dec.Decode(&lr); err != nil {
			return nil, fmt.Errorf("room %q: %w", name, err)
		}
		rooms = append(rooms, Room{
			Name:           name,
			TriggerColumns: append(lr.AnyTrue, lr.TriggerColumns...),
			CO2Columns:     lr.CO2Columns,
		})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return rooms, nil
}

func checkLabel(what, label string) error {
	if table.IsMissingToken(label) {
		return fmt.Errorf("%s %q is read back as a missing value", what, label)
	}
	if _, ok := table.BoolToken(label); ok {
		return fmt.Errorf("%s %q is read back as a boolean", what, label)
	}
	return nil
}

// EffectivePolicy folds drop_if_multi_true into the policy
func (r *Rules) EffectivePolicy() Policy {
	if r.DropIfMultiTrue {
		return PolicyDrop
	}
	return r.ResolveMulti
}

// Validate checks the rules before a run
func (r *Rules) Validate() error {
	switch r.ResolveMulti {
	case PolicyScore, PolicyPriority, PolicyFirst, PolicyDrop:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownPolicy, r.ResolveMulti)
	}
	if len(r.Rooms) == 0 {
		return fmt.Errorf("no rooms defined")
	}
	// labels must read back from CSV as the same text
	if err := checkLabel("none_label", r.NoneLabel); err != nil {
		return err
	}
	seen := make(map[string]bool, len(r.Rooms))
	for _, room := range r.Rooms {
		if room.Name == "" {
			return fmt.Errorf("room with empty name")
		}
		if err := checkLabel("room name", room.Name); err != nil {
			return err
		}
		if seen[room.Name] {
			return fmt.Errorf("room %q defined twice", room.Name)
		}
		seen[room.Name] = true
	}
	if r.PIRWindowSec < 1 {
		return fmt.Errorf("pir_window_sec must be at least 1")
	}
	if r.StickyAfterSec < 0 || r.CO2StickySec < 0 {
		return fmt.Errorf("sticky durations must not be negative")
	}
	if r.CO2WindowSec < 1 {
		return fmt.Errorf("co2_window_sec must be at least 1")
	}
	return nil
}

// UsedColumns returns every trigger and CO2 column named by the rules
func (r *Rules) UsedColumns() []string {
	seen := map[string]bool{}
	var out []string
	for _, room := range r.Rooms {
		for _, c := range append(append([]string{}, room.TriggerColumns...), room.CO2Columns...) {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
	}
	return out
}

// LoadRules reads and validates a JSON rules file
func LoadRules(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read label config: %w", err)
	}
	var rules Rules
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("failed to parse label config: %w", err)
	}
	if err := rules.Validate(); err != nil {
		return nil, fmt.Errorf("invalid label config: %w", err)
	}
	return &rules, nil
}
