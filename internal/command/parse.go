package command

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed commands.schema.json
var schemaJSON []byte

const schemaURL = "commands.schema.json"

var (
	listSchema  *jsonschema.Schema
	compileOnce sync.Once
	compileErr  error
)

// ErrMalformed wraps every error returned by Parse.
var ErrMalformed = errors.New("malformed command list")

func compileSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
		if err != nil {
			compileErr = fmt.Errorf("unmarshal command schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, doc); err != nil {
			compileErr = fmt.Errorf("add command schema resource: %w", err)
			return
		}
		listSchema, err = c.Compile(schemaURL)
		if err != nil {
			compileErr = fmt.Errorf("compile command schema: %w", err)
		}
	})
	return listSchema, compileErr
}

// wireSpec mirrors the persisted shape. Numbers are decoded as float64 because
// settings editors may write spin-button values such as 5.0.
type wireSpec struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Command  string   `json:"command"`
	Interval *float64 `json:"interval"`
	Timeout  *float64 `json:"timeout"`
	Enabled  bool     `json:"enabled"`
}

// Parse decodes the persisted JSON command list.
//
// An empty document is an empty list. Anything that is not an array of
// command objects (bad JSON, wrong types, missing id/command) is an error
// wrapping ErrMalformed; callers are expected to degrade to an empty list.
// Out-of-range interval/timeout values are clamped, not rejected.
func Parse(raw string) ([]Spec, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	sch, err := compileSchema()
	if err != nil {
		return nil, err
	}
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := sch.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var wire []wireSpec
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	out := make([]Spec, 0, len(wire))
	for _, w := range wire {
		s := Spec{
			ID:       w.ID,
			Name:     w.Name,
			Command:  w.Command,
			Interval: DefaultInterval,
			Timeout:  DefaultTimeout,
			Enabled:  w.Enabled,
		}
		if w.Interval != nil {
			s.Interval = clampSeconds(roundSeconds(*w.Interval), DefaultInterval, MinInterval, MaxInterval)
		}
		if w.Timeout != nil {
			s.Timeout = clampSeconds(roundSeconds(*w.Timeout), DefaultTimeout, MinTimeout, MaxTimeout)
		}
		out = append(out, s)
	}
	return out, nil
}

// Dedup drops every spec whose id was already seen, keeping the first one.
// It returns the surviving list and the dropped ids (in encounter order).
func Dedup(specs []Spec) ([]Spec, []string) {
	seen := make(map[string]struct{}, len(specs))
	out := make([]Spec, 0, len(specs))
	var dropped []string
	for _, s := range specs {
		if _, ok := seen[s.ID]; ok {
			dropped = append(dropped, s.ID)
			continue
		}
		seen[s.ID] = struct{}{}
		out = append(out, s)
	}
	return out, dropped
}

// Encode serializes the full list in the persisted layout.
func Encode(specs []Spec) (string, error) {
	if specs == nil {
		specs = []Spec{}
	}
	b, err := json.Marshal(specs)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// NewID returns a fresh random command id.
func NewID() string { return uuid.NewString() }

// New returns an enabled spec with default cadence and a fresh id.
func New(name, cmd string) Spec {
	return Spec{
		ID:       NewID(),
		Name:     name,
		Command:  cmd,
		Interval: DefaultInterval,
		Timeout:  DefaultTimeout,
		Enabled:  true,
	}
}

// Index returns the position of id in specs, or -1.
func Index(specs []Spec, id string) int {
	for i := range specs {
		if specs[i].ID == id {
			return i
		}
	}
	return -1
}

func roundSeconds(f float64) int {
	if math.IsNaN(f) || f <= 0 {
		return 0
	}
	// A positive fraction of a second is below the minimum, not unset.
	if f < 1 {
		return 1
	}
	if f > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(math.Round(f))
}
