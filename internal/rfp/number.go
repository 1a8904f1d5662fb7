package rfp

import (
	"bytes"
	"encoding/json"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Number is a numeric value that may be explicitly unknown.
// The zero value is unknown.
type Number struct {
	value float64
	known bool
}

// Known returns a Number holding v.
func Known(v float64) Number {
	return Number{value: v, known: true}
}

// Unknown returns an absent Number.
func Unknown() Number {
	return Number{}
}

// Get returns the value and whether it is known.
func (n Number) Get() (float64, bool) {
	return n.value, n.known
}

func (n Number) IsKnown() bool {
	return n.known
}

func (n Number) String() string {
	if !n.known {
		return "unknown"
	}
	return strconv.FormatFloat(n.value, 'f', -1, 64)
}

func (n Number) MarshalJSON() ([]byte, error) {
	if !n.known {
		return []byte("null"), nil
	}
	return json.Marshal(n.value)
}

func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = Unknown()
		return nil
	}

	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*n = Known(v)
	return nil
}

func (n Number) MarshalYAML() (any, error) {
	if !n.known {
		return nil, nil
	}
	return n.value, nil
}

// UnmarshalYAML is not called for null nodes; those leave the zero (unknown) value.
func (n *Number) UnmarshalYAML(node *yaml.Node) error {
	var v float64
	if err := node.Decode(&v); err != nil {
		return err
	}
	*n = Known(v)
	return nil
}
