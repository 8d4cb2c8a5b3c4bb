// Package segment provides the segment-rule model used to target customer
// audiences: a declarative filter over customer attributes, a sanitizer that
// reduces untrusted rule objects to a safe subset, and a query builder that
// compiles sanitized rules to SQL.
package segment

import (
	"encoding/json"
	"fmt"
)

// Op represents a comparison operator inside a rule condition.
type Op string

const (
	OpGt    Op = "$gt"
	OpGte   Op = "$gte"
	OpLt    Op = "$lt"
	OpLte   Op = "$lte"
	OpEq    Op = "$eq"
	OpNe    Op = "$ne"
	OpIn    Op = "$in"
	OpNin   Op = "$nin"
	OpRegex Op = "$regex"
)

// AllowedOps is the closed set of operators a rule may use.
var AllowedOps = map[Op]bool{
	OpGt: true, OpGte: true, OpLt: true, OpLte: true,
	OpEq: true, OpNe: true, OpIn: true, OpNin: true, OpRegex: true,
}

// AllowedFields is the closed set of customer attributes a rule may filter on.
var AllowedFields = map[string]bool{
	"totalSpend": true,
	"visits":     true,
	"lastActive": true,
	"email":      true,
	"phone":      true,
	"name":       true,
}

// MaxRegexLen caps $regex pattern length to keep hostile patterns out of the
// database.
const MaxRegexLen = 512

// Condition is the per-field half of a rule. It is either a direct equality
// against a primitive (Ops == nil) or a set of operator comparisons.
type Condition struct {
	// Equals holds the direct-equality value when Ops is nil.
	Equals any
	// Ops holds operator comparisons, e.g. {$gte: 1000}.
	Ops map[Op]any
}

// IsDirect reports whether the condition is a plain equality match.
func (c Condition) IsDirect() bool { return c.Ops == nil }

// UnmarshalJSON decodes either form: a JSON object becomes an operator set,
// anything else (string, number, bool, null, array) a direct equality.
func (c *Condition) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if m, ok := raw.(map[string]any); ok {
		ops := make(map[Op]any, len(m))
		for k, v := range m {
			ops[Op(k)] = v
		}
		c.Ops = ops
		c.Equals = nil
		return nil
	}
	c.Ops = nil
	c.Equals = raw
	return nil
}

// MarshalJSON re-emits the condition in the persisted rule shape.
func (c Condition) MarshalJSON() ([]byte, error) {
	if c.Ops != nil {
		m := make(map[string]any, len(c.Ops))
		for op, v := range c.Ops {
			m[string(op)] = v
		}
		return json.Marshal(m)
	}
	return json.Marshal(c.Equals)
}

// Rules maps customer field names to conditions. The zero value (nil) matches
// every customer.
type Rules map[string]Condition

// ParseRules decodes a persisted or client-supplied rule object.
func ParseRules(data []byte) (Rules, error) {
	if len(data) == 0 {
		return Rules{}, nil
	}
	var r Rules
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse segment rules: %w", err)
	}
	if r == nil {
		r = Rules{}
	}
	return r, nil
}

// JSON encodes the rules in their persisted shape. Map keys marshal sorted,
// so equal rule sets always produce identical bytes.
func (r Rules) JSON() (json.RawMessage, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode segment rules: %w", err)
	}
	return data, nil
}
