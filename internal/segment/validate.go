package segment

import "fmt"

// Validate checks a client-supplied rule object against the same allow-lists
// the sanitizer enforces, but rejects instead of dropping. The API boundary
// calls this so a typo'd field or operator fails loudly rather than silently
// widening the audience. Sanitize stays downstream as defense-in-depth for
// rules that do not come from a client, such as AI-extracted ones.
func Validate(rules Rules) error {
	for field, cond := range rules {
		if !AllowedFields[field] {
			return fmt.Errorf("unknown field %q in segment rules", field)
		}
		if cond.IsDirect() {
			if !isPrimitive(cond.Equals) {
				return fmt.Errorf("field %q: direct equality requires a string, number, boolean, or null", field)
			}
			continue
		}
		for op, val := range cond.Ops {
			if !AllowedOps[op] {
				return fmt.Errorf("field %q: unknown operator %q", field, string(op))
			}
			if err := validateValue(field, op, val); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateValue(field string, op Op, val any) error {
	switch op {
	case OpIn, OpNin:
		arr, ok := val.([]any)
		if !ok {
			return fmt.Errorf("field %q: %s requires an array", field, string(op))
		}
		for _, v := range arr {
			if !isPrimitive(v) {
				return fmt.Errorf("field %q: %s values must be primitives", field, string(op))
			}
		}
	case OpRegex:
		s, ok := val.(string)
		if !ok {
			return fmt.Errorf("field %q: $regex requires a string pattern", field)
		}
		if len(s) > MaxRegexLen {
			return fmt.Errorf("field %q: $regex pattern exceeds %d characters", field, MaxRegexLen)
		}
	default:
		if !isPrimitive(val) {
			return fmt.Errorf("field %q: %s requires a string, number, boolean, or null", field, string(op))
		}
	}
	return nil
}

// isPrimitive reports whether a decoded JSON value is a scalar. Arrays and
// objects only belong behind $in/$nin.
func isPrimitive(v any) bool {
	switch v.(type) {
	case nil, string, bool, float64, int, int64:
		return true
	default:
		return false
	}
}
