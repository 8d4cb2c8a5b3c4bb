package segment

import (
	"strings"
	"time"
)

// dateFields are attributes whose operator values arrive as ISO-8601 strings
// (from the UI or the AI extractor) and must compare as timestamps.
var dateFields = map[string]bool{
	"lastActive": true,
	"createdAt":  true,
}

// normalizedFields are categorical string attributes whose equality matches
// ($eq/$in/$nin) are trimmed and lower-cased, so rules survive the casing and
// whitespace noise that natural-language extraction produces.
var normalizedFields = map[string]bool{
	"email": true,
}

// Sanitize reduces an arbitrary rule object to the safe subset the audience
// resolver will execute:
//
//   - fields outside AllowedFields are dropped silently
//   - operators outside AllowedOps are dropped
//   - $in/$nin values that are not arrays are dropped
//   - $regex values must be strings of at most MaxRegexLen (a pre-compiled
//     pattern object passes through verbatim)
//   - string values on date fields are coerced to timestamps; unparseable
//     ones are dropped rather than failing the whole rule
//   - fields whose operator set becomes empty are omitted entirely
//
// Direct-equality conditions pass through unchanged. Sanitize never mutates
// its input, performs no I/O, and is idempotent: applying it twice yields the
// same result as applying it once.
func Sanitize(rules Rules) Rules {
	out := Rules{}
	for field, cond := range rules {
		if !AllowedFields[field] {
			continue
		}
		if cond.IsDirect() {
			out[field] = cond
			continue
		}
		safe := make(map[Op]any, len(cond.Ops))
		for op, val := range cond.Ops {
			if !AllowedOps[op] {
				continue
			}
			v, ok := sanitizeValue(field, op, val)
			if !ok {
				continue
			}
			safe[op] = v
		}
		if len(safe) == 0 {
			continue
		}
		out[field] = Condition{Ops: safe}
	}
	return out
}

func sanitizeValue(field string, op Op, val any) (any, bool) {
	switch op {
	case OpIn, OpNin:
		arr, ok := val.([]any)
		if !ok {
			return nil, false
		}
		if normalizedFields[field] {
			arr = normalizeStrings(arr)
		}
		return arr, true
	case OpRegex:
		switch v := val.(type) {
		case string:
			if len(v) > MaxRegexLen {
				return nil, false
			}
			return v, true
		case map[string]any:
			// pre-built pattern object, passed through verbatim
			return v, true
		default:
			return nil, false
		}
	case OpEq:
		if s, ok := val.(string); ok && normalizedFields[field] {
			return strings.ToLower(strings.TrimSpace(s)), true
		}
	}
	if dateFields[field] {
		return coerceDate(val)
	}
	return val, true
}

// coerceDate turns string operator values on date fields into time.Time.
// Values that are already timestamps pass through, so re-sanitizing is a
// no-op. Anything unparseable is dropped.
func coerceDate(val any) (any, bool) {
	switch v := val.(type) {
	case time.Time:
		return v, true
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
			if t, err := time.Parse(layout, v); err == nil {
				return t.UTC(), true
			}
		}
		return nil, false
	default:
		return val, true
	}
}

func normalizeStrings(arr []any) []any {
	out := make([]any, 0, len(arr))
	for _, v := range arr {
		if s, ok := v.(string); ok {
			s = strings.ToLower(strings.TrimSpace(s))
			if s == "" {
				continue
			}
			out = append(out, s)
			continue
		}
		out = append(out, v)
	}
	return out
}
