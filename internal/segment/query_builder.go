package segment

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lib/pq"
)

// columnForField maps rule field names onto customers table columns.
// Only sanitized fields ever reach the builder, so a miss is a programming
// error and surfaces as one.
var columnForField = map[string]string{
	"totalSpend": "total_spend",
	"visits":     "visits",
	"lastActive": "last_active",
	"createdAt":  "created_at",
	"email":      "email",
	"phone":      "phone",
	"name":       "name",
}

var sqlForOp = map[Op]string{
	OpGt:  ">",
	OpGte: ">=",
	OpLt:  "<",
	OpLte: "<=",
	OpEq:  "=",
	OpNe:  "!=",
}

const customerColumns = "id, name, email, COALESCE(phone,''), total_spend, visits, last_active, created_at, updated_at"

// QueryBuilder compiles sanitized rules into parameterized SQL over the
// customers table. A builder is single-use per query; placeholders restart
// at $1 on every Build call.
type QueryBuilder struct {
	args       []interface{}
	argCounter int
}

// NewQueryBuilder creates an empty QueryBuilder.
func NewQueryBuilder() *QueryBuilder {
	return &QueryBuilder{argCounter: 1}
}

func (qb *QueryBuilder) nextArg(value interface{}) string {
	qb.args = append(qb.args, value)
	placeholder := fmt.Sprintf("$%d", qb.argCounter)
	qb.argCounter++
	return placeholder
}

// BuildSelect builds the full audience query. limit <= 0 means no LIMIT.
// Results order by recency of activity so previews surface the most alive
// part of the audience first.
func (qb *QueryBuilder) BuildSelect(rules Rules, limit int) (string, []interface{}, error) {
	where, err := qb.buildWhere(rules)
	if err != nil {
		return "", nil, err
	}
	query := "SELECT " + customerColumns + " FROM customers\nWHERE " + where +
		"\nORDER BY last_active DESC"
	if limit > 0 {
		query += fmt.Sprintf("\nLIMIT %d", limit)
	}
	return query, qb.args, nil
}

// BuildCount builds the matching COUNT query, independent of any limit.
func (qb *QueryBuilder) BuildCount(rules Rules) (string, []interface{}, error) {
	where, err := qb.buildWhere(rules)
	if err != nil {
		return "", nil, err
	}
	return "SELECT COUNT(*) FROM customers\nWHERE " + where, qb.args, nil
}

func (qb *QueryBuilder) buildWhere(rules Rules) (string, error) {
	qb.args = nil
	qb.argCounter = 1

	conditions := []string{"1=1"}

	// deterministic clause order regardless of map iteration
	fields := make([]string, 0, len(rules))
	for f := range rules {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	for _, field := range fields {
		col, ok := columnForField[field]
		if !ok {
			return "", fmt.Errorf("unmapped rule field: %s", field)
		}
		sql, err := qb.buildCondition(col, rules[field])
		if err != nil {
			return "", fmt.Errorf("field %s: %w", field, err)
		}
		if sql != "" {
			conditions = append(conditions, sql)
		}
	}

	return strings.Join(conditions, "\n  AND "), nil
}

func (qb *QueryBuilder) buildCondition(col string, cond Condition) (string, error) {
	if cond.IsDirect() {
		if cond.Equals == nil {
			return fmt.Sprintf("%s IS NULL", col), nil
		}
		return fmt.Sprintf("%s = %s", col, qb.nextArg(cond.Equals)), nil
	}

	parts := make([]string, 0, len(cond.Ops))
	ops := make([]Op, 0, len(cond.Ops))
	for op := range cond.Ops {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })

	for _, op := range ops {
		sql, err := qb.buildOp(col, op, cond.Ops[op])
		if err != nil {
			return "", err
		}
		parts = append(parts, sql)
	}
	return strings.Join(parts, " AND "), nil
}

func (qb *QueryBuilder) buildOp(col string, op Op, val any) (string, error) {
	if cmp, ok := sqlForOp[op]; ok {
		return fmt.Sprintf("%s %s %s", col, cmp, qb.nextArg(val)), nil
	}

	switch op {
	case OpIn, OpNin:
		arr, ok := val.([]any)
		if !ok {
			return "", fmt.Errorf("%s requires an array", op)
		}
		if len(arr) == 0 {
			// empty $in matches nothing; empty $nin excludes nothing
			if op == OpIn {
				return "FALSE", nil
			}
			return "TRUE", nil
		}
		expr := fmt.Sprintf("%s = ANY(%s)", col, qb.nextArg(pq.Array(arr)))
		if op == OpNin {
			expr = "NOT (" + expr + ")"
		}
		return expr, nil

	case OpRegex:
		pattern, err := regexPattern(val)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s ~ %s", col, qb.nextArg(pattern)), nil

	default:
		return "", fmt.Errorf("unsupported operator: %s", op)
	}
}

// regexPattern extracts the pattern string from either a bare string or a
// pattern object ({"pattern": "...", ...}).
func regexPattern(val any) (string, error) {
	switch v := val.(type) {
	case string:
		return v, nil
	case map[string]any:
		if p, ok := v["pattern"].(string); ok {
			return p, nil
		}
		return "", fmt.Errorf("pattern object missing pattern string")
	default:
		return "", fmt.Errorf("unsupported $regex value type %T", val)
	}
}
