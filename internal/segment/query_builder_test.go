package segment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCountSimple(t *testing.T) {
	rules := Sanitize(mustParse(t, `{"totalSpend":{"$gte":1000}}`))

	query, args, err := NewQueryBuilder().BuildCount(rules)
	require.NoError(t, err)
	assert.Contains(t, query, "SELECT COUNT(*) FROM customers")
	assert.Contains(t, query, "total_spend >= $1")
	assert.Equal(t, []interface{}{float64(1000)}, args)
}

func TestBuildSelectMultipleFieldsDeterministic(t *testing.T) {
	rules := Sanitize(mustParse(t, `{"visits":{"$gte":2},"totalSpend":{"$lt":500}}`))

	q1, args1, err := NewQueryBuilder().BuildSelect(rules, 0)
	require.NoError(t, err)
	q2, args2, err := NewQueryBuilder().BuildSelect(rules, 0)
	require.NoError(t, err)

	// clause ordering is sorted by field name, not map order
	assert.Equal(t, q1, q2)
	assert.Equal(t, args1, args2)
	assert.Contains(t, q1, "total_spend < $1")
	assert.Contains(t, q1, "visits >= $2")
	assert.Contains(t, q1, "ORDER BY last_active DESC")
	assert.NotContains(t, q1, "LIMIT")
}

func TestBuildSelectLimit(t *testing.T) {
	query, _, err := NewQueryBuilder().BuildSelect(Rules{}, 20)
	require.NoError(t, err)
	assert.Contains(t, query, "LIMIT 20")
	assert.Contains(t, query, "1=1")
}

func TestBuildDirectEquality(t *testing.T) {
	rules := Sanitize(mustParse(t, `{"visits":3,"phone":null}`))

	query, args, err := NewQueryBuilder().BuildCount(rules)
	require.NoError(t, err)
	assert.Contains(t, query, "phone IS NULL")
	assert.Contains(t, query, "visits = $1")
	assert.Equal(t, []interface{}{float64(3)}, args)
}

func TestBuildInNin(t *testing.T) {
	rules := Sanitize(mustParse(t, `{"email":{"$in":["a@b.io","c@d.io"],"$nin":["x@y.io"]}}`))

	query, args, err := NewQueryBuilder().BuildCount(rules)
	require.NoError(t, err)
	assert.Contains(t, query, "email = ANY($1)")
	assert.Contains(t, query, "NOT (email = ANY($2))")
	assert.Len(t, args, 2)
}

func TestBuildEmptyIn(t *testing.T) {
	rules := Rules{
		"email": {Ops: map[Op]any{OpIn: []any{}}},
		"name":  {Ops: map[Op]any{OpNin: []any{}}},
	}
	query, args, err := NewQueryBuilder().BuildCount(rules)
	require.NoError(t, err)
	assert.Contains(t, query, "FALSE")
	assert.Contains(t, query, "TRUE")
	assert.Empty(t, args)
}

func TestBuildRegex(t *testing.T) {
	rules := Sanitize(mustParse(t, `{"name":{"$regex":"^A"}}`))

	query, args, err := NewQueryBuilder().BuildCount(rules)
	require.NoError(t, err)
	assert.Contains(t, query, "name ~ $1")
	assert.Equal(t, []interface{}{"^A"}, args)
}

func TestBuildRegexPatternObject(t *testing.T) {
	rules := Rules{"name": {Ops: map[Op]any{OpRegex: map[string]any{"pattern": "^B"}}}}

	_, args, err := NewQueryBuilder().BuildCount(rules)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"^B"}, args)

	bad := Rules{"name": {Ops: map[Op]any{OpRegex: map[string]any{"options": "i"}}}}
	_, _, err = NewQueryBuilder().BuildCount(bad)
	assert.Error(t, err)
}

func TestBuildUnmappedFieldErrors(t *testing.T) {
	// only sanitized rules are supposed to reach the builder; an unknown
	// field is a bug upstream and must not be silently ignored
	_, _, err := NewQueryBuilder().BuildCount(Rules{"city": {Equals: "Pune"}})
	assert.Error(t, err)
}
