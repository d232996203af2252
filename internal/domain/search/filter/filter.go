// Package filter holds the metadata filter applied to retrieval. Filters
// restrict both the vector and keyword branches to matching chunks; a filter
// that matches nothing yields an empty result, not an error.
package filter

import "fmt"

// MaxConditionsPerGroup bounds each condition group.
const MaxConditionsPerGroup = 16

// Expression is a structured filter with must/must_not boolean semantics over
// chunk metadata (source, heading tags).
type Expression struct {
	must    []Condition
	mustNot []Condition
}

// NewExpression validates and creates a filter Expression.
func NewExpression(must, mustNot []Condition) (Expression, error) {
	if len(must) > MaxConditionsPerGroup {
		return Expression{}, fmt.Errorf("too many must conditions (max %d)", MaxConditionsPerGroup)
	}
	if len(mustNot) > MaxConditionsPerGroup {
		return Expression{}, fmt.Errorf("too many must_not conditions (max %d)", MaxConditionsPerGroup)
	}
	return Expression{must: must, mustNot: mustNot}, nil
}

// Must returns the must conditions.
func (e Expression) Must() []Condition { return e.must }

// MustNot returns the must-not conditions.
func (e Expression) MustNot() []Condition { return e.mustNot }

// IsEmpty reports whether the expression has no conditions.
func (e Expression) IsEmpty() bool {
	return len(e.must) == 0 && len(e.mustNot) == 0
}

// Matches reports whether the given chunk metadata satisfies the expression.
// Used by the in-process keyword index; the vector index translates the same
// expression into its own query syntax.
func (e Expression) Matches(meta map[string]string) bool {
	for _, c := range e.must {
		if meta[c.key] != c.match {
			return false
		}
	}
	for _, c := range e.mustNot {
		if meta[c.key] == c.match {
			return false
		}
	}
	return true
}

// Condition is a single filter clause: an exact tag match.
type Condition struct {
	key   string
	match string
}

// NewMatch creates an exact tag match condition.
func NewMatch(key, match string) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	if match == "" {
		return Condition{}, fmt.Errorf("match value is required for key %q", key)
	}
	return Condition{key: key, match: match}, nil
}

// Key returns the metadata field name.
func (c Condition) Key() string { return c.key }

// Match returns the exact match value.
func (c Condition) Match() string { return c.match }
