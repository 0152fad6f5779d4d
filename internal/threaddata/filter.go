package threaddata

import (
	"fmt"

	"github.com/jmespath/go-jmespath"
)

// EvalAny returns the raw value selected by the JMESPath expression.
// It returns nil and no error if the expression does not match anything,
// the same effect as the expression evaluating to `null`.
func EvalAny(expression string, payload map[string]any) (any, error) {
	v, err := jmespath.Search(expression, payload)
	if err != nil {
		return nil, fmt.Errorf("jmespath: %w", err)
	}
	return v, nil
}

// MatchRecord evaluates a boolean JMESPath expression against one record.
// A non-boolean result or an evaluation error counts as no match.
func MatchRecord(expression string, record map[string]any) bool {
	if expression == "" {
		return true
	}
	v, err := EvalAny(expression, record)
	if err != nil {
		return false
	}
	matched, ok := v.(bool)
	if !ok {
		return false
	}
	return matched
}

// FilterRecords keeps the records matching the expression. An empty
// expression keeps everything.
func FilterRecords(expression string, records []map[string]any) []map[string]any {
	if expression == "" {
		return records
	}
	out := make([]map[string]any, 0, len(records))
	for _, r := range records {
		if MatchRecord(expression, r) {
			out = append(out, r)
		}
	}
	return out
}
