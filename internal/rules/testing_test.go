package rules

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"messaging/internal/logger"
	"messaging/pkg/cel"
)

func newTestParser(t *testing.T) *Parser {
	t.Helper()
	evaluator, err := cel.NewEvaluator()
	require.NoError(t, err)
	p, err := NewParser(evaluator, logger.NopLogger())
	require.NoError(t, err)
	return p
}

func newTestEvaluator(t *testing.T) *cel.Evaluator {
	t.Helper()
	evaluator, err := cel.NewEvaluator()
	require.NoError(t, err)
	return evaluator
}

func ruleJSON(t *testing.T, key, value string, consequences ...map[string]interface{}) map[string]interface{} {
	t.Helper()
	cs := make([]interface{}, 0, len(consequences))
	for _, c := range consequences {
		cs = append(cs, c)
	}
	return map[string]interface{}{
		"condition": map[string]interface{}{
			"type": "group",
			"definition": map[string]interface{}{
				"logic": "and",
				"conditions": []interface{}{
					map[string]interface{}{
						"type": "matcher",
						"definition": map[string]interface{}{
							"key":     key,
							"matcher": "eq",
							"values":  []interface{}{value},
						},
					},
				},
			},
		},
		"consequences": cs,
	}
}

func ruleset(t *testing.T, rules ...map[string]interface{}) string {
	t.Helper()
	rs := make([]interface{}, 0, len(rules))
	for _, r := range rules {
		rs = append(rs, r)
	}
	data, err := json.Marshal(map[string]interface{}{"version": 1, "rules": rs})
	require.NoError(t, err)
	return string(data)
}
