package rules

import (
	"encoding/json"
	"strings"

	"messaging/pkg/cel"
	"messaging/pkg/datareader"
)

// Consequence is what a rule produces when its condition matches.
type Consequence struct {
	ID     string                 `json:"id"`
	Type   string                 `json:"type"`
	Detail map[string]interface{} `json:"detail"`
}

// Rule is a parsed and compiled rule. Rules are immutable once parsed.
type Rule struct {
	Condition    map[string]interface{} `json:"condition"`
	Consequences []Consequence          `json:"consequences"`

	compiled *cel.Condition
}

// Expression is the compiled CEL form of the condition.
func (r Rule) Expression() string {
	if r.compiled == nil {
		return ""
	}
	return r.compiled.Expression
}

// Key identifies a rule for additive merges: the ids of its consequences, or
// the condition expression plus the encoded consequences when none carry an
// id. Two id-less rules share a key only when they are identical.
func (r Rule) Key() string {
	ids := make([]string, 0, len(r.Consequences))
	for _, c := range r.Consequences {
		if c.ID != "" {
			ids = append(ids, c.ID)
		}
	}
	if len(ids) > 0 {
		return strings.Join(ids, ",")
	}
	consequences, err := json.Marshal(r.Consequences)
	if err != nil {
		return r.Expression() + "|" + err.Error()
	}
	return r.Expression() + "|" + string(consequences)
}

// Schema returns detail.schema of the consequence.
func (c Consequence) Schema() string {
	return datareader.Reader(c.Detail).String("schema", "")
}

// MergeRules appends the rules of add whose key is not yet present in base.
func MergeRules(base, add []Rule) []Rule {
	seen := make(map[string]struct{}, len(base)+len(add))
	out := make([]Rule, 0, len(base)+len(add))
	for _, r := range base {
		seen[r.Key()] = struct{}{}
		out = append(out, r)
	}
	for _, r := range add {
		key := r.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}
