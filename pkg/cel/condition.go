package cel

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"messaging/pkg/datareader"
)

const (
	conditionTypeGroup   = "group"
	conditionTypeMatcher = "matcher"
)

// Matcher operators understood in rule conditions.
const (
	MatcherEquals        = "eq"
	MatcherNotEquals     = "ne"
	MatcherGreater       = "gt"
	MatcherGreaterEquals = "ge"
	MatcherLess          = "lt"
	MatcherLessEquals    = "le"
	MatcherContains      = "co"
	MatcherNotContains   = "nc"
	MatcherStartsWith    = "sw"
	MatcherEndsWith      = "ew"
	MatcherExists        = "ex"
	MatcherNotExists     = "nx"
)

// TranslateCondition turns a rule condition object into a CEL expression over
// the data variable. Groups combine their conditions with the declared logic,
// matchers compare one flattened key against a list of candidate values (any
// value matching is enough). String comparisons are case-insensitive.
func TranslateCondition(condition map[string]interface{}) (string, error) {
	r := datareader.Reader(condition)
	if r == nil {
		return "", fmt.Errorf("condition is missing")
	}
	def := r.Reader("definition")

	switch r.String("type", "") {
	case conditionTypeGroup:
		return translateGroup(def)
	case conditionTypeMatcher:
		return translateMatcher(def)
	default:
		return "", fmt.Errorf("unsupported condition type %q", r.String("type", ""))
	}
}

func translateGroup(def datareader.Reader) (string, error) {
	var op string
	switch strings.ToLower(def.String("logic", "and")) {
	case "and":
		op = " && "
	case "or":
		op = " || "
	default:
		return "", fmt.Errorf("unsupported group logic %q", def.String("logic", ""))
	}

	conditions := def.Maps("conditions")
	if len(conditions) == 0 {
		return "true", nil
	}

	parts := make([]string, 0, len(conditions))
	for _, c := range conditions {
		expr, err := TranslateCondition(c)
		if err != nil {
			return "", err
		}
		parts = append(parts, "("+expr+")")
	}
	return strings.Join(parts, op), nil
}

func translateMatcher(def datareader.Reader) (string, error) {
	key := def.String("key", "")
	if key == "" {
		return "", fmt.Errorf("matcher key is missing")
	}
	ref := fmt.Sprintf("%s[%s]", DataVariable, strconv.Quote(key))
	present := fmt.Sprintf("%s in %s", strconv.Quote(key), DataVariable)
	values := def.Slice("values")

	matcher := def.String("matcher", "")
	switch matcher {
	case MatcherExists:
		return present, nil
	case MatcherNotExists:
		return "!(" + present + ")", nil
	case MatcherEquals, MatcherNotEquals:
		expr, err := anyValue(values, func(v interface{}) (string, bool) { return equalsValue(ref, v) })
		if err != nil {
			return "", err
		}
		eq := present + " && (" + expr + ")"
		if matcher == MatcherNotEquals {
			return "!(" + eq + ")", nil
		}
		return eq, nil
	case MatcherGreater, MatcherGreaterEquals, MatcherLess, MatcherLessEquals:
		op := map[string]string{
			MatcherGreater:       ">",
			MatcherGreaterEquals: ">=",
			MatcherLess:          "<",
			MatcherLessEquals:    "<=",
		}[matcher]
		expr, err := anyValue(values, func(v interface{}) (string, bool) {
			lit, ok := doubleLiteral(v)
			if !ok {
				return "", false
			}
			return fmt.Sprintf("(type(%s) == double && %s %s %s)", ref, ref, op, lit), true
		})
		if err != nil {
			return "", err
		}
		return present + " && (" + expr + ")", nil
	case MatcherContains, MatcherNotContains, MatcherStartsWith, MatcherEndsWith:
		fn := map[string]string{
			MatcherContains:    "contains",
			MatcherNotContains: "contains",
			MatcherStartsWith:  "startsWith",
			MatcherEndsWith:    "endsWith",
		}[matcher]
		expr, err := anyValue(values, func(v interface{}) (string, bool) {
			s, ok := stringOperand(v)
			if !ok {
				return "", false
			}
			return fmt.Sprintf("%s.lowerAscii().%s(%s)", ref, fn, strconv.Quote(strings.ToLower(s))), true
		})
		if err != nil {
			return "", err
		}
		match := present + " && type(" + ref + ") == string && (" + expr + ")"
		if matcher == MatcherNotContains {
			return "!(" + match + ")", nil
		}
		return match, nil
	default:
		return "", fmt.Errorf("unsupported matcher %q", matcher)
	}
}

// anyValue ORs the per-value expressions; values that cannot be expressed are
// skipped, and a matcher left with none never matches.
func anyValue(values []interface{}, build func(interface{}) (string, bool)) (string, error) {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		if expr, ok := build(v); ok {
			parts = append(parts, expr)
		}
	}
	if len(parts) == 0 {
		return "false", nil
	}
	return strings.Join(parts, " || "), nil
}

func equalsValue(ref string, v interface{}) (string, bool) {
	switch t := v.(type) {
	case string:
		return fmt.Sprintf("(type(%s) == string && %s.lowerAscii() == %s)", ref, ref, strconv.Quote(strings.ToLower(t))), true
	case bool:
		return fmt.Sprintf("(type(%s) == bool && %s == %t)", ref, ref, t), true
	default:
		lit, ok := doubleLiteral(v)
		if !ok {
			return "", false
		}
		return fmt.Sprintf("(type(%s) == double && %s == %s)", ref, ref, lit), true
	}
}

func stringOperand(v interface{}) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case bool:
		return strconv.FormatBool(t), true
	default:
		if f, ok := toFloat(v); ok {
			return strconv.FormatFloat(f, 'f', -1, 64), true
		}
		return "", false
	}
}

func doubleLiteral(v interface{}) (string, bool) {
	f, ok := toFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return "", false
	}
	lit := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(lit, ".") {
		lit += ".0"
	}
	return lit, true
}
