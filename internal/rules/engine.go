package rules

import (
	"context"
	"sync"

	"messaging/internal/logger"
	"messaging/pkg/cel"
	"messaging/pkg/metrics"
	"messaging/pkg/models"
	"messaging/pkg/tracing"
)

// Engine holds a set of rules and returns the consequences of those matching
// an event.
type Engine struct {
	name      string
	rules     []Rule
	rulesMu   sync.RWMutex
	evaluator *cel.Evaluator
	logger    logger.Logger
}

func NewEngine(name string, evaluator *cel.Evaluator, log logger.Logger) *Engine {
	return &Engine{
		name:      name,
		rules:     make([]Rule, 0),
		evaluator: evaluator,
		logger:    log,
	}
}

func (e *Engine) Name() string {
	return e.name
}

// ReplaceRules swaps the full rule set.
func (e *Engine) ReplaceRules(rules []Rule) {
	next := make([]Rule, len(rules))
	copy(next, rules)

	e.rulesMu.Lock()
	e.rules = next
	e.rulesMu.Unlock()

	metrics.SetActiveRules(e.name, len(next))
}

// AddRules appends rules whose key is not loaded yet.
func (e *Engine) AddRules(rules []Rule) {
	e.rulesMu.Lock()
	e.rules = MergeRules(e.rules, rules)
	count := len(e.rules)
	e.rulesMu.Unlock()

	metrics.SetActiveRules(e.name, count)
}

func (e *Engine) Rules() []Rule {
	e.rulesMu.RLock()
	defer e.rulesMu.RUnlock()

	rules := make([]Rule, len(e.rules))
	copy(rules, e.rules)
	return rules
}

// Process evaluates every rule against the event and returns the consequences
// of matching rules in rule order. Evaluation errors count as no match.
func (e *Engine) Process(ctx context.Context, event *models.Event) []Consequence {
	ctx, span := tracing.GetTracer(tracing.TracerName).Start(ctx, "rules."+e.name+".process")
	defer span.End()

	return e.process(ctx, e.Rules(), cel.EventData(event))
}

func (e *Engine) process(ctx context.Context, rules []Rule, data map[string]interface{}) []Consequence {
	var out []Consequence
	for _, rule := range rules {
		if ctx.Err() != nil {
			return out
		}
		if rule.compiled == nil {
			continue
		}

		matched, err := e.evaluator.Match(ctx, rule.compiled, data)
		if err != nil {
			e.logger.DebugwCtx(ctx, "Rule evaluation error",
				"engine", e.name,
				"rule", rule.Key(),
				"error", err,
			)
			matched = false
		}
		metrics.IncRuleMatch(e.name, matched)

		if matched {
			out = append(out, rule.Consequences...)
		}
	}
	return out
}
