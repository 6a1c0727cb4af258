package rules

import (
	"context"
	"sync"

	"messaging/internal/logger"
	"messaging/pkg/cel"
	"messaging/pkg/models"
	"messaging/pkg/tracing"
)

// FeedEngine keeps rules per surface and turns matching consequences into
// inbound content.
type FeedEngine struct {
	engine  *Engine
	rules   map[models.Surface][]Rule
	rulesMu sync.RWMutex
	logger  logger.Logger
}

func NewFeedEngine(name string, evaluator *cel.Evaluator, log logger.Logger) *FeedEngine {
	return &FeedEngine{
		engine: NewEngine(name, evaluator, log),
		rules:  make(map[models.Surface][]Rule),
		logger: log,
	}
}

// ReplaceRules swaps the whole surface to rules mapping.
func (f *FeedEngine) ReplaceRules(rules map[models.Surface][]Rule) {
	next := make(map[models.Surface][]Rule, len(rules))
	var flat []Rule
	for surface, surfaceRules := range rules {
		if len(surfaceRules) == 0 {
			continue
		}
		next[surface] = append([]Rule(nil), surfaceRules...)
		flat = append(flat, surfaceRules...)
	}

	f.rulesMu.Lock()
	f.rules = next
	f.rulesMu.Unlock()

	f.engine.ReplaceRules(flat)
}

func (f *FeedEngine) RuleCount() int {
	f.rulesMu.RLock()
	defer f.rulesMu.RUnlock()

	n := 0
	for _, r := range f.rules {
		n += len(r)
	}
	return n
}

// Evaluate runs each surface's rules against the event. Consequences that do
// not decode into inbound content are dropped.
func (f *FeedEngine) Evaluate(ctx context.Context, event *models.Event) map[models.Surface][]models.Inbound {
	ctx, span := tracing.GetTracer(tracing.TracerName).Start(ctx, "rules."+f.engine.Name()+".evaluate")
	defer span.End()

	f.rulesMu.RLock()
	snapshot := make(map[models.Surface][]Rule, len(f.rules))
	for surface, rules := range f.rules {
		snapshot[surface] = rules
	}
	f.rulesMu.RUnlock()

	data := cel.EventData(event)
	out := make(map[models.Surface][]models.Inbound)
	for surface, rules := range snapshot {
		for _, consequence := range f.engine.process(ctx, rules, data) {
			inbound, err := models.InboundFromConsequenceDetail(consequence.ID, consequence.Detail)
			if err != nil {
				f.logger.DebugwCtx(ctx, "Dropping consequence without inbound content",
					"surface", surface.URI,
					"consequence_id", consequence.ID,
					"error", err,
				)
				continue
			}
			out[surface] = append(out[surface], *inbound)
		}
	}
	return out
}
