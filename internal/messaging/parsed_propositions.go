package messaging

import (
	"messaging/internal/logger"
	"messaging/internal/rules"
	"messaging/pkg/metrics"
	"messaging/pkg/models"
)

// ParsedPropositions is one response split by surface and content type.
type ParsedPropositions struct {
	// PropositionInfoToCache is keyed by consequence id.
	PropositionInfoToCache map[string]models.PropositionInfo
	// PropositionsToCache holds code-based and other non in-app content.
	PropositionsToCache map[models.Surface][]models.Proposition
	// PropositionsToPersist holds propositions carrying in-app rules.
	PropositionsToPersist     map[models.Surface][]models.Proposition
	SurfaceRulesByInboundType map[models.InboundType]map[models.Surface][]rules.Rule
	RemoteAssets              []string
}

func NewParsedPropositions(
	propositions map[models.Surface][]models.Proposition,
	requestedSurfaces []models.Surface,
	classifier *Classifier,
	log logger.Logger,
) *ParsedPropositions {
	pp := &ParsedPropositions{
		PropositionInfoToCache:    make(map[string]models.PropositionInfo),
		PropositionsToCache:       make(map[models.Surface][]models.Proposition),
		PropositionsToPersist:     make(map[models.Surface][]models.Proposition),
		SurfaceRulesByInboundType: make(map[models.InboundType]map[models.Surface][]rules.Rule),
	}

	requested := make(map[models.Surface]struct{}, len(requestedSurfaces))
	for _, s := range requestedSurfaces {
		requested[s] = struct{}{}
	}

	for _, props := range propositions {
		for i := range props {
			p := &props[i]
			surface := models.SurfaceFromURI(p.Scope)
			if _, ok := requested[surface]; !ok {
				log.Debugw("Ignoring proposition for a surface that was not requested",
					"proposition_id", p.UniqueID,
					"scope", p.Scope,
				)
				metrics.PropositionsPartitionedTotal.WithLabelValues("ignored").Inc()
				continue
			}
			pp.addProposition(surface, p, classifier, log)
		}
	}
	return pp
}

func (pp *ParsedPropositions) addProposition(surface models.Surface, p *models.Proposition, classifier *Classifier, log logger.Logger) {
	for _, item := range p.Items {
		classified := classifier.Classify(item)
		if classified == nil {
			pp.addToCache(surface, p)
			continue
		}

		for _, rule := range classified.Rules {
			routed := make(map[models.InboundType]bool, 1)
			for _, consequence := range rule.Consequences {
				if consequence.ID != "" {
					info, err := models.NewPropositionInfo(p)
					if err != nil {
						log.Debugw("Skipping tracking info for proposition",
							"proposition_id", p.UniqueID,
							"consequence_id", consequence.ID,
							"error", err,
						)
					} else {
						pp.PropositionInfoToCache[consequence.ID] = *info
					}
				}

				class := ClassifyConsequence(consequence)
				if class.IsInApp {
					pp.addToPersist(surface, p)
					pp.RemoteAssets = append(pp.RemoteAssets, RemoteAssets(consequence)...)
				} else if !class.IsFeed {
					pp.addToCache(surface, p)
				}

				if !routed[class.InboundType] {
					routed[class.InboundType] = true
					pp.addRule(class.InboundType, surface, rule)
				}
			}
		}
	}
}

func (pp *ParsedPropositions) addRule(t models.InboundType, surface models.Surface, rule rules.Rule) {
	bySurface, ok := pp.SurfaceRulesByInboundType[t]
	if !ok {
		bySurface = make(map[models.Surface][]rules.Rule)
		pp.SurfaceRulesByInboundType[t] = bySurface
	}
	bySurface[surface] = append(bySurface[surface], rule)
}

func (pp *ParsedPropositions) addToCache(surface models.Surface, p *models.Proposition) {
	if containsProposition(pp.PropositionsToPersist[surface], p.UniqueID) ||
		containsProposition(pp.PropositionsToCache[surface], p.UniqueID) {
		return
	}
	pp.PropositionsToCache[surface] = append(pp.PropositionsToCache[surface], *p)
	metrics.PropositionsPartitionedTotal.WithLabelValues("cache").Inc()
}

// addToPersist moves a proposition out of the cache-only bucket if an earlier
// item put it there.
func (pp *ParsedPropositions) addToPersist(surface models.Surface, p *models.Proposition) {
	if cached := pp.PropositionsToCache[surface]; containsProposition(cached, p.UniqueID) {
		pp.PropositionsToCache[surface] = removeProposition(cached, p.UniqueID)
		if len(pp.PropositionsToCache[surface]) == 0 {
			delete(pp.PropositionsToCache, surface)
		}
	}
	if containsProposition(pp.PropositionsToPersist[surface], p.UniqueID) {
		return
	}
	pp.PropositionsToPersist[surface] = append(pp.PropositionsToPersist[surface], *p)
	metrics.PropositionsPartitionedTotal.WithLabelValues("persist").Inc()
}

// RuleCount is the number of rules across all buckets.
func (pp *ParsedPropositions) RuleCount() int {
	n := 0
	for _, bySurface := range pp.SurfaceRulesByInboundType {
		for _, r := range bySurface {
			n += len(r)
		}
	}
	return n
}

func containsProposition(props []models.Proposition, id string) bool {
	for _, p := range props {
		if p.UniqueID == id {
			return true
		}
	}
	return false
}

func removeProposition(props []models.Proposition, id string) []models.Proposition {
	out := props[:0:0]
	for _, p := range props {
		if p.UniqueID != id {
			out = append(out, p)
		}
	}
	return out
}
