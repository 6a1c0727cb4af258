package messaging

import (
	"messaging/internal/logger"
	apperrors "messaging/pkg/errors"
	"messaging/pkg/metrics"
	"messaging/pkg/models"
)

// ParsePropositions decodes a personalization payload. Entries or items that
// fail to decode are logged and skipped; the result may be empty but parsing
// itself never fails.
func ParsePropositions(payload []interface{}, log logger.Logger) []models.Proposition {
	out := make([]models.Proposition, 0, len(payload))
	for idx, raw := range payload {
		var p *models.Proposition
		err := apperrors.Guard(func() error {
			var errs []error
			p, errs = models.DecodeProposition(raw)
			for _, e := range errs {
				log.Debugw("Skipping undecodable proposition content", "index", idx, "error", e)
			}
			return nil
		})
		if err != nil {
			log.Warnw("Recovered while decoding proposition", "index", idx, "error", err)
			p = nil
		}
		if p == nil {
			metrics.PropositionsParsedTotal.WithLabelValues("skipped").Inc()
			continue
		}
		metrics.PropositionsParsedTotal.WithLabelValues("parsed").Inc()
		out = append(out, *p)
	}
	return out
}

// ParsePayloads is ParsePropositions for the legacy payload shape.
func ParsePayloads(payload []interface{}, log logger.Logger) []models.PropositionPayload {
	props := ParsePropositions(payload, log)
	out := make([]models.PropositionPayload, 0, len(props))
	for i := range props {
		out = append(out, *models.NewPropositionPayload(&props[i]))
	}
	return out
}

// GroupBySurface buckets propositions by their scope, keeping order.
func GroupBySurface(props []models.Proposition) map[models.Surface][]models.Proposition {
	out := make(map[models.Surface][]models.Proposition)
	for _, p := range props {
		s := p.Surface()
		out[s] = append(out[s], p)
	}
	return out
}
