package models

import (
	"messaging/pkg/datareader"
	apperrors "messaging/pkg/errors"
)

// PropositionInfo is the tracking metadata kept for a loaded rule, without
// the proposition content.
type PropositionInfo struct {
	ID            string                 `json:"id"`
	Scope         string                 `json:"scope"`
	ScopeDetails  map[string]interface{} `json:"scopeDetails"`
	CorrelationID string                 `json:"correlationID,omitempty"`
	ActivityID    string                 `json:"activityID,omitempty"`
}

func NewPropositionInfo(p *Proposition) (*PropositionInfo, error) {
	if p == nil {
		return nil, apperrors.ErrValidation.WithMessage("proposition is required")
	}
	if p.Scope == "" {
		return nil, apperrors.ErrValidation.WithMessage("proposition scope is required").
			WithDetail("proposition_id", p.UniqueID)
	}
	if len(p.ScopeDetails) == 0 {
		return nil, apperrors.ErrValidation.WithMessage("proposition scopeDetails are required").
			WithDetail("proposition_id", p.UniqueID)
	}

	details := datareader.Reader(p.ScopeDetails)
	return &PropositionInfo{
		ID:            p.UniqueID,
		Scope:         p.Scope,
		ScopeDetails:  datareader.CopyMap(p.ScopeDetails),
		CorrelationID: details.String("correlationID", ""),
		ActivityID:    details.PathString("", "activity", "id"),
	}, nil
}

func (i *PropositionInfo) Surface() Surface {
	return SurfaceFromURI(i.Scope)
}

// ToXDM renders the entry of _experience.decisioning.propositions.
func (i *PropositionInfo) ToXDM() map[string]interface{} {
	return map[string]interface{}{
		"id":           i.ID,
		"scope":        i.Scope,
		"scopeDetails": datareader.CopyMap(i.ScopeDetails),
	}
}
