package models

import (
	"encoding/json"

	"messaging/pkg/datareader"
	apperrors "messaging/pkg/errors"
)

// PropositionPayload is the legacy typed form of a wire proposition. It is the
// serialization format of the durable proposition cache.
type PropositionPayload struct {
	ID           string                 `json:"id"`
	Scope        string                 `json:"scope"`
	ScopeDetails map[string]interface{} `json:"scopeDetails,omitempty"`
	Items        []PayloadItem          `json:"items"`
}

type PayloadItem struct {
	ID     string   `json:"id"`
	Schema string   `json:"schema"`
	Data   ItemData `json:"data"`
}

type ItemData struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

func NewPropositionPayload(p *Proposition) *PropositionPayload {
	items := make([]PayloadItem, 0, len(p.Items))
	for _, item := range p.Items {
		items = append(items, PayloadItem{
			ID:     item.UniqueID,
			Schema: item.Schema,
			Data:   ItemData{ID: item.UniqueID, Content: item.Content},
		})
	}
	return &PropositionPayload{
		ID:           p.UniqueID,
		Scope:        p.Scope,
		ScopeDetails: datareader.CopyMap(p.ScopeDetails),
		Items:        items,
	}
}

// DecodePropositionPayload reads a wire entry into the legacy shape.
func DecodePropositionPayload(raw interface{}) (*PropositionPayload, []error) {
	p, errs := DecodeProposition(raw)
	if p == nil {
		return nil, errs
	}
	return NewPropositionPayload(p), errs
}

func (pp *PropositionPayload) ToProposition() (*Proposition, error) {
	items := make([]PropositionItem, 0, len(pp.Items))
	for _, item := range pp.Items {
		id := item.ID
		if id == "" {
			id = item.Data.ID
		}
		items = append(items, PropositionItem{
			UniqueID: id,
			Schema:   item.Schema,
			Content:  item.Data.Content,
		})
	}
	return NewProposition(pp.ID, pp.Scope, pp.ScopeDetails, items)
}

// Info builds the tracking metadata of the payload.
func (pp *PropositionPayload) Info() (*PropositionInfo, error) {
	p, err := pp.ToProposition()
	if err != nil {
		return nil, err
	}
	return NewPropositionInfo(p)
}

// EncodeSurfacePayloads serializes a surface keyed proposition map in the
// cache format.
func EncodeSurfacePayloads(propositions map[Surface][]Proposition) ([]byte, error) {
	out := make(map[string][]*PropositionPayload, len(propositions))
	for surface, props := range propositions {
		if len(props) == 0 {
			continue
		}
		payloads := make([]*PropositionPayload, 0, len(props))
		for i := range props {
			payloads = append(payloads, NewPropositionPayload(&props[i]))
		}
		out[surface.URI] = payloads
	}
	return json.Marshal(out)
}

// DecodeSurfacePayloads reverses EncodeSurfacePayloads. Entries that fail to
// convert are skipped and reported.
func DecodeSurfacePayloads(data []byte) (map[Surface][]Proposition, []error, error) {
	var raw map[string][]PropositionPayload
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, apperrors.ErrDecode.WithCause(err)
	}

	out := make(map[Surface][]Proposition, len(raw))
	var skipped []error
	for uri, payloads := range raw {
		surface := SurfaceFromURI(uri)
		if !surface.Valid() {
			skipped = append(skipped, apperrors.ErrValidation.WithMessage("invalid cached surface").WithDetail("surface", uri))
			continue
		}
		for i := range payloads {
			p, err := payloads[i].ToProposition()
			if err != nil {
				skipped = append(skipped, err)
				continue
			}
			out[surface] = append(out[surface], *p)
		}
	}
	return out, skipped, nil
}
