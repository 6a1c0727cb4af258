package models

import (
	"encoding/json"
	"fmt"
	"strings"

	"messaging/pkg/datareader"
	apperrors "messaging/pkg/errors"
)

// Proposition is a decision delivered for one surface. Values are not
// modified after construction.
type Proposition struct {
	UniqueID     string                 `json:"id"`
	Scope        string                 `json:"scope"`
	ScopeDetails map[string]interface{} `json:"scopeDetails,omitempty"`
	Items        []PropositionItem      `json:"items"`
}

// PropositionItem holds raw content. PropositionID refers back to the owning
// proposition; resolving it is up to whoever holds the propositions.
type PropositionItem struct {
	UniqueID      string `json:"id"`
	Schema        string `json:"schema"`
	Content       string `json:"content"`
	PropositionID string `json:"-"`
}

func NewProposition(id, scope string, scopeDetails map[string]interface{}, items []PropositionItem) (*Proposition, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperrors.ErrValidation.WithMessage("proposition id is required").WithDetail("field", "id")
	}
	if strings.TrimSpace(scope) == "" {
		return nil, apperrors.ErrValidation.WithMessage("proposition scope is required").WithDetail("field", "scope")
	}

	p := &Proposition{
		UniqueID:     id,
		Scope:        scope,
		ScopeDetails: datareader.CopyMap(scopeDetails),
		Items:        make([]PropositionItem, len(items)),
	}
	for i, item := range items {
		item.PropositionID = id
		p.Items[i] = item
	}
	return p, nil
}

func (p *Proposition) Surface() Surface {
	return SurfaceFromURI(p.Scope)
}

// Item looks up an item by id.
func (p *Proposition) Item(id string) (PropositionItem, bool) {
	for _, item := range p.Items {
		if item.UniqueID == id {
			return item, true
		}
	}
	return PropositionItem{}, false
}

// ToMap renders the proposition in the wire shape it was decoded from, with
// item content carried as a string.
func (p *Proposition) ToMap() map[string]interface{} {
	items := make([]interface{}, 0, len(p.Items))
	for _, item := range p.Items {
		items = append(items, map[string]interface{}{
			"id":     item.UniqueID,
			"schema": item.Schema,
			"data": map[string]interface{}{
				"id":      item.UniqueID,
				"content": item.Content,
			},
		})
	}
	m := map[string]interface{}{
		"id":    p.UniqueID,
		"scope": p.Scope,
		"items": items,
	}
	if p.ScopeDetails != nil {
		m["scopeDetails"] = datareader.CopyMap(p.ScopeDetails)
	}
	return m
}

// JSONContent decodes the item content as a JSON object.
func (i PropositionItem) JSONContent() (map[string]interface{}, error) {
	var out map[string]interface{}
	if err := json.Unmarshal([]byte(i.Content), &out); err != nil {
		return nil, apperrors.ErrDecode.WithCause(err).WithDetail("item_id", i.UniqueID)
	}
	if out == nil {
		return nil, apperrors.ErrDecode.WithMessage("content is not a JSON object").WithDetail("item_id", i.UniqueID)
	}
	return out, nil
}

// HTMLContent returns the content of an html-content-item.
func (i PropositionItem) HTMLContent() (string, error) {
	if i.Schema != SchemaHTMLContent {
		return "", apperrors.ErrDecode.WithMessage(fmt.Sprintf("schema %q does not carry html", i.Schema)).WithDetail("item_id", i.UniqueID)
	}
	return i.Content, nil
}

// DecodeProposition reads one wire entry. Items that cannot be decoded are
// dropped and returned as errors alongside the proposition.
func DecodeProposition(raw interface{}) (*Proposition, []error) {
	r := datareader.New(raw)
	if r == nil {
		return nil, []error{apperrors.ErrDecode.WithMessage("proposition is not an object")}
	}

	id := r.String("id", "")
	var items []PropositionItem
	var itemErrs []error
	for idx, itemRaw := range r.Slice("items") {
		item, err := DecodePropositionItem(itemRaw)
		if err != nil {
			itemErrs = append(itemErrs, fmt.Errorf("item %d of proposition %q: %w", idx, id, err))
			continue
		}
		items = append(items, *item)
	}

	p, err := NewProposition(id, r.String("scope", ""), r.Map("scopeDetails"), items)
	if err != nil {
		return nil, append(itemErrs, err)
	}
	return p, itemErrs
}

func DecodePropositionItem(raw interface{}) (*PropositionItem, error) {
	r := datareader.New(raw)
	if r == nil {
		return nil, apperrors.ErrDecode.WithMessage("item is not an object")
	}
	data := r.Reader("data")
	if data == nil {
		return nil, apperrors.ErrDecode.WithMessage("item data is missing")
	}

	id := r.String("id", "")
	if id == "" {
		id = data.String("id", "")
	}
	if id == "" {
		return nil, apperrors.ErrDecode.WithMessage("item id is missing")
	}

	content, err := itemContent(data)
	if err != nil {
		return nil, err
	}

	return &PropositionItem{
		UniqueID: id,
		Schema:   r.String("schema", ""),
		Content:  content,
	}, nil
}

// itemContent flattens the accepted content shapes into one string: plain
// strings pass through, lists of strings are concatenated, objects (including
// rule sets with a nested rules array) are serialized whole.
func itemContent(data datareader.Reader) (string, error) {
	switch content := data.Raw("content").(type) {
	case string:
		return content, nil
	case []interface{}:
		var sb strings.Builder
		for _, part := range content {
			s, ok := part.(string)
			if !ok {
				return "", apperrors.ErrDecode.WithMessage("content list holds a non-string entry")
			}
			sb.WriteString(s)
		}
		return sb.String(), nil
	case map[string]interface{}:
		return marshalContent(content)
	case nil:
		if rules := data.Slice("rules"); rules != nil {
			return marshalContent(map[string]interface{}{
				"version": data.Int64("version", 1),
				"rules":   rules,
			})
		}
		return "", apperrors.ErrDecode.WithMessage("item content is missing")
	default:
		return "", apperrors.ErrDecode.WithMessage(fmt.Sprintf("unsupported content type %T", content))
	}
}

func marshalContent(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", apperrors.ErrDecode.WithCause(err)
	}
	return string(data), nil
}
