package models

import (
	"encoding/json"

	"messaging/pkg/datareader"
	apperrors "messaging/pkg/errors"
)

// Inbound is content produced by a matched rule consequence that has no
// display step of its own, such as a feed item or a content card.
type Inbound struct {
	UniqueID      string                 `json:"id"`
	InboundType   InboundType            `json:"type"`
	Content       interface{}            `json:"content"`
	ContentType   string                 `json:"contentType"`
	PublishedDate int64                  `json:"publishedDate"`
	ExpiryDate    int64                  `json:"expiryDate"`
	Meta          map[string]interface{} `json:"meta,omitempty"`
}

// InboundFromConsequenceDetail decodes a consequence detail. Content fields
// are read from the detail itself or from its nested data object.
func InboundFromConsequenceDetail(consequenceID string, detail map[string]interface{}) (*Inbound, error) {
	d := datareader.Reader(detail)
	if d == nil {
		return nil, apperrors.ErrValidation.WithMessage("consequence detail is missing").
			WithDetail("consequence_id", consequenceID)
	}

	schema := d.String("schema", "")
	fields := d
	if data := d.Reader("data"); data != nil && !d.Has("content") {
		fields = data
	}

	content := fields.Raw("content")
	if content == nil {
		return nil, apperrors.ErrValidation.WithMessage("consequence detail has no content").
			WithDetail("consequence_id", consequenceID)
	}

	contentType := fields.String("contentType", "")
	if contentType == "" {
		if _, isObject := content.(map[string]interface{}); isObject {
			contentType = ContentTypeJSON
		} else {
			contentType = ContentTypeText
		}
	}

	id := consequenceID
	if id == "" {
		id = d.String("id", "")
	}

	return &Inbound{
		UniqueID:      id,
		InboundType:   InboundTypeFromSchema(schema),
		Content:       datareader.DeepCopy(content),
		ContentType:   contentType,
		PublishedDate: clampDate(fields.Int64("publishedDate", 0)),
		ExpiryDate:    clampDate(fields.Int64("expiryDate", 0)),
		Meta:          datareader.CopyMap(fields.Map("meta")),
	}, nil
}

func clampDate(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}

// ContentMap returns the content as an object, decoding a JSON string when
// the content type says so.
func (in *Inbound) ContentMap() (map[string]interface{}, error) {
	switch c := in.Content.(type) {
	case map[string]interface{}:
		return c, nil
	case string:
		if in.ContentType != ContentTypeJSON {
			break
		}
		var out map[string]interface{}
		if err := json.Unmarshal([]byte(c), &out); err != nil || out == nil {
			return nil, apperrors.ErrDecode.WithMessage("inbound content is not a JSON object").WithCause(err).
				WithDetail("inbound_id", in.UniqueID)
		}
		return out, nil
	}
	return nil, apperrors.ErrDecode.WithMessage("inbound content is not a JSON object").WithDetail("inbound_id", in.UniqueID)
}
