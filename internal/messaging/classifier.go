package messaging

import (
	"messaging/internal/rules"
	"messaging/pkg/datareader"
	"messaging/pkg/models"
)

// RuleParser turns rule-set JSON into rules.
type RuleParser interface {
	Parse(content string) ([]rules.Rule, error)
}

// ConsequenceClass tells where a consequence is routed.
type ConsequenceClass struct {
	InboundType models.InboundType
	IsInApp     bool
	IsFeed      bool
}

// ClassifyConsequence checks the consequence type before the detail schema,
// so in-app wins when both could apply.
func ClassifyConsequence(c rules.Consequence) ConsequenceClass {
	schema := c.Schema()
	if c.Type == models.ConsequenceTypeInApp || schema == models.SchemaInApp {
		return ConsequenceClass{InboundType: models.InboundTypeInApp, IsInApp: true}
	}
	return ConsequenceClass{
		InboundType: models.InboundTypeFromSchema(schema),
		IsFeed:      schema == models.SchemaFeedItem,
	}
}

// ClassifiedRule is the outcome of classifying one proposition item that
// carried a rule. Type, tracking id and assets come from the first
// consequence.
type ClassifiedRule struct {
	Rules        []rules.Rule
	InboundType  models.InboundType
	IsInApp      bool
	IsFeed       bool
	TrackingID   string
	RemoteAssets []string
}

type Classifier struct {
	parser RuleParser
}

func NewClassifier(parser RuleParser) *Classifier {
	return &Classifier{parser: parser}
}

// Classify returns nil when the item content is not a rule: the item is then a
// code-based experience.
func (c *Classifier) Classify(item models.PropositionItem) *ClassifiedRule {
	parsed, err := c.parser.Parse(item.Content)
	if err != nil || len(parsed) == 0 {
		return nil
	}

	first := firstConsequence(parsed)
	if first == nil {
		return nil
	}

	class := ClassifyConsequence(*first)
	result := &ClassifiedRule{
		Rules:       parsed,
		InboundType: class.InboundType,
		IsInApp:     class.IsInApp,
		IsFeed:      class.IsFeed,
		TrackingID:  first.ID,
	}
	if class.IsInApp {
		result.RemoteAssets = RemoteAssets(*first)
	}
	return result
}

func firstConsequence(parsed []rules.Rule) *rules.Consequence {
	for i := range parsed {
		if len(parsed[i].Consequences) > 0 {
			return &parsed[i].Consequences[0]
		}
	}
	return nil
}

// RemoteAssets lists detail.remoteAssets of a consequence, also looking in the
// nested data object.
func RemoteAssets(c rules.Consequence) []string {
	d := datareader.Reader(c.Detail)
	out := d.Strings("remoteAssets")
	if data := d.Reader("data"); data != nil {
		out = append(out, data.Strings("remoteAssets")...)
	}
	return out
}
