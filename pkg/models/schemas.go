package models

// Item schema tags.
const (
	SchemaJSONContent    = "https://ns.adobe.com/personalization/json-content-item"
	SchemaHTMLContent    = "https://ns.adobe.com/personalization/html-content-item"
	SchemaDefaultContent = "https://ns.adobe.com/personalization/default-content-item"
	SchemaRuleset        = "https://ns.adobe.com/personalization/ruleset-item"
	SchemaInApp          = "https://ns.adobe.com/personalization/message/in-app"
	SchemaFeedItem       = "https://ns.adobe.com/personalization/message/feed-item"
	SchemaContentCard    = "https://ns.adobe.com/personalization/message/content-card"
)

// ConsequenceTypeInApp is the legacy in-app consequence type.
const (
	ConsequenceTypeInApp  = "cjmiam"
	ConsequenceTypeSchema = "schema"
)

const (
	ContentTypeJSON = "application/json"
	ContentTypeHTML = "text/html"
	ContentTypeText = "text/plain"
)

// InboundType discriminates which rules engine a parsed rule is routed to.
type InboundType string

const (
	InboundTypeUnknown     InboundType = "unknown"
	InboundTypeFeed        InboundType = "feed"
	InboundTypeInApp       InboundType = "inapp"
	InboundTypeContentCard InboundType = "contentcard"
)

// InboundTypeFromSchema maps a consequence detail schema to its inbound type.
func InboundTypeFromSchema(schema string) InboundType {
	switch schema {
	case SchemaFeedItem:
		return InboundTypeFeed
	case SchemaInApp:
		return InboundTypeInApp
	case SchemaContentCard:
		return InboundTypeContentCard
	default:
		return InboundTypeUnknown
	}
}

func (t InboundType) String() string {
	return string(t)
}
