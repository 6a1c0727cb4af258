package models

import (
	"strings"

	"messaging/pkg/datareader"
	apperrors "messaging/pkg/errors"
)

type FeedItem struct {
	Title         string                 `json:"title"`
	Body          string                 `json:"body"`
	ImageURL      string                 `json:"imageUrl,omitempty"`
	ActionURL     string                 `json:"actionUrl,omitempty"`
	ActionTitle   string                 `json:"actionTitle,omitempty"`
	PublishedDate int64                  `json:"publishedDate"`
	ExpiryDate    int64                  `json:"expiryDate"`
	Meta          map[string]interface{} `json:"meta,omitempty"`
}

// ValidFeedItem is the construction rule for FeedItem.
func ValidFeedItem(title, body string, publishedDate, expiryDate int64) bool {
	return title != "" && body != "" && publishedDate > 0 && expiryDate > 0
}

// NewFeedItem returns a validation error, and no item, unless title and body
// are set and both dates are positive.
func NewFeedItem(title, body, imageURL, actionURL, actionTitle string, publishedDate, expiryDate int64, meta map[string]interface{}) (*FeedItem, error) {
	if !ValidFeedItem(title, body, publishedDate, expiryDate) {
		return nil, apperrors.ErrValidation.WithMessage("feed item requires title, body and positive published/expiry dates").
			WithDetail("title", title != "").
			WithDetail("body", body != "").
			WithDetail("published_date", publishedDate).
			WithDetail("expiry_date", expiryDate)
	}
	return &FeedItem{
		Title:         title,
		Body:          body,
		ImageURL:      imageURL,
		ActionURL:     actionURL,
		ActionTitle:   actionTitle,
		PublishedDate: publishedDate,
		ExpiryDate:    expiryDate,
		Meta:          datareader.CopyMap(meta),
	}, nil
}

// FeedItemFromInbound decodes the JSON content of a feed inbound.
func FeedItemFromInbound(in *Inbound) (*FeedItem, error) {
	if in == nil {
		return nil, apperrors.ErrValidation.WithMessage("inbound is required")
	}
	content, err := in.ContentMap()
	if err != nil {
		return nil, err
	}
	c := datareader.Reader(content)
	return NewFeedItem(
		strings.TrimSpace(c.String("title", "")),
		strings.TrimSpace(c.String("body", "")),
		c.String("imageUrl", ""),
		c.String("actionUrl", ""),
		c.String("actionTitle", ""),
		in.PublishedDate,
		in.ExpiryDate,
		in.Meta,
	)
}

// Expired reports whether the item is past its expiry at unix time now.
func (f *FeedItem) Expired(now int64) bool {
	return f.ExpiryDate <= now
}
