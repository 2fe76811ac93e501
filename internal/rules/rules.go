package rules

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/kmayer/taskflow/internal/config"
)

// Category is a named group of trigger phrases. Both the category order
// and the phrase order within a category are significant: the first
// match wins during classification.
type Category struct {
	Name  string
	Words []string
}

// RuleSet holds the trigger-word taxonomy and the marketing filter list
// used to classify scanned messages.
type RuleSet struct {
	Triggers         []Category
	MarketingFilters []string
}

// DefaultTriggers is the built-in trigger taxonomy, used when no
// override is configured.
func DefaultTriggers() []Category {
	return []Category{
		{Name: "quotes", Words: []string{"quote", "rfq", "request for quote", "pricing", "lead time"}},
		{Name: "orders", Words: []string{"po", "purchase order", "order confirmation", "sales order"}},
		{Name: "urgency", Words: []string{"urgent", "asap", "deadline", "action required", "action needed"}},
		{Name: "design", Words: []string{"cad", "drawing", "bom", "bill of materials", "spec", "specification", "revision", "design", "engineering"}},
		{Name: "shipping", Words: []string{"ship", "shipping", "tracking", "delivery"}},
		{Name: "communication", Words: []string{"meeting", "call", "schedule", "follow up", "please review", "awaiting", "pending", "response needed"}},
	}
}

// DefaultMarketingFilters is the built-in list of phrases that mark a
// message as marketing mail.
func DefaultMarketingFilters() []string {
	return []string{
		"unsubscribe", "opt-out", "newsletter", "promotional", "marketing",
		"no-reply", "noreply", "donotreply",
		"linkedin", "facebook notification", "twitter",
		"special offer", "limited time", "discount", "webinar", "free trial",
	}
}

// SettingGetter reads a single runtime setting. Absence is reported via
// the boolean, not an error.
type SettingGetter interface {
	GetSetting(ctx context.Context, key string) (string, bool, error)
}

// Source resolves the active rule set from settings overrides, falling
// back to the built-in defaults when no override is configured or an
// override fails to decode.
type Source struct {
	settings SettingGetter
}

// NewSource creates a rule source backed by the given settings store.
func NewSource(settings SettingGetter) *Source {
	return &Source{settings: settings}
}

// Load returns the current rule set. Overrides are re-read on every
// call so rule edits take effect without a restart.
func (s *Source) Load(ctx context.Context) RuleSet {
	rs := RuleSet{
		Triggers:         DefaultTriggers(),
		MarketingFilters: DefaultMarketingFilters(),
	}

	if raw, ok, err := s.settings.GetSetting(ctx, config.SettingTriggerWords); err == nil && ok {
		if triggers, err := DecodeTriggers([]byte(raw)); err == nil {
			rs.Triggers = triggers
		}
	}

	if raw, ok, err := s.settings.GetSetting(ctx, config.SettingMarketingFilters); err == nil && ok {
		var filters []string
		if err := json.Unmarshal([]byte(raw), &filters); err == nil {
			rs.MarketingFilters = filters
		}
	}

	return rs
}

// DecodeTriggers parses a JSON object of category name to phrase list,
// preserving the key order of the document. A plain json.Unmarshal into
// a map would lose the order the categories were configured in, which
// decides classification precedence.
func DecodeTriggers(data []byte) ([]Category, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("decoding trigger words: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("decoding trigger words: expected object, got %v", tok)
	}

	var categories []Category
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("decoding trigger category name: %w", err)
		}
		name, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("decoding trigger category name: got %v", keyTok)
		}

		var words []string
		if err := dec.Decode(&words); err != nil {
			return nil, fmt.Errorf("decoding trigger words for %q: %w", name, err)
		}

		categories = append(categories, Category{Name: name, Words: words})
	}

	return categories, nil
}
