package usage

import (
	"bytes"
	"encoding/json"

	"github.com/j-veylop/mission-control/internal/models"
)

type featureRule struct {
	match   func(*Message) bool
	feature string
}

// featureRules is evaluated in order; the first match wins.
var featureRules = []featureRule{
	{feature: models.FeatureSkills, match: func(m *Message) bool { return hasItems(m.ToolCalls) }},
	{feature: models.FeatureSystem, match: func(m *Message) bool { return m.Role == "system" }},
	{feature: models.FeatureThinking, match: func(m *Message) bool { return truthy(m.Thinking) }},
}

// InferFeature classifies a message into a feature category.
func InferFeature(m *Message) string {
	for _, rule := range featureRules {
		if rule.match(m) {
			return rule.feature
		}
	}
	return models.FeatureChat
}

// truthy reports whether a raw JSON value is present and not an empty or
// zero literal.
func truthy(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	switch string(raw) {
	case "", "null", "false", "0", `""`:
		return false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f != 0
	}
	return true
}

// hasItems reports whether raw is a non-empty JSON array.
func hasItems(raw json.RawMessage) bool {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return false
	}
	return len(items) > 0
}
