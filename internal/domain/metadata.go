package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// TokenMetadata is the JSON document a token URI points at.
// Field order matches the serialized form.
type TokenMetadata struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Image       string      `json:"image"`
	Attributes  []Attribute `json:"attributes"`
}

// Attribute is a single trait entry.
type Attribute struct {
	TraitType string `json:"trait_type"`
	Value     string `json:"value"`
}

// UnmarshalJSON accepts scalar trait values of any JSON type.
// Numbers and booleans are kept as their literal JSON text.
func (a *Attribute) UnmarshalJSON(data []byte) error {
	var raw struct {
		TraitType string          `json:"trait_type"`
		Value     json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	a.TraitType = raw.TraitType
	a.Value = ""

	value := strings.TrimSpace(string(raw.Value))
	switch {
	case value == "" || value == "null":
	case strings.HasPrefix(value, `"`):
		if err := json.Unmarshal(raw.Value, &a.Value); err != nil {
			return err
		}
	case strings.HasPrefix(value, "{"), strings.HasPrefix(value, "["):
		return fmt.Errorf("attribute %q: value must be a scalar", raw.TraitType)
	default:
		a.Value = value
	}
	return nil
}

// Attr looks up a trait value by type.
func (m *TokenMetadata) Attr(traitType string) (string, bool) {
	for _, a := range m.Attributes {
		if a.TraitType == traitType {
			return a.Value, true
		}
	}
	return "", false
}
