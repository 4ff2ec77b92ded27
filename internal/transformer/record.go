// Package transformer turns completed XML subtrees into JSON-shaped records.
//
// Two transforms are provided: a fully generic structural mapping (any XML)
// and a schema-aware extraction for nmap scan reports. Both produce the same
// Record shape so every sink can consume either mode.
package transformer

import "xmlstream/internal/jsonval"

// Reserved keys of the record encoding. Attribute-derived keys carry the
// AttrPrefix marker and element text lives under TextKey, so they can never
// collide with child-element keys.
const (
	AttrPrefix = "@"
	TextKey    = "#text"
	TagKey     = "_tag"
	ScalarKey  = "_text"
)

// Record is one unit of sink input: the source element's tag plus the
// transformed payload (always a JSON object including TagKey).
type Record struct {
	Tag   string
	Value jsonval.Value
}
