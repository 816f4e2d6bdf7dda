package models

// LexerRules defines the YAML configuration for tag and attribute validation.
type LexerRules struct {
	Version string `json:"version" yaml:"version"`
	// VoidTags never take a closing tag and may be written self-closed (<br />).
	VoidTags []string `json:"voidTags" yaml:"void_tags"`
	// AllowedAttributes maps a tag name to the attributes it may carry.
	// Tags missing from the map accept no attributes.
	AllowedAttributes map[string][]string `json:"allowedAttributes" yaml:"allowed_attributes"`
}

// RulesInfo contains metadata about the active rules.
type RulesInfo struct {
	Version      string `json:"version"`
	Source       string `json:"source"` // "builtin" or a file path
	VoidTagCount int    `json:"voidTagCount"`
	TagCount     int    `json:"tagCount"`
}
