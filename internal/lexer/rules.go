package lexer

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/htmllex/analyzer/internal/models"
	"github.com/zeebo/xxh3"
	"gopkg.in/yaml.v3"
)

// DefaultRules returns the built-in void tags and attribute allow-lists.
func DefaultRules() *models.LexerRules {
	return &models.LexerRules{
		Version:  "builtin-1",
		VoidTags: []string{"img", "input", "br", "meta", "link", "hr"},
		AllowedAttributes: map[string][]string{
			"button": {"onclick", "class", "id", "style"},
			"div":    {"class", "id", "style"},
			"img":    {"src", "alt", "class", "id", "style"},
			"input":  {"type", "name", "value", "class", "id", "style"},
			"br":     {},
			"meta":   {"charset", "name", "content"},
		},
	}
}

// ParseRules parses a YAML rules file.
func ParseRules(filePath string) (*models.LexerRules, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return ParseRulesFromReader(file)
}

// ParseRulesFromReader parses rules from an io.Reader.
func ParseRulesFromReader(r io.Reader) (*models.LexerRules, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var rules models.LexerRules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parsing rules: %w", err)
	}
	if rules.AllowedAttributes == nil {
		rules.AllowedAttributes = make(map[string][]string)
	}

	return &rules, nil
}

// Ruleset is the compiled, lookup-ready form of LexerRules. It is immutable
// and safe for concurrent use.
type Ruleset struct {
	rules       *models.LexerRules
	source      string
	voidTags    map[string]struct{}
	allowed     map[string]map[string]struct{}
	fingerprint uint64
}

// NewRuleset compiles rules. Tag and attribute names are case-insensitive.
func NewRuleset(rules *models.LexerRules, source string) *Ruleset {
	rs := &Ruleset{
		rules:    rules,
		source:   source,
		voidTags: make(map[string]struct{}, len(rules.VoidTags)),
		allowed:  make(map[string]map[string]struct{}, len(rules.AllowedAttributes)),
	}

	for _, tag := range rules.VoidTags {
		rs.voidTags[strings.ToLower(tag)] = struct{}{}
	}
	for tag, attrs := range rules.AllowedAttributes {
		set := make(map[string]struct{}, len(attrs))
		for _, a := range attrs {
			set[strings.ToLower(a)] = struct{}{}
		}
		rs.allowed[strings.ToLower(tag)] = set
	}

	rs.fingerprint = rs.computeFingerprint()
	return rs
}

// DefaultRuleset compiles DefaultRules.
func DefaultRuleset() *Ruleset {
	return NewRuleset(DefaultRules(), "builtin")
}

// LoadRuleset compiles the rules at path, or the defaults when path is empty.
func LoadRuleset(path string) (*Ruleset, error) {
	if path == "" {
		return DefaultRuleset(), nil
	}
	rules, err := ParseRules(path)
	if err != nil {
		return nil, fmt.Errorf("loading rules from %s: %w", path, err)
	}
	return NewRuleset(rules, path), nil
}

// IsVoid reports whether tag never takes a closing tag.
func (rs *Ruleset) IsVoid(tag string) bool {
	_, ok := rs.voidTags[strings.ToLower(tag)]
	return ok
}

// AttributeAllowed reports whether attr may appear on tag.
func (rs *Ruleset) AttributeAllowed(tag, attr string) bool {
	set, ok := rs.allowed[strings.ToLower(tag)]
	if !ok {
		return false
	}
	_, ok = set[strings.ToLower(attr)]
	return ok
}

// Fingerprint identifies the effective rule content. Two rulesets with the
// same tags and allow-lists share a fingerprint regardless of ordering.
func (rs *Ruleset) Fingerprint() uint64 {
	return rs.fingerprint
}

// Info summarizes the ruleset for the API.
func (rs *Ruleset) Info() models.RulesInfo {
	return models.RulesInfo{
		Version:      rs.rules.Version,
		Source:       rs.source,
		VoidTagCount: len(rs.voidTags),
		TagCount:     len(rs.allowed),
	}
}

// Rules returns the underlying rule definition.
func (rs *Ruleset) Rules() *models.LexerRules {
	return rs.rules
}

func (rs *Ruleset) computeFingerprint() uint64 {
	var b strings.Builder
	b.WriteString("void:")
	b.WriteString(strings.Join(sortedKeys(rs.voidTags), ","))
	tags := make([]string, 0, len(rs.allowed))
	for tag := range rs.allowed {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	for _, tag := range tags {
		b.WriteString(";")
		b.WriteString(tag)
		b.WriteString("=")
		b.WriteString(strings.Join(sortedKeys(rs.allowed[tag]), ","))
	}
	return xxh3.HashString(b.String())
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
