package lexer

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/htmllex/analyzer/internal/models"
)

var (
	tagNameRegex  = regexp.MustCompile(`^</?([a-zA-Z][a-zA-Z0-9]*)`)
	attrNameRegex = regexp.MustCompile(`^([a-zA-Z_][a-zA-Z0-9_:\-]*)`)
)

// TagName extracts the element name from a TAG_OPEN, TAG_CLOSE or
// SELF_CLOSING_TAG token value.
func TagName(value string) string {
	m := tagNameRegex.FindStringSubmatch(value)
	if m == nil {
		return ""
	}
	return m[1]
}

// AttributeName extracts the attribute name from an ATTRIBUTE token value.
func AttributeName(value string) string {
	m := attrNameRegex.FindStringSubmatch(value)
	if m == nil {
		return ""
	}
	return m[1]
}

// ValidateStructure checks that opening and closing tags balance.
// Void tags are never pushed; a non-void tag written self-closed is an error.
func ValidateStructure(tokens []models.Token, rs *Ruleset) []string {
	errors := make([]string, 0)
	var stack []string

	for _, tok := range tokens {
		switch tok.Label {
		case models.TokenTagOpen:
			name := TagName(tok.Value)
			if !rs.IsVoid(name) {
				stack = append(stack, name)
			}
		case models.TokenTagClose:
			name := TagName(tok.Value)
			switch {
			case len(stack) == 0:
				errors = append(errors, fmt.Sprintf("Structure error: closing tag </%s> has no matching opening tag.", name))
			case !strings.EqualFold(stack[len(stack)-1], name):
				errors = append(errors, fmt.Sprintf("Structure error: closing tag </%s> does not match opening tag <%s>.", name, stack[len(stack)-1]))
			default:
				stack = stack[:len(stack)-1]
			}
		case models.TokenSelfClosingTag:
			name := TagName(tok.Value)
			if !rs.IsVoid(name) {
				errors = append(errors, fmt.Sprintf("Structure error: tag <%s> is not self-closing but was used as such.", name))
			}
		}
	}

	for _, tag := range stack {
		errors = append(errors, fmt.Sprintf("Structure error: tag <%s> was never closed.", tag))
	}

	return errors
}

// ValidateAttributes checks every ATTRIBUTE token against the allow-list of
// the tag token it follows.
func ValidateAttributes(tokens []models.Token, rs *Ruleset) []string {
	errors := make([]string, 0)
	current := ""

	for _, tok := range tokens {
		switch tok.Label {
		case models.TokenTagOpen, models.TokenSelfClosingTag:
			current = TagName(tok.Value)
		case models.TokenAttribute:
			if current == "" {
				continue
			}
			attr := AttributeName(tok.Value)
			if !rs.AttributeAllowed(current, attr) {
				errors = append(errors, fmt.Sprintf("Attribute error: attribute '%s' is not allowed on tag <%s>.", attr, current))
			}
		default:
			current = ""
		}
	}

	return errors
}
