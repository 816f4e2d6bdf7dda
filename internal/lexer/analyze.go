package lexer

import "github.com/htmllex/analyzer/internal/models"

// Analyze tokenizes src and runs both validators. Errors are ordered lexical,
// then structural, then attribute errors.
func Analyze(filePath, src string, rs *Ruleset) *models.AnalysisResult {
	if rs == nil {
		rs = DefaultRuleset()
	}

	lx := New(src)
	tokens := lx.Tokenize()

	result := models.NewAnalysisResult(filePath)
	result.Tokens = tokens
	result.Errors = append(result.Errors, lx.Errors()...)
	result.Errors = append(result.Errors, ValidateStructure(tokens, rs)...)
	result.Errors = append(result.Errors, ValidateAttributes(tokens, rs)...)

	return result
}
