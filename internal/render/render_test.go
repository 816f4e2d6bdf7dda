package render

import (
	"strings"
	"testing"

	"github.com/htmllex/analyzer/internal/models"
	"github.com/stretchr/testify/assert"
)

func result(path string, errs []string, tokens ...models.Token) models.AnalysisResult {
	if errs == nil {
		errs = []string{}
	}
	if tokens == nil {
		tokens = []models.Token{}
	}
	return models.AnalysisResult{FilePath: path, Errors: errs, Tokens: tokens}
}

func TestPlain_ErrorsSurfaceWithoutValidNotice(t *testing.T) {
	errs := []string{
		"Structure error: tag <p> was never closed.",
		"Attribute error: attribute 'onclick' is not allowed on tag <p>.",
	}
	out := Plain([]models.AnalysisResult{
		result("b.html", errs, models.Token{Label: models.TokenTagOpen, Value: `<p onclick="x()">`}),
	})

	assert.Contains(t, out, ErrorsHeading)
	for _, e := range errs {
		assert.Contains(t, out, e)
	}
	assert.NotContains(t, out, ValidNotice)
	assert.Contains(t, out, `TAG_OPEN: <p onclick="x()">`)
}

func TestPlain_ValidFile(t *testing.T) {
	out := Plain([]models.AnalysisResult{
		result("a.html", nil,
			models.Token{Label: models.TokenTagOpen, Value: "<div>"},
			models.Token{Label: models.TokenText, Value: "hi"},
			models.Token{Label: models.TokenTagClose, Value: "</div>"},
		),
	})

	want := "== a.html ==\n" +
		"The file is valid.\n" +
		"Recognized tokens:\n" +
		"  TAG_OPEN: <div>\n" +
		"  TEXT: hi\n" +
		"  TAG_CLOSE: </div>\n"
	assert.Equal(t, want, out)
	assert.Equal(t, 1, strings.Count(out, ValidNotice))
	assert.NotContains(t, out, ErrorsHeading)
}

func TestPlain_BlocksFollowResponseOrder(t *testing.T) {
	out := Plain([]models.AnalysisResult{
		result("z.html", nil),
		result("a.html", []string{"Lexical error: unterminated comment at position 0."}),
	})

	assert.Equal(t, 2, strings.Count(out, "== "))
	assert.Less(t, strings.Index(out, "z.html"), strings.Index(out, "a.html"))
	assert.Equal(t, 2, strings.Count(out, TokensHeading))
}

func TestPlain_Empty(t *testing.T) {
	assert.Equal(t, "", Plain(nil))
}

func TestNew_RespectsNoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	results := []models.AnalysisResult{result("a.html", nil)}

	assert.Equal(t, Plain(results), New(true).Render(results))
}

func TestSummary(t *testing.T) {
	tests := []struct {
		results []models.AnalysisResult
		want    string
	}{
		{nil, "0 files analyzed, 0 with errors"},
		{[]models.AnalysisResult{result("a", nil)}, "1 file analyzed, 0 with errors"},
		{[]models.AnalysisResult{result("a", nil), result("b", []string{"x"})}, "2 files analyzed, 1 with errors"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Summary(tt.results))
	}
}
