package models

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Token kinds produced by the HTML lexer.
const (
	TokenTagOpen        = "TAG_OPEN"
	TokenTagClose       = "TAG_CLOSE"
	TokenSelfClosingTag = "SELF_CLOSING_TAG"
	TokenAttribute      = "ATTRIBUTE"
	TokenText           = "TEXT"
	TokenUnknown        = "UNKNOWN"
)

// Token is one lexical unit: a kind label and the literal source text.
// On the wire it is a two-element array: ["TAG_OPEN", "<div"].
type Token struct {
	Label string
	Value string
}

// MarshalJSON encodes the token as [label, value].
func (t Token) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{t.Label, t.Value})
}

// UnmarshalJSON decodes a [label, value] pair.
func (t *Token) UnmarshalJSON(data []byte) error {
	var pair []string
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("decoding token: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("decoding token: expected 2 elements, got %d", len(pair))
	}
	t.Label, t.Value = pair[0], pair[1]
	return nil
}

var (
	_ msgpack.CustomEncoder = (*Token)(nil)
	_ msgpack.CustomDecoder = (*Token)(nil)
)

// EncodeMsgpack encodes the token as a two-element msgpack array.
func (t *Token) EncodeMsgpack(enc *msgpack.Encoder) error {
	if err := enc.EncodeArrayLen(2); err != nil {
		return err
	}
	if err := enc.EncodeString(t.Label); err != nil {
		return err
	}
	return enc.EncodeString(t.Value)
}

// DecodeMsgpack decodes a two-element msgpack array.
func (t *Token) DecodeMsgpack(dec *msgpack.Decoder) error {
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return err
	}
	if n != 2 {
		return fmt.Errorf("decoding token: expected 2 elements, got %d", n)
	}
	if t.Label, err = dec.DecodeString(); err != nil {
		return err
	}
	t.Value, err = dec.DecodeString()
	return err
}

// AnalysisResult is the per-file outcome returned by the analysis service.
type AnalysisResult struct {
	FilePath string   `json:"file_path" msgpack:"file_path"`
	Errors   []string `json:"errors" msgpack:"errors"`
	Tokens   []Token  `json:"tokens" msgpack:"tokens"`
}

// NewAnalysisResult returns a result with non-nil slices so it encodes as
// empty arrays rather than null.
func NewAnalysisResult(filePath string) *AnalysisResult {
	return &AnalysisResult{
		FilePath: filePath,
		Errors:   make([]string, 0),
		Tokens:   make([]Token, 0),
	}
}

// Valid reports whether the analyzer found no errors.
func (r *AnalysisResult) Valid() bool {
	return len(r.Errors) == 0
}

// HistoryEntry is a summary row of a past analysis.
type HistoryEntry struct {
	ID         string `json:"id"`
	BatchID    string `json:"batchId"`
	FilePath   string `json:"filePath"`
	ErrorCount int    `json:"errorCount"`
	TokenCount int    `json:"tokenCount"`
	Valid      bool   `json:"valid"`
	AnalyzedAt int64  `json:"analyzedAt"` // Unix ms
}
