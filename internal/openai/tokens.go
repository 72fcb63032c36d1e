package openai

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// TokenTrimmer cuts text to a token budget.
type TokenTrimmer interface {
	TrimToTokenLimit(text string, maxTokens int) string
}

// TiktokenTrimmer counts tokens with the cl100k_base encoding used by the
// embedding models.
type TiktokenTrimmer struct {
	encoding *tiktoken.Tiktoken
}

// NewTiktokenTrimmer loads the encoding. The BPE table is fetched on first
// use and cached under TIKTOKEN_CACHE_DIR.
func NewTiktokenTrimmer() (*TiktokenTrimmer, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("failed to load tiktoken encoding: %w", err)
	}
	return &TiktokenTrimmer{encoding: enc}, nil
}

func (t *TiktokenTrimmer) CountTokens(text string) int {
	return len(t.encoding.Encode(text, nil, nil))
}

func (t *TiktokenTrimmer) TrimToTokenLimit(text string, maxTokens int) string {
	tokens := t.encoding.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text
	}
	return t.encoding.Decode(tokens[:maxTokens])
}
