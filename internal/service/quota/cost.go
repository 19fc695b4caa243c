package quota

import (
	"math"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"github.com/sandevgo/factbot/internal/core"
)

const (
	creditUSD       = 0.01
	tokensPerCredit = 1000
	// costEpsilon absorbs float noise such as 0.07/0.01 = 7.000000000000001.
	costEpsilon = 1e-9
)

type TokenEstimator interface {
	Count(text string) int
}

// Credits converts a completion into credits. Monetary cost wins over token
// usage; without either, tokens of prompt and answer are estimated.
func Credits(c core.Completion, prompt []core.Message, est TokenEstimator) int {
	if c.Cost != nil && *c.Cost > 0 {
		return int(math.Ceil(*c.Cost/creditUSD - costEpsilon))
	}

	tokens := 0
	if c.Usage != nil {
		tokens = c.Usage.TotalTokens
		if tokens == 0 {
			tokens = c.Usage.PromptTokens + c.Usage.CompletionTokens
		}
	} else {
		if est == nil {
			est = approxEstimator{}
		}
		for _, m := range prompt {
			tokens += est.Count(m.Content)
		}
		tokens += est.Count(c.Content)
	}

	return max(1, int(math.Ceil(float64(tokens)/tokensPerCredit)))
}

var (
	encoding     *tiktoken.Tiktoken
	encodingOnce sync.Once
)

type tiktokenEstimator struct {
	enc *tiktoken.Tiktoken
}

// NewTokenEstimator uses the cl100k_base encoding. When the encoding cannot be
// loaded it falls back to four bytes per token.
func NewTokenEstimator() TokenEstimator {
	encodingOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			encoding = enc
		}
	})
	if encoding == nil {
		return approxEstimator{}
	}
	return tiktokenEstimator{enc: encoding}
}

func (e tiktokenEstimator) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(e.enc.Encode(text, nil, nil))
}

type approxEstimator struct{}

func (approxEstimator) Count(text string) int {
	return (len(text) + 3) / 4
}
