// Package tokens estimates token counts offline for content not yet sent.
package tokens

import (
	"encoding/base64"
	"fmt"
	"math"
	"sync"
	"unicode/utf8"

	"switchboard/core/provider"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// DefaultMultiplier pads the generic tokenizer's estimate, which undercounts
// for most non-OpenAI tokenizers. It is empirical; configure per deployment.
const DefaultMultiplier = 1.5

const encodingName = "cl100k_base"

var (
	loadOnce sync.Once
	encoding *tiktoken.Tiktoken
	loadErr  error
)

// sharedEncoding loads the BPE ranks once, from the embedded offline loader.
func sharedEncoding() (*tiktoken.Tiktoken, error) {
	loadOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
		encoding, loadErr = tiktoken.GetEncoding(encodingName)
	})
	return encoding, loadErr
}

// Estimator counts tokens with a generic BPE tokenizer and a configurable multiplier.
// It is safe for concurrent use.
type Estimator struct {
	enc        *tiktoken.Tiktoken
	multiplier float64
}

// New returns an estimator. A non-positive multiplier selects DefaultMultiplier.
// If the tokenizer cannot be loaded the estimator falls back to a character heuristic.
func New(multiplier float64) *Estimator {
	if multiplier <= 0 {
		multiplier = DefaultMultiplier
	}
	enc, err := sharedEncoding()
	if err != nil {
		enc = nil
	}
	return &Estimator{enc: enc, multiplier: multiplier}
}

// Multiplier returns the configured padding factor.
func (e *Estimator) Multiplier() float64 {
	return e.multiplier
}

// Count estimates the tokens in content. It fails only on malformed blocks.
func (e *Estimator) Count(content []provider.ContentBlock) (int, error) {
	var raw float64
	for i, block := range content {
		switch block.Type {
		case provider.BlockText:
			if !utf8.ValidString(block.Text) {
				return 0, fmt.Errorf("%w: block %d: text is not valid UTF-8", provider.ErrMalformedContent, i)
			}
			raw += float64(e.countText(block.Text))
		case provider.BlockImage:
			if len(block.Data) == 0 {
				return 0, fmt.Errorf("%w: block %d: image has no data", provider.ErrMalformedContent, i)
			}
			if !supportedImage(block.MediaType) {
				return 0, fmt.Errorf("%w: block %d: unsupported image type %q", provider.ErrMalformedContent, i, block.MediaType)
			}
			// Images are sent base64-encoded; size the estimate on the encoded payload.
			raw += math.Ceil(math.Sqrt(float64(base64.StdEncoding.EncodedLen(len(block.Data)))))
		default:
			return 0, fmt.Errorf("%w: block %d: unknown block type %q", provider.ErrMalformedContent, i, block.Type)
		}
	}
	return int(math.Ceil(raw * e.multiplier)), nil
}

// CountText estimates the tokens in a single string.
func (e *Estimator) CountText(text string) int {
	n, err := e.Count([]provider.ContentBlock{provider.TextBlock(text)})
	if err != nil {
		return 0
	}
	return n
}

func (e *Estimator) countText(text string) int {
	if text == "" {
		return 0
	}
	if e.enc == nil {
		// 1.2 chars/token is conservative for code-heavy text.
		return (len(text)*5 + 5) / 6
	}
	return len(e.enc.Encode(text, nil, nil))
}

func supportedImage(mediaType string) bool {
	switch mediaType {
	case "image/png", "image/jpeg", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}
