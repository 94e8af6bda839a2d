package provider

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// estimateEncoding is the cl100k_base BPE, a reasonable stand-in across
// vendors when an adapter can't report real usage (spec.md §4.B: the mock
// and offline paths never receive billed token counts from a backend).
const estimateEncoding = "cl100k_base"

var (
	estimateOnce sync.Once
	estimateEnc  *tiktoken.Tiktoken
	estimateErr  error
)

// EstimateTokens approximates the token count of text via tiktoken's
// cl100k_base encoding, for use as a fallback when a Usage carries zero
// tokens (a provider that didn't report real billing usage).
func EstimateTokens(text string) (int, error) {
	estimateOnce.Do(func() {
		estimateEnc, estimateErr = tiktoken.GetEncoding(estimateEncoding)
	})
	if estimateErr != nil {
		return 0, estimateErr
	}
	return len(estimateEnc.Encode(text, nil, nil)), nil
}
