package extract

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// modelEncodings maps model names to their tiktoken encoding.
var modelEncodings = map[string]string{
	"gpt-4o":                 "o200k_base",
	"gpt-4o-mini":            "o200k_base",
	"gpt-4-turbo":            "cl100k_base",
	"gpt-4":                  "cl100k_base",
	"gpt-3.5-turbo":          "cl100k_base",
	"text-embedding-3-large": "cl100k_base",
	"text-embedding-3-small": "cl100k_base",
}

var (
	encMu    sync.Mutex
	encCache = map[string]*tiktoken.Tiktoken{}
)

// EstimateTokens counts the tokens in text for the given model. Unknown
// models fall back to the cl100k_base encoding; when the encoding data is
// unavailable (tiktoken downloads it on first use) a length/4 heuristic is
// returned instead.
func EstimateTokens(text, model string) int {
	enc, err := encodingFor(model)
	if err != nil {
		return len(text) / 4
	}
	return len(enc.Encode(text, nil, nil))
}

func encodingFor(model string) (*tiktoken.Tiktoken, error) {
	name, ok := modelEncodings[model]
	if !ok {
		for prefix, n := range modelEncodings {
			if len(model) >= len(prefix) && model[:len(prefix)] == prefix {
				name = n
				ok = true
				break
			}
		}
	}
	if !ok {
		name = "cl100k_base"
	}

	encMu.Lock()
	defer encMu.Unlock()
	if enc, ok := encCache[name]; ok {
		return enc, nil
	}
	enc, err := tiktoken.GetEncoding(name)
	if err != nil {
		return nil, err
	}
	encCache[name] = enc
	return enc, nil
}
