// File: internal/infra/tokencount/tokencount.go
package tokencount

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Estimator counts prompt tokens the way the provider billing model does,
// so a job record's provider metadata carries a token estimate even for
// backends (like the fallback image provider) that don't return one
// themselves.
type Estimator struct {
	once sync.Once
	enc  *tiktoken.Tiktoken
}

// Count returns the estimated token count of s using the cl100k_base
// encoding (the encoding OpenAI's current text and image-edit prompt
// models use). Falls back to a word-count heuristic if the encoder cannot
// be initialized (e.g. missing bundled vocabulary data).
func (e *Estimator) Count(s string) int {
	e.once.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			e.enc = enc
		}
	})
	if e.enc == nil {
		return heuristicCount(s)
	}
	return len(e.enc.Encode(s, nil, nil))
}

func heuristicCount(s string) int {
	n := 0
	inWord := false
	for _, r := range s {
		if r == ' ' || r == '\n' || r == '\t' {
			inWord = false
			continue
		}
		if !inWord {
			n++
			inWord = true
		}
	}
	return n
}
