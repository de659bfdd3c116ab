package tokens

import (
	"sync"
	"unicode"

	"github.com/bnema/openclaw-memory/internal/ports"
	tiktoken "github.com/pkoukk/tiktoken-go"
)

const DefaultEncoding = "cl100k_base"

// Counter counts tokens with tiktoken and falls back to a character
// heuristic when the BPE ranks cannot be loaded, as happens offline.
type Counter struct {
	encoder  *tiktoken.Tiktoken
	encoding string
	mu       sync.Mutex
}

var _ ports.TokenCounter = (*Counter)(nil)

var (
	defaultCounter     *Counter
	defaultCounterOnce sync.Once
)

func Default() *Counter {
	defaultCounterOnce.Do(func() {
		defaultCounter = NewCounter(DefaultEncoding)
	})
	return defaultCounter
}

func NewCounter(encoding string) *Counter {
	c := &Counter{encoding: encoding}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return c
	}
	c.encoder = enc
	return c
}

// NewHeuristicCounter never touches tiktoken.
func NewHeuristicCounter() *Counter {
	return &Counter{encoding: "heuristic"}
}

func (c *Counter) Precise() bool {
	return c.encoder != nil
}

func (c *Counter) Encoding() string {
	return c.encoding
}

func (c *Counter) CountText(text string) int {
	if text == "" {
		return 0
	}
	if c.encoder == nil {
		return heuristicCount(text)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.encoder.Encode(text, nil, nil))
}

// heuristicCount assumes about four ASCII characters per token and one and a
// half tokens per CJK character.
func heuristicCount(text string) int {
	var cjk, other int
	for _, r := range text {
		if unicode.In(r, unicode.Han, unicode.Hangul, unicode.Hiragana, unicode.Katakana) {
			cjk++
		} else {
			other++
		}
	}

	estimate := int(float64(cjk)*1.5 + float64(other)*0.25)
	if estimate < 1 {
		estimate = 1
	}
	return estimate
}
