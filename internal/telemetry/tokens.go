package telemetry

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter estimates token counts for request accounting. Counts are
// approximate: the cl100k_base encoding is close enough across the models
// the gateway fronts, and exact usage comes back from the provider anyway.
type TokenCounter struct {
	once     sync.Once
	encoding *tiktoken.Tiktoken
	initErr  error
}

func NewTokenCounter() *TokenCounter {
	return &TokenCounter{}
}

func (c *TokenCounter) init() {
	c.once.Do(func() {
		c.encoding, c.initErr = tiktoken.GetEncoding("cl100k_base")
	})
}

// Count returns the token count for a single string.
func (c *TokenCounter) Count(text string) (int, error) {
	c.init()
	if c.initErr != nil {
		return 0, fmt.Errorf("load encoding: %w", c.initErr)
	}
	return len(c.encoding.Encode(text, nil, nil)), nil
}

// CountAll sums token counts across message texts, adding a small per
// message overhead for role and framing tokens.
func (c *TokenCounter) CountAll(texts []string) (int, error) {
	const perMessageOverhead = 4

	total := 0
	for _, text := range texts {
		n, err := c.Count(text)
		if err != nil {
			return 0, err
		}
		total += n + perMessageOverhead
	}
	return total, nil
}
