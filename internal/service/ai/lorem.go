package ai

import (
	"context"
	"strings"
	"time"

	loremgen "github.com/bozaro/golorem"
)

// LoremCompleter generates lorem ipsum replies. Used for development
// without API keys; the optional delay simulates a slow backend.
type LoremCompleter struct {
	generator *loremgen.Lorem
	delay     time.Duration
}

// NewLoremCompleter creates a lorem completer. A zero delay answers
// immediately.
func NewLoremCompleter(delay time.Duration) *LoremCompleter {
	return &LoremCompleter{
		generator: loremgen.New(),
		delay:     delay,
	}
}

// Complete returns a few paragraphs of lorem ipsum, honoring context
// cancellation during the simulated delay.
func (c *LoremCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	var sb strings.Builder
	for i := 0; i < 3; i++ {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(c.generator.Paragraph(2, 4))
	}
	return sb.String(), nil
}
