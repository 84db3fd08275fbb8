// Package ai defines the completion collaborator the chat channel calls
// when a message carries an agent directive. The real backend lives
// elsewhere; this package holds the interface plus a lorem ipsum
// implementation for development and tests.
package ai

import "context"

// Completer produces an assistant reply for a prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
