// Package exec defines the code execution collaborator consumed by the
// editor's run panel. Sandboxed execution is an external service; only
// the contract lives here.
package exec

import "context"

// Result carries the output of one execution.
type Result struct {
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
}

// Runner executes a source snippet in the named language.
type Runner interface {
	Execute(ctx context.Context, language, source string) (*Result, error)
}
