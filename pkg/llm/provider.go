// Package llm provides the language model provider abstraction the
// crystallizer and the conversation session talk to.
//
// Providers are synchronous: a call blocks until the model answers or the
// transport fails. The core never retries and imposes no timeout of its
// own; any deadline comes in through the context.
package llm

import (
	"context"
	"fmt"

	"github.com/pcl-labs/navigator/pkg/types"
)

// Provider is the interface for language model integrations.
type Provider interface {
	// Complete sends the ordered turns to the model and returns the full
	// response text. Transport, quota, and timeout failures are returned
	// wrapped in *InvocationError; the caller decides what to surface.
	Complete(ctx context.Context, turns []types.Turn) (string, error)

	// GetModel returns the model name being used.
	GetModel() string
}

// InvocationError reports a failed model call: transport error, quota
// exhaustion, or a non-OK API response. It is propagated, not retried,
// and the triggering turn is never saved as an assistant message.
type InvocationError struct {
	Model string
	Err   error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("llm: model %s invocation failed: %v", e.Model, e.Err)
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}
