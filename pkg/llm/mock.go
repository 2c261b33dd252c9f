package llm

import (
	"context"
	"sync"

	"github.com/pcl-labs/navigator/pkg/types"
)

// MockProvider is a scriptable Provider for tests. Each call pops the next
// response from Responses (the last one repeats); Err, when set, takes
// precedence over responses.
type MockProvider struct {
	Responses []string
	Err       error

	mu    sync.Mutex
	calls [][]types.Turn
}

// Complete records the call and returns the scripted response or error.
func (m *MockProvider) Complete(_ context.Context, turns []types.Turn) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := make([]types.Turn, len(turns))
	copy(copied, turns)
	m.calls = append(m.calls, copied)

	if m.Err != nil {
		return "", &InvocationError{Model: m.GetModel(), Err: m.Err}
	}
	if len(m.Responses) == 0 {
		return "", nil
	}
	idx := len(m.calls) - 1
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	}
	return m.Responses[idx], nil
}

// GetModel returns the mock model name.
func (m *MockProvider) GetModel() string {
	return "mock"
}

// Calls returns a copy of every turn list the mock has been invoked with.
func (m *MockProvider) Calls() [][]types.Turn {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]types.Turn, len(m.calls))
	copy(out, m.calls)
	return out
}
