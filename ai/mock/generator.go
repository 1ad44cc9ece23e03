package mock

import (
	"context"
	"sync"
)

// MockGenerator is a test double for ai.Generator.
// By default it answers with a fixed text and records every prompt.
type MockGenerator struct {
	// GenerateFunc is called by Generate if set.
	GenerateFunc func(ctx context.Context, prompt string) (string, error)

	// Answer is returned when GenerateFunc is nil.
	Answer string

	mu      sync.Mutex
	prompts []string
}

// NewMockGenerator creates a generator that always answers with answer.
func NewMockGenerator(answer string) *MockGenerator {
	return &MockGenerator{Answer: answer}
}

// Generate records prompt and returns the configured answer.
func (m *MockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt)
	}
	return m.Answer, nil
}

// Prompts returns the prompts received so far.
func (m *MockGenerator) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// CallCount returns the number of Generate calls.
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}
