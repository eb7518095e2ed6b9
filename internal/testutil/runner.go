package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Invocation is one call recorded by a ScriptedRunner.
type Invocation struct {
	Name  string
	Args  []string
	Stdin string
}

// Line returns the invocation as a space-separated command line.
func (i Invocation) Line() string {
	return strings.TrimSpace(i.Name + " " + strings.Join(i.Args, " "))
}

// Response is the scripted outcome of one invocation.
type Response struct {
	Stdout string
	Err    error
}

// ScriptedRunner is a store.Runner that returns queued responses in order
// and records every invocation. When the queue is empty it returns empty
// output.
type ScriptedRunner struct {
	mu        sync.Mutex
	responses []Response
	calls     []Invocation
}

// Push queues responses.
func (r *ScriptedRunner) Push(responses ...Response) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.responses = append(r.responses, responses...)
}

// Run implements store.Runner.
func (r *ScriptedRunner) Run(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = append(r.calls, Invocation{
		Name:  name,
		Args:  append([]string(nil), args...),
		Stdin: string(stdin),
	})

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("scripted run: %w", err)
	}

	if len(r.responses) == 0 {
		return nil, nil
	}

	resp := r.responses[0]
	r.responses = r.responses[1:]

	if resp.Err != nil {
		return nil, resp.Err
	}

	return []byte(resp.Stdout), nil
}

// Calls returns the recorded invocations.
func (r *ScriptedRunner) Calls() []Invocation {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]Invocation(nil), r.calls...)
}
