package command

import (
	"context"
	"fmt"
	"sync"

	"unitdeck/internal/unit"
)

// ScriptedRunner answers from a fixed table of canned responses,
// keyed by program name plus joined argument vector. Tests use it to
// exercise clients without touching a real control plane.
type ScriptedRunner struct {
	// mu guards the tables only. It is released before the response is
	// returned and is never held while anything executes.
	mu        sync.Mutex
	responses map[string]scriptedResponse
	calls     []string
}

type scriptedResponse struct {
	out Output
	err error
}

func NewScriptedRunner() *ScriptedRunner {
	return &ScriptedRunner{responses: make(map[string]scriptedResponse)}
}

// Script registers the response returned for prog+args.
func (r *ScriptedRunner) Script(prog string, args []string, out Output) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses[Key(prog, args)] = scriptedResponse{out: out}
}

// ScriptError registers a hard failure (timeout, spawn error) for prog+args.
func (r *ScriptedRunner) ScriptError(prog string, args []string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses[Key(prog, args)] = scriptedResponse{err: err}
}

func (r *ScriptedRunner) Run(_ context.Context, prog string, args ...string) (Output, error) {
	key := Key(prog, args)

	r.mu.Lock()
	r.calls = append(r.calls, key)
	resp, ok := r.responses[key]
	r.mu.Unlock()

	if !ok {
		return Output{}, &unit.Error{
			Kind: unit.KindInternal,
			Op:   prog,
			Err:  fmt.Errorf("no scripted response for %q", key),
		}
	}
	if resp.err != nil {
		return Output{}, resp.err
	}
	return resp.out, nil
}

// Calls returns every invocation key seen so far, in order.
func (r *ScriptedRunner) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	copy(out, r.calls)
	return out
}
