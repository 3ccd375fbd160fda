// Package mock provides a scripted generative provider for testing.
package mock

import (
	"context"
	"sync"

	"github.com/cobaltline/foreman/provider"
)

const defaultResponse = "Understood."

// Step is one scripted provider response. Exactly one of Content/ToolCalls
// or Err is meaningful; Err takes precedence.
type Step struct {
	Content   string
	ToolCalls []provider.ToolCall
	Err       error
}

// Provider implements provider.Provider with a fixed script. Steps are
// consumed in order; once the script is exhausted every further call returns
// a plain acknowledgement.
type Provider struct {
	mu    sync.Mutex
	steps []Step
	idx   int

	// last request, for assertions
	lastMessages []provider.Message
	lastTools    []provider.ToolDef
	calls        int
}

// New creates a scripted provider.
func New(steps ...Step) *Provider {
	return &Provider{steps: steps}
}

// Text is a convenience for a plain-text step.
func Text(content string) Step { return Step{Content: content} }

// Call is a convenience for a single-tool-call step.
func Call(id, name string, args map[string]any) Step {
	return Step{ToolCalls: []provider.ToolCall{{ID: id, Name: name, Arguments: args}}}
}

// Fail is a convenience for an erroring step.
func Fail(err error) Step { return Step{Err: err} }

// Name returns the provider identifier.
func (p *Provider) Name() string { return "mock" }

// Chat returns the next scripted step.
func (p *Provider) Chat(_ context.Context, messages []provider.Message, tools []provider.ToolDef) (*provider.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.lastMessages = append([]provider.Message(nil), messages...)
	p.lastTools = append([]provider.ToolDef(nil), tools...)
	p.calls++

	if p.idx >= len(p.steps) {
		return &provider.Response{Content: defaultResponse}, nil
	}
	step := p.steps[p.idx]
	p.idx++

	if step.Err != nil {
		return nil, step.Err
	}
	return &provider.Response{
		Content:   step.Content,
		ToolCalls: append([]provider.ToolCall(nil), step.ToolCalls...),
	}, nil
}

// Calls returns how many times Chat has been invoked.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// LastMessages returns a copy of the messages from the most recent Chat call.
func (p *Provider) LastMessages() []provider.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]provider.Message(nil), p.lastMessages...)
}

// LastTools returns a copy of the tool definitions from the most recent Chat call.
func (p *Provider) LastTools() []provider.ToolDef {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]provider.ToolDef(nil), p.lastTools...)
}
