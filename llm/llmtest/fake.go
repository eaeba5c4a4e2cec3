// Package llmtest provides a scripted llm.Gateway for tests.
package llmtest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/eringen/leadpress/llm"
)

// Responder answers one completion request.
type Responder func(req llm.Request) (llm.Response, error)

// Fake is an in-memory llm.Gateway. Completions are routed by tool name;
// requests without a tool use the "" responder. Safe for concurrent use.
type Fake struct {
	mu         sync.Mutex
	responders map[string]Responder
	calls      []llm.Request
	images     int

	Image    []byte
	ImageErr error
}

var _ llm.Gateway = (*Fake)(nil)

// New returns a Fake with no responders.
func New() *Fake {
	return &Fake{responders: make(map[string]Responder), Image: []byte("png")}
}

// On registers fn for requests forcing tool (or "" for plain/JSON requests).
func (f *Fake) On(tool string, fn Responder) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responders[tool] = fn
	return f
}

// OnJSON answers requests for tool with v marshaled as the tool arguments.
func (f *Fake) OnJSON(tool string, v any) *Fake {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return f.On(tool, func(llm.Request) (llm.Response, error) {
		return llm.Response{ToolArguments: string(data), Content: string(data), Model: "fake"}, nil
	})
}

// OnText answers requests for tool with raw content and no tool arguments.
func (f *Fake) OnText(tool, text string) *Fake {
	return f.On(tool, func(llm.Request) (llm.Response, error) {
		return llm.Response{Content: text, Model: "fake"}, nil
	})
}

// OnError fails requests for tool with err.
func (f *Fake) OnError(tool string, err error) *Fake {
	return f.On(tool, func(llm.Request) (llm.Response, error) {
		return llm.Response{}, err
	})
}

func (f *Fake) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	if err := ctx.Err(); err != nil {
		return llm.Response{}, err
	}
	name := ""
	if req.Tool != nil {
		name = req.Tool.Name
	}
	f.mu.Lock()
	f.calls = append(f.calls, req)
	fn, ok := f.responders[name]
	f.mu.Unlock()
	if !ok {
		return llm.Response{}, fmt.Errorf("llmtest: no responder for tool %q", name)
	}
	return fn(req)
}

func (f *Fake) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.images++
	if f.ImageErr != nil {
		return nil, f.ImageErr
	}
	return f.Image, nil
}

// Calls returns a copy of every completion request received.
func (f *Fake) Calls() []llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]llm.Request(nil), f.calls...)
}

// CallsFor counts completion requests that forced tool.
func (f *Fake) CallsFor(tool string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Tool != nil && c.Tool.Name == tool || c.Tool == nil && tool == "" {
			n++
		}
	}
	return n
}

// ImageCalls counts GenerateImage requests.
func (f *Fake) ImageCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.images
}
