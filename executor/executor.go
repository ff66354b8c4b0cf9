package executor

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/chatflow/chatflow/model"
)

// Input carries everything an executor may need: its resolved config (the
// engine resolves template placeholders before dispatch), the flow context
// and the inbound message that triggered the current engine pass.
type Input struct {
	Config      map[string]any
	FlowContext *model.FlowContext
	SessionId   string
	Message     *model.Message
}

// Output is what one executor invocation produced. Event selects the outgoing
// transition (empty means the default one), Data is merged into context data
// and Reply, when set, is queued for delivery to the user.
type Output struct {
	Event string
	Data  map[string]any
	Reply *model.Reply
}

type Executor interface {
	Name() string
	Execute(ctx context.Context, in Input) (Output, error)
}

// Registry maps a stable executor name to its implementation. Lookup only, no
// business logic. Unknown names at flow save time are warnings, not errors,
// so authoring stays flexible; at execution time they fail the action.
type Registry struct {
	mu        sync.RWMutex
	executors map[string]Executor
}

func NewRegistry() *Registry {
	return &Registry{
		executors: make(map[string]Executor),
	}
}

func (r *Registry) Register(ex Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[ex.Name()] = ex
}

func (r *Registry) Get(name string) (Executor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ex, ok := r.executors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrUnknownExecutor, name)
	}
	return ex, nil
}

func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.executors[name]
	return ok
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.executors))
	for name := range r.executors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
