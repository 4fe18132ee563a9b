// Package actions defines the static action registry the agent dispatches
// oracle decisions through. Each action pairs a parameter prototype with a
// handler; parameters are decoded strictly, so a misspelled field is a
// recoverable failure instead of a silently ignored one.
package actions

import (
	"context"
	"fmt"
	"sort"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/softlight-cli/api/schemas"
)

// strictJSON rejects unknown fields so oracle typos surface as failures.
var strictJSON = jsoniter.Config{DisallowUnknownFields: true}.Froze()

// Env is what handlers run against: the browser capability surface plus the
// snapshot the oracle was shown when it chose the action.
type Env struct {
	Browser schemas.BrowserController
	State   *schemas.DOMState
	Logger  *zap.Logger
}

// selector resolves an interaction index against the observed snapshot.
func (e *Env) selector(index int) (*schemas.SelectorEntry, error) {
	if e.State == nil {
		return nil, fmt.Errorf("no page state available")
	}
	entry, ok := e.State.SelectorMap[index]
	if !ok {
		return nil, fmt.Errorf("element [%d] does not exist on the current page", index)
	}
	return entry, nil
}

// Handler executes one decoded action. A returned error aborts the whole
// run; action-level failures belong in the result's Error field.
type Handler func(ctx context.Context, env *Env, params Params) (*schemas.ActionResult, error)

// Definition is one registered action.
type Definition struct {
	Name string
	// Docs is the one-line usage description shown to the oracle.
	Docs string
	// Prototype returns a fresh zero parameter struct to decode into.
	Prototype func() Params
	Handler   Handler
	// NeedsBrowser gates dispatch when no browser session is attached.
	NeedsBrowser bool
	// Passive actions never mutate the page, so the loop may run the next
	// action without re-observing first.
	Passive bool
	// Terminal marks the action that ends the run. Only a terminal action
	// may produce a result with IsDone set.
	Terminal bool
}

// Registry is the fixed name to definition table. It is populated once at
// construction; nothing registers actions at runtime.
type Registry struct {
	defs map[string]*Definition
}

// NewRegistry builds a registry holding the built-in action set.
func NewRegistry() *Registry {
	r := &Registry{defs: make(map[string]*Definition)}
	for _, def := range builtinDefinitions() {
		if err := r.register(def); err != nil {
			panic(err)
		}
	}
	return r
}

func (r *Registry) register(def *Definition) error {
	if def.Name == "" || def.Prototype == nil || def.Handler == nil {
		return fmt.Errorf("incomplete action definition %q", def.Name)
	}
	if _, exists := r.defs[def.Name]; exists {
		return fmt.Errorf("action %q registered twice", def.Name)
	}
	r.defs[def.Name] = def
	return nil
}

// IsPassive reports whether an action leaves the page untouched. Unknown
// names count as mutating.
func (r *Registry) IsPassive(name string) bool {
	def, ok := r.defs[name]
	return ok && def.Passive
}

// Lookup returns the definition for an action name.
func (r *Registry) Lookup(name string) (*Definition, bool) {
	def, ok := r.defs[name]
	return def, ok
}

// Names returns all registered action names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe renders the action catalog for the oracle's system prompt.
func (r *Registry) Describe() string {
	var sb strings.Builder
	for _, name := range r.Names() {
		sb.WriteString("- ")
		sb.WriteString(name)
		sb.WriteString(": ")
		sb.WriteString(r.defs[name].Docs)
		sb.WriteByte('\n')
	}
	return strings.TrimRight(sb.String(), "\n")
}

// Execute decodes and runs one proposed action. Failures the oracle can
// react to come back inside the result; the error return is reserved for
// conditions that must abort the run, like context cancellation.
func (r *Registry) Execute(ctx context.Context, env *Env, action schemas.AgentAction) (*schemas.ActionResult, error) {
	def, ok := r.defs[action.Name]
	if !ok {
		return schemas.ResultError(fmt.Errorf("unknown action %q", action.Name)), nil
	}
	if def.NeedsBrowser && env.Browser == nil {
		return nil, fmt.Errorf("action %q needs a browser but none is attached", action.Name)
	}

	params := def.Prototype()
	if len(action.Params) > 0 {
		if err := strictJSON.Unmarshal(action.Params, params); err != nil {
			return schemas.ResultError(fmt.Errorf("invalid parameters for %q: %v", action.Name, err)), nil
		}
	}
	if err := params.Validate(); err != nil {
		return schemas.ResultError(err), nil
	}

	result, err := def.Handler(ctx, env, params)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		result = schemas.ResultError(err)
	}
	if result == nil {
		result = &schemas.ActionResult{}
	}
	if !def.Terminal && result.IsDone {
		return nil, fmt.Errorf("action %q produced a terminal result but is not terminal", action.Name)
	}
	if err := result.Validate(); err != nil {
		return nil, err
	}

	if env.Logger != nil {
		env.Logger.Debug("Action executed",
			zap.String("action", action.Name),
			zap.Bool("failed", result.HasError()),
		)
	}
	return result, nil
}
