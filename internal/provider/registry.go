// ABOUTME: Pattern-keyed adapter registry with first-match-wins resolution.
// ABOUTME: A closed set of provider families registered statically at startup.

package provider

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrUnsupportedModel is returned when no registered pattern matches a model
// identifier. Resolution never silently defaults.
var ErrUnsupportedModel = errors.New("unsupported model")

// Factory builds an adapter instance for a resolved model identifier.
type Factory func(deps Deps, modelID, mode string) Adapter

type registration struct {
	pattern string
	re      *regexp.Regexp
	factory Factory
}

// Registry resolves model identifiers to adapters by iterating registered
// rules in registration order and returning the first anchored match. It is
// built once at startup and safe for unsynchronized concurrent reads after.
type Registry struct {
	deps  Deps
	rules []registration
}

// NewRegistry creates an empty registry over the shared adapter dependencies.
func NewRegistry(deps Deps) *Registry {
	return &Registry{deps: deps}
}

// Register appends a resolution rule. The pattern is anchored at the start of
// the model identifier; it is not a substring match.
func (r *Registry) Register(pattern string, factory Factory) error {
	re, err := regexp.Compile(`\A(?:` + pattern + `)`)
	if err != nil {
		return fmt.Errorf("compiling adapter pattern %q: %w", pattern, err)
	}
	r.rules = append(r.rules, registration{pattern: pattern, re: re, factory: factory})
	return nil
}

// Resolve returns an adapter for the model identifier, honoring registration
// order: the first matching rule wins even when later rules also match.
func (r *Registry) Resolve(modelID, mode string) (Adapter, error) {
	for _, rule := range r.rules {
		if rule.re.MatchString(modelID) {
			return rule.factory(r.deps, modelID, mode), nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedModel, modelID)
}

// RegisterDefaults installs the supported provider families. Order matters:
// more specific patterns go first.
func RegisterDefaults(r *Registry) error {
	type rule struct {
		pattern string
		factory Factory
	}
	rules := []rule{
		{`bedrock\.anthropic\.claude-3.*`, NewClaude},
		{`bedrock\.amazon\.nova.*`, NewNova},
		{`bedrock\..*\.amazon\.nova.*`, NewNova},
		{`arn:.*:runtime/.*`, NewAgentCore},
		{`agentcore[._-].*`, NewAgentCore},
	}
	for _, rl := range rules {
		if err := r.Register(rl.pattern, rl.factory); err != nil {
			return err
		}
	}
	return nil
}
