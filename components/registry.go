package components

import (
	"context"
	"fmt"
	"sort"

	"goa.design/clue/log"

	"github.com/estia-labs/chatbridge/preferences"
)

type (
	// Rule pairs a match predicate with a renderer. Rules are evaluated in
	// ascending Priority order; ties keep registration order. Render must be
	// pure: same payload and preferences, same widget.
	Rule struct {
		// Name identifies the rule in logs.
		Name string
		// Priority orders evaluation, lower first.
		Priority int
		// Match reports whether the rule applies to the payload.
		Match func(Payload) bool
		// Render builds the widget. Returning a nil node or an error skips
		// the rule for this payload.
		Render func(Payload, preferences.Record) (Node, error)
	}

	// RenderedWidget is one widget produced by a registry pass.
	RenderedWidget struct {
		// Rule is the name of the rule that produced the widget.
		Rule string
		// Root is the widget tree root.
		Root Node
	}

	// Registry holds the rule set. A Registry is populated at startup and
	// read-only afterwards; Widgets may be called concurrently.
	Registry struct {
		rules []Rule
	}
)

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// DefaultRegistry returns a registry with the built-in rules: filters card,
// results carousel and save-search button.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(FiltersCardRule())
	r.Register(CarouselRule(MaxCarouselItems))
	r.Register(SaveSearchRule())
	return r
}

// Register adds a rule, keeping the set ordered by priority. Registration
// order breaks priority ties.
func (r *Registry) Register(rule Rule) {
	r.rules = append(r.rules, rule)
	sort.SliceStable(r.rules, func(i, j int) bool {
		return r.rules[i].Priority < r.rules[j].Priority
	})
}

// Widgets runs every matching rule against the payload and returns the
// rendered widgets in rule order. A rule that panics, errors or renders nil
// is logged and skipped; one bad rule never suppresses the others.
func (r *Registry) Widgets(ctx context.Context, p Payload, prefs preferences.Record) []RenderedWidget {
	var out []RenderedWidget
	for _, rule := range r.rules {
		root, err := renderRule(rule, p, prefs)
		if err != nil {
			log.Errorf(ctx, err, "widget rule %q failed", rule.Name)
			continue
		}
		if root == nil {
			continue
		}
		out = append(out, RenderedWidget{Rule: rule.Name, Root: root})
	}
	return out
}

func renderRule(rule Rule, p Payload, prefs preferences.Record) (root Node, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			root, err = nil, fmt.Errorf("panic: %v", rec)
		}
	}()
	if rule.Match != nil && !rule.Match(p) {
		return nil, nil
	}
	if rule.Render == nil {
		return nil, nil
	}
	return rule.Render(p, prefs)
}
