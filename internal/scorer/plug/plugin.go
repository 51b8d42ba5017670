// Package plug loads separately-compiled scorer plugins (.so built with
// -buildmode=plugin), the compiled-adapter half of the dynamic scorer
// loading boundary. Grounded on the plugin boundary design note in the
// scorer registry's re-architecture guidance.
package plug

import (
	"fmt"
	"plugin"
)

// NameSymbol and FactorySymbol are the exported identifiers a scorer plugin
// must define.
const (
	NameSymbol    = "ScorerName"
	FactorySymbol = "NewScorer"
)

// Open loads path as a Go plugin and extracts its declared name and
// constructor. factory's concrete type is asserted by the caller (the
// scorer package) against its own Scorer interface, since plugin symbols
// cross a package boundary that cannot reference an unexported local type.
func Open(path string) (name string, factory any, err error) {
	p, err := plugin.Open(path)
	if err != nil {
		return "", nil, fmt.Errorf("open plugin %s: %w", path, err)
	}

	nameSym, err := p.Lookup(NameSymbol)
	if err != nil {
		return "", nil, fmt.Errorf("plugin %s missing %s symbol: %w", path, NameSymbol, err)
	}
	namePtr, ok := nameSym.(*string)
	if !ok {
		return "", nil, fmt.Errorf("plugin %s: %s symbol is not *string", path, NameSymbol)
	}

	factorySym, err := p.Lookup(FactorySymbol)
	if err != nil {
		return "", nil, fmt.Errorf("plugin %s missing %s symbol: %w", path, FactorySymbol, err)
	}

	return *namePtr, factorySym, nil
}
