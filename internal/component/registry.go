package component

import (
	"context"
	"slices"
	"sync"

	"github.com/stupside/thumbmark/internal/options"
)

// Probe observes one slice of the environment. A nil Record means the probe
// has nothing to report; it is dropped rather than hashed.
type Probe func(ctx context.Context, opts *options.Options) (Record, error)

// Entry is a named probe.
type Entry struct {
	Name  string
	Probe Probe
}

// TimeoutSentinel is the value recorded for a probe that did not finish in time.
func TimeoutSentinel() Record {
	return Record{"timeout": String("true")}
}

// Registry holds the probes to run. Built-in entries are fixed at construction;
// custom entries can be added at any time and shadow built-ins of the same name.
type Registry struct {
	mu          sync.RWMutex
	builtins    []Entry
	custom      map[string]Probe
	customOrder []string
}

// NewRegistry creates a registry from built-in entries. A later entry with a
// duplicate name replaces the earlier one in place.
func NewRegistry(builtins ...Entry) *Registry {
	r := &Registry{custom: make(map[string]Probe)}
	for _, e := range builtins {
		if i := slices.IndexFunc(r.builtins, func(b Entry) bool { return b.Name == e.Name }); i >= 0 {
			r.builtins[i] = e
			continue
		}
		r.builtins = append(r.builtins, e)
	}
	return r
}

// Register adds or replaces a custom probe.
func (r *Registry) Register(name string, probe Probe) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.custom[name]; !ok {
		r.customOrder = append(r.customOrder, name)
	}
	r.custom[name] = probe
}

// Builtins returns a copy of the built-in entries.
func (r *Registry) Builtins() []Entry {
	return slices.Clone(r.builtins)
}

// All returns built-ins merged with custom probes. Built-ins keep their
// position even when shadowed; new custom names follow in registration order.
func (r *Registry) All() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, 0, len(r.builtins)+len(r.customOrder))
	for _, b := range r.builtins {
		if p, ok := r.custom[b.Name]; ok {
			out = append(out, Entry{Name: b.Name, Probe: p})
			continue
		}
		out = append(out, b)
	}
	for _, name := range r.customOrder {
		if slices.ContainsFunc(r.builtins, func(b Entry) bool { return b.Name == name }) {
			continue
		}
		out = append(out, Entry{Name: name, Probe: r.custom[name]})
	}
	return out
}

// Names returns the names All would resolve, in order.
func (r *Registry) Names() []string {
	entries := r.All()
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names
}
