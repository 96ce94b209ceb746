package plugins

import (
	"errors"
	"fmt"

	"github.com/danmuck/bio2bel/internal/observability"
)

// Registry maps plugin names to descriptors in registration order. It is
// never mutated after Discover returns.
type Registry struct {
	names []string
	items map[string]Descriptor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{items: make(map[string]Descriptor)}
}

// Register adds d. The first registration of a name wins.
func (r *Registry) Register(d Descriptor) error {
	if err := ValidateDescriptor(d); err != nil {
		return err
	}
	if _, ok := r.items[d.Name]; ok {
		return fmt.Errorf("%w: %s", ErrPluginExists, d.Name)
	}
	r.items[d.Name] = d
	r.names = append(r.names, d.Name)
	return nil
}

// Lookup returns the descriptor registered under name.
func (r *Registry) Lookup(name string) (Descriptor, bool) {
	d, ok := r.items[name]
	return d, ok
}

// Names returns plugin names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

func (r *Registry) Len() int { return len(r.names) }

// Entries returns descriptors in registration order.
func (r *Registry) Entries() []Descriptor {
	out := make([]Descriptor, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.items[name])
	}
	return out
}

// Discover builds the registry for ids, or for every catalog id when ids is
// nil. Plugins that fail to load are logged and skipped; Discover itself
// never fails.
func Discover(env *Env, catalog Catalog, ids []string) *Registry {
	if ids == nil {
		ids = catalog.IDs()
	}
	reg := NewRegistry()
	seen := make(map[string]struct{}, len(ids))
	for _, raw := range ids {
		id := normalizeID(raw)
		if id == "" || id == "none" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		d, err := load(env, catalog, id)
		if err != nil {
			observability.RecordImportFailure(id, "import")
			env.Logger.Warn().Err(err).Str("plugin", id).Msg("plugins.Discover skipped")
			continue
		}
		if err := reg.Register(d); err != nil {
			reason := "invalid"
			if errors.Is(err, ErrPluginExists) {
				reason = "duplicate"
			}
			observability.RecordImportFailure(id, reason)
			env.Logger.Warn().Err(err).Str("plugin", id).Str("name", d.Name).Msg("plugins.Discover skipped")
			continue
		}
		env.Logger.Debug().Str("plugin", id).Str("name", d.Name).Str("capabilities", d.Capabilities.String()).Msg("plugins.Discover registered")
	}
	observability.SetRegisteredPlugins(reg.Len())
	return reg
}

// load runs one factory, turning errors and panics into *ImportError.
func load(env *Env, catalog Catalog, id string) (d Descriptor, err error) {
	factory, ok := catalog.Find(id)
	if !ok {
		return Descriptor{}, &ImportError{ID: id, Err: errors.New("not in catalog")}
	}
	defer func() {
		if r := recover(); r != nil {
			d = Descriptor{}
			err = &ImportError{ID: id, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	d, err = factory(env)
	if err != nil {
		return Descriptor{}, &ImportError{ID: id, Err: err}
	}
	return d, nil
}
