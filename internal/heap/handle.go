package heap

import "github.com/minijvm/minijvm/internal/types"

// HandleRegistry holds Refs the engine keeps alive independent of any
// executing frame: interned strings, the in-flight exception being
// unwound, and similar engine-owned roots that would otherwise look
// unreachable to the collector the instant their frame returns.
type HandleRegistry struct {
	named    map[string]types.Ref
	interned map[string]types.Ref
}

func NewHandleRegistry() *HandleRegistry {
	return &HandleRegistry{
		named:    make(map[string]types.Ref),
		interned: make(map[string]types.Ref),
	}
}

// Set records an engine-owned root under a stable name (e.g. "pendingException").
func (r *HandleRegistry) Set(name string, ref types.Ref) {
	if ref == types.NullRef {
		delete(r.named, name)
		return
	}
	r.named[name] = ref
}

func (r *HandleRegistry) Get(name string) (types.Ref, bool) {
	ref, ok := r.named[name]
	return ref, ok
}

// Intern records the heap Ref backing a given Java string's contents so
// repeated String.intern() calls on equal contents return the same Ref.
func (r *HandleRegistry) Intern(contents string, ref types.Ref) {
	r.interned[contents] = ref
}

func (r *HandleRegistry) Interned(contents string) (types.Ref, bool) {
	ref, ok := r.interned[contents]
	return ref, ok
}

// roots returns every Ref the registry is holding alive, for the
// collector's mark phase.
func (r *HandleRegistry) roots() []types.Ref {
	refs := make([]types.Ref, 0, len(r.named)+len(r.interned))
	for _, ref := range r.named {
		refs = append(refs, ref)
	}
	for _, ref := range r.interned {
		refs = append(refs, ref)
	}
	return refs
}
