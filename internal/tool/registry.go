package tool

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

type registered struct {
	tool   Tool
	def    Definition
	schema *gojsonschema.Schema
}

// Registry holds the closed set of tools. It is populated once at startup
// and then sealed; after Seal it is read-only and safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]registered
	sealed bool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]registered)}
}

// Register adds a tool. Its schema is compiled once here.
func (r *Registry) Register(t Tool) error {
	def := t.Definition()
	name := strings.TrimSpace(def.Name)
	if name == "" {
		return ErrEmptyToolName
	}
	if len(def.Schema) == 0 {
		return fmt.Errorf("%w: %s", ErrNilSchema, name)
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(def.Schema))
	if err != nil {
		return fmt.Errorf("tool %s: compile schema: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return fmt.Errorf("%w: cannot register %s", ErrRegistrySealed, name)
	}
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, name)
	}
	r.tools[name] = registered{tool: t, def: def, schema: schema}
	return nil
}

// Seal forbids further registration.
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
}

// Sealed reports whether Seal was called.
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// Get returns the tool with the given name, or ErrToolNotFound.
func (r *Registry) Get(name string) (Tool, error) {
	reg, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	return reg.tool, nil
}

func (r *Registry) lookup(name string) (registered, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.tools[name]
	if !ok {
		return registered{}, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return reg, nil
}

// Names returns all registered tool names sorted alphabetically.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Definitions returns every definition sorted by name.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]Definition, 0, len(r.tools))
	for _, reg := range r.tools {
		defs = append(defs, reg.def)
	}
	slices.SortFunc(defs, func(a, b Definition) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return defs
}

// validate checks doc against the compiled schema of reg. Every violation
// becomes a *ValidationError.
func (reg registered) validate(doc map[string]any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return &ValidationError{Reason: err.Error()}
	}
	res, err := reg.schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return &ValidationError{Reason: err.Error()}
	}
	if res.Valid() {
		return nil
	}
	errs := make([]error, 0, len(res.Errors()))
	for _, re := range res.Errors() {
		field := re.Field()
		if field == "(root)" || field == "" {
			if p, ok := re.Details()["property"].(string); ok {
				field = p
			} else {
				field = ""
			}
		}
		errs = append(errs, &ValidationError{Field: field, Reason: re.Description()})
	}
	return joinValidation(errs)
}
