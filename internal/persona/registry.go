package persona

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Registry holds every known persona, keyed by ID. Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	personas map[string]Persona
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{personas: make(map[string]Persona)}
}

// Register adds a persona. Returns ErrAlreadyRegistered when the ID is taken.
func (r *Registry) Register(p Persona) error {
	if err := Validate(p); err != nil {
		return fmt.Errorf("persona %q: %w", p.ID, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.personas[p.ID]; exists {
		return fmt.Errorf("%w: %q", ErrAlreadyRegistered, p.ID)
	}
	r.personas[p.ID] = p
	return nil
}

// Get resolves a persona by ID. Returns ErrNotFound when it does not exist;
// callers must not substitute a default.
func (r *Registry) Get(id string) (Persona, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.personas[id]
	if !ok {
		return Persona{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return p, nil
}

// List returns every registered persona, ordered by ID.
func (r *Registry) List() []Persona {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Persona, 0, len(r.personas))
	for _, p := range r.personas {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// LoadDir reads every .yaml/.yml file under dir into the registry. Each file
// holds one persona document. Returns the number of personas loaded.
func (r *Registry) LoadDir(dir string) (int, error) {
	var loaded int
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open %q: %w", path, err)
		}
		defer f.Close()

		p, err := Decode(f)
		if err != nil {
			return fmt.Errorf("parse %q: %w", path, err)
		}
		if err := r.Register(p); err != nil {
			return err
		}
		loaded++
		return nil
	})
	if err != nil {
		return loaded, fmt.Errorf("persona: load dir %q: %w", dir, err)
	}
	return loaded, nil
}

// Decode reads a single persona YAML document. Unknown fields are rejected so
// a typo in a definition file fails loudly instead of silently dropping data.
func Decode(rd io.Reader) (Persona, error) {
	var p Persona
	dec := yaml.NewDecoder(rd)
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return Persona{}, fmt.Errorf("decode persona yaml: %w", err)
	}
	if err := Validate(p); err != nil {
		return Persona{}, err
	}
	return p, nil
}
