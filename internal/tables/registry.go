package tables

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/JonMunkholm/detailing/internal/domain"
	"github.com/google/uuid"
)

// Registry holds templates probed in Priority order.
type Registry struct {
	mu        sync.RWMutex
	templates map[string]Template
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{templates: make(map[string]Template)}
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry that init functions register into.
func Default() *Registry {
	return defaultRegistry
}

// Register adds t to the default registry.
// Panics if a template with the same key is already registered.
func Register(t Template) {
	defaultRegistry.Register(t)
}

// Register adds t to the registry.
// Panics if a template with the same key is already registered.
func (r *Registry) Register(t Template) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := t.Info().Key
	if _, exists := r.templates[key]; exists {
		panic(fmt.Sprintf("template already registered: %s", key))
	}
	r.templates[key] = t
}

// Get returns a template by key.
func (r *Registry) Get(key string) (Template, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.templates[key]
	return t, ok
}

// All returns the templates in probe order: Priority, then key.
func (r *Registry) All() []Template {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Template, 0, len(r.templates))
	for _, t := range r.templates {
		result = append(result, t)
	}

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i].Info(), result[j].Info()
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		return a.Key < b.Key
	})

	return result
}

// Len returns the number of registered templates.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.templates)
}

// Recognize returns the first template, in probe order, that accepts doc.
func (r *Registry) Recognize(doc Document) (Template, error) {
	for _, t := range r.All() {
		if t.Recognize(doc) {
			return t, nil
		}
	}
	return nil, fmt.Errorf("title %q: %w", doc.Title, domain.ErrNotRecognized)
}

// Extract recognizes doc and extracts it into FileData for the file fileID.
func (r *Registry) Extract(ctx context.Context, doc Document, fileID string) (domain.FileData, error) {
	t, err := r.Recognize(doc)
	if err != nil {
		return domain.FileData{}, err
	}

	dataID := uuid.NewString()
	rows, err := t.Extract(ctx, doc, dataID)
	if err != nil {
		return domain.FileData{}, err
	}

	return domain.FileData{
		ID:       dataID,
		FileID:   fileID,
		Template: t.Info().Key,
		Title:    doc.Title,
		Header:   doc.Header,
		Lines:    doc.Lines,
		Rows:     rows,
	}, nil
}
