package factory

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/go-viper/mapstructure/v2"
)

// ErrUnknownType is returned by Create for a type nobody registered.
var ErrUnknownType = errors.New("unknown module type")

// ModuleConfig selects a registered module by Type and carries its raw
// settings, as found in a YAML or JSON config list.
type ModuleConfig struct {
	Type string         `json:"type"`
	Conf map[string]any `json:"conf"`
}

// Factory builds a T from raw settings.
type Factory[T any] func(map[string]any) (T, error)

// Registry is safe for concurrent use. Registration normally happens from
// init functions and lookups at service start.
type Registry[T any] struct {
	mu     sync.RWMutex
	byName map[string]Factory[T]
}

func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{byName: map[string]Factory[T]{}}
}

// Register binds name to f. A name can only be bound once.
func (r *Registry[T]) Register(name string, f Factory[T]) error {
	if f == nil {
		return fmt.Errorf("register %q: nil factory", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.byName[name]; dup {
		return fmt.Errorf("register %q: already registered", name)
	}
	r.byName[name] = f
	return nil
}

// Create runs the factory bound to cfg.Type with cfg.Conf.
func (r *Registry[T]) Create(cfg ModuleConfig) (T, error) {
	r.mu.RLock()
	f := r.byName[cfg.Type]
	r.mu.RUnlock()
	if f == nil {
		var zero T
		return zero, fmt.Errorf("%w %q (known: %v)", ErrUnknownType, cfg.Type, r.Names())
	}
	return f(cfg.Conf)
}

// Names lists registered types, sorted.
func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.byName))
}

// Decode copies raw settings into out, matching json tags. Scalars are
// coerced weakly and duration strings such as "30s" are parsed.
func Decode(data map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           out,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return fmt.Errorf("decoder: %w", err)
	}
	return dec.Decode(data)
}
