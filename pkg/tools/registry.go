package tools

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"
)

// DefaultDispatchTimeout bounds tool handler execution when the caller does
// not supply a timeout of its own.
const DefaultDispatchTimeout = 30 * time.Second

type entry struct {
	descriptor Descriptor
	handler    Handler
	schema     *gojsonschema.Schema
}

// Registry maps tool names to descriptors and handlers. It is populated once
// at startup and read-only afterwards; the mutex exists only so misuse does
// not corrupt the maps.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]*entry
}

// NewRegistry creates an empty tool registry
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*entry),
	}
}

// Register adds a tool. Registering a duplicate name is a programming error
// and fails so startup can abort.
func (r *Registry) Register(desc Descriptor, handler Handler) error {
	if err := validateDescriptor(desc, handler); err != nil {
		return fmt.Errorf("invalid tool definition: %w", err)
	}

	schema, err := compileSchema(desc)
	if err != nil {
		return fmt.Errorf("failed to compile schema for %s: %w", desc.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[desc.Name]; exists {
		return fmt.Errorf("tool already registered: %s", desc.Name)
	}

	r.entries[desc.Name] = &entry{
		descriptor: desc,
		handler:    handler,
		schema:     schema,
	}
	r.order = append(r.order, desc.Name)

	log.Info().Str("tool", desc.Name).Msg("Tool registered")
	return nil
}

// Resolve returns the descriptor for a tool name
func (r *Registry) Resolve(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, exists := r.entries[name]
	if !exists {
		return Descriptor{}, false
	}
	return e.descriptor, true
}

// DescribeAll returns all descriptors in registration order. Successive
// calls without intervening registration return identical output.
func (r *Registry) DescribeAll() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	descriptors := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		descriptors = append(descriptors, r.entries[name].descriptor)
	}
	return descriptors
}

// Len returns the number of registered tools
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.entries)
}

// Dispatch validates args against the tool's schema and runs the handler
// with a bounded timeout. Every failure mode comes back as a textual error
// result; Dispatch never panics and never propagates a handler fault.
func (r *Registry) Dispatch(ctx context.Context, name string, args map[string]interface{}, timeout time.Duration) Result {
	r.mu.RLock()
	e := r.entries[name]
	r.mu.RUnlock()

	if e == nil {
		log.Warn().Str("tool", name).Msg("Tool not found")
		return ErrorResult("tool not found: %s", name)
	}

	if args == nil {
		args = map[string]interface{}{}
	}

	if err := validateArgs(e.schema, args); err != nil {
		log.Warn().Str("tool", name).Err(err).Msg("Argument validation failed")
		return ErrorResult("invalid arguments for %s: %v", name, err)
	}

	if timeout <= 0 {
		timeout = DefaultDispatchTimeout
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resultCh := make(chan Result, 1)
	errCh := make(chan error, 1)

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				errCh <- fmt.Errorf("tool handler panic: %v", rec)
			}
		}()

		result, err := e.handler(timeoutCtx, args)
		if err != nil {
			errCh <- err
			return
		}
		resultCh <- result
	}()

	start := time.Now()
	select {
	case result := <-resultCh:
		log.Debug().
			Str("tool", name).
			Dur("duration", time.Since(start)).
			Msg("Tool execution completed")
		return result

	case err := <-errCh:
		log.Error().
			Str("tool", name).
			Dur("duration", time.Since(start)).
			Err(err).
			Msg("Tool execution failed")
		return ErrorResult("%s failed: %v", name, err)

	case <-timeoutCtx.Done():
		log.Error().
			Str("tool", name).
			Dur("timeout", timeout).
			Msg("Tool execution timeout")
		return ErrorResult("%s timed out after %v", name, timeout)
	}
}

func validateDescriptor(desc Descriptor, handler Handler) error {
	if desc.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if desc.Description == "" {
		return fmt.Errorf("tool description cannot be empty")
	}
	if handler == nil {
		return fmt.Errorf("tool handler cannot be nil")
	}

	validTypes := map[string]bool{
		"string": true, "number": true, "boolean": true,
		"object": true, "array": true, "integer": true,
	}
	for _, param := range desc.Params {
		if param.Name == "" {
			return fmt.Errorf("parameter name cannot be empty")
		}
		if !validTypes[param.Type] {
			return fmt.Errorf("invalid parameter type %s for %s", param.Type, param.Name)
		}
	}

	return nil
}

func compileSchema(desc Descriptor) (*gojsonschema.Schema, error) {
	loader := gojsonschema.NewGoLoader(desc.InputSchema())
	return gojsonschema.NewSchema(loader)
}

func validateArgs(schema *gojsonschema.Schema, args map[string]interface{}) error {
	result, err := schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return err
	}

	if !result.Valid() {
		messages := []string{}
		for _, resErr := range result.Errors() {
			messages = append(messages, resErr.String())
		}
		return fmt.Errorf("validation errors: %v", messages)
	}

	return nil
}
