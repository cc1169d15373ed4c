package cart

import (
	"context"
	"sync"
)

type memoryRepo struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemory returns a process-local Repository.
func NewMemory() Repository {
	return &memoryRepo{values: make(map[string]string)}
}

func (r *memoryRepo) Get(_ context.Context, key string) (string, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.values[key]
	return v, ok, nil
}

func (r *memoryRepo) Set(_ context.Context, key, value string) error {
	r.mu.Lock()
	r.values[key] = value
	r.mu.Unlock()
	return nil
}
