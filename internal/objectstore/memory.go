package objectstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-memory Store used by tests and local development.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemory creates an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func memoryKey(bucket, object string) string {
	return bucket + "/" + object
}

// Download returns the stored contents of bucket/object.
func (s *MemoryStore) Download(_ context.Context, bucket, object string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[memoryKey(bucket, object)]
	if !ok {
		return nil, fmt.Errorf("download %s/%s: %w", bucket, object, ErrObjectNotExist)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Upload stores data under bucket/object.
func (s *MemoryStore) Upload(_ context.Context, bucket, object string, data []byte, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]byte, len(data))
	copy(stored, data)
	s.objects[memoryKey(bucket, object)] = stored
	return nil
}

// List returns the object names under prefix, sorted.
func (s *MemoryStore) List(_ context.Context, bucket, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bucketPrefix := bucket + "/"
	var names []string
	for key := range s.objects {
		if !strings.HasPrefix(key, bucketPrefix) {
			continue
		}
		name := strings.TrimPrefix(key, bucketPrefix)
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Exists reports whether bucket/object is present.
func (s *MemoryStore) Exists(_ context.Context, bucket, object string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[memoryKey(bucket, object)]
	return ok, nil
}

// Delete removes bucket/object.
func (s *MemoryStore) Delete(_ context.Context, bucket, object string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memoryKey(bucket, object)
	if _, ok := s.objects[key]; !ok {
		return fmt.Errorf("delete %s/%s: %w", bucket, object, ErrObjectNotExist)
	}
	delete(s.objects, key)
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}
