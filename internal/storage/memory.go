package storage

import (
	"context"
	"maps"
	"sync"

	"github.com/govreposcrape/govsearch/internal/domain"
)

// MemoryStore is an in-process object store used for dry runs, local
// development and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

type memoryObject struct {
	body        []byte
	contentType string
	metadata    map[string]string
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: map[string]memoryObject{}}
}

func (m *MemoryStore) HeadObject(_ context.Context, key string) (*ObjectInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, domain.ErrObjectNotFound
	}
	return &ObjectInfo{
		Key:           key,
		ContentLength: int64(len(obj.body)),
		ContentType:   obj.contentType,
		Metadata:      maps.Clone(obj.metadata),
	}, nil
}

func (m *MemoryStore) GetMetadata(ctx context.Context, key string) (*domain.ObjectMetadata, error) {
	info, err := m.HeadObject(ctx, key)
	if err != nil {
		return nil, nil
	}
	md := DecodeMetadata(info.Metadata)
	return &md, nil
}

func (m *MemoryStore) PutObject(_ context.Context, key string, body []byte, contentType string, metadata map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memoryObject{
		body:        append([]byte(nil), body...),
		contentType: contentType,
		metadata:    maps.Clone(metadata),
	}
	return nil
}

func (m *MemoryStore) GetObject(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, domain.ErrObjectNotFound
	}
	return append([]byte(nil), obj.body...), nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

// Len returns the number of stored objects
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
