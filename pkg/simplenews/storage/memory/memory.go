package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tendant/simple-news/pkg/simplenews"
)

type object struct {
	data        []byte
	contentType string
	updatedAt   time.Time
}

// Backend is an in-memory implementation of the simplenews.BlobStore interface
type Backend struct {
	mu      sync.RWMutex
	objects map[string]object
	now     func() time.Time
}

// New creates a new in-memory storage backend
func New() *Backend {
	return NewWithClock(time.Now)
}

// NewWithClock creates a backend that stamps objects with the given clock.
func NewWithClock(now func() time.Time) *Backend {
	return &Backend{
		objects: make(map[string]object),
		now:     now,
	}
}

// GetObjectMeta retrieves metadata for an object in memory
func (b *Backend) GetObjectMeta(ctx context.Context, objectKey string) (*simplenews.ObjectMeta, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, exists := b.objects[objectKey]
	if !exists {
		return nil, fmt.Errorf("%w: %s", simplenews.ErrObjectNotFound, objectKey)
	}
	meta := obj.meta(objectKey)
	return &meta, nil
}

// Upload stores the reader's bytes under params.ObjectKey
func (b *Backend) Upload(ctx context.Context, reader io.Reader, params simplenews.UploadParams) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	contentType := params.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.objects[params.ObjectKey] = object{
		data:        data,
		contentType: contentType,
		updatedAt:   b.now(),
	}
	return nil
}

// Download downloads content directly
func (b *Backend) Download(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, exists := b.objects[objectKey]
	if !exists {
		return nil, fmt.Errorf("%w: %s", simplenews.ErrObjectNotFound, objectKey)
	}

	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

// Delete deletes content. Missing keys are ignored.
func (b *Backend) Delete(ctx context.Context, objectKey string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.objects, objectKey)
	return nil
}

// List returns objects under prefix sorted by key
func (b *Backend) List(ctx context.Context, prefix string) ([]simplenews.ObjectMeta, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []simplenews.ObjectMeta
	for key, obj := range b.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, obj.meta(key))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Len reports how many objects are stored.
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.objects)
}

func (o object) meta(key string) simplenews.ObjectMeta {
	return simplenews.ObjectMeta{
		Key:         key,
		Size:        int64(len(o.data)),
		ContentType: o.contentType,
		UpdatedAt:   o.updatedAt,
		Metadata:    map[string]string{"mime_type": o.contentType},
	}
}
