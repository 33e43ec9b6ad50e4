package simplenews

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/gabriel-vasile/mimetype"

	"github.com/tendant/simple-news/pkg/simplenews/objectkey"
	"github.com/tendant/simple-news/pkg/simplenews/urlstrategy"
)

// sniffLen is how many leading bytes are inspected when the caller gives no content type.
const sniffLen = 3072

// MediaStore stores uploaded media in a BlobStore and maps keys to public URLs.
type MediaStore struct {
	backend     BlobStore
	backendName string
	keys        objectkey.Generator
	urls        urlstrategy.URLStrategy
	logger      *slog.Logger
}

// MediaOption configures a MediaStore.
type MediaOption func(*MediaStore)

// WithBackendName sets the name reported in StorageErrors and logs
func WithBackendName(name string) MediaOption {
	return func(m *MediaStore) {
		m.backendName = name
	}
}

// WithKeyGenerator replaces the default timestamp key generator
func WithKeyGenerator(gen objectkey.Generator) MediaOption {
	return func(m *MediaStore) {
		m.keys = gen
	}
}

// WithURLStrategy sets how storage keys map to public URLs
func WithURLStrategy(strategy urlstrategy.URLStrategy) MediaOption {
	return func(m *MediaStore) {
		m.urls = strategy
	}
}

// WithMediaLogger sets the logger
func WithMediaLogger(logger *slog.Logger) MediaOption {
	return func(m *MediaStore) {
		m.logger = logger
	}
}

// NewMediaStore creates a media store over backend. Without a URL strategy,
// media is addressed under the application route /media.
func NewMediaStore(backend BlobStore, opts ...MediaOption) (*MediaStore, error) {
	if backend == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	m := &MediaStore{
		backend:     backend,
		backendName: "default",
		keys:        objectkey.NewTimestampGenerator(),
		urls:        urlstrategy.NewAppRoutedStrategy("", "/media"),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// BackendName returns the configured backend name.
func (m *MediaStore) BackendName() string {
	return m.backendName
}

// Upload stores the file under a fresh key derived from purpose and returns
// the resulting asset. The caller's content type is kept as given; when it is
// empty the type is sniffed from the leading bytes.
func (m *MediaStore) Upload(ctx context.Context, upload Upload, purpose string) (*MediaAsset, error) {
	if upload.Body == nil {
		return nil, NewValidationError(KindMediaAsset, "file", "file is required")
	}

	body := upload.Body
	contentType := upload.ContentType
	if contentType == "" {
		br := bufio.NewReaderSize(body, sniffLen)
		head, err := br.Peek(sniffLen)
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
			return nil, &StorageError{Backend: m.backendName, Op: "upload", Err: fmt.Errorf("read upload: %w", err)}
		}
		contentType = mimetype.Detect(head).String()
		body = br
	}

	key := m.keys.GenerateKey(purpose, &objectkey.KeyMetadata{
		FileName:    upload.FileName,
		ContentType: contentType,
	})
	publicURL, err := m.ResolvePublicURL(key)
	if err != nil {
		return nil, err
	}

	counter := &countingReader{r: body}
	if err := m.backend.Upload(ctx, counter, UploadParams{ObjectKey: key, MimeType: contentType}); err != nil {
		return nil, &StorageError{Backend: m.backendName, Key: key, Op: "upload", Err: err}
	}

	m.logger.DebugContext(ctx, "media uploaded",
		"storage_key", key,
		"content_type", contentType,
		"size", counter.n,
		"backend", m.backendName)

	return &MediaAsset{
		StorageKey:  key,
		PublicURL:   publicURL,
		MediaKind:   KindFromContentType(contentType),
		ContentType: contentType,
		Size:        counter.n,
	}, nil
}

// ResolvePublicURL returns the public URL of key. It performs no I/O.
func (m *MediaStore) ResolvePublicURL(key string) (string, error) {
	u, err := m.urls.PublicURL(key)
	if err != nil {
		return "", &NotFoundError{Kind: KindMediaAsset, ID: key, Err: err}
	}
	return u, nil
}

// KeyFromURL recovers the storage key from a URL produced by ResolvePublicURL.
// URLs outside the media base report ErrForeignMediaURL.
func (m *MediaStore) KeyFromURL(publicURL string) (string, error) {
	key, err := m.urls.KeyFromURL(publicURL)
	switch {
	case err == nil:
		return key, nil
	case errors.Is(err, urlstrategy.ErrForeignURL):
		return "", fmt.Errorf("%w: %s", ErrForeignMediaURL, publicURL)
	default:
		return "", &NotFoundError{Kind: KindMediaAsset, ID: publicURL, Err: err}
	}
}

// Delete removes the object stored under key. Absent keys are not an error.
func (m *MediaStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	if err := m.backend.Delete(ctx, key); err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			return nil
		}
		return &StorageError{Backend: m.backendName, Key: key, Op: "delete", Err: err}
	}
	m.logger.DebugContext(ctx, "media deleted", "storage_key", key, "backend", m.backendName)
	return nil
}

// Stat returns the object's metadata, or a *NotFoundError when it does not exist.
func (m *MediaStore) Stat(ctx context.Context, key string) (*ObjectMeta, error) {
	meta, err := m.backend.GetObjectMeta(ctx, key)
	if err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			return nil, &NotFoundError{Kind: KindMediaAsset, ID: key, Err: err}
		}
		return nil, &StorageError{Backend: m.backendName, Key: key, Op: "stat", Err: err}
	}
	return meta, nil
}

// Open returns the object body together with its metadata.
func (m *MediaStore) Open(ctx context.Context, key string) (io.ReadCloser, *ObjectMeta, error) {
	meta, err := m.Stat(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	rc, err := m.backend.Download(ctx, key)
	if err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			return nil, nil, &NotFoundError{Kind: KindMediaAsset, ID: key, Err: err}
		}
		return nil, nil, &StorageError{Backend: m.backendName, Key: key, Op: "download", Err: err}
	}
	return rc, meta, nil
}

// List returns the objects whose keys start with prefix.
func (m *MediaStore) List(ctx context.Context, prefix string) ([]ObjectMeta, error) {
	objs, err := m.backend.List(ctx, prefix)
	if err != nil {
		return nil, &StorageError{Backend: m.backendName, Key: prefix, Op: "list", Err: err}
	}
	return objs, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
