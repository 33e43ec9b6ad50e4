package simplenews_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-news/pkg/simplenews"
	"github.com/tendant/simple-news/pkg/simplenews/objectkey"
	memorystorage "github.com/tendant/simple-news/pkg/simplenews/storage/memory"
	"github.com/tendant/simple-news/pkg/simplenews/urlstrategy"
)

const mediaBase = "https://cdn.example.com/media"

func newMediaStore(t *testing.T, backend simplenews.BlobStore) *simplenews.MediaStore {
	t.Helper()
	ms, err := simplenews.NewMediaStore(backend,
		simplenews.WithBackendName("memory"),
		simplenews.WithURLStrategy(urlstrategy.NewCDNStrategy(mediaBase)),
		simplenews.WithKeyGenerator(objectkey.NewTimestampGeneratorWithClock(func() time.Time {
			return time.UnixMilli(1718000000123)
		})),
	)
	require.NoError(t, err)
	return ms
}

// failingBlobStore wraps a BlobStore and fails selected operations.
type failingBlobStore struct {
	simplenews.BlobStore
	failUpload bool
	failDelete bool
	deletes    []string
}

var errBackendDown = errors.New("backend down")

func (f *failingBlobStore) Upload(ctx context.Context, r io.Reader, p simplenews.UploadParams) error {
	if f.failUpload {
		return errBackendDown
	}
	return f.BlobStore.Upload(ctx, r, p)
}

func (f *failingBlobStore) Delete(ctx context.Context, key string) error {
	f.deletes = append(f.deletes, key)
	if f.failDelete {
		return errBackendDown
	}
	return f.BlobStore.Delete(ctx, key)
}

func TestMediaStore_Upload(t *testing.T) {
	ctx := context.Background()
	backend := memorystorage.New()
	ms := newMediaStore(t, backend)

	asset, err := ms.Upload(ctx, simplenews.Upload{
		FileName:    "rally.JPG",
		ContentType: "image/jpeg",
		Body:        strings.NewReader("jpeg-bytes"),
	}, simplenews.PurposeNews)
	require.NoError(t, err)

	assert.Equal(t, "news_1718000000123.jpg", asset.StorageKey)
	assert.Equal(t, mediaBase+"/news_1718000000123.jpg", asset.PublicURL)
	assert.Equal(t, simplenews.MediaKindImage, asset.MediaKind)
	assert.Equal(t, "image/jpeg", asset.ContentType)
	assert.Equal(t, int64(len("jpeg-bytes")), asset.Size)

	meta, err := ms.Stat(ctx, asset.StorageKey)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", meta.ContentType)
}

func TestMediaStore_MediaKindFromContentType(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		contentType string
		want        simplenews.MediaKind
	}{
		{"video/mp4", simplenews.MediaKindVideo},
		{"image/png", simplenews.MediaKindImage},
		{"application/pdf", simplenews.MediaKindImage},
	}
	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			ms := newMediaStore(t, memorystorage.New())
			asset, err := ms.Upload(ctx, simplenews.Upload{
				FileName:    "file",
				ContentType: tt.contentType,
				Body:        bytes.NewReader([]byte{1, 2, 3}),
			}, simplenews.PurposeSlider)
			require.NoError(t, err)
			assert.Equal(t, tt.want, asset.MediaKind)
			assert.Equal(t, tt.contentType, asset.ContentType, "content type is passed through unchanged")
		})
	}
}

func TestMediaStore_SniffsMissingContentType(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
	ms := newMediaStore(t, memorystorage.New())

	asset, err := ms.Upload(context.Background(), simplenews.Upload{Body: bytes.NewReader(png)}, simplenews.PurposeNews)
	require.NoError(t, err)
	assert.Equal(t, "image/png", asset.ContentType)
	assert.Equal(t, "news_1718000000123.png", asset.StorageKey)
	assert.Equal(t, int64(len(png)), asset.Size, "sniffed bytes are still stored")
}

func TestMediaStore_UploadFailure(t *testing.T) {
	backend := &failingBlobStore{BlobStore: memorystorage.New(), failUpload: true}
	ms := newMediaStore(t, backend)

	_, err := ms.Upload(context.Background(), simplenews.Upload{
		FileName: "a.png", ContentType: "image/png", Body: strings.NewReader("x"),
	}, simplenews.PurposeNews)
	require.Error(t, err)
	assert.ErrorIs(t, err, simplenews.ErrStorage)
	assert.ErrorIs(t, err, errBackendDown)

	var serr *simplenews.StorageError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "upload", serr.Op)
	assert.Equal(t, "memory", serr.Backend)
}

func TestMediaStore_UploadRequiresBody(t *testing.T) {
	ms := newMediaStore(t, memorystorage.New())
	_, err := ms.Upload(context.Background(), simplenews.Upload{FileName: "a.png"}, simplenews.PurposeNews)
	assert.ErrorIs(t, err, simplenews.ErrValidation)
}

func TestMediaStore_ResolveAndKeyFromURL(t *testing.T) {
	ms := newMediaStore(t, memorystorage.New())

	u1, err := ms.ResolvePublicURL("news_1.png")
	require.NoError(t, err)
	u2, err := ms.ResolvePublicURL("news_1.png")
	require.NoError(t, err)
	assert.Equal(t, u1, u2)

	key, err := ms.KeyFromURL(u1)
	require.NoError(t, err)
	assert.Equal(t, "news_1.png", key)

	_, err = ms.KeyFromURL("https://images.example.org/x.png")
	assert.ErrorIs(t, err, simplenews.ErrForeignMediaURL)

	_, err = ms.ResolvePublicURL("")
	assert.ErrorIs(t, err, simplenews.ErrNotFound)
}

func TestMediaStore_DeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	ms := newMediaStore(t, memorystorage.New())

	asset, err := ms.Upload(ctx, simplenews.Upload{FileName: "a.png", ContentType: "image/png", Body: strings.NewReader("x")}, simplenews.PurposeNews)
	require.NoError(t, err)

	require.NoError(t, ms.Delete(ctx, asset.StorageKey))
	require.NoError(t, ms.Delete(ctx, asset.StorageKey))

	_, err = ms.Stat(ctx, asset.StorageKey)
	assert.ErrorIs(t, err, simplenews.ErrNotFound)
}

func TestMediaStore_DeleteFailure(t *testing.T) {
	backend := &failingBlobStore{BlobStore: memorystorage.New(), failDelete: true}
	ms := newMediaStore(t, backend)

	err := ms.Delete(context.Background(), "news_1.png")
	assert.ErrorIs(t, err, simplenews.ErrStorage)
}

func TestMediaStore_Open(t *testing.T) {
	ctx := context.Background()
	ms := newMediaStore(t, memorystorage.New())

	asset, err := ms.Upload(ctx, simplenews.Upload{FileName: "a.txt", ContentType: "text/plain", Body: strings.NewReader("hello")}, simplenews.PurposeNews)
	require.NoError(t, err)

	rc, meta, err := ms.Open(ctx, asset.StorageKey)
	require.NoError(t, err)
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	assert.Equal(t, "hello", string(data))
	assert.Equal(t, "text/plain", meta.ContentType)

	_, _, err = ms.Open(ctx, "missing.png")
	assert.ErrorIs(t, err, simplenews.ErrNotFound)
}
