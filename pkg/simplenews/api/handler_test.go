package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-news/pkg/simplenews"
	"github.com/tendant/simple-news/pkg/simplenews/api"
	"github.com/tendant/simple-news/pkg/simplenews/repo/memory"
	memorystorage "github.com/tendant/simple-news/pkg/simplenews/storage/memory"
)

const adminToken = "s3cret-admin"

type testServer struct {
	router http.Handler
	portal *simplenews.Portal
	blobs  *memorystorage.Backend
}

func setupHandlerTest(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	blobs := memorystorage.New()
	media, err := simplenews.NewMediaStore(blobs, simplenews.WithBackendName("memory"))
	require.NoError(t, err)

	auth, err := simplenews.NewStaticTokenAuthorizer(simplenews.TokenDigest(adminToken))
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	portal, err := simplenews.NewPortal(memory.New(), media,
		simplenews.WithPortalAuthorizer(auth),
		simplenews.WithPortalMetrics(simplenews.NewMetrics(reg)),
		simplenews.WithPortalLogger(logger),
	)
	require.NoError(t, err)
	t.Cleanup(portal.Close)

	h := api.New(portal,
		api.WithLogger(logger),
		api.WithMediaRoute("/media"),
		api.WithMetricsGatherer(reg),
	)
	return &testServer{router: h.Routes(), portal: portal, blobs: blobs}
}

func (s *testServer) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	// mutations refresh the catalog in the background
	s.portal.Catalog().Wait()
	return w
}

func newsForm(t *testing.T, fields map[string]string, fileName, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileName != "" {
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition", `form-data; name="media"; filename="`+fileName+`"`)
		hdr.Set("Content-Type", contentType)
		part, err := mw.CreatePart(hdr)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func (s *testServer) createNews(t *testing.T, title, category string, withMedia bool) simplenews.ContentItem {
	t.Helper()
	fileName := ""
	if withMedia {
		fileName = "photo.jpg"
	}
	body, ct := newsForm(t, map[string]string{
		"title":       title,
		"description": title + " description",
		"category":    category,
	}, fileName, "image/jpeg", []byte("jpeg-bytes"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/news", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	w := s.do(t, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var item simplenews.ContentItem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &item))
	return item
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) api.ErrorBody {
	t.Helper()
	var resp api.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp.Error
}

func TestCreateNews_WithMediaIsServed(t *testing.T) {
	s := setupHandlerTest(t)
	item := s.createNews(t, "Market Rally", "Business", true)

	require.NotNil(t, item.MediaRef)
	assert.True(t, strings.HasPrefix(*item.MediaRef, "/media/news_"), *item.MediaRef)
	assert.Equal(t, 1, s.blobs.Len())

	w := s.do(t, httptest.NewRequest(http.MethodGet, *item.MediaRef, nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "jpeg-bytes", w.Body.String())
	assert.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))

	w = s.do(t, httptest.NewRequest(http.MethodGet, "/media/news_0.jpg", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateNews_JSONWithoutMedia(t *testing.T) {
	s := setupHandlerTest(t)
	body := `{"title":"Budget 2024","description":"Parliament votes","category":"Politics"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/news", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Admin-Token", adminToken)

	w := s.do(t, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var item simplenews.ContentItem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &item))
	assert.Nil(t, item.MediaRef)
	assert.Equal(t, simplenews.CategoryPolitics, item.Category)
}

func TestCreateNews_Unauthorized(t *testing.T) {
	s := setupHandlerTest(t)
	body, ct := newsForm(t, map[string]string{"title": "t", "description": "d", "category": "Sports"}, "a.jpg", "image/jpeg", []byte("x"))

	for _, auth := range []string{"", "Bearer wrong", "Basic " + adminToken} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/news", bytes.NewReader(body.Bytes()))
		req.Header.Set("Content-Type", ct)
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
		w := s.do(t, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code, auth)
		assert.NotEmpty(t, w.Header().Get("WWW-Authenticate"))
		assert.Equal(t, "unauthorized", decodeError(t, w).Code)
	}
	assert.Equal(t, 0, s.blobs.Len(), "rejected requests upload nothing")
}

func TestCreateNews_ValidationFailureStoresNothing(t *testing.T) {
	s := setupHandlerTest(t)
	body, ct := newsForm(t, map[string]string{"title": " ", "description": "d", "category": "Weather"}, "a.jpg", "image/jpeg", []byte("x"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/news", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("Authorization", "Bearer "+adminToken)

	w := s.do(t, req)
	require.Equal(t, http.StatusBadRequest, w.Code)

	errBody := decodeError(t, w)
	assert.Equal(t, "validation_failed", errBody.Code)
	var fields []string
	for _, f := range errBody.Fields {
		fields = append(fields, f.Field)
	}
	assert.ElementsMatch(t, []string{"title", "category"}, fields)
	assert.Equal(t, 0, s.blobs.Len(), "uploaded media is removed when the insert fails")
}

func TestListNews_SearchAndLayout(t *testing.T) {
	s := setupHandlerTest(t)
	s.createNews(t, "Budget 2024", "Politics", false)
	s.createNews(t, "Market Rally", "Business", false)
	s.createNews(t, "Cup Final", "Sports", false)

	w := s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/news?q=budget", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var view simplenews.View
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, 1, view.Total)
	assert.Equal(t, simplenews.LayoutGrid, view.Layout)
	require.Len(t, view.Rows, 1)
	assert.Equal(t, "Budget 2024", view.Rows[0][0].Title)

	w = s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/news?category=Business", nil))
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, 1, view.Total)

	w = s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/news?layout=compact-list", nil))
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, 3, view.Total)
	assert.Len(t, view.Rows, 3)

	w = s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/news?layout=hero-grid&columns=2&hero=1", nil))
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Len(t, view.Hero, 1)
	require.Len(t, view.Rows, 1)
	assert.Len(t, view.Rows[0], 2)
}

func TestListNews_BadParams(t *testing.T) {
	s := setupHandlerTest(t)
	for _, q := range []string{"layout=carousel", "columns=0", "hero=x"} {
		w := s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/news?"+q, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}

func TestGetNews(t *testing.T) {
	s := setupHandlerTest(t)
	item := s.createNews(t, "Budget 2024", "Politics", false)

	w := s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/news/"+item.ID.String(), nil))
	require.Equal(t, http.StatusOK, w.Code)
	var got simplenews.ContentItem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, item.ID, got.ID)

	w = s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/news/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/news/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLikeAndViewNews(t *testing.T) {
	s := setupHandlerTest(t)
	item := s.createNews(t, "Budget 2024", "Politics", false)

	var resp api.CounterResponse
	for i := 1; i <= 2; i++ {
		w := s.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/news/"+item.ID.String()+"/like", nil))
		require.Equal(t, http.StatusOK, w.Code)
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, int64(i), resp.Count)
	}

	w := s.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/news/"+item.ID.String()+"/view", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.Count)

	cached, ok := s.portal.Catalog().Item(item.ID)
	require.True(t, ok)
	assert.Equal(t, int64(2), cached.LikeCount)

	w = s.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/news/"+uuid.NewString()+"/like", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateNews(t *testing.T) {
	s := setupHandlerTest(t)
	item := s.createNews(t, "Budget 2024", "Politics", false)
	path := "/api/v1/news/" + item.ID.String()

	req := httptest.NewRequest(http.MethodPatch, path, strings.NewReader(`{"title":"Budget 2025"}`))
	req.Header.Set("Authorization", "Bearer "+adminToken)
	w := s.do(t, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var got simplenews.ContentItem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "Budget 2025", got.Title)

	req = httptest.NewRequest(http.MethodPatch, path, strings.NewReader(`{"like_count":100}`))
	req.Header.Set("Authorization", "Bearer "+adminToken)
	w = s.do(t, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req = httptest.NewRequest(http.MethodPatch, path, strings.NewReader(`{"title":`))
	req.Header.Set("Authorization", "Bearer "+adminToken)
	w = s.do(t, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteNews_RemovesMediaAndIsIdempotent(t *testing.T) {
	s := setupHandlerTest(t)
	item := s.createNews(t, "Market Rally", "Business", true)
	require.Equal(t, 1, s.blobs.Len())

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodDelete, "/api/v1/news/"+item.ID.String(), nil)
		req.Header.Set("Authorization", "Bearer "+adminToken)
		w := s.do(t, req)
		assert.Equal(t, http.StatusNoContent, w.Code)
	}
	assert.Equal(t, 0, s.blobs.Len())

	w := s.do(t, httptest.NewRequest(http.MethodGet, *item.MediaRef, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSlides(t *testing.T) {
	s := setupHandlerTest(t)

	body, ct := newsForm(t, nil, "clip.mp4", "video/mp4", []byte("mp4"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/slides", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	w := s.do(t, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var entry simplenews.SliderEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entry))
	assert.Equal(t, simplenews.MediaKindVideo, entry.MediaKind)
	assert.True(t, strings.HasPrefix(entry.MediaRef, "/media/slider_"))

	w = s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/slides", nil))
	var slides []simplenews.SliderEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &slides))
	require.Len(t, slides, 1)
	assert.Equal(t, entry.ID, slides[0].ID)

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/slides/"+entry.ID.String(), nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	w = s.do(t, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 0, s.blobs.Len())
	assert.Empty(t, s.portal.Slides())
}

func TestCreateSlide_RequiresFile(t *testing.T) {
	s := setupHandlerTest(t)

	body, ct := newsForm(t, map[string]string{"note": "x"}, "", "", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/slides", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	w := s.do(t, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_failed", decodeError(t, w).Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/slides", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+adminToken)
	w = s.do(t, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateNews_TooLarge(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	media, err := simplenews.NewMediaStore(memorystorage.New())
	require.NoError(t, err)
	auth, err := simplenews.NewStaticTokenAuthorizer(simplenews.TokenDigest(adminToken))
	require.NoError(t, err)
	portal, err := simplenews.NewPortal(memory.New(), media,
		simplenews.WithPortalAuthorizer(auth),
		simplenews.WithPortalLogger(logger),
	)
	require.NoError(t, err)
	t.Cleanup(portal.Close)
	router := api.New(portal, api.WithLogger(logger), api.WithMaxUploadBytes(1024)).Routes()

	body, ct := newsForm(t, map[string]string{"title": "t"}, "big.jpg", "image/jpeg", bytes.Repeat([]byte("x"), 4096))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/news", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

// trackedBody records whether a handler read the request body.
type trackedBody struct {
	io.Reader
	read bool
}

func (b *trackedBody) Read(p []byte) (int, error) {
	b.read = true
	return b.Reader.Read(p)
}

func TestUploads_UnauthorizedBodyIsNotRead(t *testing.T) {
	s := setupHandlerTest(t)

	for _, path := range []string{"/api/v1/news", "/api/v1/slides"} {
		form, ct := newsForm(t, map[string]string{"title": "t", "description": "d", "category": "Sports"},
			"big.jpg", "image/jpeg", bytes.Repeat([]byte("x"), 1<<20))
		body := &trackedBody{Reader: form}
		req := httptest.NewRequest(http.MethodPost, path, body)
		req.Header.Set("Content-Type", ct)
		req.Header.Set("Authorization", "Bearer wrong")

		w := s.do(t, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
		assert.Equal(t, "unauthorized", decodeError(t, w).Code, path)
		assert.False(t, body.read, "%s read the upload before checking the token", path)
	}
	assert.Equal(t, 0, s.blobs.Len())
}

func TestRefreshCatalog(t *testing.T) {
	s := setupHandlerTest(t)
	_, err := s.portal.CreateContentItem(context.Background(), adminToken, simplenews.CreateContentItemRequest{
		Fields: simplenews.ContentFields{Title: "Budget 2024", Description: "d", Category: simplenews.CategoryPolitics},
	})
	require.NoError(t, err)

	w := s.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/catalog/refresh", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/catalog/refresh", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	w = s.do(t, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"items":1`)
}

func TestCategoriesHealthAndMetrics(t *testing.T) {
	s := setupHandlerTest(t)

	w := s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/categories", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var cats []string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cats))
	assert.Equal(t, []string{"Breaking News", "Politics", "Business", "Technology", "Entertainment", "Sports"}, cats)

	w = s.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)

	s.createNews(t, "Budget 2024", "Politics", false)
	w = s.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `simplenews_mutations_total{op="create_content_item",result="ok"} 1`)
}
