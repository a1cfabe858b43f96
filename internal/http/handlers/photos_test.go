package handlers_test

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/StrixzIV/adv-compro-finals/internal/apperr"
	"github.com/StrixzIV/adv-compro-finals/internal/http/handlers"
	"github.com/StrixzIV/adv-compro-finals/internal/http/middleware"
	"github.com/StrixzIV/adv-compro-finals/internal/photos"
	"github.com/StrixzIV/adv-compro-finals/internal/search"
	"github.com/StrixzIV/adv-compro-finals/internal/storage"
)

func TestPhotoHandlerUploadSuccess(t *testing.T) {
	stub := &stubPhotos{
		ingestResp: storage.Photo{
			ID:         "p1",
			Filename:   "sunset.jpg",
			Caption:    "Vacation",
			SizeBytes:  5,
			UploadedAt: time.Date(2025, 2, 15, 10, 30, 0, 0, time.UTC),
		},
	}
	rec, ctx := multipartContext(t, "sunset.jpg", "image/jpeg", []byte("hello"), "Vacation")

	handlers.NewPhotoHandler(newTestLogger(), stub, 1024).Upload(ctx)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if stub.lastIngest.OwnerID != testUser {
		t.Fatalf("expected owner %q, got %q", testUser, stub.lastIngest.OwnerID)
	}
	if stub.lastIngest.Caption != "Vacation" || stub.lastIngest.Filename != "sunset.jpg" {
		t.Fatalf("unexpected ingest input: %+v", stub.lastIngest)
	}
	if stub.lastIngest.ContentType != "image/jpeg" || string(stub.lastIngest.Data) != "hello" {
		t.Fatalf("unexpected payload: %q %q", stub.lastIngest.ContentType, stub.lastIngest.Data)
	}
	if !strings.Contains(rec.Body.String(), `"original_url":"/api/photos/p1/original"`) {
		t.Fatalf("expected original url, got %s", rec.Body.String())
	}
}

func TestPhotoHandlerUploadSniffsGenericContentType(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n0000")
	stub := &stubPhotos{}
	_, ctx := multipartContext(t, "x.png", "application/octet-stream", png, "")

	handlers.NewPhotoHandler(newTestLogger(), stub, 1024).Upload(ctx)

	if stub.lastIngest.ContentType != "image/png" {
		t.Fatalf("expected sniffed image/png, got %q", stub.lastIngest.ContentType)
	}
}

func TestPhotoHandlerUploadTooLarge(t *testing.T) {
	stub := &stubPhotos{}
	rec, ctx := multipartContext(t, "big.jpg", "image/jpeg", bytes.Repeat([]byte("x"), 2048), "")

	handlers.NewPhotoHandler(newTestLogger(), stub, 1024).Upload(ctx)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected status 413, got %d", rec.Code)
	}
	if body := errorBody(t, rec); body.Message != "upload exceeds the 1.0 KiB limit" {
		t.Fatalf("unexpected message %q", body.Message)
	}
	if stub.ingestCalled {
		t.Fatalf("Ingest should not be called for oversize uploads")
	}
}

func TestPhotoHandlerUploadMissingFile(t *testing.T) {
	rec, ctx := newContext(http.MethodPost, "/api/photos", "")

	handlers.NewPhotoHandler(newTestLogger(), &stubPhotos{}, 1024).Upload(ctx)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestPhotoHandlerErrorMapping(t *testing.T) {
	cases := []struct {
		err       error
		status    int
		retryable bool
	}{
		{apperr.New(apperr.KindInvalidInput, "bad"), http.StatusBadRequest, false},
		{apperr.New(apperr.KindDerivationFailed, "bad image"), http.StatusUnprocessableEntity, false},
		{apperr.Forbidden(), http.StatusNotFound, false},
		{apperr.New(apperr.KindConflict, "busy"), http.StatusConflict, true},
		{apperr.New(apperr.KindStorageWriteFailed, "s3 down"), http.StatusServiceUnavailable, true},
		{apperr.New(apperr.KindStorageReadFailed, "s3 down"), http.StatusServiceUnavailable, true},
		{apperr.New(apperr.KindCatalogWriteFailed, "db down"), http.StatusInternalServerError, true},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError, false},
	}

	for _, tc := range cases {
		rec, ctx := newContext(http.MethodPost, "/api/photos/p1/trash", "")
		ctx.Params = gin.Params{{Key: "id", Value: "p1"}}

		handlers.NewPhotoHandler(newTestLogger(), &stubPhotos{stateErr: tc.err}, 1024).SoftDelete(ctx)

		if rec.Code != tc.status {
			t.Fatalf("%v: expected status %d, got %d", tc.err, tc.status, rec.Code)
		}
		if body := errorBody(t, rec); body.Retryable != tc.retryable {
			t.Fatalf("%v: expected retryable %v, got %+v", tc.err, tc.retryable, body)
		}
	}
}

func TestPhotoHandlerFavoriteToggles(t *testing.T) {
	stub := &stubPhotos{}
	handler := handlers.NewPhotoHandler(newTestLogger(), stub, 1024)

	rec, ctx := newContext(http.MethodPut, "/api/photos/p1/favorite", "")
	ctx.Params = gin.Params{{Key: "id", Value: "p1"}}
	handler.Favorite(ctx)
	if rec.Code != http.StatusOK || stub.lastFavorite == nil || !*stub.lastFavorite {
		t.Fatalf("expected favorite=true, got status %d", rec.Code)
	}

	rec, ctx = newContext(http.MethodDelete, "/api/photos/p1/favorite", "")
	ctx.Params = gin.Params{{Key: "id", Value: "p1"}}
	handler.Unfavorite(ctx)
	if rec.Code != http.StatusOK || *stub.lastFavorite {
		t.Fatalf("expected favorite=false, got status %d", rec.Code)
	}
}

func TestPhotoHandlerListPaging(t *testing.T) {
	stub := &stubPhotos{list: []storage.Photo{{ID: "p1"}}}
	rec, ctx := newContext(http.MethodGet, "/api/photos?limit=500&offset=10", "")

	handlers.NewPhotoHandler(newTestLogger(), stub, 1024).List(ctx)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if stub.lastLimit != 500 || stub.lastOffset != 10 {
		t.Fatalf("expected raw paging passed through, got %d %d", stub.lastLimit, stub.lastOffset)
	}
	if !strings.Contains(rec.Body.String(), `"limit":100`) {
		t.Fatalf("expected clamped limit in body, got %s", rec.Body.String())
	}

	rec, ctx = newContext(http.MethodGet, "/api/photos?limit=ten", "")
	handlers.NewPhotoHandler(newTestLogger(), stub, 1024).List(ctx)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestPhotoHandlerSearchScope(t *testing.T) {
	stub := &stubPhotos{}
	handler := handlers.NewPhotoHandler(newTestLogger(), stub, 1024)

	rec, ctx := newContext(http.MethodGet, "/api/photos/search?q=sunset&scope=trash", "")
	handler.Search(ctx)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if stub.lastQuery != "sunset" || stub.lastScope != search.ScopeTrash {
		t.Fatalf("unexpected search input: %q %v", stub.lastQuery, stub.lastScope)
	}
	if !strings.Contains(rec.Body.String(), `"photos":[]`) {
		t.Fatalf("expected empty list, got %s", rec.Body.String())
	}

	rec, ctx = newContext(http.MethodGet, "/api/photos/search?q=x&scope=everything", "")
	handler.Search(ctx)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestPhotoHandlerStreamsAsset(t *testing.T) {
	stub := &stubPhotos{
		asset: &photos.Asset{
			Body:        io.NopCloser(strings.NewReader("jpeg-bytes")),
			ContentType: "image/jpeg",
			Size:        10,
			Filename:    "sunset.jpeg",
		},
	}
	rec, ctx := newContext(http.MethodGet, "/api/photos/p1/thumbnail", "")
	ctx.Params = gin.Params{{Key: "id", Value: "p1"}}

	handlers.NewPhotoHandler(newTestLogger(), stub, 1024).Thumbnail(ctx)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if rec.Body.String() != "jpeg-bytes" {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if stub.lastVariant != photos.VariantThumbnail {
		t.Fatalf("expected thumbnail variant, got %q", stub.lastVariant)
	}
}

func TestPhotoHandlerEmptyTrashReport(t *testing.T) {
	stub := &stubPhotos{
		report: photos.PurgeReport{
			Purged: []string{"p1", "p2"},
			Failed: []photos.PurgeFailure{{PhotoID: "p3", Kind: apperr.KindStorageWriteFailed, Message: "delete photo objects", Retryable: true}},
		},
	}
	rec, ctx := newContext(http.MethodDelete, "/api/trash", "")

	handlers.NewPhotoHandler(newTestLogger(), stub, 1024).EmptyTrash(ctx)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var body struct {
		Purged  []string `json:"purged"`
		Skipped []string `json:"skipped"`
		Failed  []struct {
			PhotoID   string `json:"photo_id"`
			Error     string `json:"error"`
			Retryable bool   `json:"retryable"`
		} `json:"failed"`
	}
	decode(t, rec, &body)

	if len(body.Purged) != 2 || len(body.Failed) != 1 || body.Skipped == nil {
		t.Fatalf("unexpected report: %+v", body)
	}
	if body.Failed[0].PhotoID != "p3" || body.Failed[0].Error != "storage_write_failed" || !body.Failed[0].Retryable {
		t.Fatalf("unexpected failure entry: %+v", body.Failed[0])
	}
}

func TestPhotoHandlerPurge(t *testing.T) {
	stub := &stubPhotos{}
	rec, ctx := newContext(http.MethodDelete, "/api/photos/p1", "")
	ctx.Params = gin.Params{{Key: "id", Value: "p1"}}

	handlers.NewPhotoHandler(newTestLogger(), stub, 1024).Purge(ctx)
	ctx.Writer.WriteHeaderNow()

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rec.Code)
	}
	if stub.purged != "p1" {
		t.Fatalf("expected p1 purged, got %q", stub.purged)
	}
}

type stubPhotos struct {
	ingestResp   storage.Photo
	ingestErr    error
	ingestCalled bool
	lastIngest   photos.IngestInput
	list         []storage.Photo
	lastLimit    int
	lastOffset   int
	lastQuery    string
	lastScope    search.Scope
	asset        *photos.Asset
	lastVariant  string
	stateErr     error
	lastFavorite *bool
	purged       string
	report       photos.PurgeReport
}

func (s *stubPhotos) Ingest(_ context.Context, in photos.IngestInput) (storage.Photo, error) {
	s.ingestCalled = true
	s.lastIngest = in
	return s.ingestResp, s.ingestErr
}

func (s *stubPhotos) Get(_ context.Context, photoID, _ string) (storage.Photo, error) {
	return storage.Photo{ID: photoID}, s.stateErr
}

func (s *stubPhotos) ListGallery(_ context.Context, _ string, limit, offset int) ([]storage.Photo, error) {
	s.lastLimit, s.lastOffset = limit, offset
	return s.list, nil
}

func (s *stubPhotos) ListTrash(context.Context, string) ([]storage.Photo, error) {
	return s.list, nil
}

func (s *stubPhotos) ListFavorites(context.Context, string) ([]storage.Photo, error) {
	return s.list, nil
}

func (s *stubPhotos) Search(_ context.Context, _, text string, scope search.Scope) ([]storage.Photo, error) {
	s.lastQuery, s.lastScope = text, scope
	return nil, nil
}

func (s *stubPhotos) StreamAsset(_ context.Context, _, variant, _ string) (*photos.Asset, error) {
	s.lastVariant = variant
	if s.asset == nil {
		return nil, apperr.Forbidden()
	}
	return s.asset, nil
}

func (s *stubPhotos) SoftDelete(_ context.Context, photoID, _ string) (storage.Photo, error) {
	if s.stateErr != nil {
		return storage.Photo{}, s.stateErr
	}
	return storage.Photo{ID: photoID, IsDeleted: true}, nil
}

func (s *stubPhotos) Restore(_ context.Context, photoID, _ string) (storage.Photo, error) {
	if s.stateErr != nil {
		return storage.Photo{}, s.stateErr
	}
	return storage.Photo{ID: photoID}, nil
}

func (s *stubPhotos) SetFavorite(_ context.Context, photoID, _ string, favorite bool) (storage.Photo, error) {
	s.lastFavorite = &favorite
	if s.stateErr != nil {
		return storage.Photo{}, s.stateErr
	}
	return storage.Photo{ID: photoID, IsFavorite: favorite}, nil
}

func (s *stubPhotos) PurgeOne(_ context.Context, photoID, _ string) error {
	s.purged = photoID
	return s.stateErr
}

func (s *stubPhotos) PurgeAllTrashed(context.Context, string) (photos.PurgeReport, error) {
	return s.report, s.stateErr
}

func multipartContext(t *testing.T, filename, contentType string, data []byte, caption string) (*httptest.ResponseRecorder, *gin.Context) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if caption != "" {
		if err := w.WriteField("caption", caption); err != nil {
			t.Fatalf("write caption: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	rec := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(rec)
	req := httptest.NewRequest(http.MethodPost, "/api/photos", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	ctx.Request = req
	middleware.SetUserID(ctx, testUser)

	return rec, ctx
}
