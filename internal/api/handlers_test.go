package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/vidgate/vidgate/internal/analytics"
	"github.com/vidgate/vidgate/internal/auth"
	"github.com/vidgate/vidgate/internal/config"
	"github.com/vidgate/vidgate/internal/share"
	"github.com/vidgate/vidgate/pkg/models"
)

// Fakes for the handler dependency interfaces.

type fakeVideoStore struct {
	videos    map[string]*models.Video
	createErr error
	created   []*models.Video
}

func (f *fakeVideoStore) Create(_ context.Context, video *models.Video) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, video)
	return nil
}

func (f *fakeVideoStore) Get(_ context.Context, videoID string) (*models.Video, error) {
	video, ok := f.videos[videoID]
	if !ok {
		return nil, models.ErrVideoNotFound
	}
	return video, nil
}

type fakeShareStore struct {
	shares    map[string]*models.ShareToken
	createErr error
	getErr    error
	created   []*models.ShareToken
}

func (f *fakeShareStore) Create(_ context.Context, token *models.ShareToken) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, token)
	return nil
}

func (f *fakeShareStore) Get(_ context.Context, token string) (*models.ShareToken, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	rec, ok := f.shares[token]
	if !ok {
		return nil, models.ErrShareNotFound
	}
	return rec, nil
}

type fakeUploader struct {
	err     error
	uploads int
	lastKey string
}

func (f *fakeUploader) Upload(_ context.Context, _, key string, _ io.Reader, _ string) error {
	if f.err != nil {
		return f.err
	}
	f.uploads++
	f.lastKey = key
	return nil
}

type fakeViewStore struct {
	recordErr error
	reportErr error
	stats     []analytics.ViewerStat
	recorded  []string
}

func (f *fakeViewStore) RecordView(_ context.Context, videoID, viewer string, _ time.Time) error {
	if f.recordErr != nil {
		return f.recordErr
	}
	f.recorded = append(f.recorded, videoID+"/"+viewer)
	return nil
}

func (f *fakeViewStore) Report(_ context.Context, _ string) ([]analytics.ViewerStat, error) {
	if f.reportErr != nil {
		return nil, f.reportErr
	}
	return f.stats, nil
}

type fakeRewriter struct {
	out string
	err error
}

func (f *fakeRewriter) SignedManifest(_ context.Context, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.out, nil
}

type fakeNotifier struct {
	jobs []models.TranscodeJob
}

func (f *fakeNotifier) NotifyAsync(job models.TranscodeJob) {
	f.jobs = append(f.jobs, job)
}

type testDeps struct {
	videos   *fakeVideoStore
	shares   *fakeShareStore
	uploads  *fakeUploader
	views    *fakeViewStore
	rewriter *fakeRewriter
	notifier *fakeNotifier
	jwt      *auth.JWTService
}

func newTestHandlers(t *testing.T) (*Handlers, *testDeps) {
	t.Helper()

	jwtService, err := auth.NewJWTService([]byte("test-secret-that-is-long-enough-for-testing"))
	if err != nil {
		t.Fatalf("NewJWTService() error = %v", err)
	}

	deps := &testDeps{
		videos:   &fakeVideoStore{videos: make(map[string]*models.Video)},
		shares:   &fakeShareStore{shares: make(map[string]*models.ShareToken)},
		uploads:  &fakeUploader{},
		views:    &fakeViewStore{},
		rewriter: &fakeRewriter{out: "#EXTM3U\nhttps://signed.example/seg0.ts\n"},
		notifier: &fakeNotifier{},
		jwt:      jwtService,
	}

	cfg := &config.Config{
		Environment: "dev",
		AWS: config.AWSConfig{
			RawBucket:       "raw-bucket",
			ProcessedBucket: "processed-bucket",
		},
		API: config.APIConfig{
			BaseURL:      "https://videos.example.com",
			SignedURLTTL: time.Hour,
		},
	}

	h := NewHandlers(&HandlersConfig{
		Config:     cfg,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		Videos:     deps.videos,
		Shares:     deps.shares,
		Uploads:    deps.uploads,
		Views:      deps.views,
		Rewriter:   deps.rewriter,
		Notifier:   deps.notifier,
		JWTService: jwtService,
	})

	return h, deps
}

func authedRequest(method, target string, body io.Reader, identity models.Identity) *http.Request {
	req := httptest.NewRequest(method, target, body)
	return req.WithContext(auth.SetIdentityInContext(req.Context(), identity))
}

func ownedTestVideo(deps *testDeps) *models.Video {
	video := &models.Video{
		VideoID:   "vid-1",
		OwnerID:   "user-1",
		Status:    models.StatusReady,
		HLSPrefix: "vid-1",
	}
	deps.videos.videos[video.VideoID] = video
	return video
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("error response is not JSON: %v", err)
	}
	return body["error"]
}

// Upload

func multipartUpload(t *testing.T, withFile bool, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	if withFile {
		fw, err := mw.CreateFormFile("file", "movie.mp4")
		if err != nil {
			t.Fatalf("CreateFormFile() error = %v", err)
		}
		// Opaque binary content sniffs as application/octet-stream.
		if _, err := fw.Write(bytes.Repeat([]byte{0x00, 0x01, 0x02, 0x03}, 64)); err != nil {
			t.Fatalf("writing file part: %v", err)
		}
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("WriteField(%s) error = %v", k, err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("closing multipart writer: %v", err)
	}

	return &buf, mw.FormDataContentType()
}

func TestUploadHandler(t *testing.T) {
	h, deps := newTestHandlers(t)

	body, contentType := multipartUpload(t, true, map[string]string{
		"title":       "My Video",
		"description": "A test video",
		"ownerId":     "user-1",
	})
	req := httptest.NewRequest("POST", "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()

	h.UploadHandler(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("UploadHandler returned %d: %s", rr.Code, rr.Body.String())
	}

	var resp UploadResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.VideoID == "" {
		t.Error("response videoId is empty")
	}

	if deps.uploads.uploads != 1 {
		t.Errorf("uploads = %d, want 1", deps.uploads.uploads)
	}
	if !strings.HasPrefix(deps.uploads.lastKey, "uploads/") || !strings.HasSuffix(deps.uploads.lastKey, ".mp4") {
		t.Errorf("raw key = %q, want uploads/<id>.mp4", deps.uploads.lastKey)
	}

	if len(deps.videos.created) != 1 {
		t.Fatalf("videos created = %d, want 1", len(deps.videos.created))
	}
	created := deps.videos.created[0]
	if created.OwnerID != "user-1" {
		t.Errorf("created OwnerID = %q, want user-1", created.OwnerID)
	}
	if created.Status != models.StatusUploaded {
		t.Errorf("created Status = %q, want %q", created.Status, models.StatusUploaded)
	}
	if created.Title != "My Video" {
		t.Errorf("created Title = %q, want My Video", created.Title)
	}

	if len(deps.notifier.jobs) != 1 {
		t.Fatalf("transcode jobs = %d, want 1", len(deps.notifier.jobs))
	}
	job := deps.notifier.jobs[0]
	if job.VideoID != resp.VideoID || job.Bucket != "raw-bucket" || job.S3Key != deps.uploads.lastKey {
		t.Errorf("transcode job = %+v, want videoId %s in raw-bucket", job, resp.VideoID)
	}
}

func TestUploadHandler_MissingFile(t *testing.T) {
	h, deps := newTestHandlers(t)

	body, contentType := multipartUpload(t, false, map[string]string{"ownerId": "user-1"})
	req := httptest.NewRequest("POST", "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()

	h.UploadHandler(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("UploadHandler returned %d, want %d", rr.Code, http.StatusBadRequest)
	}
	// Nothing may reach storage or metadata when validation fails.
	if deps.uploads.uploads != 0 {
		t.Errorf("uploads = %d, want 0", deps.uploads.uploads)
	}
	if len(deps.videos.created) != 0 {
		t.Errorf("videos created = %d, want 0", len(deps.videos.created))
	}
	if len(deps.notifier.jobs) != 0 {
		t.Errorf("transcode jobs = %d, want 0", len(deps.notifier.jobs))
	}
}

func TestUploadHandler_MissingOwner(t *testing.T) {
	h, deps := newTestHandlers(t)

	body, contentType := multipartUpload(t, true, map[string]string{"title": "No owner"})
	req := httptest.NewRequest("POST", "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()

	h.UploadHandler(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("UploadHandler returned %d, want %d", rr.Code, http.StatusBadRequest)
	}
	if deps.uploads.uploads != 0 {
		t.Errorf("uploads = %d, want 0", deps.uploads.uploads)
	}
}

func TestUploadHandler_StorageFailure(t *testing.T) {
	h, deps := newTestHandlers(t)
	deps.uploads.err = errors.New("bucket unavailable")

	body, contentType := multipartUpload(t, true, map[string]string{"ownerId": "user-1"})
	req := httptest.NewRequest("POST", "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()

	h.UploadHandler(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("UploadHandler returned %d, want %d", rr.Code, http.StatusInternalServerError)
	}
	if len(deps.videos.created) != 0 {
		t.Errorf("videos created = %d after storage failure, want 0", len(deps.videos.created))
	}
	if len(deps.notifier.jobs) != 0 {
		t.Errorf("transcode jobs = %d after storage failure, want 0", len(deps.notifier.jobs))
	}
}

// Manifest

func TestManifestHandler_OwnerBearer(t *testing.T) {
	h, deps := newTestHandlers(t)
	ownedTestVideo(deps)

	token, _ := deps.jwt.GenerateToken("user-1", "alice@example.com")
	req := httptest.NewRequest("GET", "/videos/vid-1", nil)
	req.SetPathValue("videoId", "vid-1")
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()

	h.ManifestHandler(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("ManifestHandler returned %d: %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/vnd.apple.mpegurl" {
		t.Errorf("Content-Type = %q, want application/vnd.apple.mpegurl", ct)
	}
	if !strings.Contains(rr.Body.String(), "https://signed.example/seg0.ts") {
		t.Errorf("body = %q, want signed manifest", rr.Body.String())
	}
}

func TestManifestHandler_ShareToken(t *testing.T) {
	h, deps := newTestHandlers(t)
	ownedTestVideo(deps)

	record, _ := share.NewRecord("vid-1", "user-1", "friend@example.com", time.Hour, time.Now())
	deps.shares.shares[record.Token] = record

	req := httptest.NewRequest("GET", "/videos/vid-1?token="+record.Token, nil)
	req.SetPathValue("videoId", "vid-1")
	rr := httptest.NewRecorder()

	h.ManifestHandler(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("ManifestHandler returned %d: %s", rr.Code, rr.Body.String())
	}
}

func TestManifestHandler_ShareTokenRejected(t *testing.T) {
	h, deps := newTestHandlers(t)
	ownedTestVideo(deps)

	expired, _ := share.NewRecord("vid-1", "user-1", "friend@example.com", 10*time.Minute,
		time.Now().Add(-15*time.Minute))
	deps.shares.shares[expired.Token] = expired

	otherVideo, _ := share.NewRecord("vid-2", "user-1", "friend@example.com", time.Hour, time.Now())
	deps.shares.shares[otherVideo.Token] = otherVideo

	tests := []struct {
		name  string
		token string
	}{
		{"unknown token", "no-such-token"},
		{"expired token", expired.Token},
		{"token for different video", otherVideo.Token},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/videos/vid-1?token="+tt.token, nil)
			req.SetPathValue("videoId", "vid-1")
			rr := httptest.NewRecorder()

			h.ManifestHandler(rr, req)

			if rr.Code != http.StatusForbidden {
				t.Errorf("ManifestHandler returned %d, want %d", rr.Code, http.StatusForbidden)
			}
		})
	}
}

func TestManifestHandler_ShareLookupFailure(t *testing.T) {
	h, deps := newTestHandlers(t)
	ownedTestVideo(deps)
	deps.shares.getErr = fmt.Errorf("%w: table unavailable", models.ErrUpstream)

	// A store failure is not a verdict on the token; it must surface as a
	// server error, not as Forbidden.
	req := httptest.NewRequest("GET", "/videos/vid-1?token=some-token", nil)
	req.SetPathValue("videoId", "vid-1")
	rr := httptest.NewRecorder()

	h.ManifestHandler(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("ManifestHandler returned %d, want %d", rr.Code, http.StatusInternalServerError)
	}
}

func TestManifestHandler_NoCredential(t *testing.T) {
	h, deps := newTestHandlers(t)
	ownedTestVideo(deps)

	req := httptest.NewRequest("GET", "/videos/vid-1", nil)
	req.SetPathValue("videoId", "vid-1")
	rr := httptest.NewRecorder()

	h.ManifestHandler(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("ManifestHandler returned %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestManifestHandler_OwnershipHidesExistence(t *testing.T) {
	h, deps := newTestHandlers(t)
	ownedTestVideo(deps)

	token, _ := deps.jwt.GenerateToken("user-2", "mallory@example.com")

	// Someone else's video and a missing video must be indistinguishable.
	for _, videoID := range []string{"vid-1", "vid-missing"} {
		req := httptest.NewRequest("GET", "/videos/"+videoID, nil)
		req.SetPathValue("videoId", videoID)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()

		h.ManifestHandler(rr, req)

		if rr.Code != http.StatusForbidden {
			t.Errorf("ManifestHandler(%s) returned %d, want %d", videoID, rr.Code, http.StatusForbidden)
		}
		if msg := decodeError(t, rr); msg != "Forbidden" {
			t.Errorf("ManifestHandler(%s) error = %q, want Forbidden", videoID, msg)
		}
	}
}

func TestManifestHandler_NotTranscodedYet(t *testing.T) {
	h, deps := newTestHandlers(t)
	deps.videos.videos["vid-1"] = &models.Video{
		VideoID: "vid-1",
		OwnerID: "user-1",
		Status:  models.StatusTranscoding,
	}

	token, _ := deps.jwt.GenerateToken("user-1", "alice@example.com")
	req := httptest.NewRequest("GET", "/videos/vid-1", nil)
	req.SetPathValue("videoId", "vid-1")
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()

	h.ManifestHandler(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("ManifestHandler returned %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestManifestHandler_RewriterErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"manifest missing", models.ErrManifestNotFound, http.StatusNotFound},
		{"no segments", models.ErrNoSegments, http.StatusNotFound},
		{"signing failure", models.ErrUpstream, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, deps := newTestHandlers(t)
			ownedTestVideo(deps)
			deps.rewriter.err = tt.err

			token, _ := deps.jwt.GenerateToken("user-1", "alice@example.com")
			req := httptest.NewRequest("GET", "/videos/vid-1", nil)
			req.SetPathValue("videoId", "vid-1")
			req.Header.Set("Authorization", "Bearer "+token)
			rr := httptest.NewRecorder()

			h.ManifestHandler(rr, req)

			if rr.Code != tt.wantCode {
				t.Errorf("ManifestHandler returned %d, want %d", rr.Code, tt.wantCode)
			}
		})
	}
}

// Views

func TestRecordViewHandler(t *testing.T) {
	h, deps := newTestHandlers(t)

	body := strings.NewReader(`{"videoId":"vid-1"}`)
	req := authedRequest("POST", "/views", body, models.Identity{ID: "user-2", Email: "bob@example.com"})
	rr := httptest.NewRecorder()

	h.RecordViewHandler(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("RecordViewHandler returned %d: %s", rr.Code, rr.Body.String())
	}

	var resp map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp["success"] != true {
		t.Errorf("success = %v, want true", resp["success"])
	}
	if resp["message"] != "View count incremented" {
		t.Errorf("message = %v, want 'View count incremented'", resp["message"])
	}

	if len(deps.views.recorded) != 1 || deps.views.recorded[0] != "vid-1/bob@example.com" {
		t.Errorf("recorded = %v, want [vid-1/bob@example.com]", deps.views.recorded)
	}
}

func TestRecordViewHandler_FallsBackToID(t *testing.T) {
	h, deps := newTestHandlers(t)

	body := strings.NewReader(`{"videoId":"vid-1"}`)
	req := authedRequest("POST", "/views", body, models.Identity{ID: "user-2"})
	rr := httptest.NewRecorder()

	h.RecordViewHandler(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("RecordViewHandler returned %d", rr.Code)
	}
	if len(deps.views.recorded) != 1 || deps.views.recorded[0] != "vid-1/user-2" {
		t.Errorf("recorded = %v, want [vid-1/user-2]", deps.views.recorded)
	}
}

func TestRecordViewHandler_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing videoId", `{}`},
		{"empty videoId", `{"videoId":""}`},
		{"malformed body", `{not json`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, deps := newTestHandlers(t)

			req := authedRequest("POST", "/views", strings.NewReader(tt.body),
				models.Identity{ID: "user-2", Email: "bob@example.com"})
			rr := httptest.NewRecorder()

			h.RecordViewHandler(rr, req)

			if rr.Code != http.StatusBadRequest {
				t.Errorf("RecordViewHandler returned %d, want %d", rr.Code, http.StatusBadRequest)
			}
			if len(deps.views.recorded) != 0 {
				t.Errorf("recorded = %v, want none", deps.views.recorded)
			}
		})
	}
}

func TestRecordViewHandler_NoIdentity(t *testing.T) {
	h, _ := newTestHandlers(t)

	req := httptest.NewRequest("POST", "/views", strings.NewReader(`{"videoId":"vid-1"}`))
	rr := httptest.NewRecorder()

	h.RecordViewHandler(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("RecordViewHandler returned %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestRecordViewHandler_StoreFailure(t *testing.T) {
	h, deps := newTestHandlers(t)
	deps.views.recordErr = errors.New("redis down")

	req := authedRequest("POST", "/views", strings.NewReader(`{"videoId":"vid-1"}`),
		models.Identity{ID: "user-2", Email: "bob@example.com"})
	rr := httptest.NewRecorder()

	h.RecordViewHandler(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("RecordViewHandler returned %d, want %d", rr.Code, http.StatusInternalServerError)
	}
}

// Analytics

func TestAnalyticsHandler(t *testing.T) {
	h, deps := newTestHandlers(t)
	ownedTestVideo(deps)

	lastView := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	deps.views.stats = []analytics.ViewerStat{
		{Viewer: "bob@example.com", TotalViews: 4, LastViewedMs: lastView.UnixMilli()},
		{Viewer: "carol@example.com", TotalViews: 1, LastViewedMs: 0},
	}

	req := authedRequest("GET", "/analytics/vid-1", nil, models.Identity{ID: "user-1", Email: "alice@example.com"})
	req.SetPathValue("videoId", "vid-1")
	rr := httptest.NewRecorder()

	h.AnalyticsHandler(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("AnalyticsHandler returned %d: %s", rr.Code, rr.Body.String())
	}

	var resp AnalyticsResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(resp.Analytics) != 2 {
		t.Fatalf("analytics rows = %d, want 2", len(resp.Analytics))
	}

	if resp.Analytics[0].Viewer != "bob@example.com" || resp.Analytics[0].TotalViews != 4 {
		t.Errorf("row 0 = %+v, want bob with 4 views", resp.Analytics[0])
	}
	if resp.Analytics[0].LastViewed != "2025-06-01T12:00:00Z" {
		t.Errorf("row 0 lastViewed = %q, want 2025-06-01T12:00:00Z", resp.Analytics[0].LastViewed)
	}
	if resp.Analytics[1].LastViewed != "N/A" {
		t.Errorf("row 1 lastViewed = %q, want N/A for unknown recency", resp.Analytics[1].LastViewed)
	}
}

func TestAnalyticsHandler_NotOwner(t *testing.T) {
	h, deps := newTestHandlers(t)
	ownedTestVideo(deps)

	for _, videoID := range []string{"vid-1", "vid-missing"} {
		req := authedRequest("GET", "/analytics/"+videoID, nil, models.Identity{ID: "user-2"})
		req.SetPathValue("videoId", videoID)
		rr := httptest.NewRecorder()

		h.AnalyticsHandler(rr, req)

		if rr.Code != http.StatusForbidden {
			t.Errorf("AnalyticsHandler(%s) returned %d, want %d", videoID, rr.Code, http.StatusForbidden)
		}
	}
}

func TestAnalyticsHandler_ReportFailure(t *testing.T) {
	h, deps := newTestHandlers(t)
	ownedTestVideo(deps)
	deps.views.reportErr = errors.New("redis down")

	req := authedRequest("GET", "/analytics/vid-1", nil, models.Identity{ID: "user-1"})
	req.SetPathValue("videoId", "vid-1")
	rr := httptest.NewRecorder()

	h.AnalyticsHandler(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("AnalyticsHandler returned %d, want %d", rr.Code, http.StatusInternalServerError)
	}
}

// Sharing

func TestShareHandler(t *testing.T) {
	h, deps := newTestHandlers(t)
	ownedTestVideo(deps)

	body := strings.NewReader(`{"sharedWithEmail":"friend@example.com","expiresInMinutes":30}`)
	req := authedRequest("POST", "/videos/vid-1/share", body, models.Identity{ID: "user-1", Email: "alice@example.com"})
	req.SetPathValue("videoId", "vid-1")
	rr := httptest.NewRecorder()

	h.ShareHandler(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("ShareHandler returned %d: %s", rr.Code, rr.Body.String())
	}

	if len(deps.shares.created) != 1 {
		t.Fatalf("share tokens created = %d, want 1", len(deps.shares.created))
	}
	record := deps.shares.created[0]
	if record.VideoID != "vid-1" || record.SharedBy != "user-1" || record.SharedWithEmail != "friend@example.com" {
		t.Errorf("persisted record = %+v", record)
	}

	var resp ShareResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	want := "https://videos.example.com/watch/vid-1?token=" + record.Token
	if resp.ShareLink != want {
		t.Errorf("shareLink = %q, want %q", resp.ShareLink, want)
	}
}

func TestShareHandler_InvalidExpiry(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"zero expiry", `{"sharedWithEmail":"friend@example.com","expiresInMinutes":0}`},
		{"negative expiry", `{"sharedWithEmail":"friend@example.com","expiresInMinutes":-5}`},
		{"missing expiry", `{"sharedWithEmail":"friend@example.com"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, deps := newTestHandlers(t)
			ownedTestVideo(deps)

			req := authedRequest("POST", "/videos/vid-1/share", strings.NewReader(tt.body),
				models.Identity{ID: "user-1"})
			req.SetPathValue("videoId", "vid-1")
			rr := httptest.NewRecorder()

			h.ShareHandler(rr, req)

			if rr.Code != http.StatusBadRequest {
				t.Errorf("ShareHandler returned %d, want %d", rr.Code, http.StatusBadRequest)
			}
			if len(deps.shares.created) != 0 {
				t.Errorf("share tokens created = %d, want 0", len(deps.shares.created))
			}
		})
	}
}

func TestShareHandler_NotOwner(t *testing.T) {
	h, deps := newTestHandlers(t)
	ownedTestVideo(deps)

	body := strings.NewReader(`{"sharedWithEmail":"friend@example.com","expiresInMinutes":30}`)
	req := authedRequest("POST", "/videos/vid-1/share", body, models.Identity{ID: "user-2"})
	req.SetPathValue("videoId", "vid-1")
	rr := httptest.NewRecorder()

	h.ShareHandler(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Errorf("ShareHandler returned %d, want %d", rr.Code, http.StatusForbidden)
	}
}

func TestShareHandler_PersistenceFailure(t *testing.T) {
	h, deps := newTestHandlers(t)
	ownedTestVideo(deps)
	deps.shares.createErr = errors.New("table unavailable")

	body := strings.NewReader(`{"sharedWithEmail":"friend@example.com","expiresInMinutes":30}`)
	req := authedRequest("POST", "/videos/vid-1/share", body, models.Identity{ID: "user-1"})
	req.SetPathValue("videoId", "vid-1")
	rr := httptest.NewRecorder()

	h.ShareHandler(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("ShareHandler returned %d, want %d", rr.Code, http.StatusInternalServerError)
	}
}
