package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vidgate/vidgate/internal/analytics"
	"github.com/vidgate/vidgate/internal/auth"
	"github.com/vidgate/vidgate/internal/config"
	"github.com/vidgate/vidgate/internal/manifest"
	"github.com/vidgate/vidgate/internal/metrics"
	"github.com/vidgate/vidgate/internal/share"
	"github.com/vidgate/vidgate/pkg/models"
)

var tracer = otel.Tracer("vidgate-api")

// Configuration constants
const (
	MaxUploadSize      = 500 << 20 // 500 MB hard limit
	MaxRequestBodySize = 1 << 20   // 1 MB for JSON bodies
)

// VideoStore is the metadata surface for video records.
type VideoStore interface {
	Create(ctx context.Context, video *models.Video) error
	Get(ctx context.Context, videoID string) (*models.Video, error)
}

// ShareStore is the metadata surface for share-token records.
type ShareStore interface {
	Create(ctx context.Context, token *models.ShareToken) error
	Get(ctx context.Context, token string) (*models.ShareToken, error)
}

// RawUploader stores raw uploads.
type RawUploader interface {
	Upload(ctx context.Context, bucket, key string, body io.Reader, contentType string) error
}

// ViewStore records and reads view analytics aggregates.
type ViewStore interface {
	RecordView(ctx context.Context, videoID, viewer string, now time.Time) error
	Report(ctx context.Context, videoID string) ([]analytics.ViewerStat, error)
}

// ManifestSigner produces signed manifests.
type ManifestSigner interface {
	SignedManifest(ctx context.Context, hlsPrefix string) (string, error)
}

// TranscodeNotifier dispatches transcode jobs without blocking.
type TranscodeNotifier interface {
	NotifyAsync(job models.TranscodeJob)
}

// Handlers contains all HTTP handlers for the API.
type Handlers struct {
	cfg      *config.Config
	log      *slog.Logger
	videos   VideoStore
	shares   ShareStore
	uploads  RawUploader
	views    ViewStore
	rewriter ManifestSigner
	notifier TranscodeNotifier
	jwt      *auth.JWTService
}

// HandlersConfig holds dependencies for handlers.
type HandlersConfig struct {
	Config     *config.Config
	Logger     *slog.Logger
	Videos     VideoStore
	Shares     ShareStore
	Uploads    RawUploader
	Views      ViewStore
	Rewriter   ManifestSigner
	Notifier   TranscodeNotifier
	JWTService *auth.JWTService
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(cfg *HandlersConfig) *Handlers {
	return &Handlers{
		cfg:      cfg.Config,
		log:      cfg.Logger,
		videos:   cfg.Videos,
		shares:   cfg.Shares,
		uploads:  cfg.Uploads,
		views:    cfg.Views,
		rewriter: cfg.Rewriter,
		notifier: cfg.Notifier,
		jwt:      cfg.JWTService,
	}
}

// writeJSON writes a JSON response.
func (h *Handlers) writeJSON(ctx context.Context, w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.ErrorContext(ctx, "Failed to encode JSON response", "error", err)
	}
}

// writeError writes an error response.
func (h *Handlers) writeError(ctx context.Context, w http.ResponseWriter, status int, message string) {
	h.writeJSON(ctx, w, status, map[string]string{"error": message})
}

// limitRequestBody wraps the request body with a size limit.
func (h *Handlers) limitRequestBody(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
}

// ownedVideo is the ownership guard: it returns the video only if it exists
// and is owned by the given viewer. A missing video and a wrong owner are
// indistinguishable to the caller, so guarded endpoints leak no existence
// information.
func (h *Handlers) ownedVideo(ctx context.Context, videoID, ownerID string) (*models.Video, error) {
	video, err := h.videos.Get(ctx, videoID)
	if err != nil {
		if errors.Is(err, models.ErrVideoNotFound) {
			return nil, models.ErrForbidden
		}
		return nil, err
	}
	if video.OwnerID != ownerID {
		return nil, models.ErrForbidden
	}
	return video, nil
}

// UploadResponse is the response payload for a completed upload.
type UploadResponse struct {
	Message string `json:"message"`
	VideoID string `json:"videoId"`
}

// UploadHandler accepts a multipart raw video upload, persists its metadata,
// and signals the transcoding worker asynchronously.
func (h *Handlers) UploadHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	requestID := uuid.New().String()
	ctx, span := tracer.Start(ctx, "upload-handler",
		trace.WithAttributes(
			attribute.String("handler", "upload"),
			attribute.String("request.id", requestID),
		))
	defer span.End()

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	if err := r.ParseMultipartForm(MaxUploadSize); err != nil {
		span.RecordError(err)
		metrics.UploadsTotal.WithLabelValues("error_body").Inc()
		h.writeError(ctx, w, http.StatusBadRequest, "Malformed multipart body")
		return
	}

	// Validate before touching storage or metadata: a missing file or owner
	// must short-circuit with no side effects.
	file, header, err := r.FormFile("file")
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("error_no_file").Inc()
		h.writeError(ctx, w, http.StatusBadRequest, models.ErrMissingFile.Error())
		return
	}
	defer file.Close()

	title := r.FormValue("title")
	description := r.FormValue("description")
	ownerID := r.FormValue("ownerId")
	if ownerID == "" {
		metrics.UploadsTotal.WithLabelValues("error_no_owner").Inc()
		h.writeError(ctx, w, http.StatusBadRequest, models.ErrMissingOwner.Error())
		return
	}

	// Magic number validation
	buff := make([]byte, 512)
	n, err := file.Read(buff)
	if err != nil && err != io.EOF {
		span.RecordError(err)
		h.writeError(ctx, w, http.StatusInternalServerError, "Failed to read file")
		return
	}
	fileType := http.DetectContentType(buff[:n])
	if fileType != "video/mp4" && fileType != "application/octet-stream" {
		metrics.UploadsTotal.WithLabelValues("error_type").Inc()
		h.writeError(ctx, w, http.StatusBadRequest, "Invalid file format. Only MP4 allowed.")
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		span.RecordError(err)
		h.writeError(ctx, w, http.StatusInternalServerError, "Failed to read file")
		return
	}

	videoID := uuid.New().String()
	ext := filepath.Ext(header.Filename)
	if ext == "" {
		ext = ".mp4"
	}
	rawKey := fmt.Sprintf("uploads/%s%s", videoID, ext)

	span.SetAttributes(
		attribute.String("video.id", videoID),
		attribute.String("video.key", rawKey),
	)

	if err := h.uploads.Upload(ctx, h.cfg.AWS.RawBucket, rawKey, file, "video/mp4"); err != nil {
		span.RecordError(err)
		metrics.UploadsTotal.WithLabelValues("error_storage").Inc()
		h.log.ErrorContext(ctx, "Failed to upload raw video",
			"error", err,
			"videoId", videoID,
			"requestId", requestID,
		)
		h.writeError(ctx, w, http.StatusInternalServerError, "Failed to upload file")
		return
	}

	video := &models.Video{
		VideoID:     videoID,
		Title:       title,
		Description: description,
		OwnerID:     ownerID,
		Status:      models.StatusUploaded,
		RawKey:      rawKey,
	}
	if err := h.videos.Create(ctx, video); err != nil {
		span.RecordError(err)
		metrics.UploadsTotal.WithLabelValues("error_metadata").Inc()
		h.log.ErrorContext(ctx, "Failed to save video metadata",
			"error", err,
			"videoId", videoID,
			"requestId", requestID,
		)
		h.writeError(ctx, w, http.StatusInternalServerError, "Failed to save video metadata")
		return
	}

	// Fire-and-forget: transcode-trigger failures are logged by the notifier
	// and never delay or fail the upload response.
	h.notifier.NotifyAsync(models.TranscodeJob{
		VideoID: videoID,
		Bucket:  h.cfg.AWS.RawBucket,
		S3Key:   rawKey,
	})

	metrics.UploadsTotal.WithLabelValues("success").Inc()
	h.log.InfoContext(ctx, "Upload accepted",
		"videoId", videoID,
		"size", header.Size,
		"requestId", requestID,
	)

	h.writeJSON(ctx, w, http.StatusOK, UploadResponse{
		Message: "Upload successful",
		VideoID: videoID,
	})
}

// ManifestHandler serves the rewritten manifest for a video. Authorization is
// either ownership (bearer credential) or a valid share token presented as a
// query parameter.
func (h *Handlers) ManifestHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	videoID := r.PathValue("videoId")
	if videoID == "" {
		h.writeError(ctx, w, http.StatusBadRequest, models.ErrMissingVideoID.Error())
		return
	}

	ctx, span := tracer.Start(ctx, "manifest-handler",
		trace.WithAttributes(
			attribute.String("handler", "manifest"),
			attribute.String("video.id", videoID),
		))
	defer span.End()

	var video *models.Video

	if token := r.URL.Query().Get("token"); token != "" {
		shareRec, err := h.shares.Get(ctx, token)
		if err != nil {
			if errors.Is(err, models.ErrShareNotFound) {
				h.writeError(ctx, w, http.StatusForbidden, "Forbidden")
				return
			}
			span.RecordError(err)
			h.log.ErrorContext(ctx, "Failed to look up share token",
				"error", err,
				"videoId", videoID,
			)
			h.writeError(ctx, w, http.StatusInternalServerError, "Failed to verify share token")
			return
		}
		if shareRec.VideoID != videoID || !shareRec.Valid(time.Now()) {
			h.writeError(ctx, w, http.StatusForbidden, "Forbidden")
			return
		}

		video, err = h.videos.Get(ctx, videoID)
		if err != nil {
			if errors.Is(err, models.ErrVideoNotFound) {
				h.writeError(ctx, w, http.StatusNotFound, "Video not found")
				return
			}
			span.RecordError(err)
			h.writeError(ctx, w, http.StatusInternalServerError, "Failed to load video")
			return
		}
	} else {
		tokenString, err := auth.ExtractTokenFromRequest(r)
		if err != nil {
			h.writeError(ctx, w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		claims, err := h.jwt.ValidateToken(tokenString)
		if err != nil {
			h.writeError(ctx, w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		video, err = h.ownedVideo(ctx, videoID, claims.Identity().ID)
		if err != nil {
			if errors.Is(err, models.ErrForbidden) {
				h.writeError(ctx, w, http.StatusForbidden, "Forbidden")
				return
			}
			span.RecordError(err)
			h.writeError(ctx, w, http.StatusInternalServerError, "Failed to load video")
			return
		}
	}

	if video.HLSPrefix == "" {
		// Not transcoded yet, so there is no manifest to serve.
		h.writeError(ctx, w, http.StatusNotFound, "Manifest not available")
		return
	}

	signed, err := h.rewriter.SignedManifest(ctx, video.HLSPrefix)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrManifestNotFound), errors.Is(err, models.ErrNoSegments):
			h.writeError(ctx, w, http.StatusNotFound, "Manifest not available")
		default:
			span.RecordError(err)
			h.log.ErrorContext(ctx, "Failed to sign manifest",
				"error", err,
				"videoId", videoID,
			)
			h.writeError(ctx, w, http.StatusInternalServerError, "Could not sign segment URLs")
		}
		return
	}

	w.Header().Set("Content-Type", manifest.ContentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(signed)); err != nil {
		h.log.ErrorContext(ctx, "Failed to write manifest response", "error", err)
	}
}

// RecordViewRequest is the request payload for recording a playback start.
type RecordViewRequest struct {
	VideoID string `json:"videoId"`
}

// RecordViewHandler records one view for the authenticated viewer. The client
// calls it once per playback session, when media actually starts playing.
func (h *Handlers) RecordViewHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok {
		h.writeError(ctx, w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	ctx, span := tracer.Start(ctx, "record-view-handler",
		trace.WithAttributes(attribute.String("handler", "record-view")))
	defer span.End()

	h.limitRequestBody(w, r)

	var req RecordViewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.VideoID == "" {
		h.writeError(ctx, w, http.StatusBadRequest, models.ErrMissingVideoID.Error())
		return
	}

	viewer := identity.Email
	if viewer == "" {
		viewer = identity.ID
	}

	if err := h.views.RecordView(ctx, req.VideoID, viewer, time.Now()); err != nil {
		span.RecordError(err)
		metrics.ViewsRecorded.WithLabelValues("failed").Inc()
		// Lost telemetry, not a playback failure; the caller just gets a
		// failed acknowledgment.
		h.log.ErrorContext(ctx, "Failed to record view",
			"error", err,
			"videoId", req.VideoID,
		)
		h.writeError(ctx, w, http.StatusInternalServerError, "Failed to record view")
		return
	}

	metrics.ViewsRecorded.WithLabelValues("success").Inc()
	h.writeJSON(ctx, w, http.StatusOK, map[string]any{
		"success": true,
		"message": "View count incremented",
	})
}

// AnalyticsEntry is one row of the analytics report payload.
type AnalyticsEntry struct {
	Viewer     string `json:"viewer"`
	TotalViews int64  `json:"totalViews"`
	LastViewed string `json:"lastViewed"`
}

// AnalyticsResponse is the response payload for the analytics report.
type AnalyticsResponse struct {
	Analytics []AnalyticsEntry `json:"analytics"`
}

// AnalyticsHandler returns the per-viewer view report for a video the
// authenticated viewer owns, most recent viewers first.
func (h *Handlers) AnalyticsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok {
		h.writeError(ctx, w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	videoID := r.PathValue("videoId")
	if videoID == "" {
		h.writeError(ctx, w, http.StatusBadRequest, models.ErrMissingVideoID.Error())
		return
	}

	ctx, span := tracer.Start(ctx, "analytics-handler",
		trace.WithAttributes(
			attribute.String("handler", "analytics"),
			attribute.String("video.id", videoID),
		))
	defer span.End()

	if _, err := h.ownedVideo(ctx, videoID, identity.ID); err != nil {
		if errors.Is(err, models.ErrForbidden) {
			h.writeError(ctx, w, http.StatusForbidden, "Forbidden")
			return
		}
		span.RecordError(err)
		h.writeError(ctx, w, http.StatusInternalServerError, "Failed to load video")
		return
	}

	stats, err := h.views.Report(ctx, videoID)
	if err != nil {
		span.RecordError(err)
		h.log.ErrorContext(ctx, "Failed to read analytics",
			"error", err,
			"videoId", videoID,
		)
		h.writeError(ctx, w, http.StatusInternalServerError, "Failed to read analytics")
		return
	}

	entries := make([]AnalyticsEntry, 0, len(stats))
	for _, stat := range stats {
		entry := AnalyticsEntry{
			Viewer:     stat.Viewer,
			TotalViews: stat.TotalViews,
			LastViewed: "N/A",
		}
		if stat.LastViewedMs > 0 {
			entry.LastViewed = time.UnixMilli(stat.LastViewedMs).UTC().Format(time.RFC3339)
		}
		entries = append(entries, entry)
	}

	h.writeJSON(ctx, w, http.StatusOK, AnalyticsResponse{Analytics: entries})
}

// ShareRequest is the request payload for issuing a share token.
type ShareRequest struct {
	SharedWithEmail  string `json:"sharedWithEmail"`
	ExpiresInMinutes int    `json:"expiresInMinutes"`
}

// ShareResponse is the response payload for an issued share token.
type ShareResponse struct {
	ShareLink string `json:"shareLink"`
}

// ShareHandler mints a share token for a video the authenticated viewer owns
// and returns the redeemable watch link.
func (h *Handlers) ShareHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok {
		h.writeError(ctx, w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	videoID := r.PathValue("videoId")
	if videoID == "" {
		h.writeError(ctx, w, http.StatusBadRequest, models.ErrMissingVideoID.Error())
		return
	}

	ctx, span := tracer.Start(ctx, "share-handler",
		trace.WithAttributes(
			attribute.String("handler", "share"),
			attribute.String("video.id", videoID),
		))
	defer span.End()

	if _, err := h.ownedVideo(ctx, videoID, identity.ID); err != nil {
		if errors.Is(err, models.ErrForbidden) {
			h.writeError(ctx, w, http.StatusForbidden, "Forbidden")
			return
		}
		span.RecordError(err)
		h.writeError(ctx, w, http.StatusInternalServerError, "Failed to load video")
		return
	}

	h.limitRequestBody(w, r)

	var req ShareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ExpiresInMinutes <= 0 {
		h.writeError(ctx, w, http.StatusBadRequest, models.ErrInvalidExpiry.Error())
		return
	}

	record, err := share.NewRecord(videoID, identity.ID, req.SharedWithEmail,
		time.Duration(req.ExpiresInMinutes)*time.Minute, time.Now())
	if err != nil {
		span.RecordError(err)
		h.writeError(ctx, w, http.StatusInternalServerError, "Could not create share link")
		return
	}

	if err := h.shares.Create(ctx, record); err != nil {
		span.RecordError(err)
		h.log.ErrorContext(ctx, "Failed to persist share token",
			"error", err,
			"videoId", videoID,
		)
		h.writeError(ctx, w, http.StatusInternalServerError, "Could not create share link")
		return
	}

	metrics.SharesIssued.Inc()
	h.log.InfoContext(ctx, "Share token issued",
		"videoId", videoID,
		"sharedWith", req.SharedWithEmail,
		"expiresAt", record.ExpiresAt,
	)

	h.writeJSON(ctx, w, http.StatusOK, ShareResponse{
		ShareLink: share.Link(h.cfg.API.BaseURL, videoID, record.Token),
	})
}
