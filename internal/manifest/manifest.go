// Package manifest rewrites stored HLS playlists into playable ones whose
// segment references are short-lived signed URLs. The stored manifest is
// never mutated; every playback request produces a fresh rewrite.
package manifest

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/vidgate/vidgate/internal/metrics"
	"github.com/vidgate/vidgate/internal/observability"
	"github.com/vidgate/vidgate/pkg/models"
)

// SegmentSuffix is the media segment file suffix the rewriter recognizes.
const SegmentSuffix = ".ts"

// PlaylistName is the stored manifest filename under a video's HLS prefix.
const PlaylistName = "playlist.m3u8"

// ContentType is the media type a rewritten manifest is served with.
const ContentType = "application/vnd.apple.mpegurl"

// Downloader fetches stored objects.
type Downloader interface {
	Download(ctx context.Context, bucket, key string) ([]byte, error)
}

// URLSigner issues time-boxed signed GET URLs for stored objects.
type URLSigner interface {
	SignGetURL(ctx context.Context, bucket, key string, lifetime time.Duration) (string, error)
}

// ObjectStore is the storage surface the rewriter needs.
type ObjectStore interface {
	Downloader
	URLSigner
}

// Rewriter produces signed manifests for videos in one bucket.
type Rewriter struct {
	store  ObjectStore
	bucket string
	ttl    time.Duration
	log    *slog.Logger
}

// NewRewriter creates a Rewriter over the given bucket. ttl bounds the
// validity window of every signed segment URL it issues.
func NewRewriter(store ObjectStore, bucket string, ttl time.Duration, log *slog.Logger) *Rewriter {
	return &Rewriter{
		store:  store,
		bucket: bucket,
		ttl:    ttl,
		log:    log,
	}
}

// SignedManifest downloads the stored playlist under hlsPrefix, signs every
// unique segment it references, and returns the rewritten text. It is
// all-or-nothing: any signing failure returns an error and no manifest.
func (rw *Rewriter) SignedManifest(ctx context.Context, hlsPrefix string) (string, error) {
	manifestKey := path.Join(hlsPrefix, PlaylistName)

	data, err := rw.store.Download(ctx, rw.bucket, manifestKey)
	if err != nil {
		metrics.ManifestRewrites.WithLabelValues("not_found").Inc()
		return "", fmt.Errorf("%w: %w", models.ErrManifestNotFound, err)
	}
	text := string(data)

	segments := ParseSegments(text)
	if len(segments) == 0 {
		metrics.ManifestRewrites.WithLabelValues("empty").Inc()
		return "", fmt.Errorf("%w: %s", models.ErrNoSegments, manifestKey)
	}

	urls := make(map[string]string, len(segments))
	for _, segment := range segments {
		if _, ok := urls[segment]; ok {
			continue
		}
		signed, err := rw.store.SignGetURL(ctx, rw.bucket, path.Join(hlsPrefix, segment), rw.ttl)
		if err != nil {
			metrics.ManifestRewrites.WithLabelValues("sign_failed").Inc()
			return "", fmt.Errorf("%w: sign %s: %w", models.ErrUpstream, segment, err)
		}
		urls[segment] = signed
		metrics.SegmentURLsSigned.Inc()
	}

	metrics.ManifestRewrites.WithLabelValues("success").Inc()
	rw.log.InfoContext(ctx, "Manifest signed", observability.WithTrace(ctx, []any{
		"prefix", hlsPrefix,
		"segments", len(segments),
		"unique", len(urls),
	})...)

	return Rewrite(text, urls), nil
}

// ParseSegments returns the segment references of a manifest in file order,
// duplicates preserved. A line is a segment reference iff its trimmed form
// ends in the segment suffix and is not a directive.
func ParseSegments(manifest string) []string {
	var segments []string
	for _, line := range strings.Split(manifest, "\n") {
		if name, ok := segmentName(line); ok {
			segments = append(segments, name)
		}
	}
	return segments
}

// Rewrite replaces each segment-reference line with its signed URL. The
// substitution is line-scoped, not a raw string replace, so a segment name
// that is a prefix or substring of another never corrupts the output.
// Directive and blank lines pass through byte-identical.
func Rewrite(manifest string, urls map[string]string) string {
	lines := strings.Split(manifest, "\n")
	for i, line := range lines {
		name, ok := segmentName(line)
		if !ok {
			continue
		}
		if signed, found := urls[name]; found {
			lines[i] = signed
		}
	}
	return strings.Join(lines, "\n")
}

func segmentName(line string) (string, bool) {
	trimmed := strings.TrimSpace(strings.TrimSuffix(line, "\r"))
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return "", false
	}
	if !strings.HasSuffix(trimmed, SegmentSuffix) {
		return "", false
	}
	return trimmed, true
}
