package models

import "errors"

// Error taxonomy. Handlers translate these into HTTP statuses; every other
// layer returns them (wrapped) and never writes a response itself.
var (
	// Access errors
	ErrUnauthenticated = errors.New("missing or invalid credential")
	ErrForbidden       = errors.New("not authorized for this video")

	// Lookup errors
	ErrVideoNotFound    = errors.New("video not found")
	ErrShareNotFound    = errors.New("share token not found")
	ErrManifestNotFound = errors.New("manifest not found")
	ErrNoSegments       = errors.New("no media segments in manifest")

	// Dependency errors
	ErrUpstream    = errors.New("upstream service failure")
	ErrPersistence = errors.New("failed to persist record")

	// Validation errors
	ErrMissingVideoID  = errors.New("videoId is required")
	ErrMissingFile     = errors.New("no file provided")
	ErrMissingOwner    = errors.New("ownerId is required")
	ErrMissingBucket   = errors.New("bucket is required")
	ErrMissingS3Key    = errors.New("s3Key is required")
	ErrInvalidExpiry   = errors.New("expiresInMinutes must be a positive integer")
	ErrInvalidFileType = errors.New("invalid file type")
)
