package models

// VideoStatus represents the lifecycle state of a video.
type VideoStatus string

const (
	StatusUploaded    VideoStatus = "uploaded"
	StatusTranscoding VideoStatus = "transcoding"
	StatusReady       VideoStatus = "ready"
	StatusFailed      VideoStatus = "failed"
)

// IsValid returns true if the status is a valid VideoStatus.
func (s VideoStatus) IsValid() bool {
	switch s {
	case StatusUploaded, StatusTranscoding, StatusReady, StatusFailed:
		return true
	}
	return false
}

// Identity is a verified viewer identity yielded by the credential verifier.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Video is the metadata record for an uploaded video. The record is created
// once at upload time; status transitions past "uploaded" belong to the
// transcoding worker.
type Video struct {
	// Keys
	PK string `dynamodbav:"pk" json:"-"`
	SK string `dynamodbav:"sk" json:"-"`

	// Attributes
	VideoID     string      `dynamodbav:"video_id" json:"videoId"`
	Title       string      `dynamodbav:"title" json:"title"`
	Description string      `dynamodbav:"description,omitempty" json:"description,omitempty"`
	OwnerID     string      `dynamodbav:"owner_id" json:"ownerId"`
	Status      VideoStatus `dynamodbav:"status" json:"status"`
	RawKey      string      `dynamodbav:"raw_key" json:"rawKey"`
	HLSPrefix   string      `dynamodbav:"hls_prefix,omitempty" json:"hlsPrefix,omitempty"`
	CreatedAt   string      `dynamodbav:"created_at" json:"createdAt"`
	UpdatedAt   string      `dynamodbav:"updated_at" json:"updatedAt"`
}

// TranscodeJob is the message sent to the transcoding worker queue.
type TranscodeJob struct {
	VideoID string `json:"videoId"`
	Bucket  string `json:"bucket"`
	S3Key   string `json:"s3Key"`
}

// Validate checks if the transcode job has all required fields.
func (j *TranscodeJob) Validate() error {
	if j.VideoID == "" {
		return ErrMissingVideoID
	}
	if j.Bucket == "" {
		return ErrMissingBucket
	}
	if j.S3Key == "" {
		return ErrMissingS3Key
	}
	return nil
}
