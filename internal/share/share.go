// Package share mints bearer capability tokens for video playback.
//
// A share token substitutes for authentication on the manifest path: anyone
// holding the link can fetch the signed manifest for that one video until the
// expiry instant. That trust model is deliberate; redemption performs no
// further identity check.
package share

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/url"
	"time"

	"github.com/vidgate/vidgate/pkg/models"
)

// TokenBytes is the entropy of a share token. 32 random bytes keeps tokens
// far outside guessing or enumeration range.
const TokenBytes = 32

// NewToken returns an opaque URL-safe random token.
func NewToken() (string, error) {
	b := make([]byte, TokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// NewRecord builds an unsaved share-token record expiring after the given
// duration.
func NewRecord(videoID, ownerID, recipientEmail string, validFor time.Duration, now time.Time) (*models.ShareToken, error) {
	token, err := NewToken()
	if err != nil {
		return nil, err
	}

	return &models.ShareToken{
		Token:           token,
		VideoID:         videoID,
		SharedBy:        ownerID,
		SharedWithEmail: recipientEmail,
		ExpiresAt:       now.Add(validFor).UTC().Format(time.RFC3339),
	}, nil
}

// Link builds the redeemable watch link for a share token.
func Link(baseURL, videoID, token string) string {
	return fmt.Sprintf("%s/watch/%s?token=%s", baseURL, url.PathEscape(videoID), url.QueryEscape(token))
}
