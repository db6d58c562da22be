package models

import "time"

// ShareToken is a bearer capability granting manifest access to one video
// until its expiry instant. Anyone holding the token can play the video; the
// recipient email is informational metadata, not an access check. Records are
// immutable once written and expire rather than being revoked.
type ShareToken struct {
	// Keys
	PK string `dynamodbav:"pk" json:"-"`
	SK string `dynamodbav:"sk" json:"-"`

	// Attributes
	Token           string `dynamodbav:"token" json:"token"`
	VideoID         string `dynamodbav:"video_id" json:"videoId"`
	SharedBy        string `dynamodbav:"shared_by" json:"sharedBy"`
	SharedWithEmail string `dynamodbav:"shared_with_email" json:"sharedWithEmail"`
	ExpiresAt       string `dynamodbav:"expires_at" json:"expiresAt"`
	CreatedAt       string `dynamodbav:"created_at" json:"createdAt"`
}

// Valid reports whether the token's expiry instant is strictly in the future.
// A token with an unparseable expiry is treated as expired.
func (s *ShareToken) Valid(now time.Time) bool {
	expiry, err := time.Parse(time.RFC3339, s.ExpiresAt)
	if err != nil {
		return false
	}
	return expiry.After(now)
}
