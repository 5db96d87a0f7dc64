// ABOUTME: Token model for the per-user vendor OAuth credential.
// ABOUTME: At most one live record per user, replaced on every refresh.
package models

import "time"

// Token is a user's OAuth credential pair for the wearable vendor API.
type Token struct {
	UserID       string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	TokenType    string
	LastSyncAt   *time.Time
}

// ExpiresWithin reports whether the access token expires inside the
// given safety margin and should be refreshed before use.
func (t *Token) ExpiresWithin(margin time.Duration) bool {
	return !t.ExpiresAt.After(time.Now().Add(margin))
}
