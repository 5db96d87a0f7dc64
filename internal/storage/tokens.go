// ABOUTME: OAuth token persistence: one live credential per user.
// ABOUTME: Upsert-by-user, replaced on every refresh.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/harperreed/vitals/internal/models"
)

// ErrNoToken means a user has never connected the vendor API.
var ErrNoToken = errors.New("no token stored for user")

// SaveToken upserts the user's credential pair.
func (d *DB) SaveToken(ctx context.Context, t *models.Token) error {
	var lastSync any
	if t.LastSyncAt != nil {
		lastSync = t.LastSyncAt.UTC().Format(time.RFC3339)
	}
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO tokens (user_id, access_token, refresh_token, expires_at, token_type, last_sync_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at,
			token_type = excluded.token_type,
			last_sync_at = COALESCE(excluded.last_sync_at, tokens.last_sync_at)`,
		t.UserID,
		t.AccessToken,
		t.RefreshToken,
		t.ExpiresAt.UTC().Format(time.RFC3339),
		t.TokenType,
		lastSync,
	)
	if err != nil {
		return fmt.Errorf("save token for %s: %w", t.UserID, err)
	}
	return nil
}

// GetToken retrieves the user's credential, or ErrNoToken.
func (d *DB) GetToken(ctx context.Context, userID string) (*models.Token, error) {
	var t models.Token
	var expiresStr string
	var tokenType, lastSync sql.NullString
	err := d.db.QueryRowContext(ctx, `
		SELECT user_id, access_token, refresh_token, expires_at, token_type, last_sync_at
		FROM tokens WHERE user_id = ?`, userID,
	).Scan(&t.UserID, &t.AccessToken, &t.RefreshToken, &expiresStr, &tokenType, &lastSync)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNoToken, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("get token for %s: %w", userID, err)
	}
	if t.ExpiresAt, err = time.Parse(time.RFC3339, expiresStr); err != nil {
		return nil, fmt.Errorf("parse token expiry %q: %w", expiresStr, err)
	}
	t.TokenType = tokenType.String
	if lastSync.Valid {
		ts, _ := time.Parse(time.RFC3339, lastSync.String)
		t.LastSyncAt = &ts
	}
	return &t, nil
}

// TouchLastSync records a successful sync time on the stored token.
func (d *DB) TouchLastSync(ctx context.Context, userID string, at time.Time) error {
	_, err := d.db.ExecContext(ctx,
		`UPDATE tokens SET last_sync_at = ? WHERE user_id = ?`,
		at.UTC().Format(time.RFC3339), userID)
	if err != nil {
		return fmt.Errorf("touch last sync for %s: %w", userID, err)
	}
	return nil
}
