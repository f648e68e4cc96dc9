package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// TokenPrefix identifies crewdeck tokens
	TokenPrefix = "cdk_"
	// TokenLength is the total length of random bytes (32 bytes = 256 bits)
	TokenLength = 32
)

// ErrInvalidToken is returned when a token is unknown, revoked, or expired
var ErrInvalidToken = errors.New("invalid or expired token")

// GenerateToken creates a new API token.
// Format: cdk_<base64url(32 random bytes)>
func GenerateToken() (token string, tokenHash string, tokenPrefix string, err error) {
	randomBytes := make([]byte, TokenLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	encoded := base64.RawURLEncoding.EncodeToString(randomBytes)
	fullToken := TokenPrefix + encoded

	hash := sha256.Sum256([]byte(fullToken))
	hashStr := hex.EncodeToString(hash[:])

	// First 8 chars after the prefix, for display and lookup hints
	prefix := TokenPrefix
	if len(encoded) >= 8 {
		prefix = TokenPrefix + encoded[:8]
	}

	return fullToken, hashStr, prefix, nil
}

// HashToken computes the SHA256 hash of a token for lookup
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// ValidateTokenFormat checks if a token has the correct format
func ValidateTokenFormat(token string) error {
	if !strings.HasPrefix(token, TokenPrefix) {
		return fmt.Errorf("token must start with %q", TokenPrefix)
	}

	encoded := strings.TrimPrefix(token, TokenPrefix)
	if len(encoded) == 0 {
		return fmt.Errorf("token is too short")
	}

	if _, err := base64.RawURLEncoding.DecodeString(encoded); err != nil {
		return fmt.Errorf("invalid token encoding: %w", err)
	}

	return nil
}

// TokenStore manages API token persistence and validation
type TokenStore struct {
	db *sql.DB
}

// NewTokenStore creates a new token store
func NewTokenStore(db *sql.DB) *TokenStore {
	return &TokenStore{db: db}
}

// CreateToken creates a new API token for a user. The plaintext token is
// returned once and never stored.
func (s *TokenStore) CreateToken(ctx context.Context, userID int64, name string, expiresAt *time.Time) (*APIToken, string, error) {
	token, tokenHash, tokenPrefix, err := GenerateToken()
	if err != nil {
		return nil, "", err
	}

	apiToken := &APIToken{
		UserID:      userID,
		TokenHash:   tokenHash,
		TokenPrefix: tokenPrefix,
		Name:        name,
		ExpiresAt:   expiresAt,
	}

	query := `
		INSERT INTO api_tokens (user_id, token_hash, token_prefix, name, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	now := time.Now()
	err = s.db.QueryRowContext(ctx, query,
		apiToken.UserID,
		apiToken.TokenHash,
		apiToken.TokenPrefix,
		apiToken.Name,
		apiToken.ExpiresAt,
		now,
	).Scan(&apiToken.ID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create token: %w", err)
	}

	apiToken.CreatedAt = now
	return apiToken, token, nil
}

// ValidateToken resolves a plaintext token to its user. Returns
// ErrInvalidToken for unknown, revoked, or expired tokens.
func (s *TokenStore) ValidateToken(ctx context.Context, token string) (*User, *APIToken, error) {
	if err := ValidateTokenFormat(token); err != nil {
		return nil, nil, ErrInvalidToken
	}

	query := `
		SELECT t.id, t.user_id, t.token_prefix, t.name, t.expires_at, t.created_at,
		       u.id, u.username, u.email, u.full_name, u.is_active, u.created_at, u.updated_at
		FROM api_tokens t
		JOIN users u ON u.id = t.user_id
		WHERE t.token_hash = $1 AND t.revoked_at IS NULL
	`

	var apiToken APIToken
	var user User
	var email, fullName sql.NullString
	var expiresAt sql.NullTime

	err := s.db.QueryRowContext(ctx, query, HashToken(token)).Scan(
		&apiToken.ID, &apiToken.UserID, &apiToken.TokenPrefix, &apiToken.Name,
		&expiresAt, &apiToken.CreatedAt,
		&user.ID, &user.Username, &email, &fullName, &user.IsActive,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil, ErrInvalidToken
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to validate token: %w", err)
	}

	if expiresAt.Valid {
		ea := expiresAt.Time
		apiToken.ExpiresAt = &ea
		if time.Now().After(ea) {
			return nil, nil, ErrInvalidToken
		}
	}
	if email.Valid {
		user.Email = email.String
	}
	if fullName.Valid {
		user.FullName = fullName.String
	}
	if !user.IsActive {
		return nil, nil, ErrInvalidToken
	}

	return &user, &apiToken, nil
}

// RevokeToken revokes a token by id
func (s *TokenStore) RevokeToken(ctx context.Context, tokenID int64) error {
	query := `UPDATE api_tokens SET revoked_at = $1 WHERE id = $2 AND revoked_at IS NULL`
	result, err := s.db.ExecContext(ctx, query, time.Now(), tokenID)
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("token not found or already revoked")
	}

	return nil
}
