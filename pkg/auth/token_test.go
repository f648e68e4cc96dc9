package auth

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateToken(t *testing.T) {
	token, hash, prefix, err := GenerateToken()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(token, TokenPrefix))
	assert.True(t, strings.HasPrefix(prefix, TokenPrefix))
	assert.Len(t, hash, 64, "sha256 hex digest")
	assert.Equal(t, HashToken(token), hash)
	assert.NoError(t, ValidateTokenFormat(token))

	// Tokens must be unique
	token2, _, _, err := GenerateToken()
	require.NoError(t, err)
	assert.NotEqual(t, token, token2)
}

func TestValidateTokenFormat(t *testing.T) {
	assert.Error(t, ValidateTokenFormat("no-prefix"))
	assert.Error(t, ValidateTokenFormat(TokenPrefix))
	assert.Error(t, ValidateTokenFormat(TokenPrefix+"not!!valid@@base64"))
	assert.NoError(t, ValidateTokenFormat(TokenPrefix+"YWJjZGVmZ2g"))
}

func TestValidateToken(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewTokenStore(db)
	ctx := context.Background()
	token := TokenPrefix + "YWJjZGVmZ2g"
	now := time.Now()

	columns := []string{
		"id", "user_id", "token_prefix", "name", "expires_at", "created_at",
		"uid", "username", "email", "full_name", "is_active", "ucreated", "uupdated",
	}

	t.Run("valid token", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("SELECT t.id, t.user_id")).
			WithArgs(HashToken(token)).
			WillReturnRows(sqlmock.NewRows(columns).
				AddRow(1, 7, "cdk_YWJjZGVm", "ci token", nil, now, 7, "alice", "alice@example.com", nil, true, now, now))

		user, apiToken, err := store.ValidateToken(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, int64(7), user.ID)
		assert.Equal(t, "alice", user.Username)
		assert.Equal(t, int64(1), apiToken.ID)
		assert.Nil(t, apiToken.ExpiresAt)
	})

	t.Run("unknown token", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("SELECT t.id, t.user_id")).
			WithArgs(HashToken(token)).
			WillReturnRows(sqlmock.NewRows(columns))

		_, _, err := store.ValidateToken(ctx, token)
		assert.True(t, errors.Is(err, ErrInvalidToken))
	})

	t.Run("expired token", func(t *testing.T) {
		expired := now.Add(-time.Hour)
		mock.ExpectQuery(regexp.QuoteMeta("SELECT t.id, t.user_id")).
			WithArgs(HashToken(token)).
			WillReturnRows(sqlmock.NewRows(columns).
				AddRow(1, 7, "cdk_YWJjZGVm", "ci token", expired, now, 7, "alice", nil, nil, true, now, now))

		_, _, err := store.ValidateToken(ctx, token)
		assert.True(t, errors.Is(err, ErrInvalidToken))
	})

	t.Run("inactive user", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("SELECT t.id, t.user_id")).
			WithArgs(HashToken(token)).
			WillReturnRows(sqlmock.NewRows(columns).
				AddRow(1, 7, "cdk_YWJjZGVm", "ci token", nil, now, 7, "alice", nil, nil, false, now, now))

		_, _, err := store.ValidateToken(ctx, token)
		assert.True(t, errors.Is(err, ErrInvalidToken))
	})

	t.Run("malformed token skips the database", func(t *testing.T) {
		_, _, err := store.ValidateToken(ctx, "garbage")
		assert.True(t, errors.Is(err, ErrInvalidToken))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRevokeToken(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewTokenStore(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE api_tokens SET revoked_at")).
		WithArgs(sqlmock.AnyArg(), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, store.RevokeToken(context.Background(), 1))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE api_tokens SET revoked_at")).
		WithArgs(sqlmock.AnyArg(), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.Error(t, store.RevokeToken(context.Background(), 2))
}
