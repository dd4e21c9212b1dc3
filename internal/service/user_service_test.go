package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// minimal PNG header, enough for content sniffing
var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func TestRegister_TokenResolvesToNewUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, token, err := f.user.Register(ctx, &RegisterRequest{
		Username: "  alice ",
		Password: testPassword,
		Email:    " A@X.com ",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "a@x.com", user.Email)
	assert.NotEqual(t, testPassword, user.PasswordHash)
	assert.Equal(t, []string{token}, user.Tokens)

	resolved, err := f.auth.Resolve(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, resolved.ID)
}

func TestRegister_DuplicateUsername(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice")

	_, _, err := f.user.Register(context.Background(), &RegisterRequest{
		Username: "alice",
		Password: testPassword,
		Email:    "other@example.com",
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestRegister_RejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		req  RegisterRequest
	}{
		{"blank username", RegisterRequest{Username: "  ", Password: testPassword, Email: "a@x.com"}},
		{"short password", RegisterRequest{Username: "bob", Password: "abc12", Email: "a@x.com"}},
		{"password contains password", RegisterRequest{Username: "bob", Password: "myPassWord1", Email: "a@x.com"}},
		{"invalid email", RegisterRequest{Username: "bob", Password: testPassword, Email: "not-an-email"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, _, err := f.user.Register(context.Background(), &tt.req)
			assert.ErrorIs(t, err, ErrValidation)

			exists, err := f.users.ExistsByUsername(context.Background(), "bob")
			require.NoError(t, err)
			assert.False(t, exists)
		})
	}
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice")
	ctx := context.Background()

	_, _, errWrongPassword := f.user.Login(ctx, &LoginRequest{Username: "alice", Password: "Wrong-pass-1"})
	_, _, errUnknownUser := f.user.Login(ctx, &LoginRequest{Username: "nobody", Password: testPassword})

	assert.ErrorIs(t, errWrongPassword, ErrInvalidCredentials)
	assert.ErrorIs(t, errUnknownUser, ErrInvalidCredentials)
	assert.Equal(t, errWrongPassword.Error(), errUnknownUser.Error())
}

func TestLogin_AddsSessionAndLogoutRevokesOnlyThatOne(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, first := f.register(t, "alice")

	user, second, err := f.user.Login(ctx, &LoginRequest{Username: "alice", Password: testPassword})
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	require.NoError(t, f.user.RevokeToken(ctx, user, second))

	_, err = f.auth.Resolve(ctx, second)
	assert.ErrorIs(t, err, ErrUnauthenticated)
	_, err = f.auth.Resolve(ctx, first)
	assert.NoError(t, err)
}

func TestRevokeAllTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user, first := f.register(t, "alice")
	_, second, err := f.user.Login(ctx, &LoginRequest{Username: "alice", Password: testPassword})
	require.NoError(t, err)

	require.NoError(t, f.user.RevokeAllTokens(ctx, user))

	for _, token := range []string{first, second} {
		_, err := f.auth.Resolve(ctx, token)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	}
}

func TestUpdateProfile_RejectsUnknownKeysBeforeWriting(t *testing.T) {
	f := newFixture(t)
	user, _ := f.register(t, "alice")

	_, err := f.user.UpdateProfile(context.Background(), user, map[string]any{
		"username": "alicia",
		"isAdmin":  true,
	})
	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "Attempt to update invalid fields", err.Error())

	stored, err := f.user.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", stored.Username)
}

func TestUpdateProfile_InvalidValueLeavesEverythingUntouched(t *testing.T) {
	f := newFixture(t)
	user, _ := f.register(t, "alice")
	tweet := f.post(t, user, "hello")

	_, err := f.user.UpdateProfile(context.Background(), user, map[string]any{
		"username": "alicia",
		"email":    "broken",
	})
	require.ErrorIs(t, err, ErrValidation)

	stored, err := f.user.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", stored.Username)
	assert.Equal(t, "alice", f.reload(t, tweet.ID).Username)
}

func TestUpdateProfile_UsernameTaken(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice")
	bob, _ := f.register(t, "bob")
	tweet := f.post(t, bob, "hi")

	_, err := f.user.UpdateProfile(context.Background(), bob, map[string]any{"username": "alice"})
	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "bob", f.reload(t, tweet.ID).Username)
}

func TestUpdateProfile_PasswordChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user, _ := f.register(t, "alice")

	_, err := f.user.UpdateProfile(ctx, user, map[string]any{"password": "N3w-secret"})
	require.NoError(t, err)

	_, _, err = f.user.Login(ctx, &LoginRequest{Username: "alice", Password: testPassword})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = f.user.Login(ctx, &LoginRequest{Username: "alice", Password: "N3w-secret"})
	assert.NoError(t, err)
}

func TestUpdateProfile_AvatarSetAndClear(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user, _ := f.register(t, "alice")

	_, err := f.user.UpdateProfile(ctx, user, map[string]any{"avatar": base64.StdEncoding.EncodeToString(pngBytes)})
	require.NoError(t, err)

	data, contentType, err := f.user.GetAvatar(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, pngBytes, data)
	assert.Equal(t, "image/png", contentType)

	_, err = f.user.UpdateProfile(ctx, user, map[string]any{"avatar": ""})
	require.NoError(t, err)
	_, _, err = f.user.GetAvatar(ctx, user.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.user.UpdateProfile(ctx, user, map[string]any{"avatar": "%%%"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUpdateProfile_KeepsSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user, token := f.register(t, "alice")

	_, err := f.user.UpdateProfile(ctx, user, map[string]any{"email": "new@example.com"})
	require.NoError(t, err)

	resolved, err := f.auth.Resolve(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", resolved.Email)
}

func TestSetAvatar(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user, _ := f.register(t, "alice")

	assert.ErrorIs(t, f.user.SetAvatar(ctx, user, "avatar.gif", pngBytes), ErrValidation)
	assert.ErrorIs(t, f.user.SetAvatar(ctx, user, "avatar.png", []byte("plain text")), ErrValidation)
	assert.ErrorIs(t, f.user.SetAvatar(ctx, user, "avatar.png", bytes.Repeat([]byte{0}, maxAvatarBytes+1)), ErrValidation)

	require.NoError(t, f.user.SetAvatar(ctx, user, "Avatar.PNG", pngBytes))
	data, _, err := f.user.GetAvatar(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, pngBytes, data)

	require.NoError(t, f.user.DeleteAvatar(ctx, user))
	_, _, err = f.user.GetAvatar(ctx, user.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetAvatar_UnknownUser(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.user.GetAvatar(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteUser_EndsSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user, token := f.register(t, "alice")

	deleted, err := f.user.DeleteUser(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, user.ID, deleted.ID)

	_, err = f.auth.Resolve(ctx, token)
	assert.ErrorIs(t, err, ErrUnauthenticated)
	_, err = f.user.GetByID(ctx, user.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPruneExpiredTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, live := f.register(t, "alice")
	f.register(t, "bob")

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, &JWTClaims{
		UserID: alice.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "old-session",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})
	stale, err := expired.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	require.NoError(t, f.users.AddToken(ctx, alice.ID, stale))

	removed, err := f.user.PruneExpiredTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	stored, err := f.users.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{live}, stored.Tokens)

	removed, err = f.user.PruneExpiredTokens(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)
}
