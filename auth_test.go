package main

import (
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testAuth(t *testing.T, store SettingsStore, password string) *Auth {
	t.Helper()
	hash := ""
	if password != "" {
		h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
		require.NoError(t, err)
		hash = string(h)
	}
	return NewAuth(store, hash, zerolog.Nop())
}

func TestAuthDisabled(t *testing.T) {
	a := testAuth(t, nil, "")
	_, err := a.Login("anything", "1.2.3.4")
	assert.ErrorIs(t, err, ErrAdminDisabled)
	assert.ErrorIs(t, a.ValidateToken("x"), ErrAdminDisabled)
}

func TestAuthLogin(t *testing.T) {
	a := testAuth(t, nil, "hunter2")

	_, err := a.Login("wrong", "1.2.3.4")
	assert.ErrorIs(t, err, ErrBadCredentials)

	token, err := a.Login("hunter2", "1.2.3.4")
	require.NoError(t, err)
	assert.NoError(t, a.ValidateToken(token))

	assert.ErrorIs(t, a.ValidateToken("not-a-token"), ErrInvalidToken)
	other := testAuth(t, nil, "hunter2")
	assert.ErrorIs(t, other.ValidateToken(token), ErrInvalidToken, "tokens are bound to the signing secret")
}

func TestAuthTokenExpires(t *testing.T) {
	a := testAuth(t, nil, "pw")
	now := time.Now()
	a.now = func() time.Time { return now }
	token, err := a.Login("pw", "1.2.3.4")
	require.NoError(t, err)
	assert.NoError(t, a.ValidateToken(token))

	a.now = func() time.Time { return now.Add(jwtExpiry + time.Minute) }
	assert.ErrorIs(t, a.ValidateToken(token), ErrInvalidToken)
}

func TestAuthSecretPersists(t *testing.T) {
	db := openTestDB(t)
	a := testAuth(t, db, "pw")
	token, err := a.Login("pw", "1.2.3.4")
	require.NoError(t, err)
	assert.NotEmpty(t, db.GetSetting("jwt_secret"))

	restarted := testAuth(t, db, "pw")
	assert.NoError(t, restarted.ValidateToken(token))
}

func TestAuthRateLimit(t *testing.T) {
	a := testAuth(t, nil, "pw")
	now := time.Now()
	a.now = func() time.Time { return now }

	for i := 0; i < maxLoginAttempts; i++ {
		_, err := a.Login("wrong", "1.2.3.4")
		require.ErrorIs(t, err, ErrBadCredentials, fmt.Sprintf("attempt %d", i+1))
	}
	_, err := a.Login("pw", "1.2.3.4")
	assert.ErrorIs(t, err, ErrTooManyAttempts)

	_, err = a.Login("pw", "5.6.7.8")
	assert.NoError(t, err, "other addresses are unaffected")

	now = now.Add(loginRateWindow + time.Second)
	_, err = a.Login("pw", "1.2.3.4")
	assert.NoError(t, err)
}

func TestHashPassword(t *testing.T) {
	if testing.Short() {
		t.Skip("bcrypt at production cost")
	}
	h, err := HashPassword("secret")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(h), []byte("secret")))
}
