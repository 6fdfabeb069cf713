package main

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

const (
	jwtExpiry        = 12 * time.Hour
	bcryptCost       = 12
	loginRateWindow  = 60 * time.Second
	maxLoginAttempts = 10
	adminSubject     = "admin"
)

var (
	ErrAdminDisabled   = errors.New("admin API is disabled")
	ErrBadCredentials  = errors.New("invalid password")
	ErrTooManyAttempts = errors.New("too many login attempts, try again later")
	ErrInvalidToken    = errors.New("invalid token")
)

// Auth guards the admin API: a bcrypt password hash from the config
// exchanges for a short-lived HS256 token.
type Auth struct {
	passHash  []byte
	jwtSecret []byte
	log       zerolog.Logger
	now       func() time.Time

	rateMu  sync.Mutex
	rateMap map[string]*rateEntry
}

type rateEntry struct {
	Count   int
	ResetAt time.Time
}

// SettingsStore persists key/value settings
type SettingsStore interface {
	GetSetting(key string) string
	SetSetting(key, value string) error
}

// NewAuth creates the admin authenticator. An empty hash disables login.
func NewAuth(store SettingsStore, passHash string, logger zerolog.Logger) *Auth {
	a := &Auth{
		passHash: []byte(passHash),
		log:      logger.With().Str("component", "auth").Logger(),
		now:      time.Now,
		rateMap:  make(map[string]*rateEntry),
	}
	a.jwtSecret = a.loadOrCreateSecret(store)
	return a
}

// HashPassword produces a hash suitable for admin.passwordHash
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// loadOrCreateSecret loads the signing secret, or generates and persists
// a new one so tokens survive restarts.
func (a *Auth) loadOrCreateSecret(store SettingsStore) []byte {
	if store != nil {
		if h := store.GetSetting("jwt_secret"); h != "" {
			if b, err := hex.DecodeString(h); err == nil && len(b) == 32 {
				return b
			}
		}
	}
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		panic("failed to generate JWT secret: " + err.Error())
	}
	if store != nil {
		if err := store.SetSetting("jwt_secret", hex.EncodeToString(secret)); err != nil {
			a.log.Warn().Err(err).Msg("could not persist JWT secret")
		}
	}
	return secret
}

// Login checks the admin password and returns a token
func (a *Auth) Login(password, ip string) (string, error) {
	if len(a.passHash) == 0 {
		return "", ErrAdminDisabled
	}
	if !a.checkRate(ip) {
		return "", ErrTooManyAttempts
	}
	if err := bcrypt.CompareHashAndPassword(a.passHash, []byte(password)); err != nil {
		a.log.Warn().Str("remote", ip).Msg("admin login failed")
		return "", ErrBadCredentials
	}
	return a.generateToken()
}

// ValidateToken verifies an admin token
func (a *Auth) ValidateToken(tokenStr string) error {
	if len(a.passHash) == 0 {
		return ErrAdminDisabled
	}
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return a.jwtSecret, nil
	}, jwt.WithTimeFunc(a.now))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return ErrInvalidToken
	}
	if sub, _ := claims["sub"].(string); sub != adminSubject {
		return ErrInvalidToken
	}
	return nil
}

func (a *Auth) generateToken() (string, error) {
	now := a.now()
	claims := jwt.MapClaims{
		"sub": adminSubject,
		"exp": now.Add(jwtExpiry).Unix(),
		"iat": now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.jwtSecret)
}

func (a *Auth) checkRate(ip string) bool {
	a.rateMu.Lock()
	defer a.rateMu.Unlock()

	now := a.now()
	entry, ok := a.rateMap[ip]
	if !ok || now.After(entry.ResetAt) {
		a.rateMap[ip] = &rateEntry{Count: 1, ResetAt: now.Add(loginRateWindow)}
		return true
	}
	entry.Count++
	return entry.Count <= maxLoginAttempts
}
