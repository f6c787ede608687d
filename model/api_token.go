package model

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"time"

	"gorm.io/gorm"
)

// APIToken authenticates programmatic access to the JSON/XML API. Only a
// salted hash and a lookup prefix are stored; the plaintext token is shown
// once at creation.
type APIToken struct {
	gorm.Model
	UserID      uint   `gorm:"index"`
	TokenPrefix string `gorm:"size:16;index;not null"`
	TokenHash   string `gorm:"size:64;uniqueIndex;not null"`
	Salt        string `gorm:"size:64;not null"`

	Name       string `gorm:"size:100"`
	ExpiresAt  *time.Time
	LastUsedAt *time.Time
	Disabled   bool `gorm:"not null;default:false"`
}

func (APIToken) TableName() string { return "api_tokens" }

// makeToken is the only place producing randomness and hashes for tokens.
func makeToken() (plain, prefix, saltHex, tokenHash string, err error) {
	randBytes := make([]byte, 32)
	if _, e := rand.Read(randBytes); e != nil {
		return "", "", "", "", e
	}
	plain = base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(randBytes)
	if len(plain) < 8 {
		return "", "", "", "", errors.New("token generation failed")
	}
	prefix = plain[:8]

	salt := make([]byte, 16)
	if _, e := rand.Read(salt); e != nil {
		return "", "", "", "", e
	}
	saltHex = hex.EncodeToString(salt)

	h := sha256.Sum256(append(salt, []byte(plain)...))
	tokenHash = hex.EncodeToString(h[:])
	return
}

// CreateAPIToken creates a token for the given user and returns the
// plaintext exactly once.
func (store *Store) CreateAPIToken(userID uint, name string, expiresAt *time.Time) (plain string, rec *APIToken, err error) {
	plain, prefix, saltHex, hash, err := makeToken()
	if err != nil {
		return "", nil, err
	}
	rec = &APIToken{
		UserID:      userID,
		TokenPrefix: prefix,
		TokenHash:   hash,
		Salt:        saltHex,
		Name:        name,
		ExpiresAt:   expiresAt,
	}
	if err = store.db.Create(rec).Error; err != nil {
		return "", nil, err
	}
	return plain, rec, nil
}

// ValidateAPIToken verifies a raw token: prefix lookup, constant-time hash
// compare, disabled and expiry checks. The last-used timestamp is updated
// best effort.
func (store *Store) ValidateAPIToken(raw string) (*APIToken, error) {
	if len(raw) < 12 {
		return nil, ErrTokenInvalid
	}
	prefix := raw[:8]

	var rec APIToken
	if err := store.db.Where("token_prefix = ?", prefix).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}

	salt, err := hex.DecodeString(rec.Salt)
	if err != nil {
		return nil, ErrTokenInvalid
	}
	h := sha256.Sum256(append(salt, []byte(raw)...))
	got := hex.EncodeToString(h[:])
	if subtle.ConstantTimeCompare([]byte(got), []byte(rec.TokenHash)) != 1 {
		return nil, ErrTokenInvalid
	}

	if rec.Disabled {
		return nil, ErrTokenDisabled
	}
	if rec.ExpiresAt != nil && time.Now().After(*rec.ExpiresAt) {
		return nil, ErrTokenExpired
	}

	_ = store.db.Model(&APIToken{}).Where("id = ?", rec.ID).Update("last_used_at", time.Now()).Error
	return &rec, nil
}

// RevokeAPIToken disables a token.
func (store *Store) RevokeAPIToken(tokenID uint) error {
	return store.db.Model(&APIToken{}).
		Where("id = ?", tokenID).
		Update("disabled", true).Error
}

// ListAPITokens returns all tokens, most recent first.
func (store *Store) ListAPITokens() ([]APIToken, error) {
	var rows []APIToken
	err := store.db.Order("created_at desc").Find(&rows).Error
	return rows, err
}
