package model

import (
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// NormalizeEmail lowercases and trims the email string
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

var (
	ErrInvalidPassword = fmt.Errorf("invalid password")
	ErrTokenExpired    = fmt.Errorf("token expired")
	ErrTokenInvalid    = fmt.Errorf("token invalid")
	ErrTokenNotFound   = fmt.Errorf("token not found")
	ErrTokenDisabled   = fmt.Errorf("token disabled")
	ErrUnauthorized    = fmt.Errorf("unauthorized")
)

// User is an operator account. There is no self-registration; accounts are
// created on the command line or seeded.
type User struct {
	gorm.Model
	Email               string `gorm:"uniqueIndex;not null"` // always stored lowercase
	FullName            string
	Password            string `gorm:"not null"`
	PasswordResetToken  []byte
	PasswordResetExpiry time.Time
	LastLoginAt         *time.Time
}

// Normalize email before saving
func (u *User) BeforeSave(tx *gorm.DB) error {
	u.Email = NormalizeEmail(u.Email)
	return nil
}

func (store *Store) TouchLastLogin(u *User) error {
	now := time.Now().UTC()
	u.LastLoginAt = &now
	return store.db.Model(u).Update("last_login_at", now).Error
}

func (store *Store) AuthenticateUser(email, password string) (*User, error) {
	email = NormalizeEmail(email)
	user, err := store.GetUserByEMail(email)
	if err != nil {
		return nil, err
	}
	if !store.CheckPassword(user, password) {
		return nil, ErrInvalidPassword
	}
	return user, nil
}

func (store *Store) GetUserByID(id any) (*User, error) {
	var user User
	if id == nil {
		return nil, fmt.Errorf("user ID cannot be nil")
	}
	if err := store.db.First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (store *Store) GetUserByEMail(email string) (*User, error) {
	email = NormalizeEmail(email)
	var user User
	if err := store.db.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (store *Store) SetPassword(u *User, password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hashedPassword)
	return nil
}

func (store *Store) CheckPassword(u *User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) == nil
}

func (store *Store) CreateUser(u *User) error {
	// Email normalized by hook
	return store.db.Create(u).Error
}

func (store *Store) UpdateUser(u *User) error {
	return store.db.Save(u).Error
}

// ---- Password Reset ----

// Store hash of the plaintext token + expiry
func (store *Store) SetPasswordResetToken(u *User, token string, expiry time.Time) error {
	sum := sha256.Sum256([]byte(token))
	u.PasswordResetToken = sum[:]
	u.PasswordResetExpiry = expiry
	return store.db.Save(u).Error
}

// GetUserByResetToken finds the user by plaintext token, validating expiry
// with a constant-time compare.
func (store *Store) GetUserByResetToken(token string) (*User, error) {
	sum := sha256.Sum256([]byte(token))
	var u User

	if err := store.db.
		Where("password_reset_token = ?", sum[:]).
		First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	if time.Now().After(u.PasswordResetExpiry) {
		return nil, ErrTokenExpired
	}
	if !hmac.Equal(u.PasswordResetToken, sum[:]) {
		return nil, ErrTokenInvalid
	}
	return &u, nil
}

func (store *Store) ClearPasswordResetToken(u *User) error {
	u.PasswordResetToken = nil
	u.PasswordResetExpiry = time.Time{}
	return store.db.Save(u).Error
}
