package auth

import (
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

// HashPassword hashes a plaintext password with the configured cost.
func HashPassword(password string, cost int) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// OperatorLogin exchanges the shared operator password for a token.
type OperatorLogin struct {
	passwordHash string
	tokens       *TokenManager
}

func NewOperatorLogin(passwordHash string, tokens *TokenManager) *OperatorLogin {
	return &OperatorLogin{passwordHash: strings.TrimSpace(passwordHash), tokens: tokens}
}

// Enabled reports whether an operator password is configured.
func (l *OperatorLogin) Enabled() bool {
	return l.passwordHash != ""
}

// Login verifies password and issues a token for operatorID.
func (l *OperatorLogin) Login(operatorID, password string) (string, time.Time, error) {
	if !l.Enabled() {
		return "", time.Time{}, apperrors.NewForbidden("operator login is disabled")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(l.passwordHash), []byte(password)); err != nil {
		return "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
	}
	if operatorID == "" {
		operatorID = "operator"
	}
	token, expiresAt, err := l.tokens.GenerateToken(operatorID)
	if err != nil {
		return "", time.Time{}, apperrors.NewInternalError(err)
	}
	return token, expiresAt, nil
}
