package security

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestGenerateAndValidateToken(t *testing.T) {
	a := NewAuthService(testSecret)

	token, err := a.GenerateToken("user-1", RoleAdmin, time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	claims, err := a.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.UserID != "user-1" || !claims.IsAdmin() {
		t.Errorf("unexpected claims %+v", claims)
	}
}

func TestValidateTokenRejects(t *testing.T) {
	a := NewAuthService(testSecret)

	expired, _ := a.GenerateToken("user-1", "", -time.Minute)
	otherKey, _ := NewAuthService("another-secret-another-secret-xx").GenerateToken("user-1", "", time.Minute)
	noSub, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Minute).Unix(),
	}).SignedString([]byte(testSecret))
	noExp, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
	}).SignedString([]byte(testSecret))
	unsigned, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(time.Minute).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	for name, token := range map[string]string{
		"expired":   expired,
		"wrong key": otherKey,
		"no sub":    noSub,
		"no exp":    noExp,
		"alg none":  unsigned,
		"garbage":   "not.a.token",
	} {
		if _, err := a.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("%s: expected ErrInvalidToken, got %v", name, err)
		}
	}
}
