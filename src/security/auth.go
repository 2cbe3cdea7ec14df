package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RoleAdmin may request reports for other users.
const RoleAdmin = "admin"

var ErrInvalidToken = errors.New("invalid token")

// Claims is what the API needs from a bearer token.
type Claims struct {
	UserID string
	Role   string
}

func (c Claims) IsAdmin() bool { return c.Role == RoleAdmin }

type AuthService struct {
	JWTSecret string
}

func NewAuthService(secret string) *AuthService {
	return &AuthService{
		JWTSecret: secret,
	}
}

// GenerateToken signs an HS256 token for userID. Tokens are normally issued by
// the identity provider; this is used by tooling and tests.
func (a *AuthService) GenerateToken(userID, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": userID,
		"exp": now.Add(ttl).Unix(),
		"iat": now.Unix(),
	}
	if role != "" {
		claims["role"] = role
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(a.JWTSecret))
}

func (a *AuthService) ValidateToken(tokenString string) (Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(a.JWTSecret), nil
	}, jwt.WithExpirationRequired())

	if err != nil {
		return Claims{}, errors.Join(ErrInvalidToken, err)
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Claims{}, ErrInvalidToken
	}
	// Ensure 'sub' claim exists and is a non-empty string
	sub, ok := mapClaims["sub"].(string)
	if !ok || sub == "" {
		return Claims{}, errors.Join(ErrInvalidToken, errors.New("'sub' claim missing or not a string"))
	}
	role, _ := mapClaims["role"].(string)
	return Claims{UserID: sub, Role: role}, nil
}
