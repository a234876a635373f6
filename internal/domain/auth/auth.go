package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const RoleOperator = "operator"

type Claims struct {
	UserID    string `json:"uid"`
	CompanyID string `json:"cid"`
	RoleName  string `json:"role"`
	jwt.RegisteredClaims
}

type UserContext struct {
	UserID    string
	CompanyID string
	RoleName  string
}

func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func CheckPassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

func GenerateToken(secret string, claims Claims, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	expires := now.Add(ttl)
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   claims.UserID,
		ExpiresAt: jwt.NewNumericDate(expires),
		IssuedAt:  jwt.NewNumericDate(now),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

func ParseToken(secret, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Operator is the single dashboard account configured through the environment.
type Operator struct {
	Email        string
	PasswordHash string
	CompanyID    string
}

func (o Operator) Authenticate(email, password string) (UserContext, error) {
	if o.Email == "" || o.PasswordHash == "" {
		return UserContext{}, ErrInvalidCredentials
	}
	if !strings.EqualFold(strings.TrimSpace(email), o.Email) {
		return UserContext{}, ErrInvalidCredentials
	}
	if err := CheckPassword(o.PasswordHash, password); err != nil {
		return UserContext{}, ErrInvalidCredentials
	}
	return UserContext{UserID: o.Email, CompanyID: o.CompanyID, RoleName: RoleOperator}, nil
}
