package ops

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const tokenTTL = time.Hour

// ErrInvalidOperatorKey signals a wrong operator key or token.
var ErrInvalidOperatorKey = errors.New("ops: invalid operator credentials")

// TokenService exchanges the shared operator key for a short-lived JWT used
// on the job-trigger endpoints. The key itself is only stored as a bcrypt
// hash in configuration.
type TokenService struct {
	keyHash   []byte
	jwtSecret []byte
	now       func() time.Time
}

func NewTokenService(operatorKeyHash, jwtSecret string) *TokenService {
	return &TokenService{
		keyHash:   []byte(operatorKeyHash),
		jwtSecret: []byte(jwtSecret),
		now:       time.Now,
	}
}

// WithClock overrides the time source, used by tests.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	s.now = now
	return s
}

// Issue validates the operator key and returns a signed token.
func (s *TokenService) Issue(operatorKey string) (string, error) {
	if len(s.keyHash) == 0 {
		return "", fmt.Errorf("ops: no operator key configured")
	}

	if err := bcrypt.CompareHashAndPassword(s.keyHash, []byte(operatorKey)); err != nil {
		return "", ErrInvalidOperatorKey
	}

	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"role": "operator",
		"jti":  uuid.NewString(),
		"iat":  now.Unix(),
		"exp":  now.Add(tokenTTL).Unix(),
	})

	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("ops: sign token: %w", err)
	}

	return signed, nil
}

// Verify validates a token issued by Issue.
func (s *TokenService) Verify(tokenString string) error {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOperatorKey, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return ErrInvalidOperatorKey
	}
	if role, _ := claims["role"].(string); role != "operator" {
		return ErrInvalidOperatorKey
	}

	return nil
}
