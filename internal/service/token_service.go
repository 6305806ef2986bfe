package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/fourset-checker/internal/models"
	appErrors "github.com/noah-isme/fourset-checker/pkg/errors"
)

// TokenService verifies operator tokens. Tokens are HS256 signed with a shared
// secret; the engine never manages credentials itself.
type TokenService struct {
	secret []byte
	clock  func() time.Time
}

// NewTokenService constructs a token verifier for secret.
func NewTokenService(secret string) *TokenService {
	return &TokenService{secret: []byte(secret), clock: time.Now}
}

// ValidateToken parses and validates an operator token returning the claims.
func (s *TokenService) ValidateToken(tokenString string) (*models.OperatorClaims, error) {
	if len(s.secret) == 0 {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token verification is not configured")
	}
	token, err := jwt.ParseWithClaims(tokenString, &models.OperatorClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.clock))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.OperatorClaims)
	if !ok || !token.Valid || claims.OperatorID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	if claims.Role != models.RoleOperator && claims.Role != models.RoleViewer {
		return nil, appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("unknown role %q", claims.Role))
	}
	return claims, nil
}

// Issue signs a token for an operator. It backs the CLI's token command.
func (s *TokenService) Issue(operatorID string, role models.OperatorRole, ttl time.Duration) (string, error) {
	if len(s.secret) == 0 {
		return "", appErrors.Clone(appErrors.ErrValidation, "JWT secret is not configured")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	issuedAt := s.clock().UTC()
	claims := models.OperatorClaims{
		OperatorID: operatorID,
		Role:       role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   operatorID,
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign token")
	}
	return signed, nil
}
