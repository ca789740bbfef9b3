package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angola031/Ecoswap-sub003/internal/domain"
	"github.com/angola031/Ecoswap-sub003/internal/platform/logger"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// ErrInvalidToken is returned for tokens that fail parsing or verification.
var ErrInvalidToken = fmt.Errorf("%w: invalid token", domain.ErrNotFound)

// Claims are the claims carried by tokens issued by the user service.
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// JWTResolver resolves HS256 bearer tokens to user IDs.
type JWTResolver struct {
	secret []byte
	users  domain.UserDirectory
	logger *logger.Logger
}

// NewJWTResolver creates a resolver. When users is nil, the token's user is
// trusted without a directory lookup.
func NewJWTResolver(secret string, users domain.UserDirectory, log *logger.Logger) *JWTResolver {
	return &JWTResolver{secret: []byte(secret), users: users, logger: log.Named("JWTResolver")}
}

// Parse verifies the token signature and expiry and returns its claims.
func (r *JWTResolver) Parse(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("%w: token is empty", ErrInvalidToken)
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return r.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: token has expired", ErrInvalidToken)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: user_id claim missing", ErrInvalidToken)
	}
	return claims, nil
}

// Resolve implements domain.IdentityResolver.
func (r *JWTResolver) Resolve(ctx context.Context, credential string) (string, error) {
	claims, err := r.Parse(credential)
	if err != nil {
		r.logger.Debug("Token rejected", zap.Error(err))
		return "", err
	}
	if r.users == nil {
		return claims.UserID, nil
	}

	exists, err := r.users.Exists(ctx, claims.UserID)
	if err != nil {
		r.logger.Error("Failed to check user existence", zap.String("user_id", claims.UserID), zap.Error(err))
		return "", fmt.Errorf("failed to check user %s: %w", claims.UserID, err)
	}
	if !exists {
		r.logger.Warn("Token refers to unknown or inactive user", zap.String("user_id", claims.UserID))
		return "", fmt.Errorf("%w: user %s", domain.ErrNotFound, claims.UserID)
	}
	return claims.UserID, nil
}

// Issue signs a token for userID. It exists for tooling and tests; the user
// service is the regular issuer.
func (r *JWTResolver) Issue(userID, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(r.secret)
}
