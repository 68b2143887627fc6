package auth

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/pwannenmacher/review-flow/internal/apperrors"
	"github.com/pwannenmacher/review-flow/internal/config"
	"github.com/pwannenmacher/review-flow/internal/identity"
)

var (
	ErrInvalidToken = apperrors.New(apperrors.KindUnauthorized, apperrors.CodeUnauthenticated, "invalid token")
	ErrExpiredToken = apperrors.New(apperrors.KindUnauthorized, apperrors.CodeUnauthenticated, "token has expired")
)

// JWTClaims carries the caller identity inside an access token
type JWTClaims struct {
	EmployeeID string        `json:"employee_id"`
	Role       identity.Role `json:"role"`
	jwt.RegisteredClaims
}

// Caller converts the claims into the identity used by the services
func (c *JWTClaims) Caller() identity.Caller {
	return identity.Caller{EmployeeID: c.EmployeeID, Role: c.Role}
}

// Service issues and validates ES256 access tokens
type Service struct {
	privateKey *ecdsa.PrivateKey
	publicKey  *ecdsa.PublicKey
	issuer     string
	expiration time.Duration
	now        func() time.Time
}

// NewService creates a token service from the JWT configuration.
// A missing or unparsable key yields a fresh key pair, so tokens do not
// survive a restart in that case.
func NewService(cfg *config.JWTConfig) *Service {
	privateKey, publicKey := loadOrGenerateKeys(cfg.Secret)
	return &Service{
		privateKey: privateKey,
		publicKey:  publicKey,
		issuer:     cfg.Issuer,
		expiration: cfg.Expiration,
		now:        time.Now,
	}
}

// GenerateToken signs an access token for the caller
func (s *Service) GenerateToken(caller identity.Caller) (string, error) {
	if caller.EmployeeID == "" {
		return "", fmt.Errorf("employee id is required")
	}
	if _, ok := identity.ParseRole(string(caller.Role)); !ok {
		return "", fmt.Errorf("unknown role %q", caller.Role)
	}

	now := s.now()
	claims := JWTClaims{
		EmployeeID: caller.EmployeeID,
		Role:       caller.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   caller.EmployeeID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	signed, err := token.SignedString(s.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken verifies signature, issuer and lifetime and returns the claims
func (s *Service) ValidateToken(tokenString string) (*JWTClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return s.publicKey, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken.With("invalid token: %v", err)
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid || claims.EmployeeID == "" {
		return nil, ErrInvalidToken
	}
	if _, ok := identity.ParseRole(string(claims.Role)); !ok {
		return nil, ErrInvalidToken.With("token carries unknown role %q", claims.Role)
	}
	return claims, nil
}

// EncodePrivateKey renders the signing key as PEM, suitable for JWT_SECRET
func (s *Service) EncodePrivateKey() (string, error) {
	der, err := x509.MarshalECPrivateKey(s.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to marshal key: %w", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der})), nil
}

// loadOrGenerateKeys loads ECDSA keys from secret or generates new ones
func loadOrGenerateKeys(secret string) (*ecdsa.PrivateKey, *ecdsa.PublicKey) {
	if block, _ := pem.Decode([]byte(secret)); block != nil {
		if privateKey, err := x509.ParseECPrivateKey(block.Bytes); err == nil {
			return privateKey, &privateKey.PublicKey
		}
	}

	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ECDSA key: %v", err))
	}
	return privateKey, &privateKey.PublicKey
}
