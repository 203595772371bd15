package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pixmart/pixmart/internal/config"
	"github.com/pixmart/pixmart/internal/models"
	"github.com/sirupsen/logrus"
)

type JWTService struct {
	secretKey     []byte
	accessExpiry  time.Duration
	refreshExpiry time.Duration
	logger        *logrus.Logger
}

func NewJWTService(cfg *config.JWTConfig, logger *logrus.Logger) (*JWTService, error) {
	secretKey := []byte(cfg.SecretKey)
	if len(secretKey) < 32 {
		return nil, fmt.Errorf("secret key must be at least 32 bytes")
	}

	return &JWTService{
		secretKey:     secretKey,
		accessExpiry:  cfg.AccessExpiry,
		refreshExpiry: cfg.RefreshExpiry,
		logger:        logger,
	}, nil
}

type Claims struct {
	Phone string `json:"phone"`
	Type  string `json:"type"`
	JTI   string `json:"jti"`
	jwt.RegisteredClaims
}

// GenerateTokenPair issues an access/refresh pair for the user. A new token
// family id is minted when familyID is empty; refresh rotation keeps the
// family id so a leaked old token can revoke the whole chain.
func (s *JWTService) GenerateTokenPair(userID, phone, familyID string) (*models.TokenPair, string, error) {
	now := time.Now()
	if familyID == "" {
		familyID = uuid.New().String()
	}

	accessToken, err := s.sign(userID, phone, "access", now, s.accessExpiry)
	if err != nil {
		s.logger.WithError(err).Error("Failed to sign access token")
		return nil, "", fmt.Errorf("failed to sign access token: %w", err)
	}

	refreshToken, err := s.sign(userID, phone, "refresh", now, s.refreshExpiry)
	if err != nil {
		s.logger.WithError(err).Error("Failed to sign refresh token")
		return nil, "", fmt.Errorf("failed to sign refresh token: %w", err)
	}

	return &models.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.accessExpiry.Seconds()),
	}, familyID, nil
}

func (s *JWTService) sign(userID, phone, tokenType string, now time.Time, expiry time.Duration) (string, error) {
	jti := uuid.New().String()
	claims := &Claims{
		Phone: phone,
		Type:  tokenType,
		JTI:   jti,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			ID:        jti,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secretKey)
}

func (s *JWTService) VerifyToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secretKey, nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	return claims, nil
}

// RefreshTokens rotates a refresh token into a new pair within the same
// family.
func (s *JWTService) RefreshTokens(refreshTokenString, familyID string) (*models.TokenPair, string, error) {
	claims, err := s.VerifyToken(refreshTokenString)
	if err != nil {
		return nil, "", fmt.Errorf("invalid refresh token: %w", err)
	}

	if claims.Type != "refresh" {
		return nil, "", fmt.Errorf("token is not a refresh token")
	}

	return s.GenerateTokenPair(claims.Subject, claims.Phone, familyID)
}
