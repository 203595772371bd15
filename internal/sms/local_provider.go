package sms

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/pixmart/pixmart/internal/config"
	"github.com/pixmart/pixmart/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// UserDirectory is the slice of the user store the local provider needs to
// resolve verified phones into accounts.
type UserDirectory interface {
	FindByPhone(ctx context.Context, phone string) (*models.User, error)
	Create(ctx context.Context, phone string) (*models.User, error)
	UpdateNickname(ctx context.Context, phone, nickname string) error
}

// LocalProvider is the development SMS provider: it generates codes
// in-process, stores bcrypt hashes in Redis, and logs the plain code
// instead of sending a message. It satisfies the same contract as the
// external backend, so flows never know the difference.
type LocalProvider struct {
	client *redis.Client
	users  UserDirectory
	cfg    *config.OTPConfig
	logger *logrus.Logger
}

func NewLocalProvider(client *redis.Client, users UserDirectory, cfg *config.OTPConfig, logger *logrus.Logger) *LocalProvider {
	return &LocalProvider{
		client: client,
		users:  users,
		cfg:    cfg,
		logger: logger,
	}
}

func sessionKey(sessionID string) string  { return fmt.Sprintf("otp:session:%s", sessionID) }
func verifiedKey(sessionID string) string { return fmt.Sprintf("otp:verified:%s", sessionID) }

func (p *LocalProvider) Send(ctx context.Context, phone string) (*SendResult, error) {
	code, err := p.generateRandomCode(p.cfg.Length)
	if err != nil {
		return nil, fmt.Errorf("failed to generate OTP: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash OTP: %w", err)
	}

	record := models.OTPRecord{
		CodeHash:  string(hashed),
		Phone:     phone,
		Attempts:  0,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(p.cfg.Expiry),
	}

	dataJSON, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal OTP record: %w", err)
	}

	sessionID := uuid.New().String()
	if err := p.client.Set(ctx, sessionKey(sessionID), dataJSON, p.cfg.Expiry).Err(); err != nil {
		p.logger.WithError(err).Error("Failed to store OTP in Redis")
		return nil, fmt.Errorf("failed to store OTP: %w", err)
	}

	// Log the code in place of an actual SMS (development only).
	p.logger.WithFields(logrus.Fields{
		"phone": phone,
		"otp":   code,
	}).Info("OTP generated (logged for development)")

	return &SendResult{SessionID: sessionID, TTL: p.cfg.Expiry}, nil
}

func (p *LocalProvider) Verify(ctx context.Context, sessionID, code string) (*VerifyResult, error) {
	key := sessionKey(sessionID)

	dataJSON, err := p.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, fmt.Errorf("OTP session not found or expired")
	}
	if err != nil {
		p.logger.WithError(err).Error("Failed to get OTP from Redis")
		return nil, fmt.Errorf("failed to get OTP: %w", err)
	}

	var record models.OTPRecord
	if err := json.Unmarshal([]byte(dataJSON), &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal OTP record: %w", err)
	}

	if time.Now().After(record.ExpiresAt) {
		p.client.Del(ctx, key)
		return nil, fmt.Errorf("OTP expired")
	}

	if record.Attempts >= p.cfg.MaxAttempts {
		p.client.Del(ctx, key)
		return nil, fmt.Errorf("maximum attempts exceeded")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(record.CodeHash), []byte(code)); err != nil {
		record.Attempts++
		updatedJSON, _ := json.Marshal(record)
		p.client.Set(ctx, key, updatedJSON, time.Until(record.ExpiresAt))
		return nil, fmt.Errorf("invalid OTP")
	}

	p.client.Del(ctx, key)

	user, err := p.users.FindByPhone(ctx, record.Phone)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	isNew := user == nil
	if isNew {
		user, err = p.users.Create(ctx, record.Phone)
		if err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
	}

	// Mark the session verified so a follow-up UpdateUser can be validated.
	marker, _ := json.Marshal(verifiedSession{UserID: user.UserID, Phone: user.PhoneNumber})
	p.client.Set(ctx, verifiedKey(sessionID), marker, p.cfg.Expiry)

	return &VerifyResult{
		UserID:    user.UserID,
		Nickname:  user.Nickname,
		IsNewUser: isNew,
	}, nil
}

func (p *LocalProvider) generateRandomCode(length int) (string, error) {
	code := ""
	for i := 0; i < length; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		code += num.String()
	}
	return code, nil
}

type verifiedSession struct {
	UserID string `json:"user_id"`
	Phone  string `json:"phone"`
}

func (p *LocalProvider) UpdateUser(ctx context.Context, sessionID, userID, nickname string) error {
	stored, err := p.client.Get(ctx, verifiedKey(sessionID)).Result()
	if err == redis.Nil {
		return fmt.Errorf("session not verified or expired")
	}
	if err != nil {
		return fmt.Errorf("failed to check session: %w", err)
	}

	var marker verifiedSession
	if err := json.Unmarshal([]byte(stored), &marker); err != nil {
		return fmt.Errorf("failed to unmarshal session marker: %w", err)
	}
	if marker.UserID != userID {
		return fmt.Errorf("session does not belong to user")
	}

	if err := p.users.UpdateNickname(ctx, marker.Phone, nickname); err != nil {
		return fmt.Errorf("failed to update nickname: %w", err)
	}
	return nil
}
