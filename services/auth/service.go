package auth

import (
	"errors"
	"fmt"

	"github.com/machsheltie/Equoria-sub009/config"
	"github.com/machsheltie/Equoria-sub009/services/logging"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrPasswordHashingFailed = errors.New("failed to hash password")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrEmailTaken            = errors.New("email already registered")
)

// Service is the authentication event producer: it verifies passwords and
// registers users. Successful logins are what start new credential families.
type Service struct {
	config *config.Config
	db     *gorm.DB
	logger *logging.Service
}

func NewService(cfg *config.Config, db *gorm.DB, logger *logging.Service) *Service {
	if cfg.Auth.BcryptCost < bcrypt.MinCost || cfg.Auth.BcryptCost > bcrypt.MaxCost {
		cfg.Auth.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		config: cfg,
		db:     db,
		logger: logger,
	}
}

func (s *Service) ValidatePassword(password string) error {
	if len(password) < s.config.Auth.MinLength {
		return fmt.Errorf("password must be at least %d characters", s.config.Auth.MinLength)
	}
	return nil
}

func (s *Service) HashPassword(password string) (string, error) {
	if err := s.ValidatePassword(password); err != nil {
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.config.Auth.BcryptCost)
	if err != nil {
		s.logger.Error("password hashing failed", zap.Error(err))
		return "", ErrPasswordHashingFailed
	}

	return string(hash), nil
}

func (s *Service) VerifyPassword(hashedPassword, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)); err != nil {
		s.logger.Warn("password verification failed")
		return ErrInvalidCredentials
	}
	return nil
}

func (s *Service) Register(email, username, password string) (*User, error) {
	hash, err := s.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := User{
		Email:        email,
		Username:     username,
		PasswordHash: hash,
	}

	if err := s.db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("user registered",
		zap.Uint("user_id", user.ID),
		zap.String("username", username))

	return &user, nil
}

// Authenticate verifies an email/password pair. Unknown emails and wrong
// passwords are indistinguishable to the caller.
func (s *Service) Authenticate(email, password string) (*User, error) {
	var user User
	err := s.db.Where("email = ?", email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn("authentication failed - unknown email")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if err := s.VerifyPassword(user.PasswordHash, password); err != nil {
		return nil, err
	}

	return &user, nil
}
