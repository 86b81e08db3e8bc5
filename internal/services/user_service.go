// internal/services/user_service.go
package services

import (
	"context"
	stderrors "errors"
	"net/mail"
	"strings"

	"github.com/novelmovie/novelmovie/internal/auth"
	apperrors "github.com/novelmovie/novelmovie/internal/errors"
	"github.com/novelmovie/novelmovie/internal/models"
	"github.com/novelmovie/novelmovie/internal/utils"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const minPasswordLength = 8

// UserService manages accounts and issues login tokens.
type UserService struct {
	DB     *gorm.DB
	Tokens *auth.TokenConfig
}

func NewUserService(db *gorm.DB, tokens *auth.TokenConfig) *UserService {
	return &UserService{DB: db, Tokens: tokens}
}

// UserInput is the body of a registration request.
type UserInput struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// LoginResult is returned by Login.
type LoginResult struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create registers a user. The first account becomes an admin.
func (s *UserService) Create(ctx context.Context, input UserInput) (*models.User, error) {
	email := normalizeEmail(input.Email)
	if email == "" || input.Password == "" {
		return nil, apperrors.NewValidationError("Missing required fields: email and password are required", nil)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperrors.NewValidationError("Invalid email address", err)
	}
	if len(input.Password) < minPasswordLength {
		return nil, apperrors.NewValidationError("Password must be at least 8 characters", nil)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.NewProcessingError("failed to hash password", err)
	}

	user := &models.User{
		Email:        email,
		Name:         strings.TrimSpace(input.Name),
		PasswordHash: string(hash),
		Role:         models.UserRoleUser,
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.User{}).Where("email = ?", email).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return apperrors.NewConflictError("A user with this email already exists", nil)
		}

		var total int64
		if err := tx.Model(&models.User{}).Count(&total).Error; err != nil {
			return err
		}
		if total == 0 {
			user.Role = models.UserRoleAdmin
		}
		return tx.Create(user).Error
	})
	var appErr *apperrors.AppError
	if stderrors.As(err, &appErr) {
		return nil, appErr
	}
	if err != nil {
		return nil, apperrors.NewProcessingError("failed to create user", err)
	}

	utils.GetLogger().Named("users").Info("user created", map[string]interface{}{
		"user_id": user.ID,
		"role":    user.Role,
	})
	return user, nil
}

// Login checks the password and signs a token.
func (s *UserService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperrors.NewValidationError("Missing required fields: email and password are required", nil)
	}

	var user models.User
	err := s.DB.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewUnauthorizedError("Invalid email or password", nil)
	}
	if err != nil {
		return nil, apperrors.NewProcessingError("failed to load user", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, apperrors.NewUnauthorizedError("Invalid email or password", nil)
	}

	token, err := auth.GenerateToken(user.ID, user.Email, user.Role, s.Tokens)
	if err != nil {
		return nil, apperrors.NewProcessingError("failed to sign token", err)
	}
	return &LoginResult{Token: token, User: &user}, nil
}

func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := s.DB.WithContext(ctx).First(&user, "id = ?", id).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewNotFoundError("User not found", err)
	}
	if err != nil {
		return nil, apperrors.NewProcessingError("failed to load user", err)
	}
	return &user, nil
}
