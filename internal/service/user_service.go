package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"buildtrack/internal/model"
	"buildtrack/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DTOs for Request validation
type RegisterRequest struct {
	Username    string `json:"username" binding:"required"`
	Password    string `json:"password" binding:"required,min=6"`
	Role        string `json:"role" binding:"required,oneof=planner foreman subcontractor"`
	CompanyName string `json:"company_name"`
}

type LoginUserRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type TokenResponse struct {
	Token string        `json:"token"`
	User  *UserResponse `json:"user"`
}

// DTO for returning User without exposing the password hash
type UserResponse struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	Role        string    `json:"role"`
	CompanyName string    `json:"company_name"`
	CreatedAt   string    `json:"created_at"`
}

// ErrBadCredentials is returned by Login for an unknown user or a wrong password.
var ErrBadCredentials = errors.New("invalid username or password")

const tokenTTL = 24 * time.Hour

// UserService covers registration, login and user lookup.
type UserService interface {
	Register(ctx context.Context, req RegisterRequest) (*UserResponse, error)
	Login(ctx context.Context, req LoginUserRequest) (*TokenResponse, error)
	ListUsers(ctx context.Context, role string) ([]UserResponse, error)
}

type userService struct {
	repo   repository.UserRepository
	secret []byte
}

// NewUserService returns a UserService signing tokens with secret.
func NewUserService(repo repository.UserRepository, secret []byte) UserService {
	return &userService{repo: repo, secret: secret}
}

// Helper: parse model to standard json API response
func mapToResponse(user *model.User) *UserResponse {
	return &UserResponse{
		ID:          user.ID,
		Username:    user.Username,
		Role:        user.Role,
		CompanyName: user.CompanyName,
		CreatedAt:   user.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func (s *userService) Register(ctx context.Context, req RegisterRequest) (*UserResponse, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return nil, invalidInput("username is required")
	}
	if !model.ValidRole(req.Role) {
		return nil, invalidInput("invalid role %q: must be planner, foreman or subcontractor", req.Role)
	}
	if len(req.Password) < 6 {
		return nil, invalidInput("password must be at least 6 characters")
	}

	if _, err := s.repo.GetByUsername(ctx, username); err == nil {
		return nil, fmt.Errorf("%w: username %s already exists", ErrInvalidInput, username)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		Username:    username,
		Password:    string(hashedPassword),
		Role:        req.Role,
		CompanyName: strings.TrimSpace(req.CompanyName),
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: username %s already exists", ErrInvalidInput, username)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return mapToResponse(user), nil
}

func (s *userService) Login(ctx context.Context, req LoginUserRequest) (*TokenResponse, error) {
	user, err := s.repo.GetByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		return nil, ErrBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, ErrBadCredentials
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":      user.ID.String(),
		"role":     user.Role,
		"username": user.Username,
		"exp":      time.Now().Add(tokenTTL).Unix(),
	})
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &TokenResponse{Token: tokenString, User: mapToResponse(user)}, nil
}

func (s *userService) ListUsers(ctx context.Context, role string) ([]UserResponse, error) {
	if role != "" && !model.ValidRole(role) {
		return nil, invalidInput("invalid role %q", role)
	}
	users, err := s.repo.ListByRole(ctx, role)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	responses := make([]UserResponse, 0, len(users))
	for i := range users {
		responses = append(responses, *mapToResponse(&users[i]))
	}
	return responses, nil
}
