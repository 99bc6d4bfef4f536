package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/davemarrero/learnhub-backend/internal/users"
	pkgauth "github.com/davemarrero/learnhub-backend/pkg/auth"
	"github.com/davemarrero/learnhub-backend/pkg/config"
	"github.com/davemarrero/learnhub-backend/pkg/db/models"
	"github.com/davemarrero/learnhub-backend/pkg/enums"
	pkgerrors "github.com/davemarrero/learnhub-backend/pkg/errors"
	"github.com/davemarrero/learnhub-backend/pkg/queue"
	"github.com/davemarrero/learnhub-backend/pkg/security"
)

// Service handles registration and credential login.
type Service interface {
	Register(ctx context.Context, params RegisterParams) (*LoginResult, error)
	Login(ctx context.Context, email, password string) (*LoginResult, error)
}

// RegisterParams describes a new account.
type RegisterParams struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      enums.UserRole
}

// LoginResult carries the authenticated user and their access token.
type LoginResult struct {
	User        *models.User `json:"user"`
	AccessToken string       `json:"access_token"`
}

type service struct {
	repo     users.Repository
	enqueuer queue.Enqueuer
	jwtCfg   config.JWTConfig
	pwCfg    config.PasswordConfig
}

// NewService wires auth dependencies.
func NewService(repo users.Repository, enqueuer queue.Enqueuer, jwtCfg config.JWTConfig, pwCfg config.PasswordConfig) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "users repository required")
	}
	if enqueuer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "task enqueuer required")
	}
	if jwtCfg.Secret == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "jwt secret required")
	}
	return &service{repo: repo, enqueuer: enqueuer, jwtCfg: jwtCfg, pwCfg: pwCfg}, nil
}

func (s *service) Register(ctx context.Context, params RegisterParams) (*LoginResult, error) {
	email := strings.ToLower(strings.TrimSpace(params.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email required")
	}
	if len(params.Password) < 8 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "password must be at least 8 characters")
	}
	if params.FirstName == "" || params.LastName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "first and last name required")
	}
	role := params.Role
	if role == "" {
		role = enums.UserRoleStudent
	}
	if !role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid user role")
	}

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing user")
	}

	hash, err := security.HashPassword(params.Password, s.pwCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    params.FirstName,
		LastName:     params.LastName,
		Role:         role,
		IsActive:     true,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create user")
	}

	s.enqueueWelcomeEmail(ctx, user.ID)

	return s.loginResult(user)
}

func (s *service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email and password required")
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	if !user.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "account disabled")
	}

	ok, err := security.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}

	if err := s.repo.TouchLastLogin(ctx, user.ID, time.Now().UTC()); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update last login")
	}

	return s.loginResult(user)
}

func (s *service) loginResult(user *models.User) (*LoginResult, error) {
	token, err := pkgauth.MintAccessToken(s.jwtCfg, time.Now().UTC(), pkgauth.AccessTokenPayload{
		UserID: user.ID,
		Role:   user.Role,
		Email:  user.Email,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint access token")
	}
	return &LoginResult{User: user, AccessToken: token}, nil
}

// enqueueWelcomeEmail is best effort; registration never fails on a
// queue hiccup.
func (s *service) enqueueWelcomeEmail(ctx context.Context, userID uuid.UUID) {
	task, err := queue.NewWelcomeEmailTask(queue.WelcomeEmailPayload{UserID: userID})
	if err != nil {
		return
	}
	_, _ = s.enqueuer.Enqueue(ctx, task, queue.MaintenanceOptions()...)
}
