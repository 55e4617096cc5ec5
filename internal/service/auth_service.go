package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	"go-messenger/internal/model"
	"go-messenger/internal/token"
	"go-messenger/pkg/apierror"
)

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,50}$`)
	emailPattern    = regexp.MustCompile(`^[A-Za-z0-9+_.-]+@([A-Za-z0-9.-]+\.[A-Za-z]{2,})$`)
)

const (
	minPasswordLength = 8
	// bcrypt ignores input past 72 bytes; refuse it instead.
	maxPasswordLength = 72
	maxEmailLength    = 255
)

type userStore interface {
	FindByID(ctx context.Context, id int64) (model.User, error)
	FindByUsernameOrEmail(ctx context.Context, login string) (model.User, error)
	Create(ctx context.Context, u model.User) (model.User, error)
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
	UserExists(ctx context.Context, id int64) (bool, error)
}

type AuthService struct {
	users      userStore
	codec      *token.Codec
	bcryptCost int
	now        func() time.Time
}

func NewAuthService(users userStore, codec *token.Codec, bcryptCost int) *AuthService {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}

	return &AuthService{users: users, codec: codec, bcryptCost: bcryptCost, now: time.Now}
}

func (s *AuthService) Login(ctx context.Context, login string, password string) (model.LoginResponse, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return model.LoginResponse{}, apierror.BadRequest("username or email and password are required", "")
	}

	user, err := s.users.FindByUsernameOrEmail(ctx, login)
	if errors.Is(err, model.ErrUserNotFound) {
		slog.Warn("login failed: unknown user", "login", login)
		return model.LoginResponse{}, model.ErrInvalidCredentials
	}
	if err != nil {
		return model.LoginResponse{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		slog.Warn("login failed: wrong password", "user_id", user.ID)
		return model.LoginResponse{}, model.ErrInvalidCredentials
	}

	if !user.Enabled {
		slog.Warn("login failed: account disabled", "user_id", user.ID)
		return model.LoginResponse{}, model.ErrUserDisabled
	}

	if err := s.users.TouchLastLogin(ctx, user.ID, s.now().UTC()); err != nil {
		// Login still succeeds; the timestamp is informational.
		slog.Warn("failed to record last login", "user_id", user.ID, "error", err)
	}

	slog.Info("user logged in", "user_id", user.ID, "username", user.Username)
	return s.issue(user)
}

func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (model.LoginResponse, error) {
	claims, err := s.codec.Parse(refreshToken)
	if err != nil {
		slog.Warn("refresh rejected", "error", err)
		return model.LoginResponse{}, model.ErrInvalidToken
	}
	if claims.Type != token.Refresh {
		slog.Warn("refresh rejected: wrong token type", "type", claims.Type)
		return model.LoginResponse{}, model.ErrInvalidTokenType
	}
	if !claims.HasUserID() {
		return model.LoginResponse{}, model.ErrInvalidToken
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if errors.Is(err, model.ErrUserNotFound) {
		slog.Warn("refresh rejected: user no longer exists", "user_id", claims.UserID)
		return model.LoginResponse{}, model.ErrInvalidToken
	}
	if err != nil {
		return model.LoginResponse{}, err
	}

	return s.issue(user)
}

func (s *AuthService) Register(ctx context.Context, username string, email string, password string) (model.UserInfo, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	if err := validateRegistration(username, email, password); err != nil {
		return model.UserInfo{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return model.UserInfo{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Create(ctx, model.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Enabled:      true,
		CreatedAt:    s.now().UTC(),
	})
	if err != nil {
		return model.UserInfo{}, err
	}

	slog.Info("user registered", "user_id", user.ID, "username", user.Username)
	return user.Info(), nil
}

// ValidateToken never fails; an unusable token is reported as valid=false.
func (s *AuthService) ValidateToken(tokenString string) model.TokenValidation {
	if !s.codec.Validate(tokenString) {
		return model.TokenValidation{Valid: false}
	}

	userID, okID := s.codec.UserID(tokenString)
	username, okName := s.codec.Username(tokenString)
	if !okID || !okName {
		return model.TokenValidation{Valid: false}
	}

	return model.TokenValidation{UserID: userID, Username: username, Valid: true}
}

func (s *AuthService) UserExists(ctx context.Context, userID int64) (model.UserExistence, error) {
	if userID <= 0 {
		return model.UserExistence{UserID: userID, Exists: false}, nil
	}

	exists, err := s.users.UserExists(ctx, userID)
	if err != nil {
		return model.UserExistence{}, err
	}

	return model.UserExistence{UserID: userID, Exists: exists}, nil
}

func (s *AuthService) UserInfo(ctx context.Context, userID int64) (model.UserInfo, error) {
	if userID <= 0 {
		return model.UserInfo{}, model.ErrUserNotFound
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return model.UserInfo{}, err
	}

	return user.Info(), nil
}

func (s *AuthService) issue(user model.User) (model.LoginResponse, error) {
	pair, err := s.codec.IssuePair(user.Username, user.ID)
	if err != nil {
		return model.LoginResponse{}, err
	}

	return model.LoginResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(pair.ExpiresIn.Seconds()),
		Username:     user.Username,
		Email:        user.Email,
	}, nil
}

func validateRegistration(username string, email string, password string) error {
	if !usernamePattern.MatchString(username) {
		return apierror.BadRequest("username must be 3-50 characters of letters, numbers and underscores", "username")
	}

	if len(email) > maxEmailLength || !emailPattern.MatchString(email) {
		return apierror.BadRequest("invalid email format", "email")
	}

	if len(password) < minPasswordLength || len(password) > maxPasswordLength {
		return apierror.BadRequest(fmt.Sprintf("password must be %d-%d characters long", minPasswordLength, maxPasswordLength), "password")
	}

	var hasLetter, hasDigit bool
	for _, r := range password {
		hasLetter = hasLetter || unicode.IsLetter(r)
		hasDigit = hasDigit || unicode.IsDigit(r)
	}
	if !hasLetter || !hasDigit {
		return apierror.BadRequest("password must contain at least one letter and one number", "password")
	}

	return nil
}
